package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use human-readable
// values like "90s" or "2m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", raw)
	}
	d.Duration = parsed
	return nil
}

// Config is the root service configuration.
type Config struct {
	SchemaVersion string          `yaml:"schemaVersion"`
	Engine        EngineConfig    `yaml:"engine,omitempty"`
	Server        ServerConfig    `yaml:"server,omitempty"`
	Scheduler     SchedulerConfig `yaml:"scheduler,omitempty"`
	Delegates     DelegateConfig  `yaml:"delegates,omitempty"`
	Logging       LoggingConfig   `yaml:"logging,omitempty"`
	Events        EventsConfig    `yaml:"events,omitempty"`
}

// EngineConfig sizes the node execution dispatch machinery.
type EngineConfig struct {
	// WorkerPoolSize bounds concurrent node dispatches.
	WorkerPoolSize int `yaml:"workerPoolSize,omitempty"`
	// DispatchQueueSize bounds dispatches waiting for a worker.
	DispatchQueueSize int `yaml:"dispatchQueueSize,omitempty"`
}

// ServerConfig configures the remote procedure boundary.
type ServerConfig struct {
	GRPCAddress string `yaml:"grpcAddress,omitempty"`
}

// SchedulerConfig drives the perpetual task assignment and rebalance loops.
type SchedulerConfig struct {
	AssignmentInterval Duration `yaml:"assignmentInterval,omitempty"`
	RebalanceInterval  Duration `yaml:"rebalanceInterval,omitempty"`
	AssignmentPoolSize int      `yaml:"assignmentPoolSize,omitempty"`
	RebalancePoolSize  int      `yaml:"rebalancePoolSize,omitempty"`
	// ValidationTimeout bounds the synchronous capability probe per record.
	ValidationTimeout Duration `yaml:"validationTimeout,omitempty"`
	// LockTTL is the lease duration of the per-record lock.
	LockTTL Duration `yaml:"lockTTL,omitempty"`
}

// DelegateConfig tunes delegate liveness detection.
type DelegateConfig struct {
	// HeartbeatWindow is how stale a heartbeat may be before a delegate
	// counts as disconnected.
	HeartbeatWindow Duration `yaml:"heartbeatWindow,omitempty"`
}

// LoggingConfig selects log verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// EventsConfig sizes the in-process event bus.
type EventsConfig struct {
	BufferSize int `yaml:"bufferSize,omitempty"`
}

// Defaults applied by ApplyDefaults when fields are unset.
const (
	DefaultWorkerPoolSize     = 8
	DefaultDispatchQueueSize  = 64
	DefaultGRPCAddress        = ":7430"
	DefaultAssignmentPoolSize = 5
	DefaultRebalancePoolSize  = 5
	DefaultEventBufferSize    = 100
)

var (
	DefaultAssignmentInterval = time.Minute
	DefaultRebalanceInterval  = time.Minute
	DefaultValidationTimeout  = 2 * time.Minute
	DefaultLockTTL            = 30 * time.Second
	DefaultHeartbeatWindow    = 90 * time.Second
)

// ApplyDefaults fills unset fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Engine.WorkerPoolSize <= 0 {
		c.Engine.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if c.Engine.DispatchQueueSize <= 0 {
		c.Engine.DispatchQueueSize = DefaultDispatchQueueSize
	}
	if c.Server.GRPCAddress == "" {
		c.Server.GRPCAddress = DefaultGRPCAddress
	}
	if c.Scheduler.AssignmentInterval.Duration <= 0 {
		c.Scheduler.AssignmentInterval.Duration = DefaultAssignmentInterval
	}
	if c.Scheduler.RebalanceInterval.Duration <= 0 {
		c.Scheduler.RebalanceInterval.Duration = DefaultRebalanceInterval
	}
	if c.Scheduler.AssignmentPoolSize <= 0 {
		c.Scheduler.AssignmentPoolSize = DefaultAssignmentPoolSize
	}
	if c.Scheduler.RebalancePoolSize <= 0 {
		c.Scheduler.RebalancePoolSize = DefaultRebalancePoolSize
	}
	if c.Scheduler.ValidationTimeout.Duration <= 0 {
		c.Scheduler.ValidationTimeout.Duration = DefaultValidationTimeout
	}
	if c.Scheduler.LockTTL.Duration <= 0 {
		c.Scheduler.LockTTL.Duration = DefaultLockTTL
	}
	if c.Delegates.HeartbeatWindow.Duration <= 0 {
		c.Delegates.HeartbeatWindow.Duration = DefaultHeartbeatWindow
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = DefaultEventBufferSize
	}
}
