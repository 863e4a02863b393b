package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint defines the SemVer major version that
// loaded configs must satisfy. A v1 service only accepts v1 configs.
const SupportedSchemaVersionConstraint = "v1"

// Load reads the specified YAML bytes, validates them against the embedded
// JSON schema, unmarshals into a Config struct with strict decoding, checks
// schema version compatibility, and applies defaults.
func Load(configYAML []byte, filePathHint string) (*Config, error) {
	if len(configYAML) == 0 {
		return nil, fmerrors.NewConfigError("config content cannot be empty", nil)
	}

	// Step 1: Validate against the JSON Schema for basic structure and types.
	if err := ValidateWithSchema(configYAML); err != nil {
		return nil, fmerrors.NewConfigError(fmt.Sprintf("config '%s' failed schema validation", filePathHint), err)
	}

	// Step 2: Unmarshal into Go struct using strict decoding to catch unknown fields.
	var cfg Config
	if err := yamlUnmarshalStrict(configYAML, &cfg); err != nil {
		return nil, fmerrors.NewConfigError(fmt.Sprintf("failed to parse config YAML '%s'", filePathHint), err)
	}

	// Step 3: Check Schema Version Compatibility.
	if cfg.SchemaVersion == "" {
		return nil, fmerrors.NewValidationError(fmt.Sprintf("config '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	configSemVer := cfg.SchemaVersion
	if !strings.HasPrefix(configSemVer, "v") {
		configSemVer = "v" + configSemVer
	}
	if !semver.IsValid(configSemVer) {
		return nil, fmerrors.NewValidationError(fmt.Sprintf("config '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, cfg.SchemaVersion), nil)
	}

	// Check if the major version of the config schema matches the service's supported major version.
	if semver.Major(configSemVer) != SupportedSchemaVersionConstraint {
		return nil, fmerrors.NewValidationError(
			fmt.Sprintf("config '%s' schemaVersion '%s' is not compatible with service requirement '%s'",
				filePathHint, cfg.SchemaVersion, SupportedSchemaVersionConstraint),
			nil,
		)
	}

	// Step 4: Fill in documented defaults for everything left unset.
	cfg.ApplyDefaults()

	return &cfg, nil
}

// LoadFromFile is a convenience function to read a service config from disk.
func LoadFromFile(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, fmerrors.NewConfigError("config file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	yamlFile, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmerrors.NewConfigError(fmt.Sprintf("failed to read config file '%s'", absPath), err)
	}
	return Load(yamlFile, absPath)
}

// yamlUnmarshalStrict provides stricter YAML unmarshalling by disallowing unknown fields.
// This helps users catch typos or unsupported configuration options early.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(in)))
	// This crucial setting makes the parser return an error if the YAML
	// contains fields that are not defined in the target Go struct.
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
