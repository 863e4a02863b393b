package plan

// Level is one entry in an Ambiance's hierarchy: a stage, step group, or
// step, identified by its plan-time setup ID and its runtime execution ID.
type Level struct {
	SetupID   string `json:"setup_id"`
	RuntimeID string `json:"runtime_id"`
	StepType  string `json:"step_type,omitempty"`
}

// Ambiance is the immutable execution context handed to steps, advisers, and
// task executors. It carries the plan execution ID, tenancy abstractions, and
// the level hierarchy from plan root to the current node. Because it crosses
// async boundaries by value, mutations must go through Clone/WithLevel which
// copy the underlying slices and maps.
type Ambiance struct {
	PlanExecutionID   string            `json:"plan_execution_id"`
	SetupAbstractions map[string]string `json:"setup_abstractions,omitempty"`
	Levels            []Level           `json:"levels"`
}

// NodeExecutionID returns the runtime ID of the leaf level, which is the
// node execution this ambiance belongs to. Empty when no levels are set.
func (a Ambiance) NodeExecutionID() string {
	if len(a.Levels) == 0 {
		return ""
	}
	return a.Levels[len(a.Levels)-1].RuntimeID
}

// AccountID returns the tenant identifier from the setup abstractions, if present.
func (a Ambiance) AccountID() string {
	return a.SetupAbstractions["accountId"]
}

// Clone returns a deep copy of the ambiance.
func (a Ambiance) Clone() Ambiance {
	out := Ambiance{PlanExecutionID: a.PlanExecutionID}
	if a.SetupAbstractions != nil {
		out.SetupAbstractions = make(map[string]string, len(a.SetupAbstractions))
		for k, v := range a.SetupAbstractions {
			out.SetupAbstractions[k] = v
		}
	}
	if a.Levels != nil {
		out.Levels = make([]Level, len(a.Levels))
		copy(out.Levels, a.Levels)
	}
	return out
}

// WithLevel returns a copy of the ambiance with one more level appended.
func (a Ambiance) WithLevel(level Level) Ambiance {
	out := a.Clone()
	out.Levels = append(out.Levels, level)
	return out
}
