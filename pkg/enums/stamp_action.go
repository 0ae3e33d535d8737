package enums

import "fmt"

// StampAction is a worker-initiated production record transition.
type StampAction string

const (
	StampActionSetupStart StampAction = "setup_start"
	StampActionSetupEnd   StampAction = "setup_end"
	StampActionWorkStart  StampAction = "work_start"
	StampActionPause      StampAction = "pause"
	StampActionResume     StampAction = "resume"
	StampActionStop       StampAction = "stop"
)

var validStampActions = []StampAction{
	StampActionSetupStart,
	StampActionSetupEnd,
	StampActionWorkStart,
	StampActionPause,
	StampActionResume,
	StampActionStop,
}

// IsValid reports whether the value matches the canonical stamp action enum.
func (a StampAction) IsValid() bool {
	for _, candidate := range validStampActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseStampAction converts raw input into StampAction.
func ParseStampAction(value string) (StampAction, error) {
	for _, candidate := range validStampActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stamp action %q", value)
}
