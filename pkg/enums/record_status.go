package enums

import "fmt"

// RecordStatus is the state of one production record (order x process).
type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusInProgress RecordStatus = "in_progress"
	RecordStatusPaused     RecordStatus = "paused"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusStopped    RecordStatus = "stopped"
)

var validRecordStatuses = []RecordStatus{
	RecordStatusPending,
	RecordStatusInProgress,
	RecordStatusPaused,
	RecordStatusCompleted,
	RecordStatusStopped,
}

// IsValid reports whether the value matches the canonical record status enum.
func (s RecordStatus) IsValid() bool {
	for _, candidate := range validRecordStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the record can no longer change.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusCompleted || s == RecordStatusStopped
}

// ParseRecordStatus converts raw input into RecordStatus.
func ParseRecordStatus(value string) (RecordStatus, error) {
	for _, candidate := range validRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid record status %q", value)
}
