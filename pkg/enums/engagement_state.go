package enums

import "fmt"

// EngagementState tracks the ad-to-waive interaction for a checkout attempt.
type EngagementState string

const (
	EngagementStateIdle      EngagementState = "idle"
	EngagementStatePlaying   EngagementState = "playing"
	EngagementStatePaused    EngagementState = "paused"
	EngagementStateCompleted EngagementState = "completed"
	EngagementStateSkipped   EngagementState = "skipped"
)

var validEngagementStates = []EngagementState{
	EngagementStateIdle,
	EngagementStatePlaying,
	EngagementStatePaused,
	EngagementStateCompleted,
	EngagementStateSkipped,
}

// String implements fmt.Stringer.
func (e EngagementState) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EngagementState.
func (e EngagementState) IsValid() bool {
	for _, candidate := range validEngagementStates {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt is closed.
func (e EngagementState) IsTerminal() bool {
	return e == EngagementStateCompleted || e == EngagementStateSkipped
}

// ParseEngagementState converts raw input into an EngagementState.
func ParseEngagementState(value string) (EngagementState, error) {
	for _, candidate := range validEngagementStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid engagement state %q", value)
}
