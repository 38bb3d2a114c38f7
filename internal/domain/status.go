package domain

import "fmt"

// Status is the lifecycle state of a room. The zero value is not a valid status.
type Status uint8

const (
	StatusWaiting Status = iota + 1
	StatusInProgress
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s >= StatusWaiting && s <= StatusCompleted
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrInvalidRoom, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "waiting":
		*s = StatusWaiting
	case "in-progress":
		*s = StatusInProgress
	case "completed":
		*s = StatusCompleted
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRoom, string(text))
	}
	return nil
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// in-progress -> in-progress is the round advance.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusInProgress || next == StatusCompleted
	case StatusCompleted:
		return false
	default:
		return false
	}
}
