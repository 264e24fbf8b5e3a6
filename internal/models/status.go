package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status represents the processing state of a record.
type Status int

const (
	// StatusQueued - accepted, deferred processing has not finished.
	StatusQueued Status = iota
	// StatusCompleted - scored and stored. Rescoring keeps this state.
	StatusCompleted
)

// ErrUnknownStatus is returned when parsing an unrecognised status name.
var ErrUnknownStatus = errors.New("unknown status")

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if no further status transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "QUEUED":
		return StatusQueued, nil
	case "COMPLETED":
		return StatusCompleted, nil
	default:
		return 0, errors.Wrapf(ErrUnknownStatus, "%q", name)
	}
}

// MarshalText encodes the status by name so JSON carries "QUEUED"/"COMPLETED".
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusQueued, StatusCompleted:
		return []byte(s.String()), nil
	default:
		return nil, errors.Wrapf(ErrUnknownStatus, "%d", int(s))
	}
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
