package crm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the CRM has no matching record.
	ErrNotFound = errors.New("crm: not found")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("crm: unexpected status")

	// ErrMissingID is returned when the CRM accepts a create but assigns no ID.
	ErrMissingID = errors.New("crm: response missing id")
)

// Error describes a failed CRM operation.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("crm %s: status %d: %s", e.Op, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("crm %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("crm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
