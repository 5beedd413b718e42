package license

import (
	"fmt"
	"strings"
)

// Status is the payment state of a project as recorded by the registry.
// Any status may be replaced by any other; the registry does not order them.
type Status string

const (
	StatusNotPaid       Status = "NOT_PAID"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusFullyPaid     Status = "FULLY_PAID"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusNotPaid, StatusPartiallyPaid, StatusFullyPaid}

// Valid reports whether s is one of the three defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotPaid, StatusPartiallyPaid, StatusFullyPaid:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus validates raw input. Matching is exact after trimming spaces:
// "fully_paid" is rejected so stored values stay canonical.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: license status must be one of NOT_PAID, PARTIALLY_PAID, FULLY_PAID", ErrInvalidInput)
	}
	return s, nil
}
