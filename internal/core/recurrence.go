package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Monthly is the only supported frequency. The tagged representation
	// leaves room for more without touching the matcher's callers.
	Monthly Frequency = "MONTHLY"
)

type (
	Frequency string

	// Recurrence is the parsed form of a rule's repetition pattern.
	// The persisted token is parsed once at the storage boundary; nothing
	// past that boundary touches strings.
	Recurrence struct {
		Every      Frequency
		DayOfMonth int // 1-31
	}
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

func (r Recurrence) Validate() error {
	if r.Every != Monthly {
		return fmt.Errorf("%w: unsupported frequency %q", ErrInvalidRecurrence, r.Every)
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d", ErrInvalidRecurrence, r.DayOfMonth)
	}
	return nil
}

// FiresOn reports whether the pattern fires on the given calendar date.
// A day of month past the end of a short month never fires that month:
// day 31 is silent in April, day 29-31 in (most) Februaries. The day is
// deliberately not clamped to the month's last day, since clamping would
// change user-visible projections.
func (r Recurrence) FiresOn(date Date) bool {
	return date.Day() == r.DayOfMonth
}

// FiresOn reports whether the rule contributes on the given date.
func (rule RecurringRule) FiresOn(date Date) bool {
	return rule.Active && rule.Recurrence.FiresOn(date)
}

// ParseRecurrence parses the persisted pattern token, e.g.
// "FREQ=MONTHLY;BYMONTHDAY=5". Unknown keys are rejected rather than
// ignored so that a richer pattern written by a newer version cannot be
// silently misread as something simpler.
func ParseRecurrence(token string) (Recurrence, error) {
	var rec Recurrence
	token = strings.TrimSpace(token)
	if token == "" {
		return rec, fmt.Errorf("%w: empty pattern", ErrInvalidRecurrence)
	}
	for _, part := range strings.Split(token, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return rec, fmt.Errorf("%w: malformed part %q", ErrInvalidRecurrence, part)
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			rec.Every = Frequency(strings.ToUpper(strings.TrimSpace(value)))
		case "BYMONTHDAY":
			day, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return rec, fmt.Errorf("%w: day %q", ErrInvalidRecurrence, value)
			}
			rec.DayOfMonth = day
		default:
			return rec, fmt.Errorf("%w: unknown key %q", ErrInvalidRecurrence, key)
		}
	}
	if err := rec.Validate(); err != nil {
		return Recurrence{}, err
	}
	return rec, nil
}

// Token renders the pattern back into its persisted form.
func (r Recurrence) Token() string {
	return fmt.Sprintf("FREQ=%s;BYMONTHDAY=%d", r.Every, r.DayOfMonth)
}
