// Package schedule holds the temporal domain logic of the scheduler: execution
// windows, linear load spreading, and recurrence period keys.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWindow indicates a window whose end precedes its start.
var ErrInvalidWindow = errors.New("window end precedes start")

// Window is the span over which job execution times are spread.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow constructs a Window, rejecting inverted bounds.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// At returns the execution timestamp for the account at the given 0-based
// index among total accounts, spread linearly across the window and clamped
// to be no earlier than now. With total <= 1 the window start is used.
func (w Window) At(index, total int, now time.Time) time.Time {
	if index < 0 {
		index = 0
	}
	denom := total - 1
	if denom < 1 {
		denom = 1
	}
	if index > denom {
		index = denom
	}

	offset := time.Duration(float64(w.Duration()) * float64(index) / float64(denom))
	at := w.Start.Add(offset)
	if at.Before(now) {
		return now
	}
	return at
}

// ClockTime is a wall-clock time of day, parsed from "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler to allow env parsing.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Before reports whether c is earlier in the day than other.
func (c ClockTime) Before(other ClockTime) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On anchors the clock time to the given day, in that day's location.
func (c ClockTime) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// DayWindow builds the window for a given day from start and end clock times.
func DayWindow(day time.Time, start, end ClockTime) (Window, error) {
	return NewWindow(start.On(day), end.On(day))
}

// SlotWindow returns the window covering the fixed-length slot containing t.
func SlotWindow(t time.Time, slot time.Duration) Window {
	start := t.Truncate(slot)
	return Window{Start: start, End: start.Add(slot)}
}
