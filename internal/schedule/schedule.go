package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBadTime        = errors.New("time must be HH:MM in 24-hour format")
	ErrWindowInverted = errors.New("window start must be before its end")
	ErrWindowsOverlap = errors.New("windows for the same day must not overlap")
	ErrUnknownDay     = errors.New("unknown weekday name")
	ErrDuplicateDay   = errors.New("day appears more than once in the schedule")
)

// TimeWindow is one open interval of a doctor's day, wall-clock HH:MM.
type TimeWindow struct {
	Start string
	End   string
}

// DayAvailability holds the ordered windows for one weekday.
type DayAvailability struct {
	Day     time.Weekday
	Windows []TimeWindow
}

// Weekly is a doctor's recurring availability template. It is a value
// object: saved wholesale, never patched in place.
type Weekly struct {
	Days []DayAvailability
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseWeekday maps a weekday name ("Monday") to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDay, name)
}

// Validate rejects malformed clock values, inverted windows, overlapping
// windows within a day, and duplicate day entries. Malformed schedules are
// refused at write time rather than normalized at read time.
func (w Weekly) Validate() error {
	seen := make(map[time.Weekday]bool, len(w.Days))
	for _, day := range w.Days {
		if seen[day.Day] {
			return fmt.Errorf("%w: %s", ErrDuplicateDay, day.Day)
		}
		seen[day.Day] = true

		prevEnd := -1
		for _, win := range day.Windows {
			start, err := ParseClock(win.Start)
			if err != nil {
				return err
			}
			end, err := ParseClock(win.End)
			if err != nil {
				return err
			}
			if start >= end {
				return fmt.Errorf("%w: %s %s-%s", ErrWindowInverted, day.Day, win.Start, win.End)
			}
			if start < prevEnd {
				return fmt.Errorf("%w: %s %s-%s", ErrWindowsOverlap, day.Day, win.Start, win.End)
			}
			prevEnd = end
		}
	}
	return nil
}

// DayFor returns the windows configured for the weekday of date, or nil if
// the schedule has no entry for that day.
func (w Weekly) DayFor(date time.Time) []TimeWindow {
	weekday := date.Weekday()
	for _, day := range w.Days {
		if day.Day == weekday {
			return day.Windows
		}
	}
	return nil
}

// Slots enumerates the bookable slot start times for date: fixed slotLen
// slices of each window, stopping strictly before the window end. A window
// of 09:00-09:45 with 30-minute slots yields only "09:00"; the trailing
// partial slot is discarded. A weekday with no entry yields an empty list.
// Pure function of its inputs.
func Slots(w Weekly, date time.Time, slotLen time.Duration) []string {
	step := int(slotLen / time.Minute)
	if step <= 0 {
		return nil
	}

	var out []string
	for _, win := range w.DayFor(date) {
		start, err := ParseClock(win.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(win.End)
		if err != nil {
			continue
		}
		for t := start; t+step <= end; t += step {
			out = append(out, FormatClock(t))
		}
	}
	return out
}
