package types

import (
	"fmt"
	"time"
)

// DateTime is a calendar date plus a millisecond-of-day, matching the two
// fixed-width integers a 'T' field stores. The zero value is "no datetime"
// and compares less than every concrete moment.
type DateTime struct {
	date Date
	msec int
}

// NewDateTime builds a DateTime from civil components.
func NewDateTime(year int, month time.Month, day, hour, min, sec, msec int) DateTime {
	return DateTime{
		date: NewDate(year, month, day),
		msec: ((hour*3600+min*60+sec)*1000 + msec),
	}
}

// DateTimeOf truncates a time.Time to millisecond precision.
func DateTimeOf(t time.Time) DateTime {
	return NewDateTime(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e6)
}

// DateTimeFromParts builds a DateTime from a day ordinal and a
// millisecond-of-day, the on-disk representation. Zero ordinal yields the
// "no datetime" value.
func DateTimeFromParts(ordinal, msec int) DateTime {
	if ordinal < 1 {
		return DateTime{}
	}
	return DateTime{date: DateFromOrdinal(ordinal), msec: msec}
}

// IsZero reports whether dt is the "no datetime" value.
func (dt DateTime) IsZero() bool {
	return dt.date.IsZero()
}

// Date returns the calendar date component.
func (dt DateTime) Date() Date {
	return dt.date
}

// MillisecondOfDay returns milliseconds elapsed since midnight.
func (dt DateTime) MillisecondOfDay() int {
	return dt.msec
}

// Clock returns the hour, minute, second and millisecond components.
func (dt DateTime) Clock() (hour, min, sec, msec int) {
	s := dt.msec / 1000
	return s / 3600, s % 3600 / 60, s % 60, dt.msec % 1000
}

// Time returns the moment in UTC. "No datetime" returns the zero Time.
func (dt DateTime) Time() time.Time {
	if dt.IsZero() {
		return time.Time{}
	}
	return dt.date.Time().Add(time.Duration(dt.msec) * time.Millisecond)
}

// Compare orders moments; "no datetime" sorts before every concrete one.
func (dt DateTime) Compare(o DateTime) int {
	if c := dt.date.Compare(o.date); c != 0 {
		return c
	}
	switch {
	case dt.msec < o.msec:
		return -1
	case dt.msec > o.msec:
		return 1
	default:
		return 0
	}
}

func (dt DateTime) String() string {
	if dt.IsZero() {
		return ""
	}
	h, m, s, ms := dt.Clock()
	return fmt.Sprintf("%s %02d:%02d:%02d.%03d", dt.date, h, m, s, ms)
}
