package types

import (
	"fmt"
	"time"
)

// JulianOffset converts between proleptic Gregorian day ordinals
// (0001-01-01 == day 1) and the Julian day numbers Visual FoxPro stores in
// DateTime fields.
const JulianOffset = 1721425

// civilEpoch is day 1 of the proleptic Gregorian calendar.
var civilEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// unixEpochOrdinal is the day ordinal of 1970-01-01.
const unixEpochOrdinal = 719163

// Date is a calendar date. The zero value is "no date" and compares less
// than every concrete date.
type Date struct {
	ordinal int
}

// NewDate returns the date for the given civil year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{ordinal: int(t.Unix()/86400) + unixEpochOrdinal}
}

// DateFromOrdinal returns the date for a proleptic Gregorian day ordinal.
// Ordinals below 1 yield the "no date" value.
func DateFromOrdinal(ordinal int) Date {
	if ordinal < 1 {
		return Date{}
	}
	return Date{ordinal: ordinal}
}

// DateOf truncates a time.Time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// IsZero reports whether d is the "no date" value.
func (d Date) IsZero() bool {
	return d.ordinal == 0
}

// Ordinal returns the proleptic Gregorian day ordinal, 0 for "no date".
func (d Date) Ordinal() int {
	return d.ordinal
}

// Time returns the date at midnight UTC. "No date" returns the zero Time.
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return civilEpoch.AddDate(0, 0, d.ordinal-1)
}

// Date returns the civil year, month and day.
func (d Date) Date() (year int, month time.Month, day int) {
	t := d.Time()
	return t.Year(), t.Month(), t.Day()
}

// Compare orders dates; "no date" sorts before every concrete date.
func (d Date) Compare(o Date) int {
	switch {
	case d.ordinal < o.ordinal:
		return -1
	case d.ordinal > o.ordinal:
		return 1
	default:
		return 0
	}
}

// Before reports whether d sorts before o.
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	y, m, dd := d.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), dd)
}
