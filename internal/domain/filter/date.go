package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateUnit is the granularity a parsed date value resolves to.
type DateUnit string

const (
	UnitYear   DateUnit = "y"
	UnitMonth  DateUnit = "M"
	UnitDay    DateUnit = "d"
	UnitHour   DateUnit = "h"
	UnitMinute DateUnit = "m"
	UnitSecond DateUnit = "s"
)

// ErrInvalidDate marks a date value that is neither a relative expression nor
// a parseable ISO date. The validator maps it to a rule validation failure.
var ErrInvalidDate = errors.New("invalid date value")

// nowPattern matches the relative-date mini-language:
// $now optionally followed by (unit:±n[,unit:±n...]).
var nowPattern = regexp.MustCompile(`^\$now(?:\(([yMdhms]:[+-]?\d+(?:,[yMdhms]:[+-]?\d+)*)\))?$`)

// absoluteLayouts are the accepted ISO-8601 prefixes, coarsest first.
// The layout that matches determines the resolution unit.
var absoluteLayouts = []struct {
	layout string
	unit   DateUnit
}{
	{"2006", UnitYear},
	{"2006-01", UnitMonth},
	{"2006-01-02", UnitDay},
	{"2006-01-02T15", UnitHour},
	{"2006-01-02T15:04", UnitMinute},
	{"2006-01-02T15:04:05", UnitSecond},
	{time.RFC3339, UnitSecond},
}

// unitPriority orders units finest first. The first unit mentioned in a
// relative expression, scanned in this order, becomes the resolution unit.
var unitPriority = []DateUnit{UnitSecond, UnitMinute, UnitHour, UnitDay, UnitMonth, UnitYear}

// IsValidDate reports whether input is a relative expression or a parseable
// ISO date. Used by the validator; never returns an error.
func IsValidDate(input string) bool {
	if nowPattern.MatchString(input) {
		return true
	}
	_, _, err := parseAbsolute(input)
	return err == nil
}

// ParseDate resolves a date string to a concrete instant and its resolution
// unit. Relative expressions start from now and apply each signed delta in
// order; absolute strings are parsed as ISO-8601 prefixes. The resolved
// instant is always floored to the start of its unit.
func ParseDate(input string, now time.Time) (time.Time, DateUnit, error) {
	if m := nowPattern.FindStringSubmatch(input); m != nil {
		return parseRelative(m[1], now)
	}
	t, unit, err := parseAbsolute(input)
	if err != nil {
		return time.Time{}, "", err
	}
	return floorTo(t, unit), unit, nil
}

func parseRelative(deltas string, now time.Time) (time.Time, DateUnit, error) {
	t := now
	mentioned := map[DateUnit]bool{}

	if deltas != "" {
		for _, part := range strings.Split(deltas, ",") {
			unit := DateUnit(part[:1])
			n, err := strconv.Atoi(part[2:])
			if err != nil {
				return time.Time{}, "", fmt.Errorf("%w: %q", ErrInvalidDate, deltas)
			}
			mentioned[unit] = true
			switch unit {
			case UnitYear:
				t = t.AddDate(n, 0, 0)
			case UnitMonth:
				t = t.AddDate(0, n, 0)
			case UnitDay:
				t = t.AddDate(0, 0, n)
			case UnitHour:
				t = t.Add(time.Duration(n) * time.Hour)
			case UnitMinute:
				t = t.Add(time.Duration(n) * time.Minute)
			case UnitSecond:
				t = t.Add(time.Duration(n) * time.Second)
			}
		}
	}

	unit := UnitDay
	for _, u := range unitPriority {
		if mentioned[u] {
			unit = u
			break
		}
	}
	return floorTo(t, unit), unit, nil
}

func parseAbsolute(input string) (time.Time, DateUnit, error) {
	for _, l := range absoluteLayouts {
		if t, err := time.Parse(l.layout, input); err == nil {
			return t, l.unit, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("%w: %q", ErrInvalidDate, input)
}

// floorTo truncates t to the start of the given unit.
func floorTo(t time.Time, unit DateUnit) time.Time {
	switch unit {
	case UnitYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case UnitMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case UnitDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case UnitHour:
		return t.Truncate(time.Hour)
	case UnitMinute:
		return t.Truncate(time.Minute)
	default:
		return t.Truncate(time.Second)
	}
}
