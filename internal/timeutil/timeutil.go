// Package timeutil parses the date expressions accepted in generator windows.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate accepts "now", "today", a calendar date, RFC3339, or an offset from now such
// as "-30d", "+2w" or "-36h". Calendar dates are midnight UTC.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return time.Time{}, errors.New("empty date string")
	case "now":
		return now, nil
	case "today":
		return StartOfDay(now), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if s[0] != '-' && s[0] != '+' {
		return time.Time{}, fmt.Errorf("unrecognized date %q: want YYYY-MM-DD, RFC3339, now, today or a signed offset", s)
	}
	return offset(now, s)
}

// offset applies a signed offset. Day and week units move by calendar days so an offset
// from midnight stays on midnight.
func offset(now time.Time, s string) (time.Time, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := s[1:]
	if n, unit, ok := calendarUnit(body); ok {
		return now.AddDate(0, 0, sign*n*unit), nil
	}
	d, err := ParseDuration(body)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return now.Add(time.Duration(sign) * d), nil
}

func calendarUnit(s string) (n, days int, ok bool) {
	if len(s) < 2 {
		return 0, 0, false
	}
	switch s[len(s)-1] {
	case 'd':
		days = 1
	case 'w':
		days = 7
	default:
		return 0, 0, false
	}
	v, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || v < 0 {
		return 0, 0, false
	}
	return v, days, true
}

// ParseDuration extends time.ParseDuration with d and w units.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, days, ok := calendarUnit(s)
	if !ok {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return time.Duration(n*days) * 24 * time.Hour, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
