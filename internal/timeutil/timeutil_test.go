package timeutil

import (
	"testing"
	"time"
)

func TestParseDuration_DayAndWeekUnits(t *testing.T) {
	d, err := ParseDuration("3d")
	if err != nil {
		t.Fatal(err)
	}
	if d != 72*time.Hour {
		t.Fatalf("expected 72h, got %v", d)
	}
	w, err := ParseDuration("2w")
	if err != nil {
		t.Fatal(err)
	}
	if w != 14*24*time.Hour {
		t.Fatalf("expected 336h, got %v", w)
	}
	if _, err := ParseDuration("5y"); err == nil {
		t.Fatal("expected unknown unit error")
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 7, 15, 13, 45, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"now":                  now,
		"today":                time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		"2020-01-01":           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"2021-03-04T05:06:07Z": time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
		"-30d":                 now.AddDate(0, 0, -30),
		"+2w":                  now.AddDate(0, 0, 14),
		"-36h":                 now.Add(-36 * time.Hour),
	}
	for in, want := range cases {
		got, err := ParseDate(in, now)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}

	if _, err := ParseDate("yesterday-ish", now); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseDate_DayOffsetKeepsMidnight(t *testing.T) {
	midnight := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := ParseDate("-1d", midnight)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, err := ParseDate("-3y", midnight); err == nil {
		t.Fatal("expected unknown unit error")
	}
}
