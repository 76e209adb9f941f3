package timeutil

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		in     string
		want   Day
		wantOK bool
	}{
		{"2024-01-08", NewDay(2024, time.January, 8), true},
		{"2024-01-08T00:00:00", NewDay(2024, time.January, 8), true},
		{"2024-01-08 13:45:00", NewDay(2024, time.January, 8), true},
		{"2024-01-08T23:59:59Z", NewDay(2024, time.January, 8), true},
		{"2024-1-8", Day{}, false},
		{"01/08/2024", Day{}, false},
		{"Jan 8, 2024", Day{}, false},
		{"2024-01-08x", Day{}, false},
		{"", Day{}, false},
		{"2024-02-30", Day{}, false},
	}

	for _, tc := range tests {
		got, ok := ParseDay(tc.in)
		if ok != tc.wantOK {
			t.Errorf("ParseDay(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDayOrdering(t *testing.T) {
	a := MustParseDay("2023-12-31")
	b := MustParseDay("2024-01-01")

	if !a.Before(b) {
		t.Errorf("expected %v before %v", a, b)
	}
	if !b.After(a) {
		t.Errorf("expected %v after %v", b, a)
	}
	if a.Before(a) || a.After(a) {
		t.Error("a day is neither before nor after itself")
	}
	if a.DaysUntil(b) != 1 {
		t.Errorf("DaysUntil = %d, want 1", a.DaysUntil(b))
	}
	if b.DaysUntil(a) != -1 {
		t.Errorf("DaysUntil = %d, want -1", b.DaysUntil(a))
	}
}

func TestDayEquality(t *testing.T) {
	if MustParseDay("2024-01-08T10:00:00") != MustParseDay("2024-01-08") {
		t.Error("days with different time components should be equal")
	}
	if !(Day{}).IsZero() {
		t.Error("zero Day should report IsZero")
	}
	if MustParseDay("2024-01-08").String() != "2024-01-08" {
		t.Errorf("String() = %q", MustParseDay("2024-01-08").String())
	}
}

func TestMustParseDayPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for malformed input")
		}
	}()
	MustParseDay("not-a-date")
}
