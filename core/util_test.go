package core

import "testing"

func TestFormatTime(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "00:00"},
		{5.2, "00:05"},
		{59.999, "00:59"},
		{60, "01:00"},
		{125.7, "02:05"},
		{3725, "62:05"}, // minutes field is unbounded, no hour wrap
		{-3, "00:00"},
	}
	for _, c := range cases {
		if got := FormatTime(c.sec); got != c.want {
			t.Errorf("FormatTime(%v) = %q, want %q", c.sec, got, c.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  one   two\tthree\n"); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount empty = %d, want 0", got)
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatalf("NewID returned duplicate: %s", a)
	}
	if len(a) != 32 {
		t.Errorf("NewID length = %d, want 32", len(a))
	}
}
