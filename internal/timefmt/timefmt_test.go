package timefmt

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"01:02:03", 3723 * time.Second},
		{"00:00:00", 0},
		{"1:2:3", 3723 * time.Second},
		{"10:00:59", 10*time.Hour + 59*time.Second},
		{"100:00:00", 100 * time.Hour},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"99:99",
		"",
		"1:2:3:4",
		"aa:bb:cc",
		"-1:00:00",
		"1:2:-3",
		"01:02:03 extra",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q): got %v, want ErrMalformed", in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{3723 * time.Second, "01:02:03"},
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{100 * time.Hour, "100:00:00"},
		{90*time.Minute + 500*time.Millisecond, "01:30:00"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	const in = "13:07:45"
	d, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse(%q): %v", in, err)
	}
	if got := Format(d); got != in {
		t.Errorf("Format(Parse(%q)) = %q", in, got)
	}
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th"} {
		if got := Ordinal(n); got != want {
			t.Errorf("Ordinal(%d) = %q, want %q", n, got, want)
		}
	}
}
