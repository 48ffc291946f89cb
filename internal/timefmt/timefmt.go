// Package timefmt parses and renders the HH:MM:SS elapsed-time strings
// used on result commands and announcements.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned for input that is not three colon-separated
// non-negative integers.
var ErrMalformed = errors.New("malformed time, expected HH:MM:SS")

// Parse converts an HH:MM:SS string to a duration. Field widths are not
// enforced, so "1:2:3" parses the same as "01:02:03". Minutes and
// seconds above 59 are accepted and carried (they are still a definite
// amount of time), but negative fields and anything other than exactly
// three fields are rejected.
func Parse(s string) (time.Duration, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	var parts [3]int64
	for i, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		parts[i] = n
	}

	secs := parts[0]*3600 + parts[1]*60 + parts[2]
	return time.Duration(secs) * time.Second, nil
}

// Format renders a duration as zero-padded HH:MM:SS, truncating
// sub-second precision. Hours widen past two digits as needed.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// Ordinal renders 1-based positions as "1st", "2nd", "3rd".
func Ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}
