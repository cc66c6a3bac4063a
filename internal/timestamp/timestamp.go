// Package timestamp converts HH:MM:SS offsets into durations since video start.
package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var rePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})$`)

// Parse returns the offset encoded by s. It reports false for empty or
// malformed input; callers treat that as an absent boundary, never an error.
func Parse(s string) (time.Duration, bool) {
	m := rePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	if h > 23 || mins > 59 || sec > 59 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec)*time.Second, true
}

// ParsePtr is Parse for optional fields.
func ParsePtr(s *string) *time.Duration {
	if s == nil {
		return nil
	}
	d, ok := Parse(*s)
	if !ok {
		return nil
	}
	return &d
}

// Format renders d as zero-padded HH:MM:SS, truncating sub-second precision.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatPtr is Format for optional fields.
func FormatPtr(d *time.Duration) *string {
	if d == nil {
		return nil
	}
	s := Format(*d)
	return &s
}
