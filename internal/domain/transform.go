package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// dateLayouts are tried in order; "1/2/2006" must precede "1/2/06" so a
	// four-digit year is never read as two.
	dateLayouts = []string{
		"2006-01-02",
		"1/2/2006",
		"1/2/06",
		"2006/1/2",
	}

	// clockLayouts cover the 12-hour export format and 24-hour spreadsheet
	// round trips. Input is upper-cased before matching.
	clockLayouts = []string{
		"3:04 PM",
		"3:04PM",
		"3:04:05 PM",
		"3:04:05PM",
		"15:04",
		"15:04:05",
	}
)

var errBlank = errors.New("blank value")

// ParseDate parses an export date string into a UTC midnight time.
// A trailing time component ("7/1/2022 0:00") is ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: %w", errBlank)
	}
	if t, ok := parseWithLayouts(s, dateLayouts); ok {
		return t, nil
	}
	if fields := strings.Fields(s); len(fields) > 1 {
		if t, ok := parseWithLayouts(fields[0], dateLayouts); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: unrecognized layout", s)
}

// ParseClock parses a time-of-day string and returns the offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return 0, fmt.Errorf("parse time: %w", errBlank)
	}
	t, ok := parseWithLayouts(s, clockLayouts)
	if !ok {
		return 0, fmt.Errorf("parse time %q: unrecognized layout", s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// ParseDateTime combines a date and a time-of-day string into one UTC instant.
func ParseDateTime(date, clockValue string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := ParseClock(clockValue)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(offset), nil
}

func parseWithLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WeekdayName maps t onto names indexed Monday=0..Sunday=6.
func WeekdayName(t time.Time, names [7]string) string {
	return names[(int(t.Weekday())+6)%7]
}

// CalculatedHours returns the elapsed wall-clock hours between start and end,
// keeping only the sub-day component of the difference. A negative difference
// wraps forward, so 23:00 -> 01:00 the same day reads as 2 hours.
func CalculatedHours(start, end time.Time) float64 {
	const day = 24 * time.Hour
	d := end.Sub(start) % day
	if d < 0 {
		d += day
	}
	return d.Hours()
}

// NormalizeZip reduces a postal code to its five-digit ZCTA key:
// "92101-1234" -> "92101", "92101.0" -> "92101". Values without five leading
// digits are returned trimmed.
func NormalizeZip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return s
	}
	for i := 0; i < 5; i++ {
		if s[i] < '0' || s[i] > '9' {
			return s
		}
	}
	if len(s) > 5 && s[5] >= '0' && s[5] <= '9' {
		return s
	}
	return s[:5]
}

// IsBlank reports whether a cell carries no usable content.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// RecordID produces a deterministic ID from a record's identifying fields.
// Replaying the same export yields the same IDs.
func RecordID(userID string, start time.Time, zip string) string {
	input := fmt.Sprintf("%s|%s|%s", userID, start.Format(time.RFC3339), zip)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
