package types

import (
	"fmt"
	"time"
)

// Unix timestamp at millisecond resolution
type UnixMilli int64

func NewUnixMilli(t time.Time) UnixMilli {
	return UnixMilli(t.UTC().UnixMilli())
}

func (u UnixMilli) Time() time.Time {
	return time.UnixMilli(int64(u)).UTC()
}

// Evaluation dates travel as calendar days, never as instants
const DateLayout = time.DateOnly

// Parses a calendar day into midnight UTC
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}

	return d, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
