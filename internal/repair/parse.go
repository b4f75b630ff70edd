package repair

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnparseableDate is returned by ParseDateTaken for malformed input.
var ErrUnparseableDate = errors.New("unparseable date")

// dateSeparators are the characters accepted between year, month and day.
const dateSeparators = "-:/."

// ParseDateTaken converts an EXIF-style date such as "2021:07:04 18:30:00"
// or "2021-07-04T18:30:00" to epoch milliseconds in loc. The date separator
// is taken from offset 4 and the date/time separator from offset 10, so
// "2021/07/04 18:30:00" and "2021.07.04T18:30:00" parse as well. Anything
// after the seconds field is ignored.
func ParseDateTaken(raw string, loc *time.Location) (int64, error) {
	raw = strings.Trim(raw, "\x00 ")
	if len(raw) < 19 {
		return 0, fmt.Errorf("%w: %q is too short", ErrUnparseableDate, raw)
	}

	sep := raw[4]
	if !strings.ContainsRune(dateSeparators, rune(sep)) {
		return 0, fmt.Errorf("%w: %q has no date separator", ErrUnparseableDate, raw)
	}
	mid := " "
	if raw[10] == 'T' {
		mid = "T"
	}

	s := string(sep)
	layout := "2006" + s + "01" + s + "02" + mid + "15:04:05"

	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, raw[:19], loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnparseableDate, err)
	}
	return t.UnixMilli(), nil
}
