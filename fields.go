package tpsdb

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// ToDate decodes the 4-byte date field layout: day, month, then a
// little-endian year. A year of 0 means "no date" and yields the zero
// time, not an error.
func ToDate(b []byte) (time.Time, error) {
	if len(b) < 4 {
		return time.Time{}, errors.Wrapf(ErrFormat, "date field needs 4 bytes, got %d", len(b))
	}
	year := int(binary.LittleEndian.Uint16(b[2:]))
	if year == 0 {
		return time.Time{}, nil
	}
	return time.Date(year, time.Month(b[1]), int(b[0]), 0, 0, 0, 0, time.UTC), nil
}

// ToTime decodes the 4-byte time field layout (centisecond, second,
// minute, hour) into a duration since midnight. Centiseconds carry 10ms
// each.
func ToTime(b []byte) (time.Duration, error) {
	if len(b) < 4 {
		return 0, errors.Wrapf(ErrFormat, "time field needs 4 bytes, got %d", len(b))
	}
	return time.Duration(b[3])*time.Hour +
		time.Duration(b[2])*time.Minute +
		time.Duration(b[1])*time.Second +
		time.Duration(b[0])*10*time.Millisecond, nil
}
