package tpsdb

import (
	"testing"
	"time"

	assertion "github.com/stretchr/testify/assert"
)

func TestToDate(t *testing.T) {
	assert := assertion.New(t)

	// day 14, month 7, year 1997 (little-endian).
	d, err := ToDate([]byte{14, 7, 0xCD, 0x07})
	assert.NoError(err)
	assert.Equal(time.Date(1997, time.July, 14, 0, 0, 0, 0, time.UTC), d)

	// Year 0 is "no date": the zero time, not an error.
	d, err = ToDate([]byte{0, 0, 0, 0})
	assert.NoError(err)
	assert.True(d.IsZero())

	_, err = ToDate([]byte{1, 2})
	assert.Error(err)
}

func TestToTime(t *testing.T) {
	assert := assertion.New(t)

	// centisecond 50, second 30, minute 15, hour 12.
	d, err := ToTime([]byte{50, 30, 15, 12})
	assert.NoError(err)
	want := 12*time.Hour + 15*time.Minute + 30*time.Second + 500*time.Millisecond
	assert.Equal(want, d)

	d, err = ToTime([]byte{0, 0, 0, 0})
	assert.NoError(err)
	assert.Equal(time.Duration(0), d)

	_, err = ToTime([]byte{1})
	assert.Error(err)
}
