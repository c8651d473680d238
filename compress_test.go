package tpsdb

import (
	"bytes"
	"testing"

	assertion "github.com/stretchr/testify/assert"
)

func TestCodecRoundTrip(t *testing.T) {
	assert := assertion.New(t)
	payload := bytes.Repeat([]byte("table dump row data "), 50)

	for _, name := range []string{"snappy", "lz4"} {
		comp, decomp, err := Codec(name)
		assert.NoError(err)
		enc, err := comp(payload)
		assert.NoError(err)
		dec, err := decomp(enc)
		assert.NoError(err)
		assert.Equal(payload, dec, name)
	}
}

func TestCodecNone(t *testing.T) {
	assert := assertion.New(t)
	for _, name := range []string{"", "none"} {
		comp, decomp, err := Codec(name)
		assert.NoError(err)
		assert.Nil(comp)
		assert.Nil(decomp)
	}
}

func TestCodecUnknown(t *testing.T) {
	assert := assertion.New(t)
	_, _, err := Codec("zstd")
	assert.Error(err)
}
