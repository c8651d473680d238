package tpsdb

import (
	"bytes"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// Compressor and DeCompressor wrap the codecs table dumps can be written
// with. TPS pages themselves use the format's own run-length scheme, not
// these.
type Compressor func([]byte) ([]byte, error)
type DeCompressor func([]byte) ([]byte, error)

var (
	SnappyCompress Compressor = func(in []byte) ([]byte, error) {
		return snappy.Encode(nil, in), nil
	}
	SnappyDeCompress DeCompressor = func(in []byte) ([]byte, error) {
		return snappy.Decode(nil, in)
	}
)

var (
	Lz4Compress Compressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		writer := lz4.NewWriter(buf)
		writer.NoChecksum = true
		if _, err := writer.Write(in); err != nil {
			_ = writer.Close()
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	Lz4DeCompress DeCompressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		reader := lz4.NewReader(bytes.NewReader(in))
		_, err := buf.ReadFrom(reader)
		return buf.Bytes(), err
	}
)

// Codec returns the compressor pair registered under name: "snappy",
// "lz4", or "none"/"" for no compression.
func Codec(name string) (Compressor, DeCompressor, error) {
	switch name {
	case "", "none":
		return nil, nil, nil
	case "snappy":
		return SnappyCompress, SnappyDeCompress, nil
	case "lz4":
		return Lz4Compress, Lz4DeCompress, nil
	}
	return nil, nil, errors.Errorf("unknown compression %q", name)
}
