package tpsdb

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
)

func TestRows(t *testing.T) {
	assert := assertion.New(t)
	tps, err := Open(writeFixture(t, buildCatalogFile()), &Options{CurrentTable: "items"})
	assert.NoError(err)
	defer tps.Close()

	it, err := tps.Rows(nil)
	assert.NoError(err)

	row, err := it.Next()
	assert.NoError(err)
	assert.Equal(uint32(1), row.ID)
	assert.Equal(fixRow1, row.Data)

	row, err = it.Next()
	assert.NoError(err)
	assert.Equal(uint32(2), row.ID)
	assert.Equal(fixRow2, row.Data)

	_, err = it.Next()
	assert.Equal(io.EOF, err)
}

func TestRowsOtherTableEmpty(t *testing.T) {
	assert := assertion.New(t)
	tps, err := Open(writeFixture(t, buildCatalogFile()), &Options{CurrentTable: "orders"})
	assert.NoError(err)
	defer tps.Close()

	it, err := tps.Rows(nil)
	assert.NoError(err)
	_, err = it.Next()
	assert.Equal(io.EOF, err)
}

func TestRowsNoCurrentTable(t *testing.T) {
	assert := assertion.New(t)
	tps, err := Open(writeFixture(t, buildCatalogFile()), nil)
	assert.NoError(err)
	defer tps.Close()

	_, err = tps.Rows(nil)
	assert.True(errors.Is(err, ErrNoCurrentTable))
}

func TestRowsCancellation(t *testing.T) {
	assert := assertion.New(t)
	tps, err := Open(writeFixture(t, buildCatalogFile()), &Options{CurrentTable: "items"})
	assert.NoError(err)
	defer tps.Close()

	// The predicate is consulted between page visits; refusing the
	// first visit ends the stream before any row.
	it, err := tps.Rows(func() bool { return false })
	assert.NoError(err)
	_, err = it.Next()
	assert.Equal(io.EOF, err)
}
