package oieb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSetsExpectedFields(t *testing.T) {
	region := make([]byte, Size)
	v, err := New(region)
	require.NoError(t, err)

	v.Init(256, 1024, 42)
	s := v.Load()

	assert.Equal(t, uint64(Size), s.OperationSize)
	assert.Equal(t, uint64(256), s.MetadataSize)
	assert.Equal(t, uint64(256), s.MetadataFreeBytes)
	assert.Equal(t, uint64(1024), s.PayloadSize)
	assert.Equal(t, uint64(1024), s.PayloadFreeBytes)
	assert.Equal(t, uint64(42), s.ReaderPID)
	assert.Equal(t, uint64(0), s.WriterPID)
}

func TestNewRejectsUndersizedRegion(t *testing.T) {
	_, err := New(make([]byte, Size-1))
	assert.Error(t, err)
}

func TestWriteAdvanceIncrementsCountConditionally(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(0, 1024, 1)

	v.WriteAdvance(64, 960, true)
	s := v.Load()
	assert.Equal(t, uint64(64), s.PayloadWritePos)
	assert.Equal(t, uint64(960), s.PayloadFreeBytes)
	assert.Equal(t, uint64(1), s.PayloadWrittenCount)

	v.WriteAdvance(128, 896, false)
	s = v.Load()
	assert.Equal(t, uint64(1), s.PayloadWrittenCount, "wrap marker must not increment written count")
}

func TestReadAdvanceIncrementsCountConditionally(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(0, 1024, 1)

	v.ReadAdvance(80, 1024, true)
	s := v.Load()
	assert.Equal(t, uint64(80), s.PayloadReadPos)
	assert.Equal(t, uint64(1), s.PayloadReadCount)
}

func TestStoreMetadataWritten(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(256, 1024, 1)

	v.StoreMetadataWritten(20, 236)
	assert.Equal(t, uint64(20), v.MetadataWrittenBytes())
	assert.Equal(t, uint64(236), v.MetadataFreeBytes())
}

func TestValidateCatchesCorruptOperationSize(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(0, 1024, 1)
	// Corrupt operation_size directly.
	region[0] = 0

	err := Validate(v, 0, 1024)
	require.Error(t, err)
	var mismatch *Mismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "operation_size", mismatch.Field)
}

func TestValidateCatchesSizeMismatch(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(0, 1024, 1)

	err := Validate(v, 0, 2048)
	require.Error(t, err)
	var mismatch *Mismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "payload_size", mismatch.Field)
}

func TestValidateAcceptsConsistentState(t *testing.T) {
	region := make([]byte, Size)
	v, _ := New(region)
	v.Init(256, 1024, 1)
	assert.NoError(t, Validate(v, 256, 1024))
}
