package oieb

import "fmt"

// Mismatch describes why Validate rejected an OIEB.
type Mismatch struct {
	Field    string
	Expected uint64
	Actual   uint64
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("oieb: %s mismatch: expected %d, got %d", m.Field, m.Expected, m.Actual)
}

// Validate checks the invariants a reading peer must enforce on open
// (spec.md §4.2): operation_size is exactly 128, metadata_size and
// payload_size match the caller's expectations for the mapped region, and
// both ring positions are within bounds.
func Validate(v *View, expectMetadataSize, expectPayloadSize uint64) error {
	s := v.Load()
	if s.OperationSize != Size {
		return &Mismatch{Field: "operation_size", Expected: Size, Actual: s.OperationSize}
	}
	if s.MetadataSize != expectMetadataSize {
		return &Mismatch{Field: "metadata_size", Expected: expectMetadataSize, Actual: s.MetadataSize}
	}
	if s.PayloadSize != expectPayloadSize {
		return &Mismatch{Field: "payload_size", Expected: expectPayloadSize, Actual: s.PayloadSize}
	}
	if s.PayloadWritePos >= s.PayloadSize {
		return &Mismatch{Field: "payload_write_pos", Expected: s.PayloadSize - 1, Actual: s.PayloadWritePos}
	}
	if s.PayloadReadPos >= s.PayloadSize {
		return &Mismatch{Field: "payload_read_pos", Expected: s.PayloadSize - 1, Actual: s.PayloadReadPos}
	}
	if s.PayloadFreeBytes > s.PayloadSize {
		return &Mismatch{Field: "payload_free_bytes", Expected: s.PayloadSize, Actual: s.PayloadFreeBytes}
	}
	if s.PayloadWrittenCount < s.PayloadReadCount {
		return &Mismatch{Field: "payload_written_count", Expected: s.PayloadReadCount, Actual: s.PayloadWrittenCount}
	}
	return nil
}
