package ring

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrCorruptFraming reports a record stream whose sizes do not frame it.
var ErrCorruptFraming = errors.New("corrupt record framing")

// HeaderSize is the size of the perf_event_header preceding every record.
const HeaderSize = 8

// RecordType identifies the kind of a perf record.
type RecordType uint32

const (
	RecordLost   RecordType = unix.PERF_RECORD_LOST
	RecordSample RecordType = unix.PERF_RECORD_SAMPLE
)

// Header is the perf_event_header of one record.
type Header struct {
	Type RecordType
	Misc uint16
	Size uint16 // including the header
}

// Walk calls fn for each record in buf with the record's payload. A record
// smaller than its header or running past the end of buf aborts the walk
// with ErrCorruptFraming. An error from fn stops the walk and is returned.
func Walk(buf []byte, fn func(hdr Header, payload []byte) error) error {
	for off := 0; off < len(buf); {
		if len(buf)-off < HeaderSize {
			return fmt.Errorf("%d trailing bytes at offset %d: %w", len(buf)-off, off, ErrCorruptFraming)
		}
		hdr := Header{
			Type: RecordType(binary.LittleEndian.Uint32(buf[off:])),
			Misc: binary.LittleEndian.Uint16(buf[off+4:]),
			Size: binary.LittleEndian.Uint16(buf[off+6:]),
		}
		if hdr.Size < HeaderSize {
			return fmt.Errorf("record size %d at offset %d: %w", hdr.Size, off, ErrCorruptFraming)
		}
		end := off + int(hdr.Size)
		if end > len(buf) {
			return fmt.Errorf("record of %d bytes at offset %d exceeds buffer of %d: %w", hdr.Size, off, len(buf), ErrCorruptFraming)
		}
		if err := fn(hdr, buf[off+HeaderSize:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// AppendRecord appends a framed record to buf.
func AppendRecord(buf []byte, typ RecordType, misc uint16, payload []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(typ))
	buf = binary.LittleEndian.AppendUint16(buf, misc)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(HeaderSize+len(payload)))
	return append(buf, payload...)
}
