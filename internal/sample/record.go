package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"fmt"

	"pmutool/internal/ring"

	"golang.org/x/sys/unix"
)

// SampleType is the perf sample_type producing Record payloads.
const SampleType = unix.PERF_SAMPLE_IP | unix.PERF_SAMPLE_ADDR | unix.PERF_SAMPLE_WEIGHT | unix.PERF_SAMPLE_DATA_SRC

// RecordSize is the size of a sample payload.
const RecordSize = 32

// Record is one memory access sample.
type Record struct {
	IP      uint64
	Addr    uint64
	Weight  uint64
	DataSrc DataSrc
}

// ParseRecord decodes the payload of a PERF_RECORD_SAMPLE record.
func ParseRecord(payload []byte) (Record, error) {
	if len(payload) < RecordSize {
		return Record{}, fmt.Errorf("sample payload of %d bytes, need %d: %w", len(payload), RecordSize, ring.ErrCorruptFraming)
	}
	return Record{
		IP:      binary.LittleEndian.Uint64(payload[0:]),
		Addr:    binary.LittleEndian.Uint64(payload[8:]),
		Weight:  binary.LittleEndian.Uint64(payload[16:]),
		DataSrc: DataSrc(binary.LittleEndian.Uint64(payload[24:])),
	}, nil
}

// Append appends the payload encoding of r to buf.
func (r Record) Append(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, r.IP)
	buf = binary.LittleEndian.AppendUint64(buf, r.Addr)
	buf = binary.LittleEndian.AppendUint64(buf, r.Weight)
	return binary.LittleEndian.AppendUint64(buf, uint64(r.DataSrc))
}

func (r Record) String() string {
	return fmt.Sprintf("pc=%x, @=%x, src level=%s, latency=%d", r.IP, r.Addr, r.DataSrc.LevelString(), r.Weight)
}
