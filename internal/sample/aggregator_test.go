package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"sync"
	"testing"

	"pmutool/internal/ring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBuffer(records ...Record) []byte {
	var buf []byte
	for _, r := range records {
		buf = ring.AppendRecord(buf, ring.RecordSample, 0, r.Append(nil))
	}
	return buf
}

func TestParseRecord(t *testing.T) {
	want := Record{IP: 0x401000, Addr: 0x7fff0000, Weight: 42, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL2)}
	got, err := ParseRecord(want.Append(nil))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "pc=401000, @=7fff0000, src level=L2_Hit, latency=42", got.String())

	_, err = ParseRecord(make([]byte, RecordSize-1))
	assert.ErrorIs(t, err, ring.ErrCorruptFraming)
}

func TestAggregatorAddBuffer(t *testing.T) {
	a := NewAggregator()
	buf := sampleBuffer(
		Record{Addr: 0x1000, Weight: 4, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL1)},
		Record{Addr: 0x1001, Weight: 10, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL2)},
		Record{Addr: 0x2000, Weight: 300, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlRemRAM1)},
		Record{Addr: 0x2000, Weight: 6, DataSrc: NewDataSrc(OpLoad, LvlNA)},
	)
	lost := make([]byte, 16)
	binary.LittleEndian.PutUint64(lost[8:], 7)
	buf = ring.AppendRecord(buf, ring.RecordLost, 0, lost)
	buf = ring.AppendRecord(buf, ring.RecordType(3), 0, []byte("comm"))

	require.NoError(t, a.AddBuffer(buf))
	s := a.Stats()
	assert.Equal(t, uint64(4), s.Total)
	assert.Equal(t, uint64(1), s.Count(ClassL1Hit))
	assert.Equal(t, uint64(1), s.Count(ClassL2Hit))
	assert.Equal(t, uint64(1), s.Count(ClassRemoteRAMHit))
	assert.Equal(t, uint64(1), s.Count(ClassNAMiss))
	assert.Zero(t, s.Count(ClassL3Hit))
	assert.Equal(t, uint64(7), s.Lost)
	assert.InDelta(t, 80.0, s.AvgWeight(), 1e-9)
	assert.InDelta(t, 25.0, s.Percent(ClassL1Hit), 1e-9)
	assert.Equal(t, []Region{{0x1000, 0x1001}, {0x2000, 0x2000}}, a.Regions())
}

func TestAggregatorCorruptBuffer(t *testing.T) {
	a := NewAggregator()
	buf := sampleBuffer(Record{Addr: 1, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL1)})
	buf = append(buf, make([]byte, 8)...) // zero size record
	buf = append(buf, sampleBuffer(Record{Addr: 2})...)

	err := a.AddBuffer(buf)
	assert.ErrorIs(t, err, ring.ErrCorruptFraming)
	s := a.Stats()
	assert.Equal(t, uint64(1), s.Total)
	assert.Equal(t, uint64(1), s.Corrupt)
}

func TestAggregatorAddLog(t *testing.T) {
	var l BufferLog
	l.Append(0, sampleBuffer(Record{Addr: 5}, Record{Addr: 6}))
	l.Append(1, []byte{9, 0, 0, 0, 0, 0, 0, 0})
	l.Append(1, sampleBuffer(Record{Addr: 7}))

	a := NewAggregator()
	assert.Equal(t, 1, a.AddLog(&l))
	assert.Equal(t, uint64(3), a.Stats().Total)
	assert.Equal(t, []Region{{5, 7}}, a.Regions())
}

func TestEmptyStats(t *testing.T) {
	s := NewAggregator().Stats()
	assert.Zero(t, s.Percent(ClassL1Hit))
	assert.Zero(t, s.AvgWeight())
	assert.Zero(t, s.Count(Class(99)))
	assert.Nil(t, NewAggregator().Regions())
}

func TestMergeRegions(t *testing.T) {
	tests := []struct {
		name  string
		addrs []uint64
		want  []Region
	}{
		{"gap splits", []uint64{5, 6, 7, 9, 9, 10}, []Region{{5, 7}, {9, 10}}},
		{"unsorted input", []uint64{10, 9, 7, 9, 6, 5}, []Region{{5, 7}, {9, 10}}},
		{"single", []uint64{42}, []Region{{42, 42}}},
		{"duplicates", []uint64{3, 3, 3}, []Region{{3, 3}}},
		{"top of range", []uint64{^uint64(0), ^uint64(0) - 1, 0}, []Region{{0, 0}, {^uint64(0) - 1, ^uint64(0)}}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := append([]uint64(nil), tt.addrs...)
			assert.Equal(t, tt.want, MergeRegions(tt.addrs))
			assert.Equal(t, in, tt.addrs)
		})
	}
	assert.Equal(t, uint64(3), Region{Start: 5, End: 7}.Len())
	assert.Equal(t, "[0x5, 0x7]", Region{Start: 5, End: 7}.String())
}

func TestBufferLogConcurrentAppend(t *testing.T) {
	var l BufferLog
	var wg sync.WaitGroup
	for src := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				l.Append(src, []byte{1, 2})
			}
		}()
	}
	wg.Wait()
	l.Append(0, nil)
	assert.Equal(t, 400, l.Len())
	assert.Equal(t, 800, l.Bytes())
}
