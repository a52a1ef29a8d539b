package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"pmutool/internal/ring"
)

// Class is one memory hierarchy classification. A sample may fall in
// several classes or none.
type Class int

const (
	ClassL1Hit Class = iota
	ClassLFBHit
	ClassL2Hit
	ClassL3Hit
	ClassLocalRAMHit
	ClassRemoteCacheHit
	ClassRemoteRAMHit
	ClassNAMiss
	numClasses
)

var classInfo = [numClasses]struct {
	name string
	desc string
	test func(DataSrc) bool
}{
	{"l1_hit", "served by local L1", DataSrc.L1Hit},
	{"lfb_hit", "served by local line fill buffer", DataSrc.LFBHit},
	{"l2_hit", "served by local L2", DataSrc.L2Hit},
	{"l3_hit", "served by local L3", DataSrc.L3Hit},
	{"local_ram_hit", "served by local DRAM", DataSrc.LocalRAMHit},
	{"remote_cache_hit", "served by remote cache, one hop", DataSrc.RemoteCacheHit},
	{"remote_ram_hit", "served by remote DRAM", DataSrc.RemoteRAMHit},
	{"na_miss", "source not available or L3 miss", DataSrc.NAMiss},
}

// Classes returns every class in display order.
func Classes() []Class {
	classes := make([]Class, numClasses)
	for i := range classes {
		classes[i] = Class(i)
	}
	return classes
}

func (c Class) String() string {
	if c < 0 || c >= numClasses {
		return fmt.Sprintf("class(%d)", int(c))
	}
	return classInfo[c].name
}

func (c Class) Description() string {
	if c < 0 || c >= numClasses {
		return ""
	}
	return classInfo[c].desc
}

// Matches reports whether d falls in class c.
func (c Class) Matches(d DataSrc) bool {
	return c >= 0 && c < numClasses && classInfo[c].test(d)
}

// Stats are the running counters of an Aggregator.
type Stats struct {
	Total     uint64
	Counts    [numClasses]uint64
	WeightSum uint64
	Lost      uint64 // samples the kernel reported as lost
	Corrupt   uint64 // buffers abandoned on a framing error
}

func (s Stats) Count(c Class) uint64 {
	if c < 0 || c >= numClasses {
		return 0
	}
	return s.Counts[c]
}

// Percent returns the share of samples in class c, 0 when there are none.
func (s Stats) Percent(c Class) float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 * float64(s.Count(c)) / float64(s.Total)
}

func (s Stats) AvgWeight() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.WeightSum) / float64(s.Total)
}

// Aggregator classifies samples and collects their addresses. It is owned
// by a single session and is not safe for concurrent use.
type Aggregator struct {
	stats Stats
	addrs []uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add counts one sample.
func (a *Aggregator) Add(r Record) {
	a.stats.Total++
	a.stats.WeightSum += r.Weight
	for c := range numClasses {
		if classInfo[c].test(r.DataSrc) {
			a.stats.Counts[c]++
		}
	}
	a.addrs = append(a.addrs, r.Addr)
}

// AddBuffer counts every sample record in a drained ring buffer. A framing
// error abandons the rest of the buffer; samples before it stay counted.
func (a *Aggregator) AddBuffer(buf []byte) error {
	err := ring.Walk(buf, func(hdr ring.Header, payload []byte) error {
		switch hdr.Type {
		case ring.RecordSample:
			r, err := ParseRecord(payload)
			if err != nil {
				return err
			}
			a.Add(r)
		case ring.RecordLost:
			// id, lost
			if len(payload) >= 16 {
				a.stats.Lost += binary.LittleEndian.Uint64(payload[8:])
			}
		default:
			slog.Debug("skipping record", slog.Int("type", int(hdr.Type)), slog.Int("size", int(hdr.Size)))
		}
		return nil
	})
	if err != nil {
		a.stats.Corrupt++
	}
	return err
}

// AddLog counts every buffer in l. Corrupt buffers are logged and skipped.
// It returns the number of corrupt buffers.
func (a *Aggregator) AddLog(l *BufferLog) int {
	corrupt := 0
	_ = l.Each(func(b Buffer) error {
		if err := a.AddBuffer(b.Data); err != nil {
			slog.Warn("abandoned sample buffer", slog.Int("source", b.Source), slog.Int("bytes", len(b.Data)), slog.String("error", err.Error()))
			corrupt++
		}
		return nil
	})
	return corrupt
}

func (a *Aggregator) Stats() Stats { return a.stats }

// Regions merges the sampled addresses into contiguous regions.
func (a *Aggregator) Regions() []Region { return MergeRegions(a.addrs) }
