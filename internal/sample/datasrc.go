// Package sample decodes memory access samples and aggregates them by the
// level of the memory hierarchy that served them.
package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "strings"

// DataSrc is the perf_mem_data_src bitfield of a sample.
type DataSrc uint64

// data_src field layout
const (
	opShift    = 0
	opBits     = 5
	lvlShift   = 5
	lvlBits    = 14
	snoopShift = 19
	snoopBits  = 5
	lockShift  = 24
	lockBits   = 2
	dtlbShift  = 26
	dtlbBits   = 7
)

// mem_op bits
const (
	OpNA     = 0x01
	OpLoad   = 0x02
	OpStore  = 0x04
	OpPfetch = 0x08
	OpExec   = 0x10
)

// mem_lvl bits
const (
	LvlNA      = 0x01
	LvlHit     = 0x02
	LvlMiss    = 0x04
	LvlL1      = 0x08
	LvlLFB     = 0x10
	LvlL2      = 0x20
	LvlL3      = 0x40
	LvlLocRAM  = 0x80
	LvlRemRAM1 = 0x100
	LvlRemRAM2 = 0x200
	LvlRemCCE1 = 0x400
	LvlRemCCE2 = 0x800
	LvlIO      = 0x1000
	LvlUnc     = 0x2000
)

func field(v DataSrc, shift, width uint) uint64 { return (uint64(v) >> shift) & (1<<width - 1) }

func (d DataSrc) Op() uint64    { return field(d, opShift, opBits) }
func (d DataSrc) Level() uint64 { return field(d, lvlShift, lvlBits) }
func (d DataSrc) Snoop() uint64 { return field(d, snoopShift, snoopBits) }
func (d DataSrc) Lock() uint64  { return field(d, lockShift, lockBits) }
func (d DataSrc) DTLB() uint64  { return field(d, dtlbShift, dtlbBits) }

// NewDataSrc packs op and level bits into a DataSrc.
func NewDataSrc(op, lvl uint64) DataSrc {
	return DataSrc((op&(1<<opBits-1))<<opShift | (lvl&(1<<lvlBits-1))<<lvlShift)
}

func (d DataSrc) hit(lvl uint64) bool {
	l := d.Level()
	return l&LvlHit != 0 && l&lvl != 0
}

func (d DataSrc) L1Hit() bool          { return d.hit(LvlL1) }
func (d DataSrc) LFBHit() bool         { return d.hit(LvlLFB) }
func (d DataSrc) L2Hit() bool          { return d.hit(LvlL2) }
func (d DataSrc) L3Hit() bool          { return d.hit(LvlL3) }
func (d DataSrc) LocalCacheHit() bool  { return d.hit(LvlL1 | LvlLFB | LvlL2 | LvlL3) }
func (d DataSrc) LocalRAMHit() bool    { return d.hit(LvlLocRAM) }
func (d DataSrc) RemoteCacheHit() bool { return d.hit(LvlRemCCE1) }
func (d DataSrc) RemoteRAMHit() bool   { return d.hit(LvlRemRAM1 | LvlRemRAM2) }

// NAMiss reports a sample whose source is not available or that missed L3.
func (d DataSrc) NAMiss() bool {
	l := d.Level()
	return l&LvlNA != 0 || (l&LvlMiss != 0 && l&LvlL3 != 0)
}

var levelNames = []struct {
	bit  uint64
	name string
}{
	{LvlL1, "L1"},
	{LvlLFB, "LFB"},
	{LvlL2, "L2"},
	{LvlL3, "L3"},
	{LvlLocRAM, "Local_RAM"},
	{LvlRemRAM1, "Remote_RAM_1_hop"},
	{LvlRemRAM2, "Remote_RAM_2_hops"},
	{LvlRemCCE1, "Remote_Cache_1_hop"},
	{LvlRemCCE2, "Remote_Cache_2_hops"},
	{LvlIO, "I/O_Memory"},
	{LvlUnc, "Uncached_Memory"},
}

// LevelString names the first level set, e.g., L2_Hit or NAL3_Miss.
func (d DataSrc) LevelString() string {
	l := d.Level()
	var sb strings.Builder
	if l&LvlNA != 0 {
		sb.WriteString("NA")
	}
	for _, ln := range levelNames {
		if l&ln.bit != 0 {
			sb.WriteString(ln.name)
			break
		}
	}
	switch {
	case l&LvlHit != 0:
		sb.WriteString("_Hit")
	case l&LvlMiss != 0:
		sb.WriteString("_Miss")
	}
	return sb.String()
}

// OpString concatenates the names of every operation bit set.
func (d DataSrc) OpString() string {
	op := d.Op()
	var sb strings.Builder
	for _, on := range []struct {
		bit  uint64
		name string
	}{{OpNA, "NA"}, {OpLoad, "Load"}, {OpStore, "Store"}, {OpPfetch, "Prefetch"}, {OpExec, "Exec code"}} {
		if op&on.bit != 0 {
			sb.WriteString(on.name)
		}
	}
	return sb.String()
}
