package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataSrcFields(t *testing.T) {
	// op=load, lvl=L1|HIT, snoop=1, lock=2, dtlb=0x11
	d := DataSrc(OpLoad | (LvlL1|LvlHit)<<5 | 1<<19 | 2<<24 | 0x11<<26)
	assert.Equal(t, uint64(OpLoad), d.Op())
	assert.Equal(t, uint64(LvlL1|LvlHit), d.Level())
	assert.Equal(t, uint64(1), d.Snoop())
	assert.Equal(t, uint64(2), d.Lock())
	assert.Equal(t, uint64(0x11), d.DTLB())
	assert.Equal(t, d&(1<<snoopShift-1), NewDataSrc(OpLoad, LvlL1|LvlHit))
}

func TestDataSrcClassification(t *testing.T) {
	tests := []struct {
		name string
		lvl  uint64
		want []Class
	}{
		{"l1 hit", LvlHit | LvlL1, []Class{ClassL1Hit}},
		{"lfb hit", LvlHit | LvlLFB, []Class{ClassLFBHit}},
		{"l2 hit", LvlHit | LvlL2, []Class{ClassL2Hit}},
		{"l3 hit", LvlHit | LvlL3, []Class{ClassL3Hit}},
		{"l3 miss", LvlMiss | LvlL3, []Class{ClassNAMiss}},
		{"l1 miss", LvlMiss | LvlL1, nil},
		{"local ram", LvlHit | LvlLocRAM, []Class{ClassLocalRAMHit}},
		{"remote cache one hop", LvlHit | LvlRemCCE1, []Class{ClassRemoteCacheHit}},
		{"remote cache two hops", LvlHit | LvlRemCCE2, nil},
		{"remote ram one hop", LvlHit | LvlRemRAM1, []Class{ClassRemoteRAMHit}},
		{"remote ram two hops", LvlHit | LvlRemRAM2, []Class{ClassRemoteRAMHit}},
		{"not available", LvlNA, []Class{ClassNAMiss}},
		{"not available with hit", LvlNA | LvlHit | LvlL2, []Class{ClassL2Hit, ClassNAMiss}},
		{"level without hit bit", LvlL1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDataSrc(OpLoad, tt.lvl)
			var got []Class
			for _, c := range Classes() {
				if c.Matches(d) {
					got = append(got, c)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, NewDataSrc(0, LvlHit|LvlLFB).LocalCacheHit())
	assert.False(t, NewDataSrc(0, LvlHit|LvlLocRAM).LocalCacheHit())
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		lvl  uint64
		want string
	}{
		{LvlHit | LvlL1, "L1_Hit"},
		{LvlHit | LvlL1 | LvlL2, "L1_Hit"},
		{LvlMiss | LvlL3, "L3_Miss"},
		{LvlNA, "NA"},
		{LvlNA | LvlMiss | LvlL3, "NAL3_Miss"},
		{LvlHit | LvlRemRAM2, "Remote_RAM_2_hops_Hit"},
		{LvlHit | LvlRemCCE1, "Remote_Cache_1_hop_Hit"},
		{LvlHit | LvlIO, "I/O_Memory_Hit"},
		{LvlMiss | LvlUnc, "Uncached_Memory_Miss"},
		{0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewDataSrc(0, tt.lvl).LevelString(), "lvl 0x%x", tt.lvl)
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "Load", NewDataSrc(OpLoad, 0).OpString())
	assert.Equal(t, "LoadStore", NewDataSrc(OpLoad|OpStore, 0).OpString())
	assert.Equal(t, "NAPrefetchExec code", NewDataSrc(OpNA|OpPfetch|OpExec, 0).OpString())
	assert.Empty(t, NewDataSrc(0, LvlHit).OpString())
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "l1_hit", ClassL1Hit.String())
	assert.Equal(t, "na_miss", ClassNAMiss.String())
	assert.Equal(t, "class(42)", Class(42).String())
	assert.Empty(t, Class(-1).Description())
	assert.False(t, Class(42).Matches(NewDataSrc(0, LvlNA)))
	assert.Len(t, Classes(), 8)
}
