package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"slices"
)

// Region is an inclusive range of sampled addresses.
type Region struct {
	Start uint64
	End   uint64
}

// Len returns the number of addresses in r.
func (r Region) Len() uint64 { return r.End - r.Start + 1 }

func (r Region) String() string { return fmt.Sprintf("[0x%x, 0x%x]", r.Start, r.End) }

// MergeRegions sorts addrs ascending and merges equal or adjacent addresses
// into regions. addrs is not modified.
func MergeRegions(addrs []uint64) []Region {
	if len(addrs) == 0 {
		return nil
	}
	sorted := slices.Clone(addrs)
	slices.Sort(sorted)
	regions := []Region{{Start: sorted[0], End: sorted[0]}}
	for _, addr := range sorted[1:] {
		last := &regions[len(regions)-1]
		if addr-last.End <= 1 {
			last.End = addr
			continue
		}
		regions = append(regions, Region{Start: addr, End: addr})
	}
	return regions
}
