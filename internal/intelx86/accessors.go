package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"pmutool/internal/pmu"
)

// IsValid reports whether idx is inside the contiguous event index range.
func (p *PMU) IsValid(idx int) bool {
	return idx >= 0 && idx < p.cfg.Table.Len()
}

// First returns the first event index, or -1 for an empty table.
func (p *PMU) First() int {
	if p.cfg.Table.Len() == 0 {
		return -1
	}
	return 0
}

// Next returns the index following idx, or -1 after the last event.
func (p *PMU) Next(idx int) int {
	if idx < 0 || idx >= p.cfg.Table.Len()-1 {
		return -1
	}
	return idx + 1
}

func (p *PMU) EventName(idx int) string {
	if ev := p.cfg.Table.Event(idx); ev != nil {
		return ev.Name
	}
	return ""
}

func (p *PMU) EventDesc(idx int) string {
	if ev := p.cfg.Table.Event(idx); ev != nil {
		return ev.Desc
	}
	return ""
}

func (p *PMU) EventCode(idx int) (uint64, error) {
	ev := p.cfg.Table.Event(idx)
	if ev == nil {
		return 0, fmt.Errorf("event index %d: %w", idx, pmu.ErrNotSupported)
	}
	return ev.Code, nil
}

func (p *PMU) NumMasks(idx int) int {
	if ev := p.cfg.Table.Event(idx); ev != nil {
		return len(ev.Masks())
	}
	return 0
}

func (p *PMU) unitMask(idx, attr int) *pmu.UnitMask {
	ev := p.cfg.Table.Event(idx)
	if ev == nil {
		return nil
	}
	masks := ev.Masks()
	if attr < 0 || attr >= len(masks) {
		return nil
	}
	return &masks[attr]
}

func (p *PMU) UmaskName(idx, attr int) string {
	if um := p.unitMask(idx, attr); um != nil {
		return um.Name
	}
	return ""
}

func (p *PMU) UmaskDesc(idx, attr int) string {
	if um := p.unitMask(idx, attr); um != nil {
		return um.Desc
	}
	return ""
}

func (p *PMU) UmaskCode(idx, attr int) (uint64, error) {
	um := p.unitMask(idx, attr)
	if um == nil {
		return 0, fmt.Errorf("event index %d unit mask %d: %w", idx, attr, pmu.ErrNotSupported)
	}
	return um.Code, nil
}

// SupportsPEBS reports whether d can be sampled precisely. With no unit mask
// selected the event flag decides; otherwise every selected unit mask must
// carry the PEBS flag.
func (p *PMU) SupportsPEBS(d pmu.Descriptor) bool {
	ev := p.cfg.Table.Event(d.Event)
	if ev == nil {
		return false
	}
	selected := d.UnitMasks()
	if len(selected) == 0 {
		return ev.Flags&pmu.FlagPEBS != 0
	}
	for _, attr := range selected {
		um := p.unitMask(d.Event, attr)
		if um == nil || um.Flags&pmu.FlagPEBS == 0 {
			return false
		}
	}
	return true
}
