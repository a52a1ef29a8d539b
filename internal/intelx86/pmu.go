// Package intelx86 encodes and decodes Intel x86 performance event select
// registers from table driven event descriptions.
package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"math/bits"
	"slices"

	"pmutool/internal/pmu"
)

const vendorIntel = "GenuineIntel"

// CustomEncoder encodes events too irregular for the table driven algorithm.
type CustomEncoder func(p *PMU, idx int, d pmu.Descriptor) (pmu.Encoding, error)

// Config describes one Intel PMU.
type Config struct {
	Name        string
	Desc        string
	ArchVersion int
	Family      int   // processor family, 6 when zero
	Models      []int // supported models, any model of the family when empty
	Table       pmu.Table
	Custom      map[string]CustomEncoder // by event name, for events flagged ENCODER
}

type encoderKind int

const (
	encodeTable encoderKind = iota
	encodeCustom
)

type eventEncoder struct {
	kind   encoderKind
	custom CustomEncoder
}

// PMU implements pmu.PMU for Intel x86 processors.
type PMU struct {
	cfg      Config
	encoders []eventEncoder // one per event, resolved in New
	modMask  pmu.ModMask
}

// New binds every event of the table to its encoder. An event flagged
// ENCODER without a custom encoder, or a custom encoder for an unflagged or
// unknown event, fails with ErrTableInvalid.
func New(cfg Config) (*PMU, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("pmu %s: no event table: %w", cfg.Name, pmu.ErrTableInvalid)
	}
	p := &PMU{cfg: cfg, encoders: make([]eventEncoder, cfg.Table.Len())}
	bound := 0
	for i := range cfg.Table.Len() {
		ev := cfg.Table.Event(i)
		custom, ok := cfg.Custom[ev.Name]
		switch {
		case ev.Flags&pmu.FlagEncoder != 0 && !ok:
			return nil, fmt.Errorf("pmu %s: event %s needs a custom encoder: %w", cfg.Name, ev.Name, pmu.ErrTableInvalid)
		case ev.Flags&pmu.FlagEncoder == 0 && ok:
			return nil, fmt.Errorf("pmu %s: event %s is not flagged for a custom encoder: %w", cfg.Name, ev.Name, pmu.ErrTableInvalid)
		case ok:
			p.encoders[i] = eventEncoder{kind: encodeCustom, custom: custom}
			bound++
		}
		if ev.Flags&pmu.FlagLdlat != 0 {
			p.modMask |= pmu.ModLatency.Mask()
		}
	}
	if bound != len(cfg.Custom) {
		return nil, fmt.Errorf("pmu %s: custom encoder for unknown event: %w", cfg.Name, pmu.ErrTableInvalid)
	}
	for _, m := range []pmu.Modifier{pmu.ModKernel, pmu.ModUser, pmu.ModEdge, pmu.ModInvert, pmu.ModCounterMask} {
		p.modMask |= m.Mask()
	}
	if cfg.ArchVersion > 2 {
		p.modMask |= pmu.ModAnyThread.Mask()
	}
	return p, nil
}

func (p *PMU) Name() string        { return p.cfg.Name }
func (p *PMU) Description() string { return p.cfg.Desc }
func (p *PMU) Table() pmu.Table    { return p.cfg.Table }
func (p *PMU) ArchVersion() int    { return p.cfg.ArchVersion }

func (p *PMU) modifierMask() pmu.ModMask { return p.modMask }

// Modifiers lists the modifiers accepted by this PMU.
func (p *PMU) Modifiers() []pmu.ModifierInfo {
	var infos []pmu.ModifierInfo
	for _, m := range p.modMask.Modifiers() {
		infos = append(infos, m.Info())
	}
	return infos
}

// Detect claims Intel processors of the configured family and models.
func (p *PMU) Detect(cpu pmu.CPU) bool {
	family := p.cfg.Family
	if family == 0 {
		family = 6
	}
	if cpu.Vendor != vendorIntel || cpu.Family != family {
		return false
	}
	return len(p.cfg.Models) == 0 || slices.Contains(p.cfg.Models, cpu.Model)
}

// Encode returns the register value(s) and canonical string for d.
func (p *PMU) Encode(d pmu.Descriptor) (pmu.Encoding, error) {
	if !p.IsValid(d.Event) {
		return pmu.Encoding{}, fmt.Errorf("event index %d: %w", d.Event, pmu.ErrNotSupported)
	}
	var enc pmu.Encoding
	var err error
	switch e := p.encoders[d.Event]; e.kind {
	case encodeCustom:
		enc, err = e.custom(p, d.Event, d)
	default:
		enc, err = encodeGeneric(p, d.Event, d)
	}
	if err != nil {
		return pmu.Encoding{}, err
	}
	slog.Debug("encoded event", slog.String("pmu", p.Name()), slog.String("register", Register(enc.Codes[0]).Format(p.cfg.ArchVersion)), slog.String("event", enc.Fstr))
	return enc, nil
}

// Describe decodes a register value back into a canonical event string. The
// event is the one whose event select and hardcoded unit mask bits match,
// preferring the most hardcoded bits.
func (p *PMU) Describe(code uint64) (string, error) {
	reg := Register(code)
	best, bestBits := -1, -1
	for i := range p.cfg.Table.Len() {
		ev := p.cfg.Table.Event(i)
		hc := uint8(ev.Code >> umaskShift)
		if uint8(ev.Code) != reg.EventSelect() || reg.UnitMask()&hc != hc {
			continue
		}
		if n := bits.OnesCount8(hc); n > bestBits {
			best, bestBits = i, n
		}
	}
	if best < 0 {
		return "", fmt.Errorf("register 0x%x: no event with select 0x%x and unit mask 0x%x: %w", code, reg.EventSelect(), reg.UnitMask(), pmu.ErrNotSupported)
	}
	ev := p.cfg.Table.Event(best)
	var umasks []string
	if p.encoders[best].kind == encodeTable {
		umasks = decodeUnitMasks(ev, code>>umaskShift, -1)
	}
	return p.canonical(ev, umasks, reg, 0), nil
}

// Validate checks the event table and logs every violation.
func (p *PMU) Validate() []pmu.Violation {
	return ValidateTable(p.cfg.Name, p.cfg.Table)
}
