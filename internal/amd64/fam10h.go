// Package amd64 encodes and decodes AMD64 Family 10h performance event
// select registers.
package amd64

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"embed"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"pmutool/internal/pmu"
)

const (
	vendorAMD    = "AuthenticAMD"
	familyFam10h = 0x10
)

// PERF_CTL bit positions
const (
	umaskShift    = 8
	bitUsr        = 16
	bitOS         = 17
	bitEdge       = 18
	bitInt        = 20
	bitEn         = 22
	bitInv        = 23
	cmaskShift    = 24
	evselHiShift  = 32 // event select bits 8-11
	bitGuest      = 40
	bitHost       = 41
	maxEventCode  = 0xfff
	maxCounterMsk = 0xff
)

// Revision is a Family 10h silicon revision.
type Revision int

const (
	RevB Revision = iota + 1 // Barcelona
	RevC                     // Shanghai
	RevD                     // Istanbul
)

var revisionModels = map[Revision][]int{
	RevB: {2},
	RevC: {4, 5, 6},
	RevD: {8, 9},
}

//go:embed tables
var tables embed.FS

var supportedModifiers = []pmu.Modifier{
	pmu.ModKernel, pmu.ModUser, pmu.ModEdge, pmu.ModInvert, pmu.ModCounterMask, pmu.ModHost, pmu.ModGuest,
}

// PMU implements pmu.PMU for one Family 10h revision.
type PMU struct {
	name  string
	desc  string
	rev   Revision
	table pmu.Table
}

func newFam10h(name, desc string, rev Revision) (*PMU, error) {
	data, err := tables.ReadFile("tables/fam10h.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded table: %w", err)
	}
	doc, err := pmu.ParseTable(data)
	if err != nil {
		return nil, err
	}
	return &PMU{name: name, desc: desc, rev: rev, table: doc.Table}, nil
}

func NewBarcelona() (*PMU, error) { return newFam10h("amd64_fam10h_barcelona", "AMD64 Fam10h Barcelona", RevB) }
func NewShanghai() (*PMU, error)  { return newFam10h("amd64_fam10h_shanghai", "AMD64 Fam10h Shanghai", RevC) }
func NewIstanbul() (*PMU, error)  { return newFam10h("amd64_fam10h_istanbul", "AMD64 Fam10h Istanbul", RevD) }

// NewAll returns the PMUs of every Family 10h revision.
func NewAll() ([]*PMU, error) {
	var pmus []*PMU
	for _, ctor := range []func() (*PMU, error){NewBarcelona, NewShanghai, NewIstanbul} {
		p, err := ctor()
		if err != nil {
			return nil, err
		}
		pmus = append(pmus, p)
	}
	return pmus, nil
}

func (p *PMU) Name() string        { return p.name }
func (p *PMU) Description() string { return p.desc }
func (p *PMU) Table() pmu.Table    { return p.table }
func (p *PMU) Revision() Revision  { return p.rev }

// Detect claims Family 10h processors of this PMU's revision.
func (p *PMU) Detect(cpu pmu.CPU) bool {
	if cpu.Vendor != vendorAMD || cpu.Family != familyFam10h {
		return false
	}
	return slices.Contains(revisionModels[p.rev], cpu.Model)
}

func (p *PMU) Modifiers() []pmu.ModifierInfo {
	var infos []pmu.ModifierInfo
	for _, m := range supportedModifiers {
		infos = append(infos, m.Info())
	}
	return infos
}

func setBit(reg *uint64, n uint, on bool) {
	if on {
		*reg |= 1 << n
	} else {
		*reg &^= 1 << n
	}
}

func bit(reg uint64, n uint) uint64 { return (reg >> n) & 1 }

// Encode ORs the selected unit masks into the register, falling back to the
// default unit masks when none is selected.
func (p *PMU) Encode(d pmu.Descriptor) (pmu.Encoding, error) {
	ev := p.table.Event(d.Event)
	if ev == nil {
		return pmu.Encoding{}, fmt.Errorf("event index %d: %w", d.Event, pmu.ErrNotSupported)
	}
	if ev.Code > maxEventCode {
		return pmu.Encoding{}, fmt.Errorf("event %s: code 0x%x: %w", ev.Name, ev.Code, pmu.ErrTableInvalid)
	}
	reg := (ev.Code & 0xff) | ((ev.Code>>8)&0xf)<<evselHiShift
	masks := ev.Masks()
	var umask uint64
	var nsel int
	var ncombo, plmSet bool
	for _, a := range d.Attrs {
		if a.Kind == pmu.AttrUnitMask {
			if a.ID < 0 || a.ID >= len(masks) {
				return pmu.Encoding{}, fmt.Errorf("event %s: unit mask index %d: %w", ev.Name, a.ID, pmu.ErrNotSupported)
			}
			nsel++
			ncombo = ncombo || masks[a.ID].Flags&pmu.FlagNCombo != 0
			if nsel > 1 && ncombo {
				return pmu.Encoding{}, fmt.Errorf("event %s: unit mask %s cannot be combined: %w", ev.Name, masks[a.ID].Name, pmu.ErrFeatureCombination)
			}
			umask |= masks[a.ID].Code
			continue
		}
		mod := pmu.Modifier(a.ID)
		if !ev.ModMsk.Has(mod) || !slices.Contains(supportedModifiers, mod) {
			return pmu.Encoding{}, fmt.Errorf("event %s: modifier %s: %w", ev.Name, mod, pmu.ErrNotSupported)
		}
		switch mod {
		case pmu.ModKernel:
			setBit(&reg, bitOS, a.Value != 0)
			plmSet = true
		case pmu.ModUser:
			setBit(&reg, bitUsr, a.Value != 0)
			plmSet = true
		case pmu.ModEdge:
			setBit(&reg, bitEdge, a.Value != 0)
		case pmu.ModInvert:
			setBit(&reg, bitInv, a.Value != 0)
		case pmu.ModCounterMask:
			if a.Value > maxCounterMsk {
				return pmu.Encoding{}, fmt.Errorf("event %s: counter mask %d exceeds %d: %w", ev.Name, a.Value, maxCounterMsk, pmu.ErrAttributeValue)
			}
			reg = reg&^(0xff<<cmaskShift) | a.Value<<cmaskShift
		case pmu.ModHost:
			setBit(&reg, bitHost, a.Value != 0)
		case pmu.ModGuest:
			setBit(&reg, bitGuest, a.Value != 0)
		}
	}
	if nsel == 0 && len(masks) > 0 {
		for _, um := range masks {
			if um.Flags&pmu.FlagDefault != 0 {
				umask |= um.Code
				nsel++
			}
		}
		if nsel == 0 {
			return pmu.Encoding{}, fmt.Errorf("event %s: %w", ev.Name, pmu.ErrMissingUnitMask)
		}
	}
	if !plmSet {
		setBit(&reg, bitOS, d.DefaultPLM&pmu.PLM0 != 0)
		setBit(&reg, bitUsr, d.DefaultPLM&pmu.PLM3 != 0)
	}
	reg |= (umask & 0xff) << umaskShift
	setBit(&reg, bitEn, true)
	setBit(&reg, bitInt, true)

	enc := pmu.Encoding{Event: d.Event, Codes: []uint64{reg}, Fstr: p.canonical(ev, reg)}
	if bit(reg, bitOS) == 1 {
		enc.PLM |= pmu.PLM0
	}
	if bit(reg, bitUsr) == 1 {
		enc.PLM |= pmu.PLM3
	}
	slog.Debug("encoded event", slog.String("pmu", p.name), slog.String("code", fmt.Sprintf("0x%x", reg)), slog.String("event", enc.Fstr))
	return enc, nil
}

func (p *PMU) canonical(ev *pmu.Event, reg uint64) string {
	var sb strings.Builder
	sb.WriteString(ev.DisplayName())
	rem := (reg >> umaskShift) & 0xff
	masks := ev.Masks()
	// an exact NCOMBO match wins over the sub-events it covers
	for _, um := range masks {
		if um.From == "" && um.Flags&pmu.FlagNCombo != 0 && um.Code&0xff == rem && rem != 0 {
			sb.WriteString(":" + um.Name)
			rem = 0
			break
		}
	}
	for _, um := range masks {
		code := um.Code & 0xff
		if um.From != "" || um.Flags&pmu.FlagNCombo != 0 || code == 0 {
			continue
		}
		if rem&code == code {
			sb.WriteString(":" + um.Name)
			rem &^= code
		}
	}
	fmt.Fprintf(&sb, ":k=%d:u=%d:e=%d:i=%d:c=%d:h=%d:g=%d",
		bit(reg, bitOS), bit(reg, bitUsr), bit(reg, bitEdge), bit(reg, bitInv),
		(reg>>cmaskShift)&0xff, bit(reg, bitHost), bit(reg, bitGuest))
	return sb.String()
}

// Describe decodes a PERF_CTL value back into a canonical event string.
func (p *PMU) Describe(code uint64) (string, error) {
	evsel := (code & 0xff) | ((code>>evselHiShift)&0xf)<<8
	for i := range p.table.Len() {
		ev := p.table.Event(i)
		if ev.Code == evsel {
			return p.canonical(ev, code), nil
		}
	}
	return "", fmt.Errorf("register 0x%x: no event with select 0x%x: %w", code, evsel, pmu.ErrNotSupported)
}

// Validate checks the event table and logs every violation.
func (p *PMU) Validate() []pmu.Violation {
	var violations []pmu.Violation
	for i := range p.table.Len() {
		ev := p.table.Event(i)
		report := func(umIdx int, umName, msg string) {
			slog.Warn("event table violation", slog.String("pmu", p.name), slog.String("event", ev.Name), slog.String("umask", umName), slog.String("error", msg))
			violations = append(violations, pmu.Violation{PMU: p.name, EventIdx: i, Event: ev.Name, UmaskIdx: umIdx, UnitMask: umName, Msg: msg})
		}
		if ev.Name == "" {
			report(-1, "", "no name")
		}
		if ev.Desc == "" {
			report(-1, "", "no description")
		}
		if ev.CntMsk == 0 {
			report(-1, "", "cntmsk=0")
		}
		if ev.Code > maxEventCode {
			report(-1, "", fmt.Sprintf("event code 0x%x exceeds 12 bits", ev.Code))
		}
		if ev.NumMasks >= pmu.MaxUnitMasks || ev.NumMasks > len(ev.UnitMasks) {
			report(-1, "", fmt.Sprintf("invalid numasks %d", ev.NumMasks))
		}
		masks := ev.Masks()
		for j, um := range masks {
			if um.Name == "" {
				report(j, "", "no name")
			}
			if um.Desc == "" {
				report(j, um.Name, "no description")
			}
			if um.Code > 0xff {
				report(j, um.Name, fmt.Sprintf("unit mask code 0x%x exceeds 8 bits", um.Code))
			}
		}
		for j, a := range masks {
			if a.From != "" || a.Flags&pmu.FlagNCombo != 0 {
				continue
			}
			for _, b := range masks[j+1:] {
				if b.From == "" && b.Flags&pmu.FlagNCombo == 0 && a.Code&b.Code != 0 {
					report(-1, "", fmt.Sprintf("umask %s and %s have overlapping code bits", a.Name, b.Name))
				}
			}
		}
	}
	return violations
}
