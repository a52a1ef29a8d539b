package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strings"

	"pmutool/internal/pmu"
)

const maxLdlat = 0xffff

// encodeState accumulates one encoding. Unit mask codes are kept apart from
// the register until every selection, default and modifier check is done.
type encodeState struct {
	ev       *pmu.Event
	reg      Register
	umask    uint64                // hardcoded plus selected unit mask codes
	grpBits  [pmu.MaxGroups]uint64 // selected unit mask codes per group
	grpCount [pmu.MaxGroups]int    // selections per group
	ncombo   [pmu.MaxGroups]bool   // group has an NCOMBO selection
	covered  uint32                // groups with a selection
	modhw    pmu.ModMask           // modifiers hardwired by selected unit masks
	plmSet   pmu.ModMask           // u and k when explicitly requested
	anySet   bool
	ldlat    uint64
}

// build runs every encoding step except merging the unit mask into the
// register, which is left to the caller.
func (p *PMU) build(idx int, d pmu.Descriptor) (*encodeState, error) {
	ev := p.cfg.Table.Event(idx)
	if ev == nil {
		return nil, fmt.Errorf("event index %d: %w", idx, pmu.ErrNotSupported)
	}
	if ev.NumGroups < 0 || ev.NumGroups > pmu.MaxGroups {
		return nil, fmt.Errorf("event %s: ngrp %d not in 0-%d: %w", ev.Name, ev.NumGroups, pmu.MaxGroups, pmu.ErrTableInvalid)
	}
	st := &encodeState{
		ev:    ev,
		reg:   Register(ev.Code),
		umask: (ev.Code >> umaskShift) & 0xff,
	}
	lastGrp := -1
	for _, a := range d.Attrs {
		if a.Kind == pmu.AttrUnitMask {
			if err := st.selectUnitMask(a.ID, &lastGrp); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.applyModifier(st, pmu.Modifier(a.ID), a.Value); err != nil {
			return nil, err
		}
	}
	if err := st.checkHardwired(); err != nil {
		return nil, err
	}
	if st.plmSet&(pmu.ModUser.Mask()|pmu.ModKernel.Mask()) == 0 {
		if d.DefaultPLM&pmu.PLM0 != 0 {
			st.reg.setBit(bitOS, true)
		}
		if d.DefaultPLM&pmu.PLM3 != 0 {
			st.reg.setBit(bitUsr, true)
		}
	}
	required := uint32(1)<<uint(ev.NumGroups) - 1
	if st.covered != required {
		if err := st.addDefaults(required &^ st.covered); err != nil {
			return nil, err
		}
	}
	st.reg.setBit(bitEn, true)
	st.reg.setBit(bitInt, true)
	return st, nil
}

func (st *encodeState) selectUnitMask(id int, lastGrp *int) error {
	masks := st.ev.Masks()
	if id < 0 || id >= len(masks) {
		return fmt.Errorf("event %s: unit mask index %d: %w", st.ev.Name, id, pmu.ErrNotSupported)
	}
	um := &masks[id]
	grp := um.GrpID
	if grp < 0 || grp >= pmu.MaxGroups {
		return fmt.Errorf("event %s: unit mask %s group %d: %w", st.ev.Name, um.Name, grp, pmu.ErrTableInvalid)
	}
	if *lastGrp != -1 && grp != *lastGrp && st.ev.Flags&pmu.FlagGrpExcl != 0 {
		return fmt.Errorf("event %s: unit mask %s: groups are exclusive: %w", st.ev.Name, um.Name, pmu.ErrFeatureCombination)
	}
	st.grpCount[grp]++
	if um.Flags&pmu.FlagNCombo != 0 {
		st.ncombo[grp] = true
	}
	if st.grpCount[grp] > 1 && st.ncombo[grp] {
		return fmt.Errorf("event %s: unit mask %s cannot be combined within its group: %w", st.ev.Name, um.Name, pmu.ErrFeatureCombination)
	}
	*lastGrp = grp
	st.modhw |= um.ModHW
	st.umask |= um.Code
	st.grpBits[grp] |= um.Code
	st.covered |= 1 << uint(grp)
	return nil
}

func (p *PMU) applyModifier(st *encodeState, mod pmu.Modifier, v uint64) error {
	if !st.ev.ModMsk.Has(mod) || !p.modifierMask().Has(mod) {
		return fmt.Errorf("event %s: modifier %s: %w", st.ev.Name, mod, pmu.ErrNotSupported)
	}
	switch mod {
	case pmu.ModInvert:
		st.reg.setBit(bitInv, v != 0)
	case pmu.ModEdge:
		st.reg.setBit(bitEdge, v != 0)
	case pmu.ModCounterMask:
		if v > 255 {
			return fmt.Errorf("event %s: counter mask %d exceeds 255: %w", st.ev.Name, v, pmu.ErrAttributeValue)
		}
		st.reg.setCounterMask(uint8(v))
	case pmu.ModUser:
		st.reg.setBit(bitUsr, v != 0)
		st.plmSet |= pmu.ModUser.Mask()
	case pmu.ModKernel:
		st.reg.setBit(bitOS, v != 0)
		st.plmSet |= pmu.ModKernel.Mask()
	case pmu.ModAnyThread:
		if st.anySet || st.reg.Any() {
			return fmt.Errorf("event %s: any thread: %w", st.ev.Name, pmu.ErrAttributeAlreadySet)
		}
		st.anySet = true
		st.reg.setBit(bitAny, v != 0)
	case pmu.ModLatency:
		if st.ev.Flags&pmu.FlagLdlat == 0 {
			return fmt.Errorf("event %s: load latency: %w", st.ev.Name, pmu.ErrNotSupported)
		}
		if st.ldlat != 0 {
			return fmt.Errorf("event %s: load latency: %w", st.ev.Name, pmu.ErrAttributeAlreadySet)
		}
		if v == 0 || v > maxLdlat {
			return fmt.Errorf("event %s: load latency %d not in 1-%d: %w", st.ev.Name, v, maxLdlat, pmu.ErrAttributeValue)
		}
		st.ldlat = v
	default:
		return fmt.Errorf("event %s: modifier %s: %w", st.ev.Name, mod, pmu.ErrNotSupported)
	}
	return nil
}

// checkHardwired runs before the unit mask codes reach the register, so only
// the requested modifier values are seen here.
func (st *encodeState) checkHardwired() error {
	checks := []struct {
		mod pmu.Modifier
		set bool
	}{
		{pmu.ModInvert, st.reg.Inv()},
		{pmu.ModEdge, st.reg.Edge()},
		{pmu.ModCounterMask, st.reg.CounterMask() != 0},
		{pmu.ModAnyThread, st.reg.Any()},
		{pmu.ModUser, st.reg.Usr()},
		{pmu.ModKernel, st.reg.OS()},
	}
	for _, c := range checks {
		if st.modhw.Has(c.mod) && c.set {
			return fmt.Errorf("event %s: modifier %s: %w", st.ev.Name, c.mod, pmu.ErrHardwiredModifier)
		}
	}
	return nil
}

// addDefaults selects the default unit masks of every group in msk.
func (st *encodeState) addDefaults(msk uint32) error {
	for grp := 0; msk != 0; msk, grp = msk>>1, grp+1 {
		if msk&1 == 0 {
			continue
		}
		added := 0
		for _, um := range st.ev.Masks() {
			if um.GrpID != grp || um.Flags&pmu.FlagDefault == 0 {
				continue
			}
			slog.Debug("adding default unit mask", slog.String("event", st.ev.Name), slog.String("umask", um.Name), slog.Int("group", grp))
			st.umask |= um.Code
			st.grpBits[grp] |= um.Code
			added++
		}
		if added == 0 {
			return fmt.Errorf("event %s: no default unit mask for group %d: %w", st.ev.Name, grp, pmu.ErrMissingUnitMask)
		}
		st.covered |= 1 << uint(grp)
	}
	return nil
}

// decodeUnitMasks returns the names of the non-alias unit masks matching
// bits, the register shifted down to the unit mask byte, in table order.
// NCOMBO unit masks need an exact match within their group and consume the
// whole group; others match on any of their own bits and consume only those.
// Code bits above the unit mask byte must all be present for a match.
// grp < 0 considers every group.
func decodeUnitMasks(ev *pmu.Event, bits uint64, grp int) []string {
	var names []string
	rem := bits & 0xff
	for _, um := range ev.Masks() {
		if um.From != "" || (grp >= 0 && um.GrpID != grp) {
			continue
		}
		high := um.Code &^ 0xff
		if bits&high != high {
			continue
		}
		code := um.Code & 0xff
		msk := um.GrpMsk
		if msk == 0 {
			msk = 0xff
		}
		if um.Flags&pmu.FlagNCombo != 0 {
			if rem&msk == code {
				names = append(names, um.Name)
				rem &^= msk
			}
		} else if rem&msk&code != 0 {
			names = append(names, um.Name)
			rem &^= code
		}
	}
	return names
}

// canonical builds EVENT:UMASK...:k=:u=:e=:i=:c=[:t=][:ldlat=].
func (p *PMU) canonical(ev *pmu.Event, umasks []string, reg Register, ldlat uint64) string {
	var sb strings.Builder
	sb.WriteString(ev.DisplayName())
	for _, name := range umasks {
		sb.WriteString(":" + name)
	}
	fmt.Fprintf(&sb, ":%s=%d:%s=%d:%s=%d:%s=%d:%s=%d",
		pmu.ModKernel, reg.bit(bitOS),
		pmu.ModUser, reg.bit(bitUsr),
		pmu.ModEdge, reg.bit(bitEdge),
		pmu.ModInvert, reg.bit(bitInv),
		pmu.ModCounterMask, reg.CounterMask())
	if p.cfg.ArchVersion > 2 {
		fmt.Fprintf(&sb, ":%s=%d", pmu.ModAnyThread, reg.bit(bitAny))
	}
	if ldlat != 0 {
		fmt.Fprintf(&sb, ":%s=%d", pmu.ModLatency, ldlat)
	}
	return sb.String()
}

func plmOf(reg Register) pmu.PLM {
	var plm pmu.PLM
	if reg.OS() {
		plm |= pmu.PLM0
	}
	if reg.Usr() {
		plm |= pmu.PLM3
	}
	return plm
}

// encodeGeneric is the table driven encoding used by every event without a
// custom encoder.
func encodeGeneric(p *PMU, idx int, d pmu.Descriptor) (pmu.Encoding, error) {
	st, err := p.build(idx, d)
	if err != nil {
		return pmu.Encoding{}, err
	}
	st.reg |= Register(st.umask << umaskShift)
	enc := pmu.Encoding{
		Event: idx,
		Codes: []uint64{uint64(st.reg)},
		Fstr:  p.canonical(st.ev, decodeUnitMasks(st.ev, uint64(st.reg)>>umaskShift, -1), st.reg, st.ldlat),
		PLM:   plmOf(st.reg),
	}
	if st.ldlat != 0 {
		enc.Codes = append(enc.Codes, st.ldlat)
	}
	return enc, nil
}
