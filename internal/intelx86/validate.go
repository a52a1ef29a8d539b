package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strings"

	"pmutool/internal/pmu"

	mapset "github.com/deckarep/golang-set/v2"
)

// ValidateTable checks the structural rules every Intel event table must
// satisfy. Each violation is logged and returned.
func ValidateTable(name string, t pmu.Table) []pmu.Violation {
	var violations []pmu.Violation
	eventNames := mapset.NewThreadUnsafeSet[string]()
	for i := range t.Len() {
		ev := t.Event(i)
		report := func(umIdx int, umName string, format string, args ...any) {
			v := pmu.Violation{PMU: name, EventIdx: i, Event: ev.Name, UmaskIdx: umIdx, UnitMask: umName, Msg: fmt.Sprintf(format, args...)}
			slog.Warn("event table violation", slog.String("pmu", name), slog.String("event", ev.Name), slog.String("umask", umName), slog.String("error", v.Msg))
			violations = append(violations, v)
		}
		eventErr := func(format string, args ...any) { report(-1, "", format, args...) }

		if ev.Name == "" {
			eventErr("no name")
		}
		if ev.Desc == "" {
			eventErr("no description")
		}
		if ev.Name != "" && !eventNames.Add(strings.ToUpper(ev.Name)) {
			eventErr("duplicate event name")
		}
		if ev.CntMsk == 0 {
			eventErr("cntmsk=0")
		}
		if ev.NumMasks >= pmu.MaxUnitMasks {
			eventErr("numasks too big (<%d)", pmu.MaxUnitMasks)
		}
		if ev.NumMasks > len(ev.UnitMasks) {
			eventErr("numasks (%d) exceeds the %d unit masks defined", ev.NumMasks, len(ev.UnitMasks))
		}
		if ev.NumMasks > 0 && ev.NumGroups == 0 {
			eventErr("ngrp cannot be zero")
		}
		if ev.NumGroups >= pmu.MaxGroups {
			eventErr("ngrp too big (max=%d)", pmu.MaxGroups)
		}
		if ev.Flags&pmu.FlagNCombo != 0 {
			eventErr("NCOMBO is unit mask only flag")
		}
		masks := ev.Masks()
		umaskNames := mapset.NewThreadUnsafeSet[string]()
		for j, um := range masks {
			if um.Name == "" {
				report(j, "", "no name")
			} else if !umaskNames.Add(strings.ToUpper(um.Name)) {
				report(j, um.Name, "duplicate unit mask name")
			}
			if um.Desc == "" {
				report(j, um.Name, "no description")
			}
			if um.ModHW != 0 && um.ModHW|ev.ModMsk != ev.ModMsk {
				report(j, um.Name, "modhw not subset of modmsk")
			}
			if ev.NumGroups > 0 && (um.GrpID < 0 || um.GrpID >= ev.NumGroups) {
				report(j, um.Name, "invalid grpid %d (must be < %d)", um.GrpID, ev.NumGroups)
			}
			if ev.NumGroups > 1 && (um.GrpMsk == 0 || um.GrpMsk > 0xff) {
				report(j, um.Name, "invalid grpmsk=0x%x", um.GrpMsk)
			}
		}
		for j := len(masks); j < len(ev.UnitMasks); j++ {
			if ev.UnitMasks[j].Name != "" || ev.UnitMasks[j].Desc != "" {
				eventErr("numasks (%d) invalid, more unit masks exist", ev.NumMasks)
				break
			}
		}
		for j, a := range masks {
			if a.From != "" || a.Flags&pmu.FlagNCombo != 0 {
				continue
			}
			for _, b := range masks[j+1:] {
				if b.From != "" || b.Flags&pmu.FlagNCombo != 0 || b.GrpID != a.GrpID {
					continue
				}
				if a.Code&b.Code != 0 {
					eventErr("umask %s and %s have overlapping code bits", a.Name, b.Name)
				}
			}
		}
	}
	return violations
}
