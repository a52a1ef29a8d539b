package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// SplitPMUPrefix splits "pmu::EVENT..." into its PMU name and the remainder.
// The PMU name is empty when the string has no prefix.
func SplitPMUPrefix(s string) (pmuName, rest string) {
	if before, after, found := strings.Cut(s, "::"); found {
		return before, after
	}
	return "", s
}

// ParseEvent parses EVENT[:UMASK...][:mod=val...] against the table of p.
// Names are matched case-insensitively and repeated unit masks are dropped.
// A modifier without a value is set to 1.
func ParseEvent(p PMU, s string, dflPLM PLM) (Descriptor, error) {
	pmuName, rest := SplitPMUPrefix(s)
	if pmuName != "" && !strings.EqualFold(pmuName, p.Name()) {
		return Descriptor{}, fmt.Errorf("event %s is not for pmu %s: %w", s, p.Name(), ErrNotSupported)
	}
	fields := strings.Split(rest, ":")
	if fields[0] == "" {
		return Descriptor{}, fmt.Errorf("empty event name in %q: %w", s, ErrNotSupported)
	}
	tbl := p.Table()
	idx := FindEvent(tbl, fields[0])
	if idx < 0 {
		return Descriptor{}, fmt.Errorf("event %s: %w", fields[0], ErrNotSupported)
	}
	ev := tbl.Event(idx)
	d := Descriptor{PMU: p.Name(), Event: idx, DefaultPLM: dflPLM}
	selected := mapset.NewThreadUnsafeSet[int]()
	for _, field := range fields[1:] {
		if field == "" {
			continue
		}
		name, value, hasValue := strings.Cut(field, "=")
		if !hasValue {
			if um := FindUnitMask(ev, name); um >= 0 {
				if !selected.Add(um) {
					slog.Debug("dropping repeated unit mask", slog.String("event", ev.Name), slog.String("umask", name))
					continue
				}
				d.Attrs = append(d.Attrs, UnitMaskAttr(um))
				continue
			}
		}
		mod, ok := ModifierByName(name)
		if !ok || !ev.ModMsk.Has(mod) {
			return Descriptor{}, fmt.Errorf("event %s: unit mask or modifier %s: %w", ev.Name, name, ErrNotSupported)
		}
		var v uint64 = 1
		if hasValue {
			var err error
			v, err = strconv.ParseUint(value, 0, 64)
			if err != nil {
				return Descriptor{}, fmt.Errorf("event %s: modifier %s=%s: %w", ev.Name, name, value, ErrAttributeValue)
			}
		}
		if mod.Info().Boolean && v > 1 {
			return Descriptor{}, fmt.Errorf("event %s: modifier %s must be 0 or 1: %w", ev.Name, name, ErrAttributeValue)
		}
		d.Attrs = append(d.Attrs, ModifierAttr(mod, v))
	}
	return d, nil
}
