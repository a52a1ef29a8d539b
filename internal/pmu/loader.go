package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// TableDoc is an event table loaded from YAML.
type TableDoc struct {
	Name  string
	Desc  string
	Table StaticTable
}

type unitMaskDef struct {
	Name   string   `yaml:"name"`
	Desc   string   `yaml:"desc"`
	Code   uint64   `yaml:"code"`
	GrpID  int      `yaml:"grpid"`
	GrpMsk uint64   `yaml:"grpmsk"`
	Flags  []string `yaml:"flags"`
	ModHW  []string `yaml:"modhw"`
	From   string   `yaml:"from"`
}

type eventDef struct {
	Name      string        `yaml:"name"`
	Desc      string        `yaml:"desc"`
	Code      uint64        `yaml:"code"`
	CntMsk    uint64        `yaml:"cntmsk"`
	NumGroups *int          `yaml:"ngrp"`
	Modifiers []string      `yaml:"modifiers"`
	Flags     []string      `yaml:"flags"`
	From      string        `yaml:"from"`
	UnitMasks []unitMaskDef `yaml:"umasks"`
}

type tableDef struct {
	Name   string     `yaml:"name"`
	Desc   string     `yaml:"desc"`
	Events []eventDef `yaml:"events"`
}

// LoadTable reads an event table from a YAML file.
func LoadTable(path string) (*TableDoc, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read event table %s: %w", path, err)
	}
	doc, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseTable decodes an event table from YAML. Structural checks are left to
// the PMU validator; only unknown flag and modifier names are rejected here.
// When ngrp is omitted it is derived from the highest unit mask group id.
func ParseTable(data []byte) (*TableDoc, error) {
	var def tableDef
	if err := yaml.UnmarshalStrict(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse event table: %v: %w", err, ErrTableInvalid)
	}
	doc := &TableDoc{Name: def.Name, Desc: def.Desc}
	for _, ed := range def.Events {
		ev := Event{
			Name:     ed.Name,
			Desc:     ed.Desc,
			Code:     ed.Code,
			CntMsk:   ed.CntMsk,
			From:     ed.From,
			NumMasks: len(ed.UnitMasks),
		}
		var err error
		if ev.Flags, err = parseFlags(ed.Flags); err != nil {
			return nil, fmt.Errorf("event %s: %w", ed.Name, err)
		}
		if ev.ModMsk, err = ParseModMask(ed.Modifiers); err != nil {
			return nil, fmt.Errorf("event %s: %w", ed.Name, err)
		}
		for _, ud := range ed.UnitMasks {
			um := UnitMask{
				Name:   ud.Name,
				Desc:   ud.Desc,
				Code:   ud.Code,
				GrpID:  ud.GrpID,
				GrpMsk: ud.GrpMsk,
				From:   ud.From,
			}
			if um.Flags, err = parseFlags(ud.Flags); err != nil {
				return nil, fmt.Errorf("event %s umask %s: %w", ed.Name, ud.Name, err)
			}
			if um.ModHW, err = ParseModMask(ud.ModHW); err != nil {
				return nil, fmt.Errorf("event %s umask %s: %w", ed.Name, ud.Name, err)
			}
			ev.UnitMasks = append(ev.UnitMasks, um)
			if ed.NumGroups == nil && um.GrpID+1 > ev.NumGroups {
				ev.NumGroups = um.GrpID + 1
			}
		}
		if ed.NumGroups != nil {
			ev.NumGroups = *ed.NumGroups
		}
		doc.Table = append(doc.Table, ev)
	}
	return doc, nil
}

func parseFlags(names []string) (Flag, error) {
	var flags Flag
	for _, name := range names {
		f, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		flags |= f
	}
	return flags, nil
}
