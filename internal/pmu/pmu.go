// Package pmu defines the event table data model shared by the processor
// specific encoders, the event string parser and the PMU registry.
package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

const (
	MaxUnitMasks = 32 // unit mask slots per event
	MaxGroups    = 8  // unit mask groups per event
)

// Flag marks events and unit masks with encoding constraints.
type Flag uint32

const (
	FlagDefault Flag = 1 << iota // unit mask is the default of its group
	FlagNCombo                   // unit mask cannot be combined with others in its group
	FlagGrpExcl                  // only unit masks of one group may be used
	FlagPEBS                     // supports precise sampling
	FlagEncoder                  // event requires a custom encoder
	FlagLdlat                    // event accepts a load latency threshold
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagDefault, "DFL"},
	{FlagNCombo, "NCOMBO"},
	{FlagGrpExcl, "GRP_EXCL"},
	{FlagPEBS, "PEBS"},
	{FlagEncoder, "ENCODER"},
	{FlagLdlat, "LDLAT"},
}

// ParseFlag returns the flag with the given table name, e.g., NCOMBO.
func ParseFlag(name string) (Flag, error) {
	for _, f := range flagNames {
		if strings.EqualFold(f.name, name) {
			return f.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q: %w", name, ErrTableInvalid)
}

func (f Flag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Modifier is a boolean or integer event attribute that is not a unit mask.
type Modifier int

const (
	ModKernel Modifier = iota
	ModUser
	ModEdge
	ModInvert
	ModCounterMask
	ModAnyThread
	ModHost
	ModGuest
	ModLatency
	numModifiers
)

// ModMask is a set of modifiers.
type ModMask uint32

// ModifierInfo describes how a modifier is spelled in event strings.
type ModifierInfo struct {
	Modifier Modifier
	Name     string
	Desc     string
	Boolean  bool
}

var modifiers = [numModifiers]ModifierInfo{
	{ModKernel, "k", "monitor at priv level 0 (kernel)", true},
	{ModUser, "u", "monitor at priv level 3 (user)", true},
	{ModEdge, "e", "edge level", true},
	{ModInvert, "i", "invert counter mask", true},
	{ModCounterMask, "c", "counter mask (0-255)", false},
	{ModAnyThread, "t", "measure any thread", true},
	{ModHost, "h", "monitor in host mode", true},
	{ModGuest, "g", "monitor in guest mode", true},
	{ModLatency, "ldlat", "load latency threshold in cycles", false},
}

func (m Modifier) Info() ModifierInfo {
	if m < 0 || m >= numModifiers {
		return ModifierInfo{Modifier: m, Name: "?"}
	}
	return modifiers[m]
}

func (m Modifier) String() string { return m.Info().Name }

// Mask returns the single modifier set containing m.
func (m Modifier) Mask() ModMask { return 1 << uint(m) }

// ModifierByName looks up a modifier by its event string spelling.
func ModifierByName(name string) (Modifier, bool) {
	for _, info := range modifiers {
		if strings.EqualFold(info.Name, name) {
			return info.Modifier, true
		}
	}
	return 0, false
}

func (mm ModMask) Has(m Modifier) bool { return mm&m.Mask() != 0 }

// Modifiers lists the members of the set in declaration order.
func (mm ModMask) Modifiers() []Modifier {
	var mods []Modifier
	for m := Modifier(0); m < numModifiers; m++ {
		if mm.Has(m) {
			mods = append(mods, m)
		}
	}
	return mods
}

// ParseModMask builds a set from modifier names.
func ParseModMask(names []string) (ModMask, error) {
	var mm ModMask
	for _, name := range names {
		m, ok := ModifierByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q: %w", name, ErrTableInvalid)
		}
		mm |= m.Mask()
	}
	return mm, nil
}

func (mm ModMask) String() string {
	var names []string
	for _, m := range mm.Modifiers() {
		names = append(names, m.String())
	}
	return strings.Join(names, ",")
}

// UnitMask is one selectable sub-option of an event.
type UnitMask struct {
	Name   string
	Desc   string
	Code   uint64
	GrpID  int
	GrpMsk uint64  // bits of the unit mask byte owned by the group
	Flags  Flag
	ModHW  ModMask // modifiers the hardware forces for this unit mask
	From   string  // canonical unit mask this one aliases
}

// Event is one hardware event table entry.
type Event struct {
	Name      string
	Desc      string
	Code      uint64
	CntMsk    uint64
	NumGroups int
	NumMasks  int
	UnitMasks []UnitMask
	ModMsk    ModMask
	Flags     Flag
	From      string
}

// Masks returns the declared unit masks, i.e., the first NumMasks slots.
func (e *Event) Masks() []UnitMask {
	n := min(max(e.NumMasks, 0), len(e.UnitMasks))
	return e.UnitMasks[:n]
}

// DisplayName is the name used in canonical strings.
func (e *Event) DisplayName() string {
	if e.From != "" {
		return e.From
	}
	return e.Name
}

// Table provides read-only indexed access to an event table.
type Table interface {
	Len() int
	Event(idx int) *Event // nil when idx is out of range
}

// StaticTable is a Table backed by a slice.
type StaticTable []Event

func (t StaticTable) Len() int { return len(t) }

func (t StaticTable) Event(idx int) *Event {
	if idx < 0 || idx >= len(t) {
		return nil
	}
	return &t[idx]
}

// FindEvent returns the index of the named event or -1.
func FindEvent(t Table, name string) int {
	for i := range t.Len() {
		if strings.EqualFold(t.Event(i).Name, name) {
			return i
		}
	}
	return -1
}

// FindUnitMask returns the index of the named unit mask within an event or -1.
func FindUnitMask(e *Event, name string) int {
	for i, um := range e.Masks() {
		if strings.EqualFold(um.Name, name) {
			return i
		}
	}
	return -1
}

// PLM is a privilege level mask.
type PLM uint32

const (
	PLM0 PLM = 1 << 0 // kernel
	PLM1 PLM = 1 << 1
	PLM2 PLM = 1 << 2
	PLM3 PLM = 1 << 3 // user
)

// ParsePLM accepts a comma separated list of u and k.
func ParsePLM(s string) (PLM, error) {
	var plm PLM
	for field := range strings.SplitSeq(s, ",") {
		switch strings.TrimSpace(strings.ToLower(field)) {
		case "u", "user":
			plm |= PLM3
		case "k", "kernel":
			plm |= PLM0
		case "":
		default:
			return 0, fmt.Errorf("invalid privilege level %q: %w", field, ErrAttributeValue)
		}
	}
	return plm, nil
}

func (p PLM) String() string {
	var levels []string
	if p&PLM0 != 0 {
		levels = append(levels, "k")
	}
	if p&PLM3 != 0 {
		levels = append(levels, "u")
	}
	return strings.Join(levels, ",")
}

// AttrKind distinguishes unit mask selections from modifiers.
type AttrKind int

const (
	AttrUnitMask AttrKind = iota
	AttrModifier
)

// Attr is one attribute selection. ID is the unit mask index within the event
// for AttrUnitMask, and a Modifier for AttrModifier.
type Attr struct {
	Kind  AttrKind
	ID    int
	Value uint64
}

// UnitMaskAttr selects the unit mask at index idx.
func UnitMaskAttr(idx int) Attr { return Attr{Kind: AttrUnitMask, ID: idx} }

// ModifierAttr sets modifier m to v.
func ModifierAttr(m Modifier, v uint64) Attr { return Attr{Kind: AttrModifier, ID: int(m), Value: v} }

// Descriptor is one parsed event request.
type Descriptor struct {
	PMU        string
	Event      int
	Attrs      []Attr
	DefaultPLM PLM
}

// UnitMasks returns the indexes of the selected unit masks in selection order.
func (d Descriptor) UnitMasks() []int {
	var idx []int
	for _, a := range d.Attrs {
		if a.Kind == AttrUnitMask {
			idx = append(idx, a.ID)
		}
	}
	return idx
}

// Encoding is the result of encoding a Descriptor. Codes[0] is the event
// select register; a second code, when present, is the auxiliary register
// value (perf config1).
type Encoding struct {
	Event int
	Codes []uint64
	Fstr  string
	PLM   PLM
}

// CPU identifies a processor for PMU detection.
type CPU struct {
	Vendor   string
	Family   int
	Model    int
	Stepping int
}

// Violation is one structural defect found in an event table.
type Violation struct {
	PMU      string
	EventIdx int
	Event    string
	UmaskIdx int // -1 when the violation concerns the event itself
	UnitMask string
	Msg      string
}

func (v Violation) Error() string {
	if v.UmaskIdx < 0 {
		return fmt.Sprintf("pmu: %s event%d: %s :: %s", v.PMU, v.EventIdx, v.Event, v.Msg)
	}
	return fmt.Sprintf("pmu: %s event%d: %s umask%d: %s :: %s", v.PMU, v.EventIdx, v.Event, v.UmaskIdx, v.UnitMask, v.Msg)
}

// PMU is the capability set implemented once per processor family.
type PMU interface {
	Name() string
	Description() string
	Detect(cpu CPU) bool
	Table() Table
	Modifiers() []ModifierInfo
	Encode(d Descriptor) (Encoding, error)
	Describe(code uint64) (string, error)
	Validate() []Violation
}

// PEBSChecker is implemented by PMUs that support precise sampling.
type PEBSChecker interface {
	SupportsPEBS(d Descriptor) bool
}

// CheckTable validates the table of p and returns its violations, with
// ErrTableInvalid when there is at least one.
func CheckTable(p PMU) ([]Violation, error) {
	violations := p.Validate()
	if len(violations) > 0 {
		return violations, fmt.Errorf("%s: %d error(s): %w", p.Name(), len(violations), ErrTableInvalid)
	}
	return nil, nil
}
