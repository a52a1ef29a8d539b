package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPMU struct {
	name  string
	table StaticTable
	cpu   CPU
}

func (s *stubPMU) Name() string                          { return s.name }
func (s *stubPMU) Description() string                   { return "stub " + s.name }
func (s *stubPMU) Detect(cpu CPU) bool                   { return cpu == s.cpu }
func (s *stubPMU) Table() Table                          { return s.table }
func (s *stubPMU) Modifiers() []ModifierInfo             { return nil }
func (s *stubPMU) Encode(d Descriptor) (Encoding, error) { return Encoding{Event: d.Event}, nil }
func (s *stubPMU) Describe(code uint64) (string, error)  { return "", ErrNotSupported }
func (s *stubPMU) Validate() []Violation                 { return nil }

func stubTable() StaticTable {
	return StaticTable{
		{Name: "CYCLES", Desc: "cycles", Code: 0x3c, CntMsk: 0xff, ModMsk: ModKernel.Mask() | ModUser.Mask() | ModCounterMask.Mask()},
		{
			Name: "BRANCHES", Desc: "branches", Code: 0xc4, CntMsk: 0xff, NumGroups: 1, NumMasks: 2,
			ModMsk: ModKernel.Mask() | ModUser.Mask() | ModAnyThread.Mask(),
			UnitMasks: []UnitMask{
				{Name: "TAKEN", Desc: "taken", Code: 0x20},
				{Name: "NOT_TAKEN", Desc: "not taken", Code: 0x10},
			},
		},
	}
}

func TestFlags(t *testing.T) {
	f, err := ParseFlag("ncombo")
	require.NoError(t, err)
	assert.Equal(t, FlagNCombo, f)
	_, err = ParseFlag("BOGUS")
	assert.ErrorIs(t, err, ErrTableInvalid)
	assert.Equal(t, "DFL|PEBS", (FlagDefault | FlagPEBS).String())
}

func TestModifiers(t *testing.T) {
	m, ok := ModifierByName("LDLAT")
	require.True(t, ok)
	assert.Equal(t, ModLatency, m)
	_, ok = ModifierByName("z")
	assert.False(t, ok)

	mm, err := ParseModMask([]string{"k", "u", "c"})
	require.NoError(t, err)
	assert.True(t, mm.Has(ModCounterMask))
	assert.False(t, mm.Has(ModInvert))
	assert.Equal(t, "k,u,c", mm.String())
	_, err = ParseModMask([]string{"k", "z"})
	assert.ErrorIs(t, err, ErrTableInvalid)
	assert.Equal(t, "?", Modifier(99).String())
}

func TestParsePLM(t *testing.T) {
	tests := []struct {
		in      string
		want    PLM
		wantErr bool
	}{
		{"u", PLM3, false},
		{"k", PLM0, false},
		{"u,k", PLM0 | PLM3, false},
		{"user, kernel", PLM0 | PLM3, false},
		{"", 0, false},
		{"x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePLM(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAttributeValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "k,u", (PLM0 | PLM3).String())
}

func TestEventMasks(t *testing.T) {
	ev := stubTable()[1]
	assert.Len(t, ev.Masks(), 2)
	ev.NumMasks = 5
	assert.Len(t, ev.Masks(), 2)
	ev.NumMasks = 1
	assert.Len(t, ev.Masks(), 1)
	assert.Equal(t, "BRANCHES", ev.DisplayName())
	ev.From = "BR"
	assert.Equal(t, "BR", ev.DisplayName())
}

func TestStaticTable(t *testing.T) {
	tbl := stubTable()
	assert.Equal(t, 2, tbl.Len())
	assert.Nil(t, tbl.Event(-1))
	assert.Nil(t, tbl.Event(2))
	assert.Equal(t, 1, FindEvent(tbl, "branches"))
	assert.Equal(t, -1, FindEvent(tbl, "nope"))
	assert.Equal(t, 1, FindUnitMask(tbl.Event(1), "not_taken"))
	assert.Equal(t, -1, FindUnitMask(tbl.Event(0), "TAKEN"))
}

func TestViolationError(t *testing.T) {
	v := Violation{PMU: "p", EventIdx: 3, Event: "E", UmaskIdx: 1, UnitMask: "U", Msg: "no description"}
	assert.Equal(t, "pmu: p event3: E umask1: U :: no description", v.Error())
	v.UmaskIdx = -1
	assert.Equal(t, "pmu: p event3: E :: no description", v.Error())
}
