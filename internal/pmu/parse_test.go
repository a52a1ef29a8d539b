package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	p := &stubPMU{name: "stub", table: stubTable()}
	tests := []struct {
		name      string
		in        string
		wantEvent int
		wantAttrs []Attr
		wantErr   error
	}{
		{"event only", "CYCLES", 0, nil, nil},
		{"case insensitive", "cycles:U", 0, []Attr{ModifierAttr(ModUser, 1)}, nil},
		{"modifier value", "CYCLES:c=0x10:k=0", 0, []Attr{ModifierAttr(ModCounterMask, 16), ModifierAttr(ModKernel, 0)}, nil},
		{"pmu prefix", "stub::BRANCHES:TAKEN", 1, []Attr{UnitMaskAttr(0)}, nil},
		{"repeated unit mask dropped", "BRANCHES:taken:NOT_TAKEN:TAKEN", 1, []Attr{UnitMaskAttr(0), UnitMaskAttr(1)}, nil},
		{"repeated modifier kept", "BRANCHES:t:t=0", 1, []Attr{ModifierAttr(ModAnyThread, 1), ModifierAttr(ModAnyThread, 0)}, nil},
		{"empty fields skipped", "CYCLES:u:", 0, []Attr{ModifierAttr(ModUser, 1)}, nil},
		{"unknown event", "NOPE", 0, nil, ErrNotSupported},
		{"empty event", ":u", 0, nil, ErrNotSupported},
		{"other pmu", "other::CYCLES", 0, nil, ErrNotSupported},
		{"unknown unit mask", "BRANCHES:SIDEWAYS", 0, nil, ErrNotSupported},
		{"modifier not allowed", "BRANCHES:c=1", 0, nil, ErrNotSupported},
		{"bad number", "CYCLES:c=abc", 0, nil, ErrAttributeValue},
		{"boolean out of range", "CYCLES:u=2", 0, nil, ErrAttributeValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseEvent(p, tt.in, PLM3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "stub", d.PMU)
			assert.Equal(t, tt.wantEvent, d.Event)
			assert.Equal(t, tt.wantAttrs, d.Attrs)
			assert.Equal(t, PLM3, d.DefaultPLM)
		})
	}
}

func TestDescriptorUnitMasks(t *testing.T) {
	d := Descriptor{Attrs: []Attr{UnitMaskAttr(2), ModifierAttr(ModUser, 1), UnitMaskAttr(0)}}
	assert.Equal(t, []int{2, 0}, d.UnitMasks())
}

func TestSplitPMUPrefix(t *testing.T) {
	name, rest := SplitPMUPrefix("intel_snb::INST_RETIRED:u")
	assert.Equal(t, "intel_snb", name)
	assert.Equal(t, "INST_RETIRED:u", rest)
	name, rest = SplitPMUPrefix("INST_RETIRED")
	assert.Empty(t, name)
	assert.Equal(t, "INST_RETIRED", rest)
}
