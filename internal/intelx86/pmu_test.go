package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"pmutool/internal/pmu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomEncoderBinding(t *testing.T) {
	flagged := pmu.StaticTable{{Name: "ODD", Desc: "odd", Code: 0xb7, CntMsk: 1, Flags: pmu.FlagEncoder}}
	_, err := New(Config{Name: "test", Table: flagged})
	assert.ErrorIs(t, err, pmu.ErrTableInvalid)

	unflagged := pmu.StaticTable{{Name: "ODD", Desc: "odd", Code: 0xb7, CntMsk: 1}}
	_, err = New(Config{Name: "test", Table: unflagged, Custom: map[string]CustomEncoder{"ODD": encodeOffcoreResponse}})
	assert.ErrorIs(t, err, pmu.ErrTableInvalid)

	_, err = New(Config{Name: "test", Table: unflagged, Custom: map[string]CustomEncoder{"MISSING": encodeOffcoreResponse}})
	assert.ErrorIs(t, err, pmu.ErrTableInvalid)

	_, err = New(Config{Name: "test"})
	assert.ErrorIs(t, err, pmu.ErrTableInvalid)
}

func TestDescribe(t *testing.T) {
	arch := newArch(t)
	snb := newSNB(t)
	tests := []struct {
		name string
		pmu  *PMU
		reg  uint64
		want string
	}{
		{"plain event", arch, 0x53003c, "UNHALTED_CORE_CYCLES:k=1:u=1:e=0:i=0:c=0:t=0"},
		{"most specific hardcoded unit mask", arch, 0x534f2e, "LLC_REFERENCES:k=1:u=1:e=0:i=0:c=0:t=0"},
		{"hardcoded unit mask", arch, 0x53412e, "LLC_MISSES:k=1:u=1:e=0:i=0:c=0:t=0"},
		{"unit masks", snb, 0x5321c4, "BR_INST_RETIRED:CONDITIONAL:NEAR_TAKEN:k=1:u=1:e=0:i=0:c=0:t=0"},
		{"any thread", snb, 0x73003c, "UNHALTED_CORE_CYCLES:k=1:u=1:e=0:i=0:c=0:t=1"},
		{"hardwired bits", snb, 0x1d3010e, "UOPS_ISSUED:STALL_CYCLES:k=1:u=1:e=0:i=1:c=1:t=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pmu.Describe(tt.reg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := arch.Describe(0x5300ff)
	assert.ErrorIs(t, err, pmu.ErrNotSupported)
}

func TestDetect(t *testing.T) {
	arch := newArch(t)
	snb := newSNB(t)
	assert.True(t, arch.Detect(pmu.CPU{Vendor: "GenuineIntel", Family: 6, Model: 85}))
	assert.False(t, arch.Detect(pmu.CPU{Vendor: "AuthenticAMD", Family: 6, Model: 85}))
	assert.True(t, snb.Detect(pmu.CPU{Vendor: "GenuineIntel", Family: 6, Model: 42}))
	assert.False(t, snb.Detect(pmu.CPU{Vendor: "GenuineIntel", Family: 6, Model: 85}))
}

func TestModifiers(t *testing.T) {
	var names []string
	for _, m := range newSNB(t).Modifiers() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"k", "u", "e", "i", "c", "t", "ldlat"}, names)

	names = nil
	for _, m := range newTestPMU(t, 2).Modifiers() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"k", "u", "e", "i", "c"}, names)
}

func TestRegisterFormat(t *testing.T) {
	reg := Register(0x53003c)
	assert.Equal(t, "[0x53003c event_sel=0x3c umask=0x0 os=1 usr=1 en=1 int=1 inv=0 edge=0 cnt_mask=0 any=0]", reg.Format(3))
	assert.Equal(t, "[0x53003c event_sel=0x3c umask=0x0 os=1 usr=1 en=1 int=1 inv=0 edge=0 cnt_mask=0]", reg.Format(2))
	reg = Register(0x2d3013c)
	assert.Equal(t, uint8(0x3c), reg.EventSelect())
	assert.Equal(t, uint8(0x01), reg.UnitMask())
	assert.Equal(t, uint8(2), reg.CounterMask())
	assert.True(t, reg.Inv())
	assert.False(t, reg.Edge())
	assert.False(t, reg.Any())
}
