package encode

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"pmutool/internal/common"
	"pmutool/internal/pmu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	reg, err := common.NewRegistry("")
	require.NoError(t, err)

	res, err := Encode(reg, common.DefaultPMUName, "UNHALTED_CORE_CYCLES", pmu.PLM0|pmu.PLM3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0x53003c}, res.Encoding.Codes)
	assert.Equal(t, "UNHALTED_CORE_CYCLES:k=1:u=1:e=0:i=0:c=0:t=0", res.Encoding.Fstr)
	assert.Contains(t, res.Register, "event_sel=0x3c")
	assert.Equal(t, "false", res.PEBS)

	res, err = Encode(reg, common.DefaultPMUName, "amd64_fam10h_barcelona::CPU_CLK_UNHALTED", pmu.PLM0|pmu.PLM3)
	require.NoError(t, err)
	assert.Equal(t, "amd64_fam10h_barcelona", res.PMU.Name())
	assert.Equal(t, []uint64{0x530076}, res.Encoding.Codes)
	assert.Empty(t, res.Register)
	assert.Equal(t, "n/a", res.PEBS)

	_, err = Encode(reg, common.DefaultPMUName, "NO_SUCH_EVENT", pmu.PLM3)
	assert.ErrorIs(t, err, pmu.ErrNotSupported)
	_, err = Encode(reg, common.DefaultPMUName, "UNHALTED_CORE_CYCLES:c=256", pmu.PLM3)
	assert.ErrorIs(t, err, pmu.ErrAttributeValue)
}

func TestResultsTable(t *testing.T) {
	reg, err := common.NewRegistry("")
	require.NoError(t, err)
	a, err := Encode(reg, common.DefaultPMUName, "UNHALTED_CORE_CYCLES:u", pmu.PLM0)
	require.NoError(t, err)
	b, err := Encode(reg, "intel_snb", "OFFCORE_RESPONSE_0:DMND_DATA_RD:LOCAL_DRAM", pmu.PLM3)
	require.NoError(t, err)

	tv := ResultsTable([]Result{a, b})
	require.Len(t, tv.Fields, 6)
	assert.Equal(t, []string{"intel_x86_arch", "intel_snb"}, tv.Fields[0].Values)
	assert.Equal(t, "0x51003c", tv.Fields[1].Values[0])
	assert.Len(t, b.Encoding.Codes, 2)
	assert.Equal(t, "u", tv.Fields[3].Values[0])
}
