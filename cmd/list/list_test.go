package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"pmutool/internal/amd64"
	"pmutool/internal/intelx86"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchingEvents(t *testing.T) {
	p, err := intelx86.NewArch()
	require.NoError(t, err)

	all := MatchingEvents(p, nil)
	assert.Equal(t, p.Table().Len(), all.Cardinality())

	filters, err := compileFilters([]string{"^unhalted_core", "^INSTRUCTION_"})
	require.NoError(t, err)
	names := MatchingEvents(p, filters)
	assert.True(t, names.Contains("UNHALTED_CORE_CYCLES"))
	assert.True(t, names.Contains("INSTRUCTION_RETIRED"))
	assert.False(t, names.Contains("INSTRUCTIONS_RETIRED"))
	assert.False(t, names.Contains("UNHALTED_REFERENCE_CYCLES"))

	_, err = compileFilters([]string{"("})
	assert.Error(t, err)
}

func TestEventsTable(t *testing.T) {
	p, err := amd64.NewBarcelona()
	require.NoError(t, err)
	filters, err := compileFilters([]string{"L3_CACHE_MISSES"})
	require.NoError(t, err)
	names := MatchingEvents(p, filters)
	tv := EventsTable(p, names)

	require.Len(t, tv.Fields[0].Values, 5)
	assert.Equal(t, "0x4e1", tv.Fields[1].Values[0])
	assert.Equal(t, []string{"", "READ_BLOCK_EXCLUSIVE", "READ_BLOCK_SHARED", "READ_BLOCK_MODIFY", "ALL"}, tv.Fields[3].Values)
	assert.Equal(t, "DFL|NCOMBO", tv.Fields[5].Values[4])

	summary := PMUTable(p, names.Cardinality())
	assert.Equal(t, "amd64_fam10h_barcelona", summary.Fields[0].Values[0])
	assert.Equal(t, "1", summary.Fields[3].Values[0])
	assert.Equal(t, "k,u,e,i,c,h,g", summary.Fields[4].Values[0])
}
