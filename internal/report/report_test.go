package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"pmutool/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testTables() []table.TableValues {
	return []table.TableValues{
		{
			TableDefinition: table.TableDefinition{Name: "Summary"},
			Fields: []table.Field{
				{Name: "Samples", Values: []string{"1,024"}},
				{Name: "PMU", Values: []string{"intel_snb"}},
			},
		},
		{
			TableDefinition: table.TableDefinition{Name: "Events", HasRows: true},
			Fields: []table.Field{
				{Name: "Name", Values: []string{"CYCLES", "INST_RETIRED"}},
				{Name: "Code", Values: []string{"0x3c", "0xc0"}},
			},
		},
		{
			TableDefinition: table.TableDefinition{Name: "Regions", HasRows: true, NoDataFound: "No addresses sampled."},
		},
	}
}

func TestCreateText(t *testing.T) {
	out, err := Create(FormatTxt, testTables(), "")
	require.NoError(t, err)
	want := `Summary
=======
Samples: 1,024
PMU:     intel_snb

Events
======
Name           Code
----           ----
CYCLES         0x3c
INST_RETIRED   0xc0

Regions
=======
No addresses sampled.

`
	assert.Equal(t, want, string(out))
}

func TestCreateTextCustomRenderer(t *testing.T) {
	tables := testTables()[:1]
	tables[0].TextTableRendererFunc = func(tv table.TableValues) string { return "custom " + tv.Name + "\n" }
	out, err := Create(FormatTxt, tables, "")
	require.NoError(t, err)
	assert.Equal(t, "Summary\n=======\ncustom Summary\n\n", string(out))
}

func TestCreateJson(t *testing.T) {
	out, err := Create(FormatJson, testTables(), "")
	require.NoError(t, err)
	var got map[string][]map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, []map[string]string{{"Name": "CYCLES", "Code": "0x3c"}, {"Name": "INST_RETIRED", "Code": "0xc0"}}, got["Events"])
	assert.Empty(t, got["Regions"])
	assert.Equal(t, "intel_snb", got["Summary"][0]["PMU"])
}

func TestCreateCsv(t *testing.T) {
	out, err := Create(FormatCsv, testTables()[1:], "")
	require.NoError(t, err)
	lines := strings.Split(string(out), "\n")
	assert.Equal(t, []string{"Events", "Name,Code", "CYCLES,0x3c", "INST_RETIRED,0xc0", "", "Regions", "", ""}, lines)
}

func TestCreateXlsx(t *testing.T) {
	out, err := Create(FormatXlsx, testTables(), "Summary")
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{XlsxPrimarySheetName, XlsxBriefSheetName}, f.GetSheetList())

	v, err := f.GetCellValue(XlsxBriefSheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "1,024", v)
	v, err = f.GetCellValue(XlsxPrimarySheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Events", v)
	v, err = f.GetCellValue(XlsxPrimarySheetName, "C3")
	require.NoError(t, err)
	assert.Equal(t, "0x3c", v)
}

func TestCreateErrors(t *testing.T) {
	_, err := Create("html", testTables(), "")
	assert.Error(t, err)
	ragged := []table.TableValues{{
		TableDefinition: table.TableDefinition{Name: "Ragged"},
		Fields:          []table.Field{{Name: "A", Values: []string{"1"}}, {Name: "B"}},
	}}
	_, err = Create(FormatTxt, ragged, "")
	assert.Error(t, err)
}

func TestGetValueForCell(t *testing.T) {
	assert.Equal(t, 42, getValueForCell("42"))
	assert.Equal(t, 2.5, getValueForCell("2.5"))
	assert.Equal(t, "0x3c", getValueForCell("0x3c"))
}
