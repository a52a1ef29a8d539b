package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"pmutool/internal/pmu"
	"pmutool/internal/report"
	"pmutool/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPMU(t *testing.T) {
	reg, err := NewRegistry("")
	require.NoError(t, err)

	tests := []struct {
		name string
		pmu  string
		cpu  pmu.CPU
		want string
		err  bool
	}{
		{name: "default", want: DefaultPMUName},
		{name: "by name", pmu: "INTEL_SNB", want: "intel_snb"},
		{name: "unknown name", pmu: "intel_skx", err: true},
		{name: "sandy bridge", cpu: pmu.CPU{Vendor: "GenuineIntel", Family: 6, Model: 42}, want: "intel_snb"},
		{name: "other intel", cpu: pmu.CPU{Vendor: "GenuineIntel", Family: 6, Model: 85}, want: DefaultPMUName},
		{name: "shanghai", cpu: pmu.CPU{Vendor: "AuthenticAMD", Family: 16, Model: 4}, want: "amd64_fam10h_shanghai"},
		{name: "unknown amd", cpu: pmu.CPU{Vendor: "AuthenticAMD", Family: 23, Model: 1}, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := SelectPMU(reg, tt.pmu, tt.cpu)
			if tt.err {
				assert.ErrorIs(t, err, pmu.ErrNotSupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestNewRegistryEventFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	doc := `name: custom_core
desc: custom core table
events:
  - name: CYCLES
    desc: cycles
    code: 0x3c
    cntmsk: 0xf
    modifiers: [k, u, e, i, c]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	reg, err := NewRegistry(path)
	require.NoError(t, err)
	p, err := reg.Get("custom_core")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Table().Len())

	_, err = NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateFormats(t *testing.T) {
	formats, err := ValidateFormats([]string{report.FormatAll})
	require.NoError(t, err)
	assert.Equal(t, report.FormatOptions, formats)
	formats, err = ValidateFormats([]string{report.FormatCsv, report.FormatJson})
	require.NoError(t, err)
	assert.Equal(t, []string{report.FormatCsv, report.FormatJson}, formats)
	_, err = ValidateFormats([]string{"html"})
	assert.Error(t, err)
}

func TestWriteReports(t *testing.T) {
	appContext := AppContext{OutputDir: filepath.Join(t.TempDir(), "out")}
	tables := []table.TableValues{{
		TableDefinition: table.TableDefinition{Name: "Summary"},
		Fields:          []table.Field{{Name: "Samples", Values: []string{"3"}}},
	}}
	paths, err := WriteReports(appContext, "run", tables, []string{report.FormatJson, report.FormatCsv}, "")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(appContext.OutputDir, "run.json"), paths[0])
	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Samples")
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}
