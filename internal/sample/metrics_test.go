package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetrics(t *testing.T) {
	a := NewAggregator()
	a.Add(Record{Weight: 10, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL1)})
	a.Add(Record{Weight: 30, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlLocRAM)})
	a.Add(Record{Weight: 50, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlRemRAM1)})
	a.Add(Record{Weight: 10, DataSrc: NewDataSrc(OpLoad, LvlHit|LvlL2)})

	metrics, err := EvaluateMetrics(DefaultMetrics(), a.Stats())
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, m := range metrics {
		got[m.Name] = m.Value
	}
	assert.InDelta(t, 50.0, got["local_cache_hit_pct"], 1e-9)
	assert.InDelta(t, 50.0, got["dram_pct"], 1e-9)
	assert.InDelta(t, 25.0, got["remote_pct"], 1e-9)
	assert.InDelta(t, 0.0, got["na_miss_pct"], 1e-9)
	assert.InDelta(t, 25.0, got["avg_weight"], 1e-9)
}

func TestMetricsNoSamples(t *testing.T) {
	metrics, err := EvaluateMetrics(DefaultMetrics(), Stats{})
	require.NoError(t, err)
	for _, m := range metrics {
		assert.Zero(t, m.Value, m.Name)
	}
}

func TestLoadMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: l2_share
  expression: 100 * ratio(l2_hit, l1_hit + l2_hit)
- name: worst
  expression: max(l1_hit, l2_hit)
`), 0600))
	metrics, err := LoadMetrics(path)
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	s := Stats{Total: 4}
	s.Counts[ClassL1Hit] = 3
	s.Counts[ClassL2Hit] = 1
	results, err := EvaluateMetrics(metrics, s)
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "l2_share", Value: 25}, {Name: "worst", Value: 3}}, results)
}

func TestLoadMetricsErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		return path
	}
	_, err := LoadMetrics(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	_, err = LoadMetrics(write("bad_expr.yaml", "- name: bad\n  expression: 1 +\n"))
	assert.Error(t, err)
	_, err = LoadMetrics(write("unknown_field.yaml", "- name: x\n  expr: 1\n"))
	assert.Error(t, err)
	_, err = LoadMetrics(write("no_name.yaml", "- expression: 1\n"))
	assert.Error(t, err)

	_, err = EvaluateMetrics([]MetricDefinition{{Name: "raw", Expression: "1"}}, Stats{})
	assert.Error(t, err)
}
