package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"

	"github.com/casbin/govaluate"
	"gopkg.in/yaml.v2"
)

// MetricDefinition is a derived metric computed from aggregated counts.
// Expressions may use every class name, total, weight_sum, lost and
// avg_weight as variables.
type MetricDefinition struct {
	Name        string                         `yaml:"name"`
	Expression  string                         `yaml:"expression"`
	Description string                         `yaml:"description"`
	Evaluable   *govaluate.EvaluableExpression `yaml:"-"` // parse expression once, store here for use in metric evaluation
}

// Metric is an evaluated MetricDefinition.
type Metric struct {
	Name  string
	Value float64
}

var defaultMetrics = []MetricDefinition{
	{Name: "local_cache_hit_pct", Expression: "100 * ratio(l1_hit + lfb_hit + l2_hit + l3_hit, total)", Description: "samples served by a local cache"},
	{Name: "dram_pct", Expression: "100 * ratio(local_ram_hit + remote_ram_hit, total)", Description: "samples served by DRAM"},
	{Name: "remote_pct", Expression: "100 * ratio(remote_cache_hit + remote_ram_hit, total)", Description: "samples served by another socket"},
	{Name: "na_miss_pct", Expression: "100 * ratio(na_miss, total)", Description: "samples with no source or an L3 miss"},
	{Name: "avg_weight", Expression: "ratio(weight_sum, total)", Description: "average sample cost"},
}

// DefaultMetrics returns the built-in metric definitions, compiled.
func DefaultMetrics() []MetricDefinition {
	metrics := make([]MetricDefinition, len(defaultMetrics))
	copy(metrics, defaultMetrics)
	if err := ConfigureMetrics(metrics); err != nil {
		panic(fmt.Sprintf("built-in metric: %v", err))
	}
	return metrics
}

// LoadMetrics reads and compiles metric definitions from a YAML file.
func LoadMetrics(path string) ([]MetricDefinition, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read metric file: %w", err)
	}
	var metrics []MetricDefinition
	if err := yaml.UnmarshalStrict(data, &metrics); err != nil {
		return nil, fmt.Errorf("failed to parse metric file %s: %w", path, err)
	}
	if err := ConfigureMetrics(metrics); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return metrics, nil
}

// ConfigureMetrics compiles each metric's expression.
func ConfigureMetrics(metrics []MetricDefinition) error {
	functions := evaluatorFunctions()
	for i := range metrics {
		m := &metrics[i]
		if m.Name == "" {
			return fmt.Errorf("metric %d has no name", i)
		}
		var err error
		if m.Evaluable, err = govaluate.NewEvaluableExpressionWithFunctions(m.Expression, functions); err != nil {
			return fmt.Errorf("metric %s: %w", m.Name, err)
		}
	}
	return nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

// evaluatorFunctions defines functions that can be called in metric expressions
func evaluatorFunctions() map[string]govaluate.ExpressionFunction {
	functions := make(map[string]govaluate.ExpressionFunction)
	functions["ratio"] = func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("ratio takes 2 arguments, got %d", len(args))
		}
		num, den := toFloat(args[0]), toFloat(args[1])
		if den == 0 {
			return 0.0, nil
		}
		return num / den, nil
	}
	functions["max"] = func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("max takes 2 arguments, got %d", len(args))
		}
		return max(toFloat(args[0]), toFloat(args[1])), nil
	}
	functions["min"] = func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("min takes 2 arguments, got %d", len(args))
		}
		return min(toFloat(args[0]), toFloat(args[1])), nil
	}
	return functions
}

// Variables returns the expression variables for s.
func (s Stats) Variables() map[string]any {
	variables := map[string]any{
		"total":      float64(s.Total),
		"weight_sum": float64(s.WeightSum),
		"lost":       float64(s.Lost),
		"avg_weight": s.AvgWeight(),
	}
	for _, c := range Classes() {
		variables[c.String()] = float64(s.Count(c))
	}
	return variables
}

// EvaluateMetrics evaluates every metric against s.
func EvaluateMetrics(metrics []MetricDefinition, s Stats) ([]Metric, error) {
	variables := s.Variables()
	results := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		if m.Evaluable == nil {
			return nil, fmt.Errorf("metric %s is not configured", m.Name)
		}
		value, err := evaluateExpression(m, variables)
		if err != nil {
			return nil, err
		}
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("metric %s evaluated to %T, not a number", m.Name, value)
		}
		results = append(results, Metric{Name: m.Name, Value: f})
	}
	return results, nil
}

func evaluateExpression(m MetricDefinition, variables map[string]any) (result any, err error) {
	defer func() {
		if errx := recover(); errx != nil {
			err = fmt.Errorf("%v : %s : %s", errx, m.Name, m.Expression)
		}
	}()
	if result, err = m.Evaluable.Evaluate(variables); err != nil {
		err = fmt.Errorf("%v : %s : %s", err, m.Name, m.Expression)
	}
	return
}
