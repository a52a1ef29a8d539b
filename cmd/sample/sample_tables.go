package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pmutool/internal/common"
	"pmutool/internal/sample"
	"pmutool/internal/table"
)

const (
	TableNameSummary = "Sampling Summary"
	TableNameClasses = "Data Source Classes"
	TableNameMetrics = "Derived Metrics"
	TableNameRegions = "Address Regions"
)

func buildTables(info runInfo, agg *sample.Aggregator, metrics []sample.MetricDefinition, nodes []int) ([]table.TableValues, error) {
	stats := agg.Stats()
	regions := agg.Regions()
	metricFields, err := metricsFields(metrics, stats)
	if err != nil {
		return nil, err
	}
	return table.ProcessTables([]table.TableDefinition{
		{
			Name:       TableNameSummary,
			FieldsFunc: func() []table.Field { return summaryFields(info, stats, len(regions)) },
		},
		{
			Name:       TableNameClasses,
			HasRows:    true,
			FieldsFunc: func() []table.Field { return classesFields(stats) },
		},
		{
			Name:       TableNameMetrics,
			HasRows:    true,
			FieldsFunc: func() []table.Field { return metricFields },
		},
		{
			Name:        TableNameRegions,
			HasRows:     true,
			NoDataFound: "No addresses sampled.",
			FieldsFunc:  func() []table.Field { return regionsFields(regions, nodes) },
		},
	}), nil
}

func summaryFields(info runInfo, stats sample.Stats, numRegions int) []table.Field {
	fields := []table.Field{
		{Name: "PMU", Values: []string{info.PMU}},
		{Name: "Events", Values: []string{strings.Join(info.Events, ", ")}},
		{Name: "Started", Values: []string{info.Started.Format(time.RFC3339)}},
	}
	if info.Duration > 0 {
		fields = append(fields, table.Field{Name: "Duration", Values: []string{info.Duration.Round(time.Millisecond).String()}})
	}
	if info.RunID > 0 {
		fields = append(fields, table.Field{Name: "Run", Values: []string{strconv.FormatInt(info.RunID, 10)}})
	}
	return append(fields,
		table.Field{Name: "Samples", Values: []string{common.FormatCount(stats.Total)}},
		table.Field{Name: "Lost Samples", Values: []string{common.FormatCount(stats.Lost)}},
		table.Field{Name: "Corrupt Buffers", Values: []string{common.FormatCount(stats.Corrupt)}},
		table.Field{Name: "Average Weight", Values: []string{fmt.Sprintf("%.2f", stats.AvgWeight())}},
		table.Field{Name: "Address Regions", Values: []string{common.FormatCount(uint64(numRegions))}}, // #nosec G115
	)
}

func classesFields(stats sample.Stats) []table.Field {
	fields := table.NewFields("Class", "Samples", "Percent", "Description")
	for _, c := range sample.Classes() {
		table.AppendRow(fields, c.String(), common.FormatCount(stats.Count(c)), fmt.Sprintf("%.2f", stats.Percent(c)), c.Description())
	}
	return fields
}

func metricsFields(metrics []sample.MetricDefinition, stats sample.Stats) ([]table.Field, error) {
	values, err := sample.EvaluateMetrics(metrics, stats)
	if err != nil {
		return nil, err
	}
	fields := table.NewFields("Metric", "Value", "Description")
	for i, m := range values {
		table.AppendRow(fields, m.Name, fmt.Sprintf("%.2f", m.Value), metrics[i].Description)
	}
	return fields, nil
}

// regionsFields lists the regions in ascending address order, with the
// NUMA node of each when nodes is set.
func regionsFields(regions []sample.Region, nodes []int) []table.Field {
	names := []string{"Start", "End", "Bytes"}
	withNodes := len(nodes) == len(regions) && len(nodes) > 0
	if withNodes {
		names = append(names, "NUMA Node")
	}
	fields := table.NewFields(names...)
	for i, r := range regions {
		values := []string{fmt.Sprintf("0x%x", r.Start), fmt.Sprintf("0x%x", r.End), strconv.FormatUint(r.Len(), 10)}
		if withNodes {
			node := "n/a"
			if nodes[i] >= 0 {
				node = strconv.Itoa(nodes[i])
			}
			values = append(values, node)
		}
		table.AppendRow(fields, values...)
	}
	return fields
}
