package intelx86

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"embed"
	"fmt"

	"pmutool/internal/pmu"
)

//go:embed tables
var tables embed.FS

func loadEmbedded(file string) (*pmu.TableDoc, error) {
	data, err := tables.ReadFile("tables/" + file)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded table %s: %w", file, err)
	}
	return pmu.ParseTable(data)
}

// NewArch returns the architectural performance monitoring PMU, available on
// every Intel processor of family 6.
func NewArch() (*PMU, error) {
	doc, err := loadEmbedded("arch.yaml")
	if err != nil {
		return nil, err
	}
	return New(Config{Name: doc.Name, Desc: doc.Desc, ArchVersion: 3, Table: doc.Table})
}

// NewSandyBridge returns the Sandy Bridge core PMU.
func NewSandyBridge() (*PMU, error) {
	doc, err := loadEmbedded("snb.yaml")
	if err != nil {
		return nil, err
	}
	return New(Config{
		Name:        doc.Name,
		Desc:        doc.Desc,
		ArchVersion: 3,
		Models:      []int{42, 45},
		Table:       doc.Table,
		Custom:      CustomEncodersFor(doc.Table),
	})
}

// FromTable builds a PMU from an externally loaded event table.
func FromTable(doc *pmu.TableDoc, archVersion int) (*PMU, error) {
	return New(Config{
		Name:        doc.Name,
		Desc:        doc.Desc,
		ArchVersion: archVersion,
		Table:       doc.Table,
		Custom:      CustomEncodersFor(doc.Table),
	})
}
