// Package report provides functions to generate reports in various formats such as txt, json, csv, xlsx.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	"pmutool/internal/table"
)

const (
	FormatXlsx = "xlsx"
	FormatJson = "json"
	FormatCsv  = "csv"
	FormatTxt  = "txt"
	FormatAll  = "all"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatTxt, FormatJson, FormatCsv, FormatXlsx}

// Create generates a report in the specified format from the provided table values.
// The function ensures that all fields have the same number of values before generating the report.
//
// Parameters:
// - format: The desired format of the report (txt, json, csv, xlsx).
// - allTableValues: The values for each field in each table.
// - summaryTableName: xlsx only, the table placed on its own Brief sheet, if any.
//
// Returns:
// - out: The generated report as a byte slice.
// - err: An error, if any occurred during report generation.
func Create(format string, allTableValues []table.TableValues, summaryTableName string) (out []byte, err error) {
	// make sure that all fields have the same number of values
	for _, tableValue := range allTableValues {
		if err = table.ValidateTableValues(tableValue); err != nil {
			return nil, err
		}
	}
	switch format {
	case FormatTxt:
		return createTextReport(allTableValues)
	case FormatJson:
		return createJsonReport(allTableValues)
	case FormatCsv:
		return createCsvReport(allTableValues)
	case FormatXlsx:
		return createXlsxReport(allTableValues, summaryTableName)
	}
	return nil, fmt.Errorf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format)
}
