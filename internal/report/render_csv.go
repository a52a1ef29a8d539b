package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"pmutool/internal/table"
)

// createCsvReport writes each table as a header row and its value rows,
// prefixed by a row holding the table name and followed by a blank row.
func createCsvReport(allTableValues []table.TableValues) (out []byte, err error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, tableValues := range allTableValues {
		if err = w.Write([]string{tableValues.Name}); err != nil {
			return
		}
		if len(tableValues.Fields) > 0 {
			header := make([]string, len(tableValues.Fields))
			for i, field := range tableValues.Fields {
				header[i] = field.Name
			}
			if err = w.Write(header); err != nil {
				return
			}
			for row := range len(tableValues.Fields[0].Values) {
				record := make([]string, len(tableValues.Fields))
				for i, field := range tableValues.Fields {
					record[i] = field.Values[row]
				}
				if err = w.Write(record); err != nil {
					return
				}
			}
		}
		if err = w.Write(nil); err != nil {
			return
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv report: %w", err)
	}
	out = buf.Bytes()
	return
}
