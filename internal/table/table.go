// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package table provides functions for accessing and processing table definitions.
package table

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// Field represents the values for a field in a table
type Field struct {
	Name        string
	Description string // optional description of the field
	Values      []string
}

// TableValues combines the table definition with the resulting fields and their values
type TableValues struct {
	TableDefinition
	Fields []Field
}

type FieldsRetriever func() []Field
type TextTableRenderer func(TableValues) string
type XlsxTableRenderer func(TableValues, *excelize.File, string, *int)

// TableDefinition defines the structure of a table in the report
type TableDefinition struct {
	Name string
	// Fields function is called to retrieve field values
	FieldsFunc  FieldsRetriever
	HasRows     bool   // table is meant to be displayed in row form, i.e., a field may have multiple values
	NoDataFound string // message to display when no data is found
	// optional custom renderers
	TextTableRendererFunc TextTableRenderer
	XlsxTableRendererFunc XlsxTableRenderer
}

// ProcessTables collects the values of every table.
func ProcessTables(tables []TableDefinition) (allTableValues []TableValues) {
	for _, table := range tables {
		allTableValues = append(allTableValues, GetValuesForTable(table))
	}
	return
}

// GetFieldIndex returns the index of a field with the given name in the TableValues structure.
// Returns:
//   - int: The index of the field if found and valid, -1 otherwise
//   - error: nil if successful, an error describing the issue otherwise
func GetFieldIndex(fieldName string, tableValues TableValues) (int, error) {
	for i, field := range tableValues.Fields {
		if field.Name == fieldName {
			if len(field.Values) == 0 {
				return -1, fmt.Errorf("field [%s] does not have associated value(s)", field.Name)
			}
			return i, nil
		}
	}
	return -1, fmt.Errorf("field [%s] not found in table [%s]", fieldName, tableValues.Name)
}

// GetValuesForTable returns the fields and their values for the table
func GetValuesForTable(table TableDefinition) TableValues {
	// FieldsFunc can't be nil
	if table.FieldsFunc == nil {
		panic(fmt.Sprintf("table %s, FieldsFunc cannot be nil", table.Name))
	}
	tableValues := TableValues{
		TableDefinition: table,
		Fields:          table.FieldsFunc(),
	}
	// sanity check
	if err := ValidateTableValues(tableValues); err != nil {
		slog.Error("table validation failed", "table", table.Name, "error", err)
		return TableValues{
			TableDefinition: table,
			Fields:          []Field{},
		}
	}
	return tableValues
}

// ValidateTableValues checks that the table is named, its fields are named,
// and every field has the same number of values.
func ValidateTableValues(tableValues TableValues) error {
	if tableValues.Name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	// no field values is a valid state
	if len(tableValues.Fields) == 0 {
		return nil
	}
	// field names cannot be empty
	for i, field := range tableValues.Fields {
		if field.Name == "" {
			return fmt.Errorf("table %s, field %d, name cannot be empty", tableValues.Name, i)
		}
	}
	// the number of entries in each field must be the same
	numEntries := len(tableValues.Fields[0].Values)
	for i, field := range tableValues.Fields {
		if len(field.Values) != numEntries {
			return fmt.Errorf("table %s, field %d, %s, number of entries must be the same for all fields, expected %d, got %d", tableValues.Name, i, field.Name, numEntries, len(field.Values))
		}
	}
	return nil
}

// NewFields returns empty fields with the given names, ready for AppendRow.
func NewFields(names ...string) []Field {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i].Name = name
	}
	return fields
}

// AppendRow appends one value to each field.
func AppendRow(fields []Field, values ...string) {
	if len(values) != len(fields) {
		panic(fmt.Sprintf("expected %d values, got %d", len(fields), len(values)))
	}
	for i := range fields {
		fields[i].Values = append(fields[i].Values, values[i])
	}
}
