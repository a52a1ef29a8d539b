package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os/user"
	"path/filepath"
	"slices"
	"testing"
)

func TestIsValidHex(t *testing.T) {
	tests := []struct {
		hexStr   string
		expected bool
	}{
		{"0x1a2b3c", true},  // Valid hex with "0x" prefix
		{"0X1A2B3C", true},  // Valid hex with "0X" prefix
		{"1a2b3c", true},    // Valid hex without prefix
		{"1A2B3C", true},    // Valid uppercase hex without prefix
		{"0x", false},       // Invalid hex, only prefix
		{"", false},         // Empty string
		{"0xGHIJKL", false}, // Invalid hex with non-hex characters
		{"GHIJKL", false},   // Invalid hex without prefix
		{"12345", true},     // Valid numeric hex
		{"0x12345", true},   // Valid numeric hex with
		{" 12345 ", false},  // Invalid hex with spaces
	}

	for _, test := range tests {
		result := IsValidHex(test.hexStr)
		if result != test.expected {
			t.Errorf("expected %v, got %v for hex string %s", test.expected, result, test.hexStr)
		}
	}
}
func TestIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-5", []int{1, 2, 3, 4, 5}, false},            // Valid range
		{"10-15", []int{10, 11, 12, 13, 14, 15}, false}, // Valid range
		{"5-5", []int{5}, false},                        // Single value range
		{"", []int{}, true},                             // Empty input
		{"5-3", nil, true},                              // Invalid range (start > end)
		{"abc-def", nil, true},                          // Invalid input format
		{"1-", nil, true},                               // Missing end value
		{"-5", nil, true},                               // Missing start value
		{"1-5-10", nil, true},                           // Invalid format with extra dash
		{"1-abc", nil, true},                            // Invalid end value
		{"abc-5", nil, true},                            // Invalid start value
		{"3", []int{3}, false},                          // Single value without range
	}

	for _, test := range tests {
		result, err := IntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}
func TestSelectiveIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-3,5,7-9", []int{1, 2, 3, 5, 7, 8, 9}, false},             // Valid mixed ranges and single values
		{"10-12,15,20-22", []int{10, 11, 12, 15, 20, 21, 22}, false}, // Valid mixed ranges
		{"5", []int{5}, false},                                       // Single value
		{"1-3,5-5,7", []int{1, 2, 3, 5, 7}, false},                   // Mixed ranges with single value range
		{"", nil, true},            // Empty input
		{"1-3,abc,7-9", nil, true}, // Invalid input with non-numeric value
		{"1-3,5-2,7-9", nil, true}, // Invalid range (start > end)
		{"1-3,,7-9", nil, true},    // Invalid format with empty segment
		{"1-3,7-9-", nil, true},    // Invalid format with trailing dash
		{"1-3,7-abc", nil, true},   // Invalid range with non-numeric end
	}

	for _, test := range tests {
		result, err := SelectiveIntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}
func TestIntSliceToStringSlice(t *testing.T) {
	tests := []struct {
		input    []int
		expected []string
	}{
		{[]int{1, 2, 3}, []string{"1", "2", "3"}},                   // Simple case
		{[]int{-1, 0, 1}, []string{"-1", "0", "1"}},                 // Negative, zero, and positive integers
		{[]int{}, []string{}},                                       // Empty slice
		{[]int{123, 456, 789}, []string{"123", "456", "789"}},       // Larger numbers
		{[]int{-123, -456, -789}, []string{"-123", "-456", "-789"}}, // Negative larger numbers
	}

	for _, test := range tests {
		result := IntSliceToStringSlice(test.input)
		if !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %v", test.expected, result, test.input)
		}
	}
}

func TestParseRegisterValue(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
		err      bool
	}{
		{"0x53003c", 0x53003c, false}, // hex with prefix
		{"53003c", 0x53003c, false},   // hex digits without prefix
		{"0X1cd", 0x1cd, false},       // upper case prefix
		{"1234", 1234, false},         // decimal
		{" 0x10 ", 0x10, false},       // surrounding spaces
		{"0x", 0, true},               // prefix only
		{"xyz", 0, true},              // not a number
		{"", 0, true},                 // empty
	}
	for _, test := range tests {
		result, err := ParseRegisterValue(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %q", test.err, err, test.input)
		}
		if !test.err && result != test.expected {
			t.Errorf("expected 0x%x, got 0x%x for input %q", test.expected, result, test.input)
		}
	}
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := CreateDirectoryIfNotExists(dir, 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !FileOrDirectoryExists(dir) {
		t.Errorf("directory %s was not created", dir)
	}
	// second call is a no-op
	if err := CreateDirectoryIfNotExists(dir, 0755); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExpandUser(t *testing.T) {
	usr, err := user.Current()
	if err != nil {
		t.Skip("no current user")
	}
	home := usr.HomeDir
	if got := ExpandUser("/tmp/x"); got != "/tmp/x" {
		t.Errorf("expected /tmp/x, got %s", got)
	}
	if got := ExpandUser("~"); got != home {
		t.Errorf("expected %s, got %s", home, got)
	}
	if got := ExpandUser("~/out"); got != filepath.Join(home, "out") {
		t.Errorf("expected %s, got %s", filepath.Join(home, "out"), got)
	}
}
