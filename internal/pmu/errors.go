package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "errors"

// Encode, decode and table errors. Callers add event and unit mask context with
// fmt.Errorf("...: %w", err) and test for the kind with errors.Is.
var (
	ErrNotSupported        = errors.New("not supported")
	ErrFeatureCombination  = errors.New("invalid combination of unit masks")
	ErrAttributeValue      = errors.New("invalid attribute value")
	ErrAttributeAlreadySet = errors.New("attribute already set")
	ErrHardwiredModifier   = errors.New("modifier is hardwired by unit mask")
	ErrMissingUnitMask     = errors.New("missing unit mask")
	ErrTableInvalid        = errors.New("invalid event table")
)
