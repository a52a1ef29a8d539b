package pmu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

// Registry holds the PMUs available to the application.
type Registry struct {
	pmus []PMU
}

// NewRegistry returns a registry of the given PMUs. Names must be unique.
func NewRegistry(pmus ...PMU) (*Registry, error) {
	r := &Registry{}
	for _, p := range pmus {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers p.
func (r *Registry) Add(p PMU) error {
	if _, err := r.Get(p.Name()); err == nil {
		return fmt.Errorf("pmu %s already registered", p.Name())
	}
	r.pmus = append(r.pmus, p)
	return nil
}

// Get returns the named PMU.
func (r *Registry) Get(name string) (PMU, error) {
	for _, p := range r.pmus {
		if strings.EqualFold(p.Name(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("pmu %s: %w", name, ErrNotSupported)
}

// All returns the registered PMUs in registration order.
func (r *Registry) All() []PMU {
	return append([]PMU(nil), r.pmus...)
}

// Detect returns the PMUs that claim the given processor.
func (r *Registry) Detect(cpu CPU) []PMU {
	var found []PMU
	for _, p := range r.pmus {
		if p.Detect(cpu) {
			found = append(found, p)
		}
	}
	return found
}

// ParseEvent resolves an optional "pmu::" prefix, falling back to the named
// default PMU, and parses the rest of the string against it.
func (r *Registry) ParseEvent(s string, fallback string, dflPLM PLM) (PMU, Descriptor, error) {
	name, _ := SplitPMUPrefix(s)
	if name == "" {
		name = fallback
	}
	p, err := r.Get(name)
	if err != nil {
		return nil, Descriptor{}, err
	}
	d, err := ParseEvent(p, s, dflPLM)
	if err != nil {
		return nil, Descriptor{}, err
	}
	return p, d, nil
}
