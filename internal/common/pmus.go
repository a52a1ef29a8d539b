package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"

	"pmutool/internal/amd64"
	"pmutool/internal/intelx86"
	"pmutool/internal/pmu"
	"pmutool/internal/util"

	"github.com/spf13/cobra"
)

// DefaultPMUName is used when neither --pmu nor a CPU identity selects one.
const DefaultPMUName = "intel_x86_arch"

const (
	FlagPMUName       = "pmu"
	FlagEventFileName = "eventfile"
	FlagCPUVendorName = "cpu-vendor"
	FlagCPUFamilyName = "cpu-family"
	FlagCPUModelName  = "cpu-model"
)

var (
	FlagPMU       string
	FlagEventFile string
	FlagCPUVendor string
	FlagCPUFamily int
	FlagCPUModel  int
)

// AddPMUFlags adds the PMU selection flags to cmd.
func AddPMUFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&FlagPMU, FlagPMUName, "", "")
	cmd.Flags().StringVar(&FlagEventFile, FlagEventFileName, "", "")
	cmd.Flags().StringVar(&FlagCPUVendor, FlagCPUVendorName, "", "")
	cmd.Flags().IntVar(&FlagCPUFamily, FlagCPUFamilyName, 0, "")
	cmd.Flags().IntVar(&FlagCPUModel, FlagCPUModelName, 0, "")
}

// GetPMUFlagGroup returns the help for the PMU selection flags.
func GetPMUFlagGroup() FlagGroup {
	return FlagGroup{
		GroupName: "PMU Options",
		Flags: []Flag{
			{Name: FlagPMUName, Help: fmt.Sprintf("PMU to use, e.g., intel_snb, amd64_fam10h_barcelona (default: detected from --cpu-*, else %s)", DefaultPMUName)},
			{Name: FlagEventFileName, Help: "YAML event table to load as an additional Intel PMU"},
			{Name: FlagCPUVendorName, Help: "CPU vendor string for PMU detection, e.g., GenuineIntel, AuthenticAMD"},
			{Name: FlagCPUFamilyName, Help: "CPU family for PMU detection"},
			{Name: FlagCPUModelName, Help: "CPU model for PMU detection"},
		},
	}
}

// ValidatePMUFlags checks the PMU selection flags.
func ValidatePMUFlags(cmd *cobra.Command) error {
	if FlagEventFile != "" {
		path, err := util.AbsPath(FlagEventFile)
		if err != nil {
			return FlagValidationError(cmd, fmt.Sprintf("failed to expand event file path: %v", err))
		}
		if !util.FileOrDirectoryExists(path) {
			return FlagValidationError(cmd, fmt.Sprintf("event file %s does not exist", FlagEventFile))
		}
		FlagEventFile = path
	}
	if FlagCPUFamily < 0 || FlagCPUModel < 0 {
		return FlagValidationError(cmd, "cpu family and model must be non-negative")
	}
	if (cmd.Flags().Changed(FlagCPUFamilyName) || cmd.Flags().Changed(FlagCPUModelName)) && FlagCPUVendor == "" {
		return FlagValidationError(cmd, fmt.Sprintf("--%s is required with --%s and --%s", FlagCPUVendorName, FlagCPUFamilyName, FlagCPUModelName))
	}
	return nil
}

// NewRegistry builds the registry of built-in PMUs plus, when eventFile is
// set, an Intel PMU over the externally loaded table.
func NewRegistry(eventFile string) (*pmu.Registry, error) {
	arch, err := intelx86.NewArch()
	if err != nil {
		return nil, err
	}
	snb, err := intelx86.NewSandyBridge()
	if err != nil {
		return nil, err
	}
	reg, err := pmu.NewRegistry(arch, snb)
	if err != nil {
		return nil, err
	}
	amdPMUs, err := amd64.NewAll()
	if err != nil {
		return nil, err
	}
	for _, p := range amdPMUs {
		if err := reg.Add(p); err != nil {
			return nil, err
		}
	}
	if eventFile != "" {
		doc, err := pmu.LoadTable(eventFile)
		if err != nil {
			return nil, err
		}
		p, err := intelx86.FromTable(doc, 3)
		if err != nil {
			return nil, fmt.Errorf("event file %s: %w", eventFile, err)
		}
		if err := reg.Add(p); err != nil {
			return nil, err
		}
		slog.Info("loaded event table", slog.String("file", eventFile), slog.String("pmu", p.Name()), slog.Int("events", p.Table().Len()))
	}
	return reg, nil
}

// SelectPMU returns the PMU named by name. Without a name, the most specific
// PMU claiming cpu is used, and failing that the default PMU.
func SelectPMU(reg *pmu.Registry, name string, cpu pmu.CPU) (pmu.PMU, error) {
	if name != "" {
		return reg.Get(name)
	}
	if cpu.Vendor != "" {
		detected := reg.Detect(cpu)
		if len(detected) == 0 {
			return nil, fmt.Errorf("no pmu for %s family %d model %d: %w", cpu.Vendor, cpu.Family, cpu.Model, pmu.ErrNotSupported)
		}
		p := detected[len(detected)-1]
		slog.Debug("detected pmu", slog.String("pmu", p.Name()), slog.String("vendor", cpu.Vendor), slog.Int("family", cpu.Family), slog.Int("model", cpu.Model))
		return p, nil
	}
	return reg.Get(DefaultPMUName)
}

// PMUFromFlags builds the registry and selects the PMU per the PMU flags.
func PMUFromFlags() (*pmu.Registry, pmu.PMU, error) {
	reg, err := NewRegistry(FlagEventFile)
	if err != nil {
		return nil, nil, err
	}
	p, err := SelectPMU(reg, FlagPMU, pmu.CPU{Vendor: FlagCPUVendor, Family: FlagCPUFamily, Model: FlagCPUModel})
	if err != nil {
		return nil, nil, err
	}
	return reg, p, nil
}
