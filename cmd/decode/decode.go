// Package decode is a subcommand of the root command. It decodes event select
// register values, given on the command line or read from the MSRs of a CPU,
// back into canonical event strings.
package decode

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"pmutool/internal/common"
	"pmutool/internal/msr"
	"pmutool/internal/pmu"
	"pmutool/internal/report"
	"pmutool/internal/table"
	"pmutool/internal/util"

	"github.com/spf13/cobra"
)

const cmdName = "decode"

var examples = []string{
	fmt.Sprintf("  Decode a register value:                   $ %s %s 0x5300c0", common.AppName, cmdName),
	fmt.Sprintf("  Decode with the Sandy Bridge table:        $ %s %s 0x5101cd --pmu intel_snb", common.AppName, cmdName),
	fmt.Sprintf("  Decode the live counters of CPUs 0 to 3:   $ %s %s --msr --cpu 0-3", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [REGISTER...]",
	Short:         "Decode event select register values into event strings",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "events",
	SilenceErrors: true,
}

var (
	flagMSR    bool
	flagCPU    string
	flagFormat []string
)

const (
	flagMSRName = "msr"
	flagCPUName = "cpu"
)

func init() {
	Cmd.Flags().BoolVar(&flagMSR, flagMSRName, false, "")
	Cmd.Flags().StringVar(&flagCPU, flagCPUName, "0", "")
	Cmd.Flags().StringSliceVar(&flagFormat, common.FlagFormatName, []string{report.FormatTxt}, "")
	common.AddPMUFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagMSRName,
			Help: fmt.Sprintf("read IA32_PERFEVTSEL0-%d through %s and decode the enabled ones", msr.NumPerfEvtSel-1, msr.DevicePath),
		},
		{
			Name: flagCPUName,
			Help: "CPU(s) to read with --msr, e.g., 0, 0-3, 0,2,4-7",
		},
		{
			Name: common.FlagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Options",
		Flags:     flags,
	})
	groups = append(groups, common.GetPMUFlagGroup())
	return groups
}

var (
	registers []uint64
	cpus      []int
)

func validateFlags(cmd *cobra.Command, args []string) error {
	var err error
	if flagMSR && len(args) > 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("register values and --%s are mutually exclusive", flagMSRName))
	}
	if !flagMSR && len(args) == 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("at least one register value or --%s is required", flagMSRName))
	}
	if cmd.Flags().Changed(flagCPUName) && !flagMSR {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s requires --%s", flagCPUName, flagMSRName))
	}
	registers = nil
	for _, arg := range args {
		v, err := util.ParseRegisterValue(arg)
		if err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		registers = append(registers, v)
	}
	if flagMSR {
		if cpus, err = util.SelectiveIntRangeToIntList(flagCPU); err != nil {
			return common.FlagValidationError(cmd, fmt.Sprintf("invalid --%s: %v", flagCPUName, err))
		}
	}
	if common.FlagFormat, err = common.ValidateFormats(flagFormat); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return common.ValidatePMUFlags(cmd)
}

// DecodeRegisters describes each register value with p.
func DecodeRegisters(p pmu.PMU, values []uint64) (table.TableValues, error) {
	fields := table.NewFields("Register", "Event")
	for _, v := range values {
		s, err := p.Describe(v)
		if err != nil {
			return table.TableValues{}, err
		}
		table.AppendRow(fields, fmt.Sprintf("0x%x", v), s)
	}
	return table.TableValues{
		TableDefinition: table.TableDefinition{Name: "Decoded Registers", HasRows: true},
		Fields:          fields,
	}, nil
}

// MSROpener opens the msr reader of one CPU.
type MSROpener func(cpu int) (*msr.Reader, error)

func openDeviceMSR(cpu int) (*msr.Reader, error) { return msr.Open(msr.DevicePath, cpu) }

// DecodeMSRs reads the event select registers of each CPU and describes the
// enabled ones. Registers that match no event are reported, not fatal.
func DecodeMSRs(p pmu.PMU, open MSROpener, cpus []int) (table.TableValues, error) {
	slog.Debug("reading event select msrs", slog.String("cpus", strings.Join(util.IntSliceToStringSlice(cpus), ",")))
	fields := table.NewFields("CPU", "MSR", "Register", "Event")
	for _, cpu := range cpus {
		reader, err := open(cpu)
		if err != nil {
			return table.TableValues{}, err
		}
		sels, err := reader.ReadEventSelects()
		_ = reader.Close()
		if err != nil {
			return table.TableValues{}, err
		}
		for _, sel := range sels {
			if !sel.Enabled() {
				continue
			}
			s, err := p.Describe(sel.Value)
			if err != nil {
				slog.Warn("failed to decode event select", slog.Int("cpu", cpu), slog.Int("index", sel.Index), slog.String("error", err.Error()))
				s = "unknown"
			}
			table.AppendRow(fields, strconv.Itoa(cpu), fmt.Sprintf("0x%x", msr.PerfEvtSel0+sel.Index), fmt.Sprintf("0x%x", sel.Value), s)
		}
	}
	return table.TableValues{
		TableDefinition: table.TableDefinition{
			Name:        "Event Select MSRs",
			HasRows:     true,
			NoDataFound: "No enabled event select registers.",
		},
		Fields: fields,
	}, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	_, p, err := common.PMUFromFlags()
	if err != nil {
		return common.CommandError(cmd, err)
	}
	var tv table.TableValues
	if flagMSR {
		tv, err = DecodeMSRs(p, openDeviceMSR, cpus)
	} else {
		tv, err = DecodeRegisters(p, registers)
	}
	if err != nil {
		return common.CommandError(cmd, err)
	}
	paths, err := common.WriteReports(common.GetAppContext(cmd), cmdName, []table.TableValues{tv}, common.FlagFormat, "")
	if err != nil {
		return common.CommandError(cmd, err)
	}
	common.PrintReportPaths(paths)
	return nil
}
