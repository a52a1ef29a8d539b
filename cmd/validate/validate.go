// Package validate is a subcommand of the root command. It checks event tables
// for structural defects.
package validate

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pmutool/internal/common"
	"pmutool/internal/pmu"
	"pmutool/internal/report"
	"pmutool/internal/table"

	"github.com/spf13/cobra"
)

const cmdName = "validate"

var examples = []string{
	fmt.Sprintf("  Validate the default PMU table:          $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Validate every built-in table:           $ %s %s --all", common.AppName, cmdName),
	fmt.Sprintf("  Validate an external table:              $ %s %s --eventfile mytable.yaml", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Check event tables for structural errors",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "events",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagAll    bool
	flagFormat []string
)

const flagAllName = "all"

func init() {
	Cmd.Flags().BoolVar(&flagAll, flagAllName, false, "")
	Cmd.Flags().StringSliceVar(&flagFormat, common.FlagFormatName, []string{report.FormatTxt}, "")
	common.AddPMUFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagAllName,
			Help: "validate every registered PMU, including one loaded with --eventfile",
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

func validateFlags(cmd *cobra.Command, args []string) error {
	var err error
	if flagAll && common.FlagPMU != "" {
		return common.FlagValidationError(cmd, fmt.Sprintf("--%s and --%s are mutually exclusive", flagAllName, common.FlagPMUName))
	}
	if common.FlagFormat, err = common.ValidateFormats(flagFormat); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return common.ValidatePMUFlags(cmd)
}

// Check validates each PMU. The returned error wraps pmu.ErrTableInvalid
// when any table has violations.
func Check(pmus []pmu.PMU) ([]table.TableValues, error) {
	summary := table.NewFields("PMU", "Events", "Errors")
	violations := table.NewFields("PMU", "Event", "Unit Mask", "Error")
	var errs []error
	for _, p := range pmus {
		found, err := pmu.CheckTable(p)
		if err != nil {
			errs = append(errs, err)
		}
		table.AppendRow(summary, p.Name(), strconv.Itoa(p.Table().Len()), strconv.Itoa(len(found)))
		for _, v := range found {
			table.AppendRow(violations, v.PMU, v.Event, v.UnitMask, v.Msg)
		}
	}
	tables := []table.TableValues{
		{
			TableDefinition: table.TableDefinition{Name: "Validation Summary", HasRows: true},
			Fields:          summary,
		},
		{
			TableDefinition: table.TableDefinition{Name: "Violations", HasRows: true, NoDataFound: "No errors found."},
			Fields:          violations,
		},
	}
	return tables, errors.Join(errs...)
}

func runCmd(cmd *cobra.Command, args []string) error {
	reg, p, err := common.PMUFromFlags()
	if err != nil {
		return common.CommandError(cmd, err)
	}
	pmus := []pmu.PMU{p}
	if flagAll {
		pmus = reg.All()
	} else if common.FlagEventFile != "" && common.FlagPMU == "" {
		// the loaded table was registered last
		all := reg.All()
		pmus = all[len(all)-1:]
	}
	tables, checkErr := Check(pmus)
	paths, err := common.WriteReports(common.GetAppContext(cmd), cmdName, tables, common.FlagFormat, "")
	if err != nil {
		return common.CommandError(cmd, err)
	}
	common.PrintReportPaths(paths)
	if checkErr != nil {
		return common.CommandError(cmd, checkErr)
	}
	return nil
}
