// Package encode is a subcommand of the root command. It encodes event strings
// into event select register values.
package encode

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"strings"

	"pmutool/internal/common"
	"pmutool/internal/intelx86"
	"pmutool/internal/pmu"
	"pmutool/internal/report"
	"pmutool/internal/table"

	"github.com/spf13/cobra"
)

const cmdName = "encode"

var examples = []string{
	fmt.Sprintf("  Encode an architectural event:          $ %s %s INSTRUCTION_RETIRED", common.AppName, cmdName),
	fmt.Sprintf("  Encode for user level only:             $ %s %s UNHALTED_CORE_CYCLES --plm u", common.AppName, cmdName),
	fmt.Sprintf("  Encode a Sandy Bridge load latency:     $ %s %s intel_snb::MEM_TRANS_RETIRED:LOAD_LATENCY:ldlat=3", common.AppName, cmdName),
	fmt.Sprintf("  Encode for the detected PMU:            $ %s %s RETIRED_INSTRUCTIONS --cpu-vendor AuthenticAMD --cpu-family 16 --cpu-model 4", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " EVENT...",
	Short:         "Encode event strings into event select register values",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "events",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
}

var (
	flagPLM    string
	flagFormat []string
)

const flagPLMName = "plm"

func init() {
	Cmd.Flags().StringVar(&flagPLM, flagPLMName, "k,u", "")
	Cmd.Flags().StringSliceVar(&flagFormat, common.FlagFormatName, []string{report.FormatTxt}, "")
	common.AddPMUFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagPLMName,
			Help: "default privilege levels, comma separated u and k, applied when the event string sets neither",
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

var defaultPLM pmu.PLM

func validateFlags(cmd *cobra.Command, args []string) error {
	var err error
	defaultPLM, err = pmu.ParsePLM(flagPLM)
	if err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if defaultPLM == 0 {
		return common.FlagValidationError(cmd, "at least one privilege level is required")
	}
	if common.FlagFormat, err = common.ValidateFormats(flagFormat); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return common.ValidatePMUFlags(cmd)
}

// Result is one encoded event string.
type Result struct {
	Input    string
	PMU      pmu.PMU
	Encoding pmu.Encoding
	PEBS     string
	Register string
}

// Encode parses s against reg, falling back to the PMU named fallback when
// s has no pmu:: prefix, and encodes it.
func Encode(reg *pmu.Registry, fallback string, s string, dflPLM pmu.PLM) (Result, error) {
	p, d, err := reg.ParseEvent(s, fallback, dflPLM)
	if err != nil {
		return Result{}, err
	}
	enc, err := p.Encode(d)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", s, err)
	}
	res := Result{Input: s, PMU: p, Encoding: enc, PEBS: "n/a"}
	if checker, ok := p.(pmu.PEBSChecker); ok {
		res.PEBS = fmt.Sprintf("%t", checker.SupportsPEBS(d))
	}
	if ip, ok := p.(*intelx86.PMU); ok {
		res.Register = intelx86.Register(enc.Codes[0]).Format(ip.ArchVersion())
	}
	slog.Debug("encoded event", slog.String("input", s), slog.String("pmu", p.Name()), slog.String("fstr", enc.Fstr))
	return res, nil
}

func formatCodes(codes []uint64) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = fmt.Sprintf("0x%x", c)
	}
	return strings.Join(s, " ")
}

// ResultsTable renders the results, one row per event.
func ResultsTable(results []Result) table.TableValues {
	fields := table.NewFields("PMU", "Codes", "Event", "PLM", "PEBS", "Register")
	for _, r := range results {
		table.AppendRow(fields, r.PMU.Name(), formatCodes(r.Encoding.Codes), r.Encoding.Fstr, r.Encoding.PLM.String(), r.PEBS, r.Register)
	}
	return table.TableValues{
		TableDefinition: table.TableDefinition{Name: "Encoded Events", HasRows: true},
		Fields:          fields,
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	reg, p, err := common.PMUFromFlags()
	if err != nil {
		return common.CommandError(cmd, err)
	}
	var results []Result
	for _, arg := range args {
		res, err := Encode(reg, p.Name(), arg, defaultPLM)
		if err != nil {
			return common.CommandError(cmd, err)
		}
		results = append(results, res)
	}
	appContext := common.GetAppContext(cmd)
	paths, err := common.WriteReports(appContext, cmdName, []table.TableValues{ResultsTable(results)}, common.FlagFormat, "")
	if err != nil {
		return common.CommandError(cmd, err)
	}
	common.PrintReportPaths(paths)
	return nil
}
