// Package list is a subcommand of the root command. It lists the events and
// unit masks of a PMU.
package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"pmutool/internal/common"
	"pmutool/internal/pmu"
	"pmutool/internal/report"
	"pmutool/internal/table"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
)

const cmdName = "list"

var examples = []string{
	fmt.Sprintf("  List the architectural events:             $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  List Sandy Bridge memory events:           $ %s %s --pmu intel_snb --filter '^MEM_'", common.AppName, cmdName),
	fmt.Sprintf("  Write the AMD Barcelona events to xlsx:    $ %s %s --pmu amd64_fam10h_barcelona --format xlsx", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List the events and unit masks of a PMU",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "events",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagFilter []string
	flagFormat []string
)

const flagFilterName = "filter"

const (
	TableNamePMU    = "PMU"
	TableNameEvents = "Events"
)

func init() {
	Cmd.Flags().StringSliceVar(&flagFilter, flagFilterName, nil, "")
	Cmd.Flags().StringSliceVar(&flagFormat, common.FlagFormatName, []string{report.FormatTxt}, "")
	common.AddPMUFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagFilterName,
			Help: "case insensitive regular expression(s) matched against event names, events matching any are listed",
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

var filters []*regexp.Regexp

func validateFlags(cmd *cobra.Command, args []string) error {
	var err error
	filters, err = compileFilters(flagFilter)
	if err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if common.FlagFormat, err = common.ValidateFormats(flagFormat); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return common.ValidatePMUFlags(cmd)
}

func compileFilters(exprs []string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: %v", flagFilterName, expr, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// iterator is implemented by PMUs with first/next event enumeration.
type iterator interface {
	First() int
	Next(idx int) int
}

// eventIndexes returns the event indexes of p in table order.
func eventIndexes(p pmu.PMU) []int {
	var idx []int
	if it, ok := p.(iterator); ok {
		for i := it.First(); i != -1; i = it.Next(i) {
			idx = append(idx, i)
		}
		return idx
	}
	for i := range p.Table().Len() {
		idx = append(idx, i)
	}
	return idx
}

// MatchingEvents returns the names of the events of p matched by any filter,
// or every event name without filters.
func MatchingEvents(p pmu.PMU, filters []*regexp.Regexp) mapset.Set[string] {
	names := mapset.NewThreadUnsafeSet[string]()
	for _, i := range eventIndexes(p) {
		name := p.Table().Event(i).Name
		if len(filters) == 0 {
			names.Add(name)
			continue
		}
		for _, re := range filters {
			if re.MatchString(name) {
				names.Add(name)
				break
			}
		}
	}
	return names
}

func hex(v uint64) string { return fmt.Sprintf("0x%x", v) }

// EventsTable lists each selected event followed by its unit masks.
func EventsTable(p pmu.PMU, names mapset.Set[string]) table.TableValues {
	fields := table.NewFields("Event", "Code", "Counters", "Unit Mask", "Umask Code", "Flags", "Modifiers", "Description")
	for _, i := range eventIndexes(p) {
		ev := p.Table().Event(i)
		if !names.Contains(ev.Name) {
			continue
		}
		table.AppendRow(fields, ev.Name, hex(ev.Code), hex(ev.CntMsk), "", "", ev.Flags.String(), ev.ModMsk.String(), ev.Desc)
		for _, um := range ev.Masks() {
			table.AppendRow(fields, ev.Name, "", "", um.Name, hex(um.Code), um.Flags.String(), um.ModHW.String(), um.Desc)
		}
	}
	return table.TableValues{
		TableDefinition: table.TableDefinition{
			Name:        TableNameEvents,
			HasRows:     true,
			NoDataFound: "No matching events.",
		},
		Fields: fields,
	}
}

// PMUTable summarizes p.
func PMUTable(p pmu.PMU, listed int) table.TableValues {
	var mods []string
	for _, info := range p.Modifiers() {
		mods = append(mods, info.Name)
	}
	return table.TableValues{
		TableDefinition: table.TableDefinition{Name: TableNamePMU},
		Fields: []table.Field{
			{Name: "Name", Values: []string{p.Name()}},
			{Name: "Description", Values: []string{p.Description()}},
			{Name: "Events", Values: []string{strconv.Itoa(p.Table().Len())}},
			{Name: "Listed", Values: []string{strconv.Itoa(listed)}},
			{Name: "Modifiers", Values: []string{strings.Join(mods, ",")}},
		},
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	_, p, err := common.PMUFromFlags()
	if err != nil {
		return common.CommandError(cmd, err)
	}
	names := MatchingEvents(p, filters)
	tables := []table.TableValues{PMUTable(p, names.Cardinality()), EventsTable(p, names)}
	paths, err := common.WriteReports(common.GetAppContext(cmd), cmdName+"_"+p.Name(), tables, common.FlagFormat, TableNamePMU)
	if err != nil {
		return common.CommandError(cmd, err)
	}
	common.PrintReportPaths(paths)
	return nil
}
