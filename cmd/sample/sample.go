// Package sample is a subcommand of the root command. It samples memory
// accesses with a load latency event and classifies them by data source.
package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pmutool/internal/common"
	"pmutool/internal/perfevent"
	"pmutool/internal/pmu"
	"pmutool/internal/progress"
	"pmutool/internal/report"
	"pmutool/internal/sample"
	"pmutool/internal/store"
	"pmutool/internal/util"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
)

const cmdName = "sample"

// DefaultEvent samples loads slower than 3 cycles on Sandy Bridge.
const DefaultEvent = "intel_snb::MEM_TRANS_RETIRED:LOAD_LATENCY:ldlat=3"

var examples = []string{
	fmt.Sprintf("  Sample a process for 10 seconds:             $ %s %s --pid 1234 --duration 10", common.AppName, cmdName),
	fmt.Sprintf("  Sample CPU 2 and store the samples:          $ %s %s --cpu 2 --duration 30 --db samples.db", common.AppName, cmdName),
	fmt.Sprintf("  Re-aggregate the latest stored run:          $ %s %s --input samples.db --format json", common.AppName, cmdName),
	fmt.Sprintf("  Expose live classification to Prometheus:    $ %s %s --pid 1234 --prometheus-server :9090", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Sample memory accesses and classify them by data source",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "sampling",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagPID        int
	flagCPU        int
	flagPeriod     uint64
	flagPages      int
	flagDuration   int
	flagEvents     []string
	flagPLM        string
	flagDB         string
	flagInput      string
	flagRun        int64
	flagMetricFile string
	flagNUMA       bool
	flagFormat     []string
	flagPromServer string
	flagInterval   int
)

const (
	flagPIDName        = "pid"
	flagCPUName        = "cpu"
	flagPeriodName     = "period"
	flagPagesName      = "pages"
	flagDurationName   = "duration"
	flagEventName      = "event"
	flagPLMName        = "plm"
	flagDBName         = "db"
	flagInputName      = "input"
	flagRunName        = "run"
	flagMetricFileName = "metricfile"
	flagNUMAName       = "numa"
	flagPromServerName = "prometheus-server"
	flagIntervalName   = "interval"
)

func init() {
	Cmd.Flags().IntVar(&flagPID, flagPIDName, -1, "")
	Cmd.Flags().IntVar(&flagCPU, flagCPUName, -1, "")
	Cmd.Flags().Uint64Var(&flagPeriod, flagPeriodName, perfevent.DefaultPeriod, "")
	Cmd.Flags().IntVar(&flagPages, flagPagesName, perfevent.DefaultPages, "")
	Cmd.Flags().IntVar(&flagDuration, flagDurationName, 0, "")
	Cmd.Flags().StringSliceVar(&flagEvents, flagEventName, []string{DefaultEvent}, "")
	Cmd.Flags().StringVar(&flagPLM, flagPLMName, "u", "")
	Cmd.Flags().StringVar(&flagDB, flagDBName, "", "")
	Cmd.Flags().StringVar(&flagInput, flagInputName, "", "")
	Cmd.Flags().Int64Var(&flagRun, flagRunName, 0, "")
	Cmd.Flags().StringVar(&flagMetricFile, flagMetricFileName, "", "")
	Cmd.Flags().BoolVar(&flagNUMA, flagNUMAName, false, "")
	Cmd.Flags().StringSliceVar(&flagFormat, common.FlagFormatName, nil, "")
	Cmd.Flags().StringVar(&flagPromServer, flagPromServerName, "", "")
	Cmd.Flags().IntVar(&flagInterval, flagIntervalName, 5, "")
	common.AddPMUFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	groups = append(groups, common.FlagGroup{
		GroupName: "Collection Options",
		Flags: []common.Flag{
			{Name: flagPIDName, Help: "process to sample, -1 samples every process on --cpu"},
			{Name: flagCPUName, Help: "CPU to sample, -1 follows --pid on any CPU"},
			{Name: flagEventName, Help: "event(s) to sample, [pmu::]EVENT[:UMASK...][:mod=val...]"},
			{Name: flagPLMName, Help: "default privilege levels, comma separated u and k"},
			{Name: flagPeriodName, Help: "events between samples"},
			{Name: flagPagesName, Help: "ring buffer data pages per event, a power of two"},
			{Name: flagDurationName, Help: "number of seconds to sample, 0 samples until interrupted"},
			{Name: flagDBName, Help: "SQLite database to store the samples in"},
			{Name: flagNUMAName, Help: "report the NUMA node of each address region, requires --pid"},
		},
	})
	groups = append(groups, common.FlagGroup{
		GroupName: "Analysis Options",
		Flags: []common.Flag{
			{Name: flagInputName, Help: "SQLite database to aggregate instead of sampling"},
			{Name: flagRunName, Help: "run to aggregate from --input, 0 is the latest"},
			{Name: flagMetricFileName, Help: "YAML file of derived metric definitions, replaces the built-in metrics"},
			{Name: common.FlagFormatName, Help: fmt.Sprintf("also write the report in format(s): %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", "))},
		},
	})
	groups = append(groups, common.FlagGroup{
		GroupName: "Prometheus Options",
		Flags: []common.Flag{
			{Name: flagPromServerName, Help: "address, e.g., :9090, to serve live class counts at /metrics"},
			{Name: flagIntervalName, Help: "seconds between Prometheus updates"},
		},
	})
	groups = append(groups, common.GetPMUFlagGroup())
	return groups
}

var defaultPLM pmu.PLM

func validateFlags(cmd *cobra.Command, args []string) error {
	var err error
	if flagInput != "" {
		for _, name := range []string{flagPIDName, flagCPUName, flagEventName, flagDBName, flagNUMAName, flagPromServerName, flagDurationName} {
			if cmd.Flags().Changed(name) {
				return common.FlagValidationError(cmd, fmt.Sprintf("--%s cannot be used with --%s", name, flagInputName))
			}
		}
		if flagInput, err = util.AbsPath(flagInput); err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		if !util.FileOrDirectoryExists(flagInput) {
			return common.FlagValidationError(cmd, fmt.Sprintf("input database %s does not exist", flagInput))
		}
	} else {
		if cmd.Flags().Changed(flagRunName) {
			return common.FlagValidationError(cmd, fmt.Sprintf("--%s requires --%s", flagRunName, flagInputName))
		}
		if flagPID < -1 || flagCPU < -1 {
			return common.FlagValidationError(cmd, fmt.Sprintf("--%s and --%s must be -1 or greater", flagPIDName, flagCPUName))
		}
		if flagPID == -1 && flagCPU == -1 {
			return common.FlagValidationError(cmd, fmt.Sprintf("--%s or --%s is required", flagPIDName, flagCPUName))
		}
		if flagNUMA && flagPID == -1 {
			return common.FlagValidationError(cmd, fmt.Sprintf("--%s requires --%s", flagNUMAName, flagPIDName))
		}
		if flagDuration < 0 {
			return common.FlagValidationError(cmd, "duration must be 0 or greater")
		}
		if flagPeriod == 0 {
			return common.FlagValidationError(cmd, "period must be greater than 0")
		}
		if flagPages <= 0 || flagPages&(flagPages-1) != 0 {
			return common.FlagValidationError(cmd, "pages must be a power of two")
		}
		if len(flagEvents) == 0 {
			return common.FlagValidationError(cmd, "at least one event is required")
		}
		if mapset.NewThreadUnsafeSet(flagEvents...).Cardinality() != len(flagEvents) {
			return common.FlagValidationError(cmd, "events must be unique")
		}
		if defaultPLM, err = pmu.ParsePLM(flagPLM); err != nil || defaultPLM == 0 {
			return common.FlagValidationError(cmd, fmt.Sprintf("invalid --%s %q", flagPLMName, flagPLM))
		}
		if flagPromServer != "" && flagInterval <= 0 {
			return common.FlagValidationError(cmd, "interval must be greater than 0")
		}
		if flagDB != "" {
			if flagDB, err = util.AbsPath(flagDB); err != nil {
				return common.FlagValidationError(cmd, err.Error())
			}
		}
	}
	if flagMetricFile != "" && !util.FileOrDirectoryExists(flagMetricFile) {
		return common.FlagValidationError(cmd, fmt.Sprintf("metric file %s does not exist", flagMetricFile))
	}
	if len(flagFormat) > 0 {
		if common.FlagFormat, err = common.ValidateFormats(flagFormat); err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
	} else {
		common.FlagFormat = nil
	}
	return common.ValidatePMUFlags(cmd)
}

// runInfo describes the run being reported.
type runInfo struct {
	PMU      string
	Events   []string
	Started  time.Time
	Duration time.Duration
	RunID    int64
}

func runCmd(cmd *cobra.Command, args []string) error {
	metrics := sample.DefaultMetrics()
	if flagMetricFile != "" {
		var err error
		if metrics, err = sample.LoadMetrics(flagMetricFile); err != nil {
			return common.CommandError(cmd, err)
		}
	}
	var agg *sample.Aggregator
	var info runInfo
	var err error
	if flagInput != "" {
		agg, info, err = loadRun(flagInput, flagRun)
	} else {
		agg, info, err = collect(cmd)
	}
	if err != nil {
		return common.CommandError(cmd, err)
	}
	var nodes []int
	if flagNUMA {
		nodes = regionNodes(flagPID, agg.Regions())
	}
	tables, err := buildTables(info, agg, metrics, nodes)
	if err != nil {
		return common.CommandError(cmd, err)
	}
	out, err := report.Create(report.FormatTxt, tables, "")
	if err != nil {
		return common.CommandError(cmd, err)
	}
	fmt.Print(string(out))
	appContext := common.GetAppContext(cmd)
	paths, err := common.WriteReportFiles(appContext, cmdName+"_"+appContext.Timestamp, tables, common.FlagFormat, TableNameSummary)
	if err != nil {
		return common.CommandError(cmd, err)
	}
	common.PrintReportPaths(paths)
	return nil
}

// loadRun re-aggregates a stored run, the latest one when runID is 0.
func loadRun(path string, runID int64) (*sample.Aggregator, runInfo, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, runInfo{}, err
	}
	defer db.Close()
	if runID == 0 {
		if runID, err = db.LatestRun(); err != nil {
			return nil, runInfo{}, err
		}
	}
	runs, err := db.Runs()
	if err != nil {
		return nil, runInfo{}, err
	}
	info := runInfo{RunID: runID}
	found := false
	for _, r := range runs {
		if r.ID == runID {
			info.PMU, info.Events, info.Started = r.PMU, r.Events, r.Started
			found = true
		}
	}
	if !found {
		return nil, runInfo{}, fmt.Errorf("run %d not found in %s", runID, path)
	}
	agg, err := db.Aggregate(runID)
	if err != nil {
		return nil, runInfo{}, err
	}
	slog.Info("aggregated stored run", slog.String("db", path), slog.Int64("run", runID), slog.Uint64("samples", agg.Stats().Total))
	return agg, info, nil
}

// collect samples the requested events until the duration elapses or a
// signal arrives, then classifies the drained buffers.
func collect(cmd *cobra.Command) (*sample.Aggregator, runInfo, error) {
	reg, p, err := common.PMUFromFlags()
	if err != nil {
		return nil, runInfo{}, err
	}
	info := runInfo{PMU: p.Name()}
	var encs []pmu.Encoding
	for _, ev := range flagEvents {
		evPMU, d, err := reg.ParseEvent(ev, p.Name(), defaultPLM)
		if err != nil {
			return nil, runInfo{}, err
		}
		enc, err := evPMU.Encode(d)
		if err != nil {
			return nil, runInfo{}, fmt.Errorf("%s: %w", ev, err)
		}
		if checker, ok := evPMU.(pmu.PEBSChecker); ok && !checker.SupportsPEBS(d) {
			slog.Warn("event does not support precise sampling, data source may be unavailable", slog.String("event", enc.Fstr))
		}
		info.PMU = evPMU.Name()
		encs = append(encs, enc)
		info.Events = append(info.Events, enc.Fstr)
	}
	session, err := perfevent.Open(encs, perfevent.Options{PID: flagPID, CPU: flagCPU, Period: flagPeriod, Pages: flagPages})
	if err != nil {
		return nil, runInfo{}, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Error("error closing sampling session", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if flagDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(flagDuration)*time.Second)
		defer cancel()
	}
	// handle signals
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChannel)
	go func() {
		select {
		case sig := <-sigChannel:
			slog.Info("received signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	// setup and start the progress indicator
	multiSpinner := progress.NewMultiSpinner()
	for _, ev := range session.Events() {
		if err := multiSpinner.AddSpinner(ev.Name); err != nil {
			return nil, runInfo{}, err
		}
	}
	multiSpinner.Start()
	go reportProgress(ctx, session, multiSpinner)
	if flagPromServer != "" {
		startPrometheusServer(flagPromServer)
		go updatePrometheusLoop(ctx, session.Log(), time.Duration(flagInterval)*time.Second)
	}

	info.Started = time.Now()
	slog.Info("sampling started", slog.String("pmu", info.PMU), slog.String("events", strings.Join(info.Events, ",")), slog.Int("pid", flagPID), slog.Int("cpu", flagCPU))
	runErr := session.Run(ctx)
	info.Duration = time.Since(info.Started)
	updateStatus(session, multiSpinner)
	multiSpinner.Finish()
	fmt.Fprintln(os.Stderr)
	if runErr != nil {
		return nil, runInfo{}, runErr
	}

	agg := sample.NewAggregator()
	if corrupt := agg.AddLog(session.Log()); corrupt > 0 {
		slog.Warn("abandoned corrupt sample buffers", slog.Int("count", corrupt))
	}
	if flagPromServer != "" {
		updatePrometheusMetrics(agg.Stats())
	}
	if flagDB != "" {
		if info.RunID, err = saveRun(flagDB, info, session.Log()); err != nil {
			return nil, runInfo{}, err
		}
	}
	return agg, info, nil
}

func saveRun(path string, info runInfo, log *sample.BufferLog) (int64, error) {
	db, err := store.Open(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	runID, err := db.NewRun(info.PMU, info.Events, info.Started)
	if err != nil {
		return 0, err
	}
	n, err := db.SaveLog(runID, log)
	if err != nil {
		return 0, err
	}
	slog.Info("stored samples", slog.String("db", path), slog.Int64("run", runID), slog.Int("samples", n))
	return runID, nil
}

// updateStatus shows the bytes drained per event.
func updateStatus(session *perfevent.Session, ms *progress.MultiSpinner) {
	events := session.Events()
	bytes := make([]uint64, len(events))
	buffers := make([]uint64, len(events))
	_ = session.Log().Each(func(b sample.Buffer) error {
		if b.Source >= 0 && b.Source < len(events) {
			bytes[b.Source] += uint64(len(b.Data))
			buffers[b.Source]++
		}
		return nil
	})
	for i, ev := range events {
		_ = ms.Status(ev.Name, fmt.Sprintf("%s bytes in %s buffers", common.FormatCount(bytes[i]), common.FormatCount(buffers[i])))
	}
}

func reportProgress(ctx context.Context, session *perfevent.Session, ms *progress.MultiSpinner) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateStatus(session, ms)
		}
	}
}

// regionNodes looks up the NUMA node of the first page of each region.
func regionNodes(pid int, regions []sample.Region) []int {
	starts := make([]uint64, len(regions))
	for i, r := range regions {
		starts[i] = r.Start
	}
	nodes, err := perfevent.QueryNodes(pid, starts)
	if err != nil {
		slog.Warn("failed to query NUMA nodes", slog.Int("pid", pid), slog.String("error", err.Error()))
		return nil
	}
	return nodes
}
