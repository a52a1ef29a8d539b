// Package cmd provides the command line interface for the application.
package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"pmutool/cmd/decode"
	"pmutool/cmd/encode"
	"pmutool/cmd/list"
	"pmutool/cmd/sample"
	"pmutool/cmd/validate"
	"pmutool/internal/common"
	"pmutool/internal/util"

	"github.com/spf13/cobra"
)

var gVersion = "9.9.9" // set with -ldflags "-X pmutool/cmd.gVersion=..."

// LongAppName is the name of the application
const LongAppName = "PMU Tool"

var examples = []string{
	fmt.Sprintf("  Encode an event for user space:           $ %s encode INSTRUCTION_RETIRED --plm u", common.AppName),
	fmt.Sprintf("  Decode a PERFEVTSEL value:                $ %s decode 0x5300c0", common.AppName),
	fmt.Sprintf("  Decode the live event selects of CPU 0:   $ %s decode --msr --cpu 0", common.AppName),
	fmt.Sprintf("  List the events of a PMU:                 $ %s list --pmu intel_snb", common.AppName),
	fmt.Sprintf("  Validate all built-in event tables:       $ %s validate --all", common.AppName),
	fmt.Sprintf("  Classify memory accesses of a process:    $ %s sample --pid 1234 --duration 10", common.AppName),
}

var rootCmd = &cobra.Command{
	Use:                common.AppName,
	Short:              common.AppName,
	Long:               fmt.Sprintf(`%s (%s) encodes, decodes and validates x86 performance monitoring events and classifies sampled memory accesses by data source.`, LongAppName, common.AppName),
	Example:            strings.Join(examples, "\n"),
	PersistentPreRunE:  initializeApplication,
	PersistentPostRunE: terminateApplication,
	Version:            gVersion,
}

var (
	flagDebug     bool
	flagSyslog    bool
	flagLogStdOut bool
	flagOutputDir string
)

const (
	flagDebugName     = "debug"
	flagSyslogName    = "syslog"
	flagLogStdOutName = "log-stdout"
	flagOutputDirName = "output"
)

// command groups, referenced by GroupID in the subcommands
const (
	groupEvents   = "events"
	groupSampling = "sampling"
)

// started is set once logging is configured; the shutdown line reports the
// run time from it.
var started time.Time

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command] [flags]{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) .IsAvailableCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}

Use "{{.CommandPath}} [command] --help" for the flags of a command.{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`

func init() {
	rootCmd.SetUsageTemplate(usageTemplate)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddGroup(
		&cobra.Group{ID: groupEvents, Title: "Event Commands:"},
		&cobra.Group{ID: groupSampling, Title: "Sampling Commands:"},
	)
	rootCmd.AddCommand(encode.Cmd, decode.Cmd, list.Cmd, validate.Cmd, sample.Cmd)

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&flagDebug, flagDebugName, false, "enable debug logging, with source locations")
	flags.BoolVar(&flagSyslog, flagSyslogName, false, "write logs to syslog instead of "+logFileName())
	flags.BoolVar(&flagLogStdOut, flagLogStdOutName, false, "write JSON logs to stdout instead of "+logFileName())
	flags.StringVar(&flagOutputDir, flagOutputDirName, "", "existing directory for report files (default: ./"+common.AppName+"_<timestamp>)")
	rootCmd.MarkFlagsMutuallyExclusive(flagSyslogName, flagLogStdOutName)
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	cobra.EnableCommandSorting = false
	cobra.EnableCaseInsensitive = true
	if err := rootCmd.Execute(); err != nil {
		if err := terminateApplication(rootCmd, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// initializeApplication configures logging and stores the AppContext on the
// root command before any subcommand runs.
func initializeApplication(cmd *cobra.Command, args []string) error {
	now := time.Now().Local()
	timestamp := now.Format("2006-01-02_15-04-05")
	outputDir, err := resolveOutputDir(flagOutputDir, timestamp)
	if err != nil {
		return common.CommandError(cmd, err)
	}
	handler, logFile, err := newLogHandler(logOptions{debug: flagDebug, syslog: flagSyslog, stdout: flagLogStdOut})
	if err != nil {
		return common.CommandError(cmd, err)
	}
	gLogFile = logFile
	slog.SetDefault(slog.New(handler))
	started = now
	slog.Info("starting",
		slog.String("app", common.AppName),
		slog.String("version", gVersion),
		slog.String("command", cmd.Name()),
		slog.Int("pid", os.Getpid()),
		slog.String("args", strings.Join(os.Args[1:], " ")),
		slog.String("output", outputDir))

	var logFilePath string
	if gLogFile != nil {
		logFilePath = gLogFile.Name()
	}
	cmd.Root().SetContext(context.WithValue(context.Background(), common.AppContext{}, common.AppContext{
		Timestamp:   timestamp,
		OutputDir:   outputDir,
		LogFilePath: logFilePath,
		Version:     gVersion,
		Debug:       flagDebug,
	}))
	return nil
}

// resolveOutputDir returns the absolute output directory. A requested
// directory must exist; the default one is created only when reports are
// written.
func resolveOutputDir(requested, timestamp string) (string, error) {
	if requested == "" {
		return util.AbsPath(common.AppName + "_" + timestamp)
	}
	dir, err := util.AbsPath(requested)
	if err != nil {
		return "", fmt.Errorf("failed to expand output directory %s: %w", requested, err)
	}
	if !util.FileOrDirectoryExists(dir) {
		return "", fmt.Errorf("output directory %s does not exist", dir)
	}
	return dir, nil
}

// terminateApplication logs the run time and closes the log file. It does
// nothing when logging was never configured or was already shut down.
func terminateApplication(cmd *cobra.Command, args []string) error {
	if started.IsZero() {
		return nil
	}
	slog.Info("shutting down",
		slog.String("app", common.AppName),
		slog.String("command", cmd.Name()),
		slog.Int("pid", os.Getpid()),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	started = time.Time{}
	return closeLogFile()
}
