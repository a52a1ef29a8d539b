// Package common defines data structures and functions that are used by multiple
// application commands, e.g., encode, decode, list, validate, sample.
package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"pmutool/internal/report"
	"pmutool/internal/table"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var AppName = filepath.Base(os.Args[0])

// AppContext represents the application context that can be accessed from all commands.
type AppContext struct {
	Timestamp   string // Timestamp is the application start time, used to name output files.
	OutputDir   string // OutputDir is the directory where the application will write output files.
	LogFilePath string // LogFilePath is the path to the log file, empty when not logging to a file.
	Version     string // Version is the version of the application.
	Debug       bool   // Debug is true if the application is running in debug mode.
}

type Flag struct {
	Name string
	Help string
}
type FlagGroup struct {
	GroupName string
	Flags     []Flag
}

var FlagFormat []string

const FlagFormatName = "format"

// GetAppContext returns the context set on the root command by the
// persistent pre-run hook.
func GetAppContext(cmd *cobra.Command) AppContext {
	for c := cmd; c != nil; c = c.Parent() {
		if ctx := c.Context(); ctx != nil {
			if appContext, ok := ctx.Value(AppContext{}).(AppContext); ok {
				return appContext
			}
		}
	}
	return AppContext{}
}

// UsageFunc returns a cobra usage function that prints the command's flags
// in the given groups followed by the global flags.
func UsageFunc(groups func() []FlagGroup) func(*cobra.Command) error {
	return func(cmd *cobra.Command) error {
		cmd.Printf("Usage: %s\n\n", cmd.UseLine())
		if cmd.Example != "" {
			cmd.Printf("Examples:\n%s\n\n", cmd.Example)
		}
		cmd.Println("Flags:")
		for _, group := range groups() {
			cmd.Printf("  %s:\n", group.GroupName)
			for _, flag := range group.Flags {
				flagDefault := ""
				if f := cmd.Flags().Lookup(flag.Name); f != nil && f.DefValue != "" && f.DefValue != "[]" {
					flagDefault = fmt.Sprintf(" (default: %s)", f.DefValue)
				}
				cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
			}
		}
		if cmd.Parent() != nil {
			cmd.Println("\nGlobal Flags:")
			cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
				flagDefault := ""
				if pf.DefValue != "" {
					flagDefault = fmt.Sprintf(" (default: %s)", pf.DefValue)
				}
				cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
			})
		}
		return nil
	}
}

// FlagValidationError is used to report an error with a flag
func FlagValidationError(cmd *cobra.Command, msg string) error {
	err := errors.New(msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "See '%s --help' for usage details.\n", cmd.CommandPath())
	cmd.SilenceUsage = true
	return err
}

// CommandError reports err to the user and the log and returns it so cobra
// exits with a non-zero status.
func CommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	slog.Error(err.Error())
	cmd.SilenceUsage = true
	return err
}

// ValidateFormats checks the requested report formats and expands "all".
func ValidateFormats(formats []string) ([]string, error) {
	options := append([]string{report.FormatAll}, report.FormatOptions...)
	for _, format := range formats {
		if !slices.Contains(options, format) {
			return nil, fmt.Errorf("format options are: %s", strings.Join(options, ", "))
		}
	}
	if slices.Contains(formats, report.FormatAll) {
		return report.FormatOptions, nil
	}
	return formats, nil
}

// CreateOutputDir creates the output directory if it does not exist
func CreateOutputDir(outputDir string) error {
	err := os.MkdirAll(outputDir, 0755) // #nosec G301
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// WriteReports renders the tables in each format. A lone txt format is
// printed to stdout; every other format is written to <outputDir>/<name>.<format>.
func WriteReports(appContext AppContext, name string, allTableValues []table.TableValues, formats []string, summaryTableName string) ([]string, error) {
	if len(formats) == 1 && formats[0] == report.FormatTxt {
		reportBytes, err := report.Create(report.FormatTxt, allTableValues, summaryTableName)
		if err != nil {
			return nil, fmt.Errorf("failed to create report: %w", err)
		}
		fmt.Print(string(reportBytes))
		return nil, nil
	}
	return WriteReportFiles(appContext, name, allTableValues, formats, summaryTableName)
}

// WriteReportFiles writes the tables to <outputDir>/<name>.<format> for each format.
func WriteReportFiles(appContext AppContext, name string, allTableValues []table.TableValues, formats []string, summaryTableName string) ([]string, error) {
	var reportFilePaths []string
	for _, format := range formats {
		reportBytes, err := report.Create(format, allTableValues, summaryTableName)
		if err != nil {
			return nil, fmt.Errorf("failed to create report: %w", err)
		}
		if err := CreateOutputDir(appContext.OutputDir); err != nil {
			return nil, err
		}
		reportPath := filepath.Join(appContext.OutputDir, fmt.Sprintf("%s.%s", name, format))
		if err := writeReport(reportBytes, reportPath); err != nil {
			return nil, err
		}
		reportFilePaths = append(reportFilePaths, reportPath)
	}
	return reportFilePaths, nil
}

// writeReport writes the report bytes to the specified path.
func writeReport(reportBytes []byte, reportPath string) error {
	err := os.WriteFile(reportPath, reportBytes, 0644) // #nosec G306
	if err != nil {
		err = fmt.Errorf("failed to write report file: %v", err)
		slog.Error(err.Error())
		return err
	}
	return nil
}

// PrintReportPaths lists the written report files.
func PrintReportPaths(paths []string) {
	if len(paths) > 0 {
		fmt.Println("Report files:")
	}
	for _, reportFilePath := range paths {
		fmt.Printf("  %s\n", reportFilePath)
	}
}

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n uint64) string {
	return printer.Sprintf("%d", n)
}
