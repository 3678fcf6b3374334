// Package main provides the CLI entry point for dumpfilter.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canectors/dumpfilter/internal/cli"
	"github.com/canectors/dumpfilter/internal/config"
	"github.com/canectors/dumpfilter/internal/factory"
	"github.com/canectors/dumpfilter/internal/logger"
	"github.com/canectors/dumpfilter/internal/metrics"
	"github.com/canectors/dumpfilter/internal/runtime"
	"github.com/canectors/dumpfilter/pkg/dump"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// app holds the flags and streams of one CLI invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string

	// Run command flags
	configPath  string
	inputPath   string
	outputPath  string
	metricsFile string
	dryRun      bool

	exitCode int
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return ExitRuntimeError
	}
	return a.exitCode
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dumpfilter",
		Short: "dumpfilter - Filter SQL dumps line by line",
		Long: `dumpfilter filters a SQL dump file line by line.

Without arguments it reads rodovias_sp_full.sql, keeps every line except
the INSERT statements for public.rodovias and public.segmento_rodovia that
do not mention 'SP', and writes the result to rodovias_sp_filtered.sql.

Jobs can also be described in a JSON or YAML file and run through the
Input → Filter → Output pipeline.

Examples:
  # Filter with the built-in job
  dumpfilter

  # Run a job file against other files
  dumpfilter run --config job.yaml --input dump.sql.gz --output sp.sql

  # Validate a job file
  dumpfilter validate job.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.configureLogging()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			logger.CloseLogFile()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			a.runJob(cmd.Context())
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <job-file>",
		Short: "Validate a job file",
		Long: `Validate a job file against the schema.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Job file is valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid JSON/YAML syntax)`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			a.runValidate(args[0])
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a filter job",
		Long: `Run a filter job.

Without --config the built-in job is used. --input and --output override
the file paths of the job.

Flags:
  --dry-run   Filter the document and preview the output without writing it

Exit codes:
  0 - Job executed successfully
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			a.runJob(cmd.Context())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "Version: %s\n", version)
			fmt.Fprintf(a.stdout, "Commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "Build Date: %s\n", buildDate)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "Log format: json or human")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also write JSON logs to this file")

	// Run command flags
	runCmd.Flags().StringVarP(&a.configPath, "config", "c", "", "Job file (JSON or YAML)")
	runCmd.Flags().StringVarP(&a.inputPath, "input", "i", "", "Source dump path")
	runCmd.Flags().StringVarP(&a.outputPath, "output", "o", "", "Filtered dump path")
	runCmd.Flags().StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	runCmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Preview the output without writing it")

	rootCmd.AddCommand(validateCmd, runCmd, versionCmd)
	return rootCmd
}

// configureLogging applies the global logging flags.
func (a *app) configureLogging() error {
	format, err := logger.ParseFormat(a.logFormat)
	if err != nil {
		return err
	}

	lvl := slog.LevelInfo
	if a.verbose {
		lvl = slog.LevelDebug
	} else if a.quiet {
		lvl = slog.LevelError
	}

	logger.SetOutput(a.stderr)
	logger.SetLevelAndFormat(lvl, format)

	if a.logFile != "" {
		if err := logger.SetLogFile(a.logFile); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runValidate(path string) {
	if !a.quiet {
		fmt.Fprintf(a.stdout, "Validating job file: %s\n", path)
	}

	result := config.ParseConfig(path)

	if len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(a.stderr, result.ParseErrors, a.verbose)
		a.exitCode = ExitParseError
		return
	}

	if len(result.ValidationErrors) > 0 {
		cli.PrintValidationErrors(a.stderr, result.ValidationErrors, a.verbose, a.quiet)
		a.exitCode = ExitValidationError
		return
	}

	if !a.quiet {
		fmt.Fprintf(a.stdout, "✓ Job file is valid (format: %s)\n", result.Format)
		if a.verbose {
			cli.PrintJobSummary(a.stdout, result.Data)
		}
	}
	a.exitCode = ExitSuccess
}

// loadJob returns the job to run: the job file when --config is set, the
// built-in job otherwise. Path flags are applied on top.
func (a *app) loadJob() (*dump.Job, int) {
	job := config.DefaultJob()

	if a.configPath != "" {
		result := config.ParseConfig(a.configPath)
		if len(result.ParseErrors) > 0 {
			cli.PrintParseErrors(a.stderr, result.ParseErrors, a.verbose)
			return nil, ExitParseError
		}
		if len(result.ValidationErrors) > 0 {
			cli.PrintValidationErrors(a.stderr, result.ValidationErrors, a.verbose, a.quiet)
			return nil, ExitValidationError
		}

		converted, err := config.ConvertToJob(result.Data)
		if err != nil {
			fmt.Fprintf(a.stderr, "✗ Failed to convert job file: %v\n", err)
			return nil, ExitValidationError
		}
		job = converted
	}

	config.OverridePaths(job, a.inputPath, a.outputPath)
	return job, ExitSuccess
}

func (a *app) runJob(ctx context.Context) {
	job, code := a.loadJob()
	if code != ExitSuccess {
		a.exitCode = code
		return
	}

	logger.Debug("job loaded",
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.Int("filter_count", len(job.Filters)),
	)

	modules, err := factory.CreateJobModules(job)
	if err != nil {
		fmt.Fprintf(a.stderr, "✗ Failed to create modules: %v\n", err)
		a.exitCode = ExitValidationError
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := runtime.NewExecutorWithModules(modules.Input, modules.Filters, modules.Output, a.dryRun)
	result, err := executor.ExecuteWithContext(ctx, job)

	a.writeMetrics(result)
	cli.PrintExecutionResult(a.stdout, a.stderr, result, err, cli.OutputOptions{
		Verbose: a.verbose,
		Quiet:   a.quiet,
		DryRun:  a.dryRun,
	})

	if err != nil {
		a.exitCode = ExitRuntimeError
		return
	}
	a.exitCode = ExitSuccess
}

// writeMetrics exports the run counters when --metrics-file is set.
// A failed export is logged and does not change the exit code.
func (a *app) writeMetrics(result *dump.ExecutionResult) {
	if a.metricsFile == "" || result == nil {
		return
	}
	m := metrics.New()
	m.Record(result)
	if err := m.WriteTextfile(a.metricsFile); err != nil {
		logger.Warn("failed to write metrics",
			slog.String("path", a.metricsFile),
			slog.String("error", err.Error()),
		)
	}
}
