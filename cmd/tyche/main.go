package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rgehrsitz/tyche/internal/config"
	"github.com/rgehrsitz/tyche/internal/design"
	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/logging"
	"github.com/rgehrsitz/tyche/internal/output"
	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/transform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tyche",
	Short: "Technology portfolio evaluation and optimization",
	Long: "Evaluate uncertain technology designs under R&D investment tranches, " +
		"optimize portfolios with epsilon constraints and explore them interactively",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tyche %s (commit %s, built %s)\n", version, commit, date)
		if info := buildInfo(); info != "" {
			fmt.Fprintln(cmd.OutOrStdout(), info)
		}
	},
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.Main.Path + " " + bi.GoVersion
	}
	return ""
}

var validateCmd = &cobra.Command{
	Use:   "validate [design-file]",
	Short: "Validate and compile a design file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, compiled, err := config.NewInputParser().LoadAndCompile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Design %s is valid: %d technologies, %d categories, %d metrics\n",
			compiled.Name(), len(compiled.Technologies()), len(compiled.Categories()), len(compiled.Metrics()))
		return nil
	},
}

// app carries what every analysis command needs
type app struct {
	settings config.Settings
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
}

// setup loads settings and builds the logger from the persistent flags
func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		settings.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("samples") {
		settings.SampleCount, _ = cmd.Flags().GetInt("samples")
	}
	if cmd.Flags().Changed("seed") {
		settings.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := logging.New(logging.FromSettings(settings.Log))
	return &app{settings: settings, logger: logger, sugar: logger.Sugar()}, nil
}

func (a *app) close() {
	logging.Sync(a.logger)
}

// sessionOptions maps the settings onto a session configuration
func (a *app) sessionOptions() session.Options {
	evalCfg := a.settings.EvaluationConfig()
	evalCfg.Logger = a.sugar
	optOpts := a.settings.OptimizerOptions()
	optOpts.Logger = a.sugar
	return session.Options{
		SampleCount: a.settings.SampleCount,
		Evaluation:  evalCfg,
		Optimizer:   optOpts,
		Logger:      a.sugar,
	}
}

// loadDesign reads the design named on the command line, applies the --transform
// specs in order and compiles the result
func (a *app) loadDesign(cmd *cobra.Command, path string) (*design.Compiled, error) {
	d, err := config.NewInputParser().LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	specs, _ := cmd.Flags().GetStringArray("transform")
	if len(specs) > 0 {
		transforms, err := transform.NewTransformRegistry().ParseAll(specs)
		if err != nil {
			return nil, err
		}
		if d, err = transform.ApplyTransforms(d, transforms); err != nil {
			return nil, err
		}
		for _, t := range transforms {
			a.sugar.Infof("applied transform: %s", t.Description())
		}
	}

	compiled, err := design.Compile(d)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	a.sugar.Debugf("loaded design %s from %s", compiled.Name(), path)
	return compiled, nil
}

// signalContext is cancelled on interrupt so long optimizations stop cleanly
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// writeReport formats the report with the --format flag to stdout or the --output file
func writeReport(cmd *cobra.Command, report *output.Report) error {
	format, _ := cmd.Flags().GetString("format")
	formatter, err := output.FormatterFor(format)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return output.WriteFormatted(w, formatter, report)
}

// parseAmounts reads category=amount pairs
func parseAmounts(pairs map[string]string) (domain.Investment, error) {
	out := make(domain.Investment, len(pairs))
	for category, text := range pairs {
		v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(text), "$"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q for category %s", text, category)
		}
		out[category] = v
	}
	return out, nil
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "table", "Output format (table, csv, json)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Settings file (default tyche.yaml in . or the user config dir)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntP("samples", "n", 100, "Monte Carlo sample count")
	rootCmd.PersistentFlags().Uint64("seed", 1, "Random seed for parameter draws")
	rootCmd.PersistentFlags().StringArray("transform", nil,
		"What-if change applied before compiling, e.g. 'scale_tranche_costs:factor=0.5' (repeatable)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(frontierCmd)
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exploreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
