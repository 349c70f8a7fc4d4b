package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/optimizer"
	"github.com/rgehrsitz/tyche/internal/output"
	"github.com/rgehrsitz/tyche/internal/session"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [design-file]",
	Short: "Optimize one metric subject to metric and investment constraints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimizer(cmd, args[0], true, func(r *runner) (*output.Report, error) {
			optimum, err := r.opt.Optimize(r.ctx, r.req)
			if err != nil {
				return nil, err
			}
			if !optimum.Succeeded() {
				r.app.sugar.Warnf("optimization of %s ended with %s: %s", optimum.Target, optimum.ExitCode, optimum.Message)
			}
			return &output.Report{Optimum: optimum}, nil
		})
	},
}

var frontierCmd = &cobra.Command{
	Use:   "frontier [design-file]",
	Short: "Trace the efficient frontier between the target and a swept metric",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sweep, _ := cmd.Flags().GetString("sweep")
		steps, _ := cmd.Flags().GetInt("steps")
		if sweep == "" {
			return fmt.Errorf("--sweep is required")
		}
		return runOptimizer(cmd, args[0], true, func(r *runner) (*output.Report, error) {
			points, err := r.opt.Frontier(r.ctx, r.req, sweep, steps)
			if err != nil {
				return nil, err
			}
			r.app.sugar.Infof("frontier of %s against %s: %d non-dominated points", r.req.Target, sweep, len(points))
			return &output.Report{Sweep: sweep, Frontier: points}, nil
		})
	},
}

var rangesCmd = &cobra.Command{
	Use:   "ranges [design-file]",
	Short: "Optimize every metric on its own to find its achievable range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimizer(cmd, args[0], false, func(r *runner) (*output.Report, error) {
			ranges, err := r.opt.MetricRanges(r.ctx, r.req)
			if err != nil {
				return nil, err
			}
			return &output.Report{Ranges: ranges}, nil
		})
	},
}

// runner is the state shared by the optimizer commands
type runner struct {
	app *app
	ctx context.Context
	opt *optimizer.Optimizer
	req optimizer.Request
}

// runOptimizer loads the design, builds the request from the flags and writes the
// report run produces
func runOptimizer(cmd *cobra.Command, path string, needTarget bool, run func(*runner) (*output.Report, error)) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	compiled, err := a.loadDesign(cmd, path)
	if err != nil {
		return err
	}
	req, err := requestFromFlags(cmd, a)
	if err != nil {
		return err
	}
	if needTarget && req.Target == "" {
		return fmt.Errorf("--target is required")
	}

	s, err := session.NewFromCompiled(compiled, a.sessionOptions())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	report, err := run(&runner{app: a, ctx: ctx, opt: s.Optimizer(), req: req})
	if err != nil {
		return err
	}
	report.Design = compiled.Name()
	return writeReport(cmd, report)
}

// requestFromFlags builds an optimizer request; unset flags fall back to the settings
func requestFromFlags(cmd *cobra.Command, a *app) (optimizer.Request, error) {
	flags := cmd.Flags()
	req := optimizer.Request{SampleCount: a.settings.SampleCount}

	req.Target, _ = flags.GetString("target")
	if sense, _ := flags.GetString("sense"); sense != "" {
		switch domain.Sense(sense) {
		case domain.SenseMin, domain.SenseMax:
			req.Sense = domain.Sense(sense)
		default:
			return req, fmt.Errorf("invalid sense %q (want min or max)", sense)
		}
	}

	strategy, _ := flags.GetString("strategy")
	if strategy == "" {
		strategy = a.settings.Strategy
	}
	kind, err := optimizer.ParseStrategy(strategy)
	if err != nil {
		return req, err
	}
	req.Strategy = kind
	req.Polish, _ = flags.GetBool("polish")

	statistic, _ := flags.GetString("statistic")
	if req.Statistic, err = evaluation.ParseStatistic(statistic); err != nil {
		return req, err
	}
	req.Scenario, _ = flags.GetString("scenario")

	req.MaxIterations = a.settings.MaxIterations
	if flags.Changed("max-iterations") {
		req.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	req.Tolerance = a.settings.Tolerance

	if flags.Changed("budget") {
		budget, _ := flags.GetFloat64("budget")
		req.TotalBudget = &budget
	}
	caps, _ := flags.GetStringToString("cap")
	if len(caps) > 0 {
		if req.InvestmentBounds, err = parseAmounts(caps); err != nil {
			return req, err
		}
	}

	bounds, _ := flags.GetStringArray("bound")
	for _, text := range bounds {
		metric, bound, err := parseBound(text)
		if err != nil {
			return req, err
		}
		if req.MetricBounds == nil {
			req.MetricBounds = make(map[string]optimizer.MetricBound)
		}
		req.MetricBounds[metric] = bound
	}
	return req, nil
}

// parseBound reads a metric constraint such as "Emissions<=1e4" or "Energy>=5e6"
func parseBound(text string) (string, optimizer.MetricBound, error) {
	for op, sense := range map[string]optimizer.BoundSense{"<=": optimizer.Upper, ">=": optimizer.Lower} {
		metric, value, ok := strings.Cut(text, op)
		if !ok {
			continue
		}
		limit, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || strings.TrimSpace(metric) == "" {
			break
		}
		return strings.TrimSpace(metric), optimizer.MetricBound{Limit: limit, Sense: sense}, nil
	}
	return "", optimizer.MetricBound{}, fmt.Errorf("invalid bound %q (want METRIC<=LIMIT or METRIC>=LIMIT)", text)
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "", "Metric to optimize")
	cmd.Flags().String("sense", "", "Optimization sense, min or max (default the metric's declared sense)")
	cmd.Flags().StringArray("bound", nil, "Metric constraint, e.g. --bound 'Emissions<=1e4' (repeatable)")
	cmd.Flags().StringToString("cap", nil, "Maximum investment per category, e.g. --cap Solar=2e6")
	cmd.Flags().Float64("budget", 0, "Maximum total investment")
	cmd.Flags().String("strategy", "", "Search strategy (global-stochastic, global-deterministic, local-gradient)")
	cmd.Flags().Bool("polish", false, "Refine the global result with the local-gradient strategy")
	cmd.Flags().String("statistic", "mean", "Statistic of the metric samples (mean, median, pNN)")
	cmd.Flags().String("scenario", "", "Scenario to optimize under (default the first)")
	cmd.Flags().Int("max-iterations", 50, "Iteration limit of the search")
	addReportFlags(cmd)
}

func init() {
	addRequestFlags(optimizeCmd)
	addRequestFlags(frontierCmd)
	frontierCmd.Flags().String("sweep", "", "Metric whose bound is swept")
	frontierCmd.Flags().Int("steps", 5, "Number of bound values in the sweep")
	addRequestFlags(rangesCmd)
}
