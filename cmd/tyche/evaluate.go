package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/investment"
	"github.com/rgehrsitz/tyche/internal/output"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [design-file]",
	Short: "Evaluate an investment across the design's scenarios",
	Long: "Evaluate an investment across the design's scenarios. Categories not named " +
		"with --invest receive nothing.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		compiled, err := a.loadDesign(cmd, args[0])
		if err != nil {
			return err
		}

		pairs, _ := cmd.Flags().GetStringToString("invest")
		inv, err := parseAmounts(pairs)
		if err != nil {
			return err
		}

		var scenarios []domain.Scenario
		if names, _ := cmd.Flags().GetStringSlice("scenario"); len(names) > 0 {
			byName := make(map[string]domain.Scenario)
			for _, sc := range compiled.Scenarios() {
				byName[sc.Name] = sc
			}
			for _, name := range names {
				sc, ok := byName[name]
				if !ok {
					return fmt.Errorf("design %s has no scenario %q", compiled.Name(), name)
				}
				scenarios = append(scenarios, sc)
			}
		}

		allocator, err := investment.NewAllocator(compiled, compiled.Tranches())
		if err != nil {
			return err
		}
		opts := a.sessionOptions()
		evaluator := evaluation.New(compiled, allocator, opts.Evaluation)

		ctx, stop := signalContext(cmd)
		defer stop()
		eval, err := evaluator.Evaluate(ctx, inv, a.settings.SampleCount, scenarios)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		if len(eval.Failures) > 0 {
			first := eval.Failures[0]
			a.sugar.Warnf("%d sample cells excluded for non-finite metric values, first %s/%s in scenario %s sample %d",
				eval.Excluded, first.Technology, first.Metric, first.Scenario, first.Sample)
		}

		return writeReport(cmd, &output.Report{Design: compiled.Name(), Evaluation: eval})
	},
}

func init() {
	evaluateCmd.Flags().StringToString("invest", nil, "Investment per category, e.g. --invest Solar=2e6,Wind=1e6")
	evaluateCmd.Flags().StringSlice("scenario", nil, "Scenarios to evaluate (default all)")
	addReportFlags(evaluateCmd)
}
