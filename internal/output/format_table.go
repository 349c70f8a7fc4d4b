package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

const ruleWidth = 80

// TableFormatter formats reports as console tables
type TableFormatter struct{}

func (tf *TableFormatter) Name() string { return "table" }

// Format generates the console report
func (tf *TableFormatter) Format(report *Report) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("TECHNOLOGY PORTFOLIO REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	if report.Design != "" {
		sb.WriteString(fmt.Sprintf("Design: %s\n", report.Design))
	}

	if report.Evaluation != nil {
		tf.writeEvaluation(&sb, report.Evaluation)
	}
	if report.Optimum != nil {
		tf.writeOptimum(&sb, "OPTIMUM", report.Optimum)
	}
	if len(report.Ranges) > 0 {
		tf.writeRanges(&sb, report.Ranges)
	}
	if len(report.Frontier) > 0 {
		tf.writeFrontier(&sb, report.Sweep, report.Frontier)
	}

	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	return []byte(sb.String()), nil
}

func (tf *TableFormatter) writeEvaluation(sb *strings.Builder, eval *domain.Evaluation) {
	sb.WriteString(fmt.Sprintf("Samples: %d  Seed: %d  Excluded cells: %d\n", eval.SampleCount, eval.Seed, eval.Excluded))

	sb.WriteString("\nINVESTMENT\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	for _, category := range sortedKeys(eval.Investments) {
		sb.WriteString(fmt.Sprintf("  %-30s %15s\n", category, FormatAmount(eval.Investments[category])))
		for _, tr := range eval.Applied[category] {
			line := fmt.Sprintf("    %-28s %15s", tr.Name, "$"+tr.Cost.StringFixed(0))
			if tr.Partial() {
				line += fmt.Sprintf("  (%.0f%%)", tr.Fraction*100)
			}
			sb.WriteString(line + "\n")
		}
	}
	sb.WriteString(fmt.Sprintf("  %-30s %15s\n", "Total", FormatAmount(eval.Investments.Total())))

	for _, scenario := range eval.Scenarios {
		sb.WriteString(fmt.Sprintf("\nPORTFOLIO METRICS: %s\n", scenario))
		sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")

		var rows []domain.PortfolioResult
		for _, p := range eval.Portfolio {
			if p.Scenario == scenario {
				rows = append(rows, p)
			}
		}
		if len(rows) == 0 {
			continue
		}

		header := fmt.Sprintf("%-14s %-14s %11s %11s", "Category", "Metric", "Mean", "Std Dev")
		for _, q := range rows[0].Stats.Percentiles {
			header += fmt.Sprintf(" %9s", percentileLabel(q.P))
		}
		sb.WriteString(header + "\n")

		for _, p := range rows {
			line := fmt.Sprintf("%-14s %-14s %11s %11s",
				truncate(p.Category, 14), truncate(p.Metric, 14),
				FormatValue(p.Stats.Mean), FormatValue(p.Stats.StdDev))
			for _, q := range p.Stats.Percentiles {
				line += fmt.Sprintf(" %9s", FormatValue(q.Value))
			}
			if p.Stats.Excluded > 0 {
				line += fmt.Sprintf("  (%d excluded)", p.Stats.Excluded)
			}
			sb.WriteString(line + "\n")
		}
	}
}

func (tf *TableFormatter) writeOptimum(sb *strings.Builder, title string, opt *domain.Optimum) {
	sb.WriteString("\n" + title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	sb.WriteString(fmt.Sprintf("Status:      %s\n", opt.ExitCode))
	if opt.Message != "" {
		sb.WriteString(fmt.Sprintf("Message:     %s\n", opt.Message))
	}
	sb.WriteString(fmt.Sprintf("Strategy:    %s\n", opt.Strategy))
	sb.WriteString(fmt.Sprintf("Target:      %s = %s\n", opt.Target, FormatValue(opt.Objective)))
	sb.WriteString(fmt.Sprintf("Iterations:  %d (%d evaluations, %s)\n", opt.Iterations, opt.Evaluations, opt.Elapsed.Round(1e6)))

	sb.WriteString("\n  Investment\n")
	for _, category := range opt.Categories() {
		sb.WriteString(fmt.Sprintf("  %-30s %15s\n", category, FormatAmount(opt.Amounts[category])))
	}
	sb.WriteString(fmt.Sprintf("  %-30s %15s\n", "Total", FormatAmount(opt.Amounts.Total())))

	if len(opt.Metrics) > 0 {
		sb.WriteString("\n  Metrics\n")
		for _, name := range sortedKeys(opt.Metrics) {
			sb.WriteString(fmt.Sprintf("  %-30s %15s\n", name, FormatValue(opt.Metrics[name])))
		}
	}
}

func (tf *TableFormatter) writeRanges(sb *strings.Builder, ranges []optimizer.MetricRange) {
	sb.WriteString("\nMETRIC RANGES\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	sb.WriteString(fmt.Sprintf("%-20s %-6s %15s %15s %15s\n", "Metric", "Sense", "Baseline", "Best", "Investment"))
	for _, r := range ranges {
		invested := "-"
		if r.Optimum != nil {
			invested = FormatAmount(r.Optimum.Amounts.Total())
		}
		sb.WriteString(fmt.Sprintf("%-20s %-6s %15s %15s %15s\n",
			truncate(r.Metric, 20), r.Sense, FormatValue(r.Baseline), FormatValue(r.Best), invested))
	}
}

func (tf *TableFormatter) writeFrontier(sb *strings.Builder, sweep string, points []optimizer.FrontierPoint) {
	sb.WriteString("\nEFFICIENT FRONTIER\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")

	target := ""
	var categories []string
	for _, p := range points {
		if p.Optimum == nil {
			continue
		}
		target = p.Optimum.Target
		for _, c := range p.Optimum.Categories() {
			if !slices.Contains(categories, c) {
				categories = append(categories, c)
			}
		}
	}
	slices.Sort(categories)

	header := fmt.Sprintf("%12s %12s", truncate(sweep, 12), truncate(target, 12))
	for _, c := range categories {
		header += fmt.Sprintf(" %12s", truncate(c, 12))
	}
	sb.WriteString(header + "\n")

	for _, p := range points {
		if p.Optimum == nil {
			continue
		}
		line := fmt.Sprintf("%12s %12s", FormatValue(p.Limit), FormatValue(p.Optimum.Objective))
		for _, c := range categories {
			line += fmt.Sprintf(" %12s", FormatAmount(p.Optimum.Amounts[c]))
		}
		sb.WriteString(line + "\n")
	}
}

// truncate shortens s to width runes, marking the cut with "..."
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
