package output

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// CSVFormatter formats reports as long-form CSV, one value per row
type CSVFormatter struct{}

func (cf *CSVFormatter) Name() string { return "csv" }

var csvHeader = []string{"Section", "Point", "Scenario", "Category", "Name", "Statistic", "Value"}

// Format generates CSV output for the report
func (cf *CSVFormatter) Format(report *Report) ([]byte, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}

	var rows [][]string
	if eval := report.Evaluation; eval != nil {
		for _, category := range sortedKeys(eval.Investments) {
			rows = append(rows, row("investment", "", "", category, "", "amount", eval.Investments[category]))
		}
		for _, p := range eval.Portfolio {
			rows = append(rows, statsRows("portfolio", p.Scenario, p.Category, p.Metric, p.Stats)...)
		}
	}
	if opt := report.Optimum; opt != nil {
		rows = append(rows, optimumRows("optimum", "", opt)...)
	}
	for _, r := range report.Ranges {
		rows = append(rows,
			row("range", "", "", "", r.Metric, "baseline", r.Baseline),
			row("range", "", "", "", r.Metric, "best", r.Best))
	}
	for i, p := range report.Frontier {
		if p.Optimum == nil {
			continue
		}
		point := strconv.Itoa(i)
		rows = append(rows, row("frontier", point, "", "", report.Sweep, "limit", p.Limit))
		rows = append(rows, optimumRows("frontier", point, p.Optimum)...)
	}

	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func optimumRows(section, point string, opt *domain.Optimum) [][]string {
	rows := [][]string{row(section, point, "", "", opt.Target, "objective", opt.Objective)}
	for _, category := range opt.Categories() {
		rows = append(rows, row(section, point, "", category, "", "amount", opt.Amounts[category]))
	}
	for _, name := range sortedKeys(opt.Metrics) {
		rows = append(rows, row(section, point, "", "", name, "value", opt.Metrics[name]))
	}
	return rows
}

func statsRows(section, scenario, category, metric string, s domain.Statistics) [][]string {
	rows := [][]string{
		row(section, "", scenario, category, metric, "mean", s.Mean),
		row(section, "", scenario, category, metric, "std_dev", s.StdDev),
		row(section, "", scenario, category, metric, "min", s.Min),
		row(section, "", scenario, category, metric, "max", s.Max),
	}
	for _, q := range s.Percentiles {
		rows = append(rows, row(section, "", scenario, category, metric, percentileLabel(q.P), q.Value))
	}
	return rows
}

func row(section, point, scenario, category, name, statistic string, value float64) []string {
	return []string{section, point, scenario, category, name, statistic, strconv.FormatFloat(value, 'g', -1, 64)}
}
