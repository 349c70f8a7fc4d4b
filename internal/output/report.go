// Package output renders evaluations and optimizer results as tables, CSV or JSON.
package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

// Report is everything one command may print. Unset sections are skipped.
type Report struct {
	Design     string                    `json:"design,omitempty"`
	Evaluation *domain.Evaluation        `json:"evaluation,omitempty"`
	Optimum    *domain.Optimum           `json:"optimum,omitempty"`
	Ranges     []optimizer.MetricRange   `json:"ranges,omitempty"`
	Frontier   []optimizer.FrontierPoint `json:"frontier,omitempty"`
	// Sweep names the metric bounded along the frontier
	Sweep string `json:"sweep,omitempty"`
}

// Formatter renders a report
type Formatter interface {
	Name() string
	Format(report *Report) ([]byte, error)
}

// FormatterFunc adapts a function to the Formatter interface
type FormatterFunc struct {
	ID string
	F  func(report *Report) ([]byte, error)
}

func (f FormatterFunc) Name() string { return f.ID }

func (f FormatterFunc) Format(report *Report) ([]byte, error) { return f.F(report) }

// FormatterFor returns the formatter registered under name
func FormatterFor(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "table", "console":
		return &TableFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	case "json":
		return &JSONFormatter{Pretty: true}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (want table, csv or json)", name)
	}
}

// WriteFormatted renders the report with f and writes it to w
func WriteFormatted(w io.Writer, f Formatter, report *Report) error {
	data, err := f.Format(report)
	if err != nil {
		return fmt.Errorf("%s formatter: %w", f.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", f.Name(), err)
	}
	return nil
}

// FormatCurrency formats an amount in dollars with two decimals
func FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// FormatAmount formats an investment amount compactly, in thousands or millions
func FormatAmount(amount float64) string {
	d := decimal.NewFromFloat(amount)
	switch {
	case d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000000)):
		return "$" + d.Div(decimal.NewFromInt(1000000)).StringFixed(2) + "M"
	case d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return "$" + d.Div(decimal.NewFromInt(1000)).StringFixed(1) + "K"
	}
	return "$" + d.StringFixed(0)
}

// FormatValue formats a metric value with four significant digits
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func percentileLabel(p float64) string {
	return "P" + decimal.NewFromFloat(p).String()
}
