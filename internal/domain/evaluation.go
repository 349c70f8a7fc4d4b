package domain

// PortfolioTotal is the category name used for portfolio-wide aggregates
const PortfolioTotal = "total"

// Percentile is one requested quantile of a sample ensemble
type Percentile struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Statistics summarizes the finite samples of one outcome cell
type Statistics struct {
	Count       int          `json:"count"`
	Excluded    int          `json:"excluded"`
	Mean        float64      `json:"mean"`
	StdDev      float64      `json:"std_dev"`
	Min         float64      `json:"min"`
	Max         float64      `json:"max"`
	Percentiles []Percentile `json:"percentiles"`
	// Samples holds the raw values in draw order, NaN for excluded cells
	Samples []float64 `json:"-"`
}

// Percentile returns the stored quantile for p
func (s Statistics) Percentile(p float64) (float64, bool) {
	for _, q := range s.Percentiles {
		if q.P == p {
			return q.Value, true
		}
	}
	return 0, false
}

// MetricResult is the outcome of one metric of one technology in one scenario
type MetricResult struct {
	Metric string     `json:"metric"`
	Units  string     `json:"units,omitempty"`
	Stats  Statistics `json:"stats"`
}

// TechnologyResult holds the evaluated outcomes of a technology in a scenario
type TechnologyResult struct {
	Technology string                `json:"technology"`
	Category   string                `json:"category"`
	Scenario   string                `json:"scenario"`
	Cost       Statistics            `json:"cost"`
	Outputs    map[string]Statistics `json:"outputs"`
	Metrics    []MetricResult        `json:"metrics"`
}

// Metric returns the result for the named metric
func (r TechnologyResult) Metric(name string) (MetricResult, bool) {
	for _, m := range r.Metrics {
		if m.Metric == name {
			return m, true
		}
	}
	return MetricResult{}, false
}

// PortfolioResult aggregates a metric across the technologies of a category,
// or across all technologies when Category is PortfolioTotal
type PortfolioResult struct {
	Category  string     `json:"category"`
	Scenario  string     `json:"scenario"`
	Metric    string     `json:"metric"`
	Aggregate Aggregate  `json:"aggregate"`
	Stats     Statistics `json:"stats"`
}

// Failure identifies one excluded (technology, scenario, metric, sample) cell
type Failure struct {
	Technology string `json:"technology"`
	Scenario   string `json:"scenario"`
	Metric     string `json:"metric"`
	Sample     int    `json:"sample"`
}

// Evaluation is the immutable result of one evaluator run
type Evaluation struct {
	SampleCount  int                         `json:"sample_count"`
	Seed         uint64                      `json:"seed"`
	Scenarios    []string                    `json:"scenarios"`
	Metrics      []string                    `json:"metrics"`
	Investments  Investment                  `json:"investments"`
	Applied      map[string][]AppliedTranche `json:"applied"`
	Technologies []TechnologyResult          `json:"technologies"`
	Portfolio    []PortfolioResult           `json:"portfolio"`
	Failures     []Failure                   `json:"failures,omitempty"`
	Excluded     int                         `json:"excluded"`
}

// PortfolioMetric returns the aggregate of a metric for a category and scenario.
// An empty scenario selects the first one.
func (e *Evaluation) PortfolioMetric(category, scenario, metric string) (PortfolioResult, bool) {
	if scenario == "" && len(e.Scenarios) > 0 {
		scenario = e.Scenarios[0]
	}
	if category == "" {
		category = PortfolioTotal
	}
	for _, p := range e.Portfolio {
		if p.Category == category && p.Scenario == scenario && p.Metric == metric {
			return p, true
		}
	}
	return PortfolioResult{}, false
}

// Technology returns the result of a technology in a scenario
func (e *Evaluation) Technology(name, scenario string) (TechnologyResult, bool) {
	if scenario == "" && len(e.Scenarios) > 0 {
		scenario = e.Scenarios[0]
	}
	for _, t := range e.Technologies {
		if t.Technology == name && t.Scenario == scenario {
			return t, true
		}
	}
	return TechnologyResult{}, false
}
