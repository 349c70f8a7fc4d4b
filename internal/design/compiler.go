// Package design compiles declarative technology tables into vectorized evaluation functions.
//
// Every technology declares its capital, fixed, production and metric functions as
// arithmetic expressions over its parameters. Compilation resolves every name once, checks
// index cardinalities across roles and produces closures that evaluate a whole batch of
// samples per call. A Compiled design is immutable and safe for concurrent use.
//
// Names visible to expressions, by stage:
//
//	capital, fixed   parameters, scale, lifetime[k], input_raw[i], input[i],
//	                 input_efficiency[i], input_price[i], output_efficiency[j], output_price[j]
//	production       the above plus capital[k], fixed[k]
//	metric           the above plus output_raw[j], output[j], cost
//
// Indexed names accept a numeric index (input[0]) or the index label (input.water).
// The parameter named "input" is the raw input quantity and is visible as input_raw;
// input is the raw quantity times input_efficiency.
package design

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rgehrsitz/tyche/internal/distribution"
	"github.com/rgehrsitz/tyche/internal/domain"
)

// names computed during evaluation; parameters may not use them
var computedNames = map[string]bool{
	"input_raw":  true,
	"capital":    true,
	"fixed":      true,
	"output_raw": true,
	"output":     true,
	"cost":       true,
}

// Param is one sampled element of a technology parameter
type Param struct {
	Name    string
	Offset  int
	Units   string
	Sampler distribution.Sampler
	slot    int
}

// MetricInfo describes a metric reported by at least one technology
type MetricInfo struct {
	Name      string
	Units     string
	Aggregate domain.Aggregate
	Sense     domain.Sense
}

type paramKey struct {
	name   string
	offset int
}

// Technology is the compiled form of one technology
type Technology struct {
	Name     string
	Category string
	Style    domain.ProductionStyle

	// index labels by role, in offset order
	Capital []string
	Fixed   []string
	Inputs  []string
	Outputs []string
	Metrics []MetricInfo

	params    []Param
	index     map[paramKey]int
	names     map[string]bool
	slotCount int

	scale       int
	lifetime    []int
	inputRaw    []int
	inputEff    []int
	inputPrice  []int
	outputEff   []int
	outputPrice []int
	requirement []int
	yield       []int

	input     []int
	capital   []int
	fixed     []int
	outputRaw []int
	output    []int
	cost      int

	capitalFns []vectorFunc
	fixedFns   []vectorFunc
	production production
	metricFns  []vectorFunc
}

// Parameters returns the sampled parameter elements in evaluation order
func (t *Technology) Parameters() []Param {
	out := make([]Param, len(t.params))
	copy(out, t.params)
	return out
}

// ParameterIndex returns the position of a parameter element in Parameters()
func (t *Technology) ParameterIndex(name string, offset int) (int, bool) {
	i, ok := t.index[paramKey{name: name, offset: offset}]
	return i, ok
}

// HasParameter reports whether the technology declares a parameter of that name
func (t *Technology) HasParameter(name string) bool {
	return t.names[name]
}

// MetricIndex returns the position of a metric in Metrics(), or -1
func (t *Technology) MetricIndex(name string) int {
	for i, m := range t.Metrics {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Compiled is the immutable result of compiling a design
type Compiled struct {
	name         string
	technologies []*Technology
	byName       map[string]*Technology
	categories   []string
	metrics      []MetricInfo
	scenarios    []domain.Scenario
	tranches     []domain.Tranche
	paramNames   map[string]bool
}

// Compile joins technologies, indices and parameters into vectorized functions
func Compile(d *domain.Design) (*Compiled, error) {
	if d == nil || len(d.Technologies) == 0 {
		return nil, domain.NewError(domain.ErrInvalidDesign, "compile", "no technologies declared")
	}

	c := &Compiled{
		name:       d.Name,
		byName:     make(map[string]*Technology, len(d.Technologies)),
		paramNames: make(map[string]bool),
	}

	declared := make(map[string]bool, len(d.Technologies))
	for _, t := range d.Technologies {
		if t.Name == "" {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile", "technology without a name")
		}
		if declared[t.Name] {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile", "declared twice").For(t.Name, "")
		}
		declared[t.Name] = true
	}

	indices := make(map[string][]domain.Index)
	for _, idx := range d.Indices {
		if !declared[idx.Technology] {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
				"index %q refers to an unknown technology", idx.Name).For(idx.Technology, "")
		}
		indices[idx.Technology] = append(indices[idx.Technology], idx)
	}
	params := make(map[string][]domain.Parameter)
	for _, p := range d.Parameters {
		if !declared[p.Technology] {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
				"parameter refers to an unknown technology").For(p.Technology, p.Name)
		}
		params[p.Technology] = append(params[p.Technology], p)
	}

	metricIndex := make(map[string]int)
	seenCategory := make(map[string]bool)
	for _, spec := range d.Technologies {
		t, err := compileTechnology(spec, indices[spec.Name], params[spec.Name])
		if err != nil {
			return nil, err
		}
		c.technologies = append(c.technologies, t)
		c.byName[t.Name] = t
		if !seenCategory[t.Category] {
			seenCategory[t.Category] = true
			c.categories = append(c.categories, t.Category)
		}
		for name := range t.names {
			c.paramNames[name] = true
		}
		for _, m := range t.Metrics {
			i, ok := metricIndex[m.Name]
			if !ok {
				metricIndex[m.Name] = len(c.metrics)
				c.metrics = append(c.metrics, m)
				continue
			}
			if c.metrics[i].Aggregate != m.Aggregate {
				return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
					"metric %q aggregates as %s here but %s elsewhere", m.Name, m.Aggregate, c.metrics[i].Aggregate).
					For(t.Name, "")
			}
		}
	}

	c.scenarios = append(c.scenarios, d.Scenarios...)
	c.tranches = append(c.tranches, d.Tranches...)
	return c, nil
}

// Name returns the design name
func (c *Compiled) Name() string { return c.name }

// Technologies returns the compiled technologies in declaration order
func (c *Compiled) Technologies() []*Technology {
	out := make([]*Technology, len(c.technologies))
	copy(out, c.technologies)
	return out
}

// Technology looks up a technology by name
func (c *Compiled) Technology(name string) (*Technology, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Categories returns the categories in order of first declaration
func (c *Compiled) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// HasCategory reports whether any technology belongs to category
func (c *Compiled) HasCategory(category string) bool {
	for _, cat := range c.categories {
		if cat == category {
			return true
		}
	}
	return false
}

// TechnologiesIn returns the technologies of a category
func (c *Compiled) TechnologiesIn(category string) []*Technology {
	var out []*Technology
	for _, t := range c.technologies {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Metrics returns every metric in order of first declaration
func (c *Compiled) Metrics() []MetricInfo {
	out := make([]MetricInfo, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Metric looks up a metric by name
func (c *Compiled) Metric(name string) (MetricInfo, bool) {
	for _, m := range c.metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricInfo{}, false
}

// HasParameterName reports whether any technology declares a parameter of that name
func (c *Compiled) HasParameterName(name string) bool {
	return c.paramNames[name]
}

// Scenarios returns the scenarios declared with the design
func (c *Compiled) Scenarios() []domain.Scenario {
	out := make([]domain.Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// Tranches returns the tranches declared with the design
func (c *Compiled) Tranches() []domain.Tranche {
	out := make([]domain.Tranche, len(c.tranches))
	copy(out, c.tranches)
	return out
}

func compileTechnology(spec domain.Technology, indices []domain.Index, params []domain.Parameter) (*Technology, error) {
	t := &Technology{
		Name:     spec.Name,
		Category: spec.Category,
		Style:    spec.Style,
		index:    make(map[paramKey]int),
		names:    make(map[string]bool),
	}
	if t.Category == "" {
		return nil, domain.NewError(domain.ErrInvalidDesign, "compile", "missing category").For(t.Name, "")
	}
	switch t.Style {
	case domain.StyleLeontief, domain.StyleLinear, domain.StyleGeneric:
	default:
		return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
			"unknown production style %q", spec.Style).For(t.Name, "")
	}

	byRole := make(map[domain.Role][]domain.Index)
	for _, idx := range indices {
		switch idx.Role {
		case domain.RoleCapital, domain.RoleFixed, domain.RoleInput, domain.RoleOutput, domain.RoleMetric:
			byRole[idx.Role] = append(byRole[idx.Role], idx)
		default:
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
				"index %q has unknown role %q", idx.Name, idx.Role).For(t.Name, "")
		}
	}
	var err error
	if t.Capital, err = labels(t.Name, domain.RoleCapital, byRole); err != nil {
		return nil, err
	}
	if t.Fixed, err = labels(t.Name, domain.RoleFixed, byRole); err != nil {
		return nil, err
	}
	if t.Inputs, err = labels(t.Name, domain.RoleInput, byRole); err != nil {
		return nil, err
	}
	if t.Outputs, err = labels(t.Name, domain.RoleOutput, byRole); err != nil {
		return nil, err
	}
	metricLabels, err := labels(t.Name, domain.RoleMetric, byRole)
	if err != nil {
		return nil, err
	}
	for _, idx := range sortedIndices(byRole[domain.RoleMetric]) {
		m := MetricInfo{Name: idx.Name, Units: idx.Units, Aggregate: idx.Aggregate, Sense: idx.Sense}
		if m.Aggregate == "" {
			m.Aggregate = domain.AggregateSum
		}
		if m.Sense == "" {
			m.Sense = domain.SenseMax
		}
		t.Metrics = append(t.Metrics, m)
	}

	if err := checkCount(t.Name, "capital functions", len(spec.Capital), "capital indices", len(t.Capital)); err != nil {
		return nil, err
	}
	if err := checkCount(t.Name, "fixed functions", len(spec.Fixed), "fixed indices", len(t.Fixed)); err != nil {
		return nil, err
	}
	if err := checkCount(t.Name, "metric functions", len(spec.Metrics), "metric indices", len(metricLabels)); err != nil {
		return nil, err
	}
	if t.Style == domain.StyleGeneric {
		if err := checkCount(t.Name, "production functions", len(spec.Production), "output indices", len(t.Outputs)); err != nil {
			return nil, err
		}
	} else if len(t.Inputs) == 0 {
		return nil, domain.NewError(domain.ErrIndexMismatch, "compile",
			"%s production needs at least one input", t.Style).For(t.Name, "")
	}

	sc := &scope{technology: t.Name, symbols: make(map[string]*symbol)}
	slots, err := t.bindParameters(params, sc)
	if err != nil {
		return nil, err
	}

	reserved := []reservedArray{
		{domain.VarLifetime, len(t.Capital), &t.lifetime},
		{domain.VarInput, len(t.Inputs), &t.inputRaw},
		{domain.VarInputEfficiency, len(t.Inputs), &t.inputEff},
		{domain.VarInputPrice, len(t.Inputs), &t.inputPrice},
		{domain.VarOutputEfficiency, len(t.Outputs), &t.outputEff},
		{domain.VarOutputPrice, len(t.Outputs), &t.outputPrice},
	}
	if t.Style != domain.StyleGeneric {
		reserved = append(reserved,
			reservedArray{domain.VarRequirement, len(t.Inputs), &t.requirement},
			reservedArray{domain.VarYield, len(t.Outputs), &t.yield},
		)
	}
	scale, err := requireSlots(t.Name, domain.VarScale, 1, slots)
	if err != nil {
		return nil, err
	}
	t.scale = scale[0]
	for _, r := range reserved {
		s, err := requireSlots(t.Name, r.name, r.want, slots)
		if err != nil {
			return nil, err
		}
		*r.dst = s
	}

	t.input = t.newSlots(len(t.Inputs))
	sc.define("input", stageCapital, t.input, t.Inputs)
	t.capital = t.newSlots(len(t.Capital))
	sc.define("capital", stageProduction, t.capital, t.Capital)
	t.fixed = t.newSlots(len(t.Fixed))
	sc.define("fixed", stageProduction, t.fixed, t.Fixed)
	t.outputRaw = t.newSlots(len(t.Outputs))
	sc.define("output_raw", stageMetric, t.outputRaw, t.Outputs)
	t.output = t.newSlots(len(t.Outputs))
	sc.define("output", stageMetric, t.output, t.Outputs)
	t.cost = t.newSlots(1)[0]
	sc.define("cost", stageMetric, []int{t.cost}, nil)

	sc.stage = stageCapital
	for k, src := range spec.Capital {
		fn, err := sc.compile(src, fmt.Sprintf("capital[%d]", k))
		if err != nil {
			return nil, err
		}
		t.capitalFns = append(t.capitalFns, fn)
	}
	for k, src := range spec.Fixed {
		fn, err := sc.compile(src, fmt.Sprintf("fixed[%d]", k))
		if err != nil {
			return nil, err
		}
		t.fixedFns = append(t.fixedFns, fn)
	}

	sc.stage = stageProduction
	t.production = production{style: t.Style}
	if t.Style == domain.StyleGeneric {
		for j, src := range spec.Production {
			fn, err := sc.compile(src, fmt.Sprintf("production[%d]", j))
			if err != nil {
				return nil, err
			}
			t.production.exprs = append(t.production.exprs, fn)
		}
	}

	sc.stage = stageMetric
	for m, src := range spec.Metrics {
		fn, err := sc.compile(src, fmt.Sprintf("metric[%d]", m))
		if err != nil {
			return nil, err
		}
		t.metricFns = append(t.metricFns, fn)
	}
	return t, nil
}

// bindParameters parses distributions, allocates a slot per element and defines the
// parameter names in the expression scope. It returns the slots of each name by offset.
func (t *Technology) bindParameters(params []domain.Parameter, sc *scope) (map[string][]int, error) {
	var order []string
	grouped := make(map[string][]domain.Parameter)
	for _, p := range params {
		if p.Name == "" {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile", "parameter without a name").For(t.Name, "")
		}
		if computedNames[p.Name] {
			return nil, domain.NewError(domain.ErrInvalidDesign, "compile",
				"%q is computed during evaluation and cannot be a parameter", p.Name).For(t.Name, p.Name)
		}
		if _, ok := grouped[p.Name]; !ok {
			order = append(order, p.Name)
		}
		grouped[p.Name] = append(grouped[p.Name], p)
	}

	slots := make(map[string][]int, len(order))
	for _, name := range order {
		group := grouped[name]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Offset < group[j].Offset })
		ids := make([]int, len(group))
		for i, p := range group {
			if p.Offset != i {
				return nil, domain.NewError(domain.ErrIndexMismatch, "compile",
					"offsets must be 0..%d without gaps or repeats, found %d", len(group)-1, p.Offset).For(t.Name, name)
			}
			sampler, err := distribution.Parse(p.Value)
			if err != nil {
				return nil, domain.NewError(kindOf(err), "compile", "offset %d", p.Offset).For(t.Name, name).Wrap(err)
			}
			slot := t.newSlots(1)[0]
			t.index[paramKey{name: name, offset: p.Offset}] = len(t.params)
			t.params = append(t.params, Param{Name: name, Offset: p.Offset, Units: p.Units, Sampler: sampler, slot: slot})
			ids[i] = slot
		}
		t.names[name] = true
		slots[name] = ids

		symName := name
		if name == domain.VarInput {
			symName = "input_raw"
		}
		sc.define(symName, stageCapital, ids, t.labelsFor(name))
	}
	return slots, nil
}

// labelsFor returns the index labels a reserved array is addressed by
func (t *Technology) labelsFor(name string) []string {
	switch name {
	case domain.VarLifetime:
		return t.Capital
	case domain.VarInput, domain.VarInputEfficiency, domain.VarInputPrice, domain.VarRequirement:
		return t.Inputs
	case domain.VarOutputEfficiency, domain.VarOutputPrice, domain.VarYield:
		return t.Outputs
	}
	return nil
}

func (t *Technology) newSlots(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = t.slotCount
		t.slotCount++
	}
	return out
}

// reservedArray binds a reserved design variable to the slots of its role
type reservedArray struct {
	name string
	want int
	dst  *[]int
}

func requireSlots(technology, name string, want int, slots map[string][]int) ([]int, error) {
	got, ok := slots[name]
	if !ok {
		if want == 0 {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrMissingParameter, "compile",
			"required with %d element(s)", want).For(technology, name)
	}
	if len(got) != want {
		return nil, domain.NewError(domain.ErrIndexMismatch, "compile",
			"declares %d element(s), role indices require %d", len(got), want).For(technology, name)
	}
	return got, nil
}

func checkCount(technology, what string, got int, against string, want int) error {
	if got != want {
		return domain.NewError(domain.ErrIndexMismatch, "compile",
			"%d %s but %d %s", got, what, want, against).For(technology, "")
	}
	return nil
}

func sortedIndices(in []domain.Index) []domain.Index {
	out := make([]domain.Index, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// labels returns the index names of a role in offset order, requiring offsets 0..k-1
func labels(technology string, role domain.Role, byRole map[domain.Role][]domain.Index) ([]string, error) {
	sorted := sortedIndices(byRole[role])
	out := make([]string, len(sorted))
	for i, idx := range sorted {
		if idx.Offset != i {
			return nil, domain.NewError(domain.ErrIndexMismatch, "compile",
				"%s index offsets must be 0..%d without gaps or repeats, found %d", role, len(sorted)-1, idx.Offset).
				For(technology, idx.Name)
		}
		out[i] = idx.Name
	}
	return out, nil
}

func kindOf(err error) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != nil {
		return de.Kind
	}
	return domain.ErrInvalidDistribution
}
