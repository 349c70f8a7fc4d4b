package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/domain"
	"github.com/rgehrsitz/tyche/internal/domain/domaintest"
)

func TestNewInputParser(t *testing.T) {
	parser := NewInputParser()
	assert.NotNil(t, parser, "Should create input parser")
}

func TestInputParser_LoadFromFile_FileNotFound(t *testing.T) {
	parser := NewInputParser()

	d, err := parser.LoadFromFile("nonexistent.yaml")

	assert.Error(t, err, "Should error for nonexistent file")
	assert.Nil(t, d, "Should return nil design")
	assert.Contains(t, err.Error(), "failed to read file", "Should have specific error message")
}

func TestInputParser_LoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	invalidFile := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(invalidFile, []byte("invalid: yaml: content: [unclosed"), 0644)
	require.NoError(t, err)

	parser := NewInputParser()
	d, err := parser.LoadFromFile(invalidFile)

	assert.Error(t, err, "Should error for invalid YAML")
	assert.Nil(t, d, "Should return nil design")
	assert.Contains(t, err.Error(), "failed to parse YAML", "Should have specific error message")
}

func TestInputParser_LoadElectrolysis(t *testing.T) {
	parser := NewInputParser()

	d, compiled, err := parser.LoadAndCompile(filepath.Join("testdata", "electrolysis.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "electrolysis", d.Name)
	assert.Len(t, d.Technologies, 2)
	assert.Equal(t, domain.StyleLeontief, d.Technologies[0].Style)
	assert.Equal(t, []string{"Plant", "Stacks"}, slices.Sorted(slices.Values(compiled.Categories())))

	byName := map[string]domain.DistributionSpec{}
	for _, p := range d.Parameters {
		if p.Technology == "PEM" {
			byName[fmt.Sprintf("%s[%d]", p.Name, p.Offset)] = p.Value
		}
	}
	assert.Equal(t, domain.Constant(100), byName["scale[0]"], "bare numbers are constants")
	assert.Equal(t, "triangular(0.45, 0.5, 0.6)", byName["input_efficiency[1]"].Text, "strings keep the text form")
	assert.Equal(t, "uniform", byName["input_price[1]"].Kind, "mappings carry kind and parameters")
	assert.Equal(t, map[string]float64{"min": 0.8, "max": 1.2}, byName["input_price[1]"].Params)

	require.Len(t, d.Tranches, 3)
	assert.True(t, d.Tranches[0].Cost.Equal(decimal.NewFromInt(1500000)))
	assert.Equal(t, "", d.Tranches[0].Deltas[0].Technology, "category-wide delta")
	assert.Equal(t, 1, d.Tranches[1].Deltas[1].Offset)

	require.Len(t, d.Scenarios, 2)
	assert.Equal(t, map[string]float64{"input_price": 1.5}, d.Scenarios[1].Factors)

	cost, ok := compiled.Metric("Cost")
	require.True(t, ok)
	assert.Equal(t, domain.AggregateMean, cost.Aggregate)
	assert.Equal(t, domain.SenseMin, cost.Sense)
}

func TestInputParser_LoadTranches(t *testing.T) {
	parser := NewInputParser()

	d, err := parser.LoadFromFile(filepath.Join("testdata", "tranches.yaml"))
	require.NoError(t, err)

	// the YAML form describes the same design as the shared fixture
	want := domaintest.TrancheDesign()
	assert.Equal(t, want.Technologies, d.Technologies)
	assert.Equal(t, want.Indices, d.Indices)
	require.Len(t, d.Tranches, len(want.Tranches))
	for i := range want.Tranches {
		assert.True(t, want.Tranches[i].Cost.Equal(d.Tranches[i].Cost))
		assert.Equal(t, want.Tranches[i].Deltas, d.Tranches[i].Deltas)
	}
}

func TestInputParser_CompileErrors(t *testing.T) {
	parser := NewInputParser()

	_, err := parser.LoadFromFile(filepath.Join("testdata", "bad-style.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown production style")

	_, _, err = parser.LoadAndCompile(filepath.Join("testdata", "bad-expression.yaml"))
	assert.ErrorIs(t, err, domain.ErrInvalidExpression)
}

func TestInputParser_ValidateDesign(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *domain.Design)
		wantErr string
	}{
		{"valid", func(d *domain.Design) {}, ""},
		{"no technologies", func(d *domain.Design) { d.Technologies = nil }, "no technologies"},
		{"missing category", func(d *domain.Design) { d.Technologies[0].Category = "" }, "category is required"},
		{"duplicate technology", func(d *domain.Design) {
			d.Technologies = append(d.Technologies, d.Technologies[0])
		}, "duplicate technology"},
		{"index of unknown technology", func(d *domain.Design) { d.Indices[0].Technology = "Gizmo" }, "unknown technology"},
		{"unknown role", func(d *domain.Design) { d.Indices[0].Role = "waste" }, "unknown role"},
		{"sense on a capital index", func(d *domain.Design) { d.Indices[0].Sense = domain.SenseMin }, "metric indices only"},
		{"unknown aggregate", func(d *domain.Design) { d.Indices[2].Aggregate = "median" }, "unknown aggregate"},
		{"parameter of unknown technology", func(d *domain.Design) { d.Parameters[0].Technology = "Gizmo" }, "unknown technology"},
		{"tranche of unknown category", func(d *domain.Design) { d.Tranches[0].Category = "Gadgets" }, "unknown category"},
		{"free tranche", func(d *domain.Design) { d.Tranches[0].Cost = decimal.Zero }, "cost must be positive"},
		{"negative delta", func(d *domain.Design) { d.Tranches[0].Deltas[0].Amount = -1 }, "cannot be negative"},
		{"duplicate scenario", func(d *domain.Design) {
			d.Scenarios = []domain.Scenario{{Name: "a"}, {Name: "a"}}
		}, "duplicate scenario"},
	}

	parser := NewInputParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := domaintest.TrancheDesign()
			tt.mutate(d)
			err := parser.ValidateDesign(d)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInputParser_WriteFileRoundTrip(t *testing.T) {
	parser := NewInputParser()
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, parser.WriteFile(path, domaintest.PortfolioDesign()))
	d, compiled, err := parser.LoadAndCompile(path)
	require.NoError(t, err)
	assert.Equal(t, "power", d.Name)
	assert.Len(t, compiled.Metrics(), 3)
}
