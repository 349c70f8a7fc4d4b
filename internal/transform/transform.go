// Package transform applies named what-if modifications to a design before it is
// compiled: parameter overrides, extra scenarios, tranche cost changes and dropped
// technologies.
package transform

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rgehrsitz/tyche/internal/domain"
)

// DesignTransform defines the interface for all design transformations.
// Transforms are composable operations that modify a design in predictable ways,
// enabling what-if comparisons from the command line.
type DesignTransform interface {
	// Apply transforms a base design and returns a new modified design.
	// The base design is never modified.
	Apply(base *domain.Design) (*domain.Design, error)

	// Name returns a short identifier for this transform (e.g., "set_parameter").
	Name() string

	// Description returns a human-readable description of what this transform does.
	Description() string

	// Validate checks if the transform parameters are valid for the design without applying it.
	Validate(base *domain.Design) error
}

// ApplyTransforms applies a sequence of transforms to a base design.
// Transforms are applied in order, with each transform receiving the output of the previous one.
func ApplyTransforms(base *domain.Design, transforms []DesignTransform) (*domain.Design, error) {
	if base == nil {
		return nil, fmt.Errorf("base design cannot be nil")
	}

	current := Copy(base)
	for i, transform := range transforms {
		if transform == nil {
			return nil, fmt.Errorf("transform at index %d is nil", i)
		}

		if err := transform.Validate(current); err != nil {
			return nil, fmt.Errorf("transform %s validation failed: %w", transform.Name(), err)
		}

		next, err := transform.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("transform %s failed: %w", transform.Name(), err)
		}
		current = next
	}

	return current, nil
}

// Copy returns a design sharing no mutable state with d
func Copy(d *domain.Design) *domain.Design {
	out := *d
	out.Technologies = slices.Clone(d.Technologies)
	out.Indices = slices.Clone(d.Indices)
	out.Parameters = slices.Clone(d.Parameters)

	out.Tranches = make([]domain.Tranche, len(d.Tranches))
	for i, tr := range d.Tranches {
		tr.Deltas = slices.Clone(tr.Deltas)
		out.Tranches[i] = tr
	}
	if d.Tranches == nil {
		out.Tranches = nil
	}

	out.Scenarios = make([]domain.Scenario, len(d.Scenarios))
	for i, sc := range d.Scenarios {
		sc.Factors = maps.Clone(sc.Factors)
		out.Scenarios[i] = sc
	}
	if d.Scenarios == nil {
		out.Scenarios = nil
	}
	return &out
}

// TransformError represents an error that occurred during transformation.
type TransformError struct {
	TransformName string
	Operation     string
	Reason        string
	Err           error
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform %s (%s): %s: %v", e.TransformName, e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("transform %s (%s): %s", e.TransformName, e.Operation, e.Reason)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// NewTransformError creates a new TransformError.
func NewTransformError(transformName, operation, reason string, err error) error {
	return &TransformError{
		TransformName: transformName,
		Operation:     operation,
		Reason:        reason,
		Err:           err,
	}
}
