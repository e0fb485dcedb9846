// Package testutil provides shared test fixtures for the tracking
// packages.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/trackcore/feature"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// PositionVector builds an observation carrying a single "position"
// feature with the given coordinates and derivatives enabled. Most
// tracking tests only need this shape.
func PositionVector(t *testing.T, coords ...float64) *feature.Vector {
	t.Helper()
	v := feature.New()
	if _, err := v.AddFeature("position", feature.Position, coords, true); err != nil {
		t.Fatalf("building position vector: %v", err)
	}
	return v
}

// NamedVector builds an observation with one arbitrary feature block.
func NamedVector(t *testing.T, name string, typ feature.Type, values []float64, hasDerivatives bool) *feature.Vector {
	t.Helper()
	v := feature.New()
	if _, err := v.AddFeature(name, typ, values, hasDerivatives); err != nil {
		t.Fatalf("building %q vector: %v", name, err)
	}
	return v
}
