package dataset

import (
	"math"
	"testing"
)

func TestNew_ShapeValidation(t *testing.T) {
	if _, err := New([]float64{1, 2, 3}, []int{2, 2}, []string{"x", "y"}); err == nil {
		t.Error("expected error for 3 values in a 2x2 shape")
	}
	if _, err := New([]float64{1, 2, 3, 4}, []int{2, 2}, []string{"x"}); err == nil {
		t.Error("expected error for dims/shape length mismatch")
	}
	a, err := New([]float64{1, 2, 3, 4}, []int{2, 2}, []string{"x", "y"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Size() != 4 {
		t.Errorf("expected size 4, got %d", a.Size())
	}
}

func TestMasked_ReplacesNaN(t *testing.T) {
	a := Masked([]float64{1.0, math.NaN(), 3.0}, "altitude")
	if a.Values[1] != FillValue {
		t.Errorf("expected fill value %g, got %g", FillValue, a.Values[1])
	}
	if a.Values[0] != 1.0 || a.Values[2] != 3.0 {
		t.Error("non-missing values must pass through unchanged")
	}
	if len(a.Dims) != 1 || a.Dims[0] != "altitude" {
		t.Errorf("unexpected dims %v", a.Dims)
	}
}

func TestScalar(t *testing.T) {
	a := Scalar(6371.0)
	if len(a.Dims) != 0 || len(a.Shape) != 0 || a.Size() != 1 {
		t.Error("a scalar must have no dims and exactly one value")
	}
	if MaskedScalar(math.NaN()).Values[0] != FillValue {
		t.Error("MaskedScalar must replace NaN")
	}
}

func TestSizes_ConflictDetection(t *testing.T) {
	d := NewDataset()
	d.Add("refractivity", Masked([]float64{1, 2, 3}, "altitude"))
	d.Add("geopotential", Masked([]float64{4, 5, 6}, "altitude"))

	sizes, err := d.Sizes()
	if err != nil {
		t.Fatalf("Sizes failed: %v", err)
	}
	if sizes["altitude"] != 3 {
		t.Errorf("expected altitude size 3, got %d", sizes["altitude"])
	}

	d.Add("bad", Masked([]float64{1, 2}, "altitude"))
	if _, err := d.Sizes(); err == nil {
		t.Error("expected conflict error for mismatched dimension sizes")
	}
}

func TestSetAttrs(t *testing.T) {
	a := Scalar(1).SetAttrs(map[string]string{"units": "meters"})
	a.SetAttrs(map[string]string{"description": "test"})
	if a.Attrs["units"] != "meters" || a.Attrs["description"] != "test" {
		t.Errorf("unexpected attrs %v", a.Attrs)
	}
}
