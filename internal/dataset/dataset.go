// Package dataset holds labeled in-memory arrays: named variables carrying
// named dimensions and description/units attributes. It is the exchange type
// between the instrument readers, the collocation core, and the artifact
// writer.
package dataset

import (
	"fmt"
	"math"
	"sort"
)

// FillValue marks missing samples in science arrays.
const FillValue = -1.0e20

// DataArray is a dense array of float64 values with named dimensions.
// A scalar has empty Shape and Dims and exactly one value.
type DataArray struct {
	Values []float64
	Shape  []int
	Dims   []string
	Attrs  map[string]string
}

// Scalar wraps a single value.
func Scalar(v float64) *DataArray {
	return &DataArray{Values: []float64{v}, Attrs: map[string]string{}}
}

// New builds an array and checks that the value count matches the shape.
func New(values []float64, shape []int, dims []string) (*DataArray, error) {
	if len(shape) != len(dims) {
		return nil, fmt.Errorf("dataset: %d dims for %d shape entries", len(dims), len(shape))
	}
	n := 1
	for _, s := range shape {
		if s < 1 {
			return nil, fmt.Errorf("dataset: dimension size %d", s)
		}
		n *= s
	}
	if len(values) != n {
		return nil, fmt.Errorf("dataset: %d values for shape %v", len(values), shape)
	}
	return &DataArray{Values: values, Shape: shape, Dims: dims, Attrs: map[string]string{}}, nil
}

// Masked copies values into a 1-D array over dim, replacing NaN with
// FillValue.
func Masked(values []float64, dim string) *DataArray {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = FillValue
		} else {
			out[i] = v
		}
	}
	return &DataArray{Values: out, Shape: []int{len(out)}, Dims: []string{dim}, Attrs: map[string]string{}}
}

// MaskedScalar wraps a single value, replacing NaN with FillValue.
func MaskedScalar(v float64) *DataArray {
	if math.IsNaN(v) {
		v = FillValue
	}
	return Scalar(v)
}

// SetAttrs merges attributes into the array.
func (a *DataArray) SetAttrs(attrs map[string]string) *DataArray {
	if a.Attrs == nil {
		a.Attrs = map[string]string{}
	}
	for k, v := range attrs {
		a.Attrs[k] = v
	}
	return a
}

// Size is the number of values.
func (a *DataArray) Size() int { return len(a.Values) }

// Dataset is a named collection of DataArrays plus dataset-level attributes.
type Dataset struct {
	Vars  map[string]*DataArray
	Attrs map[string]string
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Vars: map[string]*DataArray{}, Attrs: map[string]string{}}
}

// Add attaches a variable under name.
func (d *Dataset) Add(name string, a *DataArray) *Dataset {
	d.Vars[name] = a
	return d
}

// SetAttrs merges dataset-level attributes.
func (d *Dataset) SetAttrs(attrs map[string]string) *Dataset {
	for k, v := range attrs {
		d.Attrs[k] = v
	}
	return d
}

// VarNames returns the variable names in sorted order.
func (d *Dataset) VarNames() []string {
	names := make([]string, 0, len(d.Vars))
	for name := range d.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sizes maps every distinct dimension name to its size. Two variables
// declaring the same dimension with different sizes is an error.
func (d *Dataset) Sizes() (map[string]int, error) {
	sizes := map[string]int{}
	for name, a := range d.Vars {
		for i, dim := range a.Dims {
			if prev, ok := sizes[dim]; ok && prev != a.Shape[i] {
				return nil, fmt.Errorf("dataset: dimension %q is %d in %q but %d elsewhere",
					dim, a.Shape[i], name, prev)
			}
			sizes[dim] = a.Shape[i]
		}
	}
	return sizes, nil
}
