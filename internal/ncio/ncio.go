// Package ncio wraps read access to netCDF granule and retrieval files
// behind a narrow interface, so readers can be faked in tests without real
// files.
package ncio

import (
	"fmt"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// File is the subset of a netCDF group the collocation code reads.
type File interface {
	GetVariable(name string) (*api.Variable, error)
	Close()
}

// Open opens a netCDF (classic or netCDF-4/HDF5) file for reading.
func Open(path string) (File, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	return g, nil
}

// Floats reads a variable and flattens it, whatever its numeric element
// type, into row-major float64 values plus the array shape.
func Floats(f File, name string) ([]float64, []int, error) {
	vr, err := f.GetVariable(name)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading variable %q: %w", name, err)
	}
	return Flatten(vr.Values)
}

// Scalar reads a variable expected to hold exactly one value.
func Scalar(f File, name string) (float64, error) {
	values, _, err := Floats(f, name)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("variable %q has %d values, expected a scalar", name, len(values))
	}
	return values[0], nil
}

// Flatten walks arbitrarily nested numeric slices into row-major float64
// values and their shape. A bare number yields one value and an empty shape.
func Flatten(v any) ([]float64, []int, error) {
	var shape []int
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Slice {
		shape = append(shape, rv.Len())
		if rv.Len() == 0 {
			return nil, shape, nil
		}
		rv = rv.Index(0)
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	values := make([]float64, 0, n)
	var walk func(rv reflect.Value, depth int) error
	walk = func(rv reflect.Value, depth int) error {
		if depth == len(shape) {
			switch rv.Kind() {
			case reflect.Float32, reflect.Float64:
				values = append(values, rv.Float())
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				values = append(values, float64(rv.Int()))
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				values = append(values, float64(rv.Uint()))
			default:
				return fmt.Errorf("unsupported element kind %s", rv.Kind())
			}
			return nil
		}
		if rv.Len() != shape[depth] {
			return fmt.Errorf("ragged array: length %d at depth %d, expected %d", rv.Len(), depth, shape[depth])
		}
		for i := 0; i < rv.Len(); i++ {
			if err := walk(rv.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(reflect.ValueOf(v), 0); err != nil {
		return nil, nil, err
	}
	return values, shape, nil
}
