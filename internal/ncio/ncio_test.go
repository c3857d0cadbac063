package ncio

import (
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

type fakeFile struct {
	vars map[string]any
}

func (f *fakeFile) GetVariable(name string) (*api.Variable, error) {
	v, ok := f.vars[name]
	if !ok {
		return nil, errNotFound
	}
	return &api.Variable{Values: v}, nil
}

func (f *fakeFile) Close() {}

var errNotFound = errBase("variable not found")

type errBase string

func (e errBase) Error() string { return string(e) }

func TestFlatten_Nested(t *testing.T) {
	values, shape, err := Flatten([][]float32{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("unexpected shape %v", shape)
	}
	want := []float64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %f, expected %f", i, values[i], want[i])
		}
	}
}

func TestFlatten_IntsAndScalars(t *testing.T) {
	values, shape, err := Flatten([]int16{2024, 3, 13})
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(shape) != 1 || shape[0] != 3 || values[0] != 2024 {
		t.Errorf("unexpected result %v %v", values, shape)
	}

	values, shape, err = Flatten(float64(6371000))
	if err != nil {
		t.Fatalf("Flatten failed on scalar: %v", err)
	}
	if len(shape) != 0 || len(values) != 1 || values[0] != 6371000 {
		t.Errorf("unexpected scalar result %v %v", values, shape)
	}
}

func TestFlatten_Ragged(t *testing.T) {
	if _, _, err := Flatten([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged array")
	}
}

func TestFloatsAndScalar(t *testing.T) {
	f := &fakeFile{vars: map[string]any{
		"lat":               [][]float32{{45.0, 45.1}},
		"radiusOfCurvature": float64(6372145),
	}}

	values, shape, err := Floats(f, "lat")
	if err != nil {
		t.Fatalf("Floats failed: %v", err)
	}
	if len(shape) != 2 || shape[0] != 1 || shape[1] != 2 {
		t.Errorf("unexpected shape %v", shape)
	}
	if values[0] < 44.9 || values[0] > 45.1 {
		t.Errorf("unexpected value %f", values[0])
	}

	r, err := Scalar(f, "radiusOfCurvature")
	if err != nil {
		t.Fatalf("Scalar failed: %v", err)
	}
	if r != 6372145 {
		t.Errorf("unexpected scalar %f", r)
	}

	if _, err := Scalar(f, "lat"); err == nil {
		t.Error("expected error for non-scalar variable")
	}
	if _, _, err := Floats(f, "absent"); err == nil {
		t.Error("expected error for missing variable")
	}
}
