package instrument

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/gnssro/collocate/internal/dataset"
	"github.com/gnssro/collocate/internal/ncio"
	"github.com/gnssro/collocate/internal/timestd"
)

func TestNewSatellite_Validation(t *testing.T) {
	if _, err := NewSatellite("Suomi-NPP", "ATMS", 52.63, 8.0/3, 96, 1.108); err != nil {
		t.Fatalf("NewSatellite failed on valid input: %v", err)
	}
	cases := []struct {
		name, instr       string
		maxAngle, between float64
		footprints        int
		spacing           float64
	}{
		{"", "ATMS", 52.63, 8.0 / 3, 96, 1.108},
		{"Suomi-NPP", "", 52.63, 8.0 / 3, 96, 1.108},
		{"Suomi-NPP", "ATMS", 52.63, 8.0 / 3, 0, 1.108},
		{"Suomi-NPP", "ATMS", -1, 8.0 / 3, 96, 1.108},
		{"Suomi-NPP", "ATMS", 52.63, 0, 96, 1.108},
	}
	for i, c := range cases {
		_, err := NewSatellite(c.name, c.instr, c.maxAngle, c.between, c.footprints, c.spacing)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

// grid builds a 2-scan, 3-footprint table with distinct coordinates.
func grid(t *testing.T, extract ExtractFunc) *ScanMetadata {
	t.Helper()
	lons := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	lats := []float64{-0.1, -0.2, -0.3, -0.4, -0.5, -0.6}
	times := []timestd.Time{timestd.FromGPS(1000), timestd.FromGPS(1000 + 8.0/3)}
	files := []string{"a.nc", "b.nc"}
	sm, err := NewScanMetadata(extract, lons, lats, times, files, []int{0, 1}, []int{7, 0}, 3)
	if err != nil {
		t.Fatalf("NewScanMetadata failed: %v", err)
	}
	return sm
}

func TestScanMetadata_Accessors(t *testing.T) {
	sm := grid(t, nil)
	ns, nf := sm.Dims()
	if ns != 2 || nf != 3 {
		t.Fatalf("Dims() = (%d, %d), expected (2, 3)", ns, nf)
	}
	lon, lat := sm.At(1, 2)
	if lon != 0.6 || lat != -0.6 {
		t.Errorf("At(1, 2) = (%f, %f), expected (0.6, -0.6)", lon, lat)
	}
	if sm.MidTime(1).Sub(sm.MidTime(0)) != 8.0/3 {
		t.Errorf("unexpected scan cadence %f", sm.MidTime(1).Sub(sm.MidTime(0)))
	}
}

func TestNewScanMetadata_Validation(t *testing.T) {
	times := []timestd.Time{timestd.FromGPS(0)}
	if _, err := NewScanMetadata(nil, []float64{1, 2, 3}, []float64{1, 2}, times, nil, []int{0}, []int{0}, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("mismatched lon/lat lengths: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewScanMetadata(nil, []float64{1, 2}, []float64{1, 2}, times, nil, []int{0}, []int{0}, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("non-rectangular grid: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewScanMetadata(nil, []float64{1, 2, 3}, []float64{1, 2, 3}, nil, nil, []int{0}, []int{0}, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("missing mid times: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewScanMetadata(nil, []float64{1, 2, 3}, []float64{1, 2, 3}, times, []string{"a.nc"}, []int{1}, []int{0}, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("file index out of range: expected ErrInvalidArgument, got %v", err)
	}
}

func TestScanMetadata_Extract(t *testing.T) {
	var gotFile string
	var gotScan, gotFootprint int
	extract := func(file string, fileScan, ifootprint int, lonDeg, latDeg float64, tt timestd.Time) (*dataset.Dataset, error) {
		gotFile = file
		gotScan = fileScan
		gotFootprint = ifootprint
		return dataset.NewDataset(), nil
	}
	sm := grid(t, extract)

	if _, err := sm.Extract(0, 1, 11.5, -33.0, timestd.FromGPS(1000)); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if gotFile != "a.nc" || gotScan != 7 || gotFootprint != 1 {
		t.Errorf("extract callback got (%s, %d, %d), expected (a.nc, 7, 1)", gotFile, gotScan, gotFootprint)
	}

	if _, err := sm.Extract(2, 0, 0, 0, timestd.FromGPS(0)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("scan out of range: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := sm.Extract(0, 3, 0, 0, timestd.FromGPS(0)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("footprint out of range: expected ErrInvalidArgument, got %v", err)
	}
}

type fakeFile struct {
	path   string
	closed *int
}

func (f fakeFile) GetVariable(string) (*api.Variable, error) { return nil, errors.New("no variables") }
func (f fakeFile) Close()                                    { *f.closed++ }

func TestFileCache_Eviction(t *testing.T) {
	opened := map[string]int{}
	closed := 0
	open := func(path string) (ncio.File, error) {
		opened[path]++
		return fakeFile{path: path, closed: &closed}, nil
	}
	c := newFileCache(2, open)

	for _, path := range []string{"a", "b", "a", "c", "a"} {
		if _, err := c.acquire(path); err != nil {
			t.Fatalf("acquire(%s) failed: %v", path, err)
		}
	}
	// a stays resident throughout; b is evicted when c arrives.
	if opened["a"] != 1 || opened["b"] != 1 || opened["c"] != 1 {
		t.Errorf("unexpected open counts %v", opened)
	}
	if closed != 1 {
		t.Errorf("%d handles closed, expected 1", closed)
	}

	c.Close()
	if closed != 3 {
		t.Errorf("%d handles closed after Close, expected 3", closed)
	}
}

func TestFileCache_OpenError(t *testing.T) {
	c := newFileCache(2, func(path string) (ncio.File, error) {
		return nil, fmt.Errorf("no such granule %s", path)
	})
	if _, err := c.acquire("missing.nc"); err == nil {
		t.Error("expected error from failing opener")
	}
}

func TestPlanckBlackbody(t *testing.T) {
	// In the Rayleigh-Jeans regime the radiance is close to 2 k T f^2 / c^2.
	freq, tb := 23.8e9, 250.0
	got := planckBlackbody(freq, tb)
	rj := 2 * boltzmannConstant * tb * freq * freq / (speedOfLight * speedOfLight)
	if math.Abs(got-rj)/rj > 0.01 {
		t.Errorf("planckBlackbody(%g, %g) = %g, Rayleigh-Jeans gives %g", freq, tb, got, rj)
	}
	if !math.IsNaN(planckBlackbody(freq, 0)) {
		t.Error("expected NaN for non-physical temperature")
	}
}
