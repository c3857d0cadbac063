package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gnssro/collocate/internal/archive"
	"github.com/gnssro/collocate/internal/dataset"
	"github.com/gnssro/collocate/internal/ncio"
	"github.com/gnssro/collocate/internal/timestd"
)

// Physical constants for the radiance conversion.
const (
	planckConstant    = 6.62607015e-34 // J s
	boltzmannConstant = 1.380649e-23   // J/K
	speedOfLight      = 2.99792458e8   // m/s
)

// planckBlackbody returns the Planck radiance (W m**-2 Hz**-1 sr**-1) at
// frequency freq (Hz) for brightness temperature tb (K). Non-physical
// temperatures yield NaN, which the dataset layer masks.
func planckBlackbody(freq, tb float64) float64 {
	if tb <= 0 {
		return math.NaN()
	}
	x := planckConstant * freq / (boltzmannConstant * tb)
	return 2 * planckConstant * freq * freq * freq / (speedOfLight * speedOfLight) / (math.Exp(x) - 1)
}

// ATMS scan geometry, identical across the JPSS platforms.
const (
	atmsMaxScanAngle      = 52.63     // degrees
	atmsTimeBetweenScans  = 8.0 / 3.0 // seconds
	atmsFootprintsPerScan = 96
	atmsScanAngleSpacing  = 1.108 // degrees
)

// openGranules bounds the number of granule files held open during
// extraction.
const openGranules = 4

// ATMS reads ATMS level 1B granules for one JPSS satellite out of a local
// archive. Extraction holds granule files open in a small LRU cache, so an
// ATMS value is not safe for concurrent use and must be closed when done.
type ATMS struct {
	sat   Satellite
	store archive.Client
	cache *fileCache
}

// NewATMS builds a reader for the named satellite (aliases accepted).
func NewATMS(name string, store archive.Client) (*ATMS, error) {
	canonical, err := archive.CanonicalSatellite(name)
	if err != nil {
		return nil, err
	}
	sat, err := NewSatellite(canonical, "ATMS",
		atmsMaxScanAngle, atmsTimeBetweenScans, atmsFootprintsPerScan, atmsScanAngleSpacing)
	if err != nil {
		return nil, err
	}
	return &ATMS{
		sat:   sat,
		store: store,
		cache: newFileCache(openGranules, ncio.Open),
	}, nil
}

// Satellite returns the immutable platform descriptor.
func (a *ATMS) Satellite() Satellite { return a.sat }

// Populate downloads any granules missing from the local archive for the
// time range.
func (a *ATMS) Populate(ctx context.Context, tr timestd.Range) error {
	return a.store.Populate(ctx, a.sat.Name, "atms", tr)
}

// Close releases any granule files held open by extraction.
func (a *ATMS) Close() { a.cache.Close() }

// GetGeolocations reads the footprint geolocations of every scan inside the
// time range from the local archive.
func (a *ATMS) GetGeolocations(tr timestd.Range) (*ScanMetadata, error) {
	files, err := a.store.GetPaths(a.sat.Name, "atms", tr)
	if err != nil {
		return nil, err
	}

	var (
		longitudes, latitudes []float64
		midTimes              []timestd.Time
		fileIndices           []int
		fileScans             []int
	)

	for ifile, file := range files {
		lons, lats, times, err := a.geolocationsFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("error reading geolocations from %s: %w", file, err)
		}
		for iy, t := range times {
			if !tr.Contains(t) {
				continue
			}
			nfp := a.sat.FootprintsPerScan
			longitudes = append(longitudes, lons[iy*nfp:(iy+1)*nfp]...)
			latitudes = append(latitudes, lats[iy*nfp:(iy+1)*nfp]...)
			midTimes = append(midTimes, t)
			fileIndices = append(fileIndices, ifile)
			fileScans = append(fileScans, iy)
		}
	}

	return NewScanMetadata(a.extractData, longitudes, latitudes, midTimes,
		files, fileIndices, fileScans, a.sat.FootprintsPerScan)
}

// geolocationsFromFile reads the full lon/lat grid (converted to radians)
// and per-scan mid times of one granule.
func (a *ATMS) geolocationsFromFile(file string) (lons, lats []float64, times []timestd.Time, err error) {
	f, err := ncio.Open(file)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	lats, latShape, err := ncio.Floats(f, "lat")
	if err != nil {
		return nil, nil, nil, err
	}
	lons, lonShape, err := ncio.Floats(f, "lon")
	if err != nil {
		return nil, nil, nil, err
	}
	if len(latShape) != 2 || len(lonShape) != 2 || latShape[1] != a.sat.FootprintsPerScan {
		return nil, nil, nil, fmt.Errorf("unexpected geolocation shape %v", latShape)
	}
	ny, nx := latShape[0], latShape[1]

	for i := range lats {
		lats[i] *= math.Pi / 180
		lons[i] *= math.Pi / 180
	}

	// obs_time_utc carries one (year, month, day, hour, minute, second,
	// millisecond, microsecond) tuple per footprint; the swath-center
	// column is the mid-scan time.
	tuples, tShape, err := ncio.Floats(f, "obs_time_utc")
	if err != nil {
		return nil, nil, nil, err
	}
	if len(tShape) != 3 || tShape[0] != ny || tShape[1] != nx || tShape[2] < 8 {
		return nil, nil, nil, fmt.Errorf("unexpected obs_time_utc shape %v", tShape)
	}
	ix := nx / 2
	width := tShape[2]
	times = make([]timestd.Time, ny)
	for iy := 0; iy < ny; iy++ {
		tp := tuples[(iy*nx+ix)*width:]
		utc := time.Date(int(tp[0]), time.Month(tp[1]), int(tp[2]),
			int(tp[3]), int(tp[4]), int(tp[5]), 0, time.UTC)
		times[iy] = timestd.FromUTC(utc).Add(tp[6]*1.0e-3 + tp[7]*1.0e-6)
	}

	return lons, lats, times, nil
}

// extractData is the per-footprint extraction callback wired into
// ScanMetadata. It converts the footprint's antenna temperatures to
// radiances in mW m**-2 (cm**-1)**-1 sr**-1.
func (a *ATMS) extractData(file string, fileScan, ifootprint int, lonDeg, latDeg float64, t timestd.Time) (*dataset.Dataset, error) {
	f, err := a.cache.acquire(file)
	if err != nil {
		return nil, err
	}

	tb, tbShape, err := ncio.Floats(f, "antenna_temp")
	if err != nil {
		return nil, err
	}
	if len(tbShape) != 3 {
		return nil, fmt.Errorf("unexpected antenna_temp shape %v", tbShape)
	}
	ny, nx, nchan := tbShape[0], tbShape[1], tbShape[2]
	if fileScan < 0 || fileScan >= ny {
		return nil, fmt.Errorf("scan row %d out of range [0,%d): %w", fileScan, ny, ErrInvalidArgument)
	}
	if ifootprint < 0 || ifootprint >= nx {
		return nil, fmt.Errorf("footprint %d out of range [0,%d): %w", ifootprint, nx, ErrInvalidArgument)
	}

	freqs, freqShape, err := ncio.Floats(f, "center_freq") // MHz
	if err != nil {
		return nil, err
	}
	if len(freqShape) != 1 || freqShape[0] != nchan {
		return nil, fmt.Errorf("unexpected center_freq shape %v", freqShape)
	}

	zenith, zenShape, err := ncio.Floats(f, "sat_zen")
	if err != nil {
		return nil, err
	}
	if len(zenShape) != 2 || zenShape[0] != ny || zenShape[1] != nx {
		return nil, fmt.Errorf("unexpected sat_zen shape %v", zenShape)
	}

	// Radiance in W m**-2 Hz**-1 sr**-1, converted to
	// mW m**-2 (cm**-1)**-1 sr**-1.
	radiances := make([]float64, nchan)
	channels := make([]float64, nchan)
	base := (fileScan*nx + ifootprint) * nchan
	for ich := 0; ich < nchan; ich++ {
		radiances[ich] = planckBlackbody(freqs[ich]*1.0e6, tb[base+ich]) * 1.0e3 * speedOfLight * 100.0
		channels[ich] = float64(ich + 1)
	}

	ds := dataset.NewDataset()
	ds.Add("data", dataset.Masked(radiances, "channel").SetAttrs(map[string]string{
		"description": "Microwave radiance from ATMS instrument",
		"units":       "mW m**-2 (cm**-1)**-1 steradian**-1",
	}))
	ds.Add("channel", dataset.Masked(channels, "channel").SetAttrs(map[string]string{
		"description": "ATMS channel number",
		"units":       "1",
	}))
	ds.Add("zenith", dataset.MaskedScalar(zenith[fileScan*nx+ifootprint]).SetAttrs(map[string]string{
		"description": "Zenith angle from surface to satellite",
		"units":       "degrees",
	}))
	ds.Add("longitude", dataset.Scalar(lonDeg).SetAttrs(map[string]string{
		"description": "Longitude of sounding, eastward",
		"units":       "degrees",
	}))
	ds.Add("latitude", dataset.Scalar(latDeg).SetAttrs(map[string]string{
		"description": "Latitude of sounding, northward",
		"units":       "degrees",
	}))
	ds.SetAttrs(map[string]string{
		"satellite":       a.sat.Name,
		"instrument":      a.sat.Instrument,
		"data_file_path":  file,
		"scan_index":      strconv.Itoa(fileScan),
		"footprint_index": strconv.Itoa(ifootprint),
		"time":            t.ISO8601(),
	})
	return ds, nil
}
