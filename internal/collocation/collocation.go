// Package collocation implements the matched occultation/footprint entity,
// the set algebra over collections of matches, the confusion-matrix
// validation of the rotation method against brute force, and the writing of
// the merged artifact.
package collocation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gnssro/collocate/internal/dataset"
	"github.com/gnssro/collocate/internal/instrument"
	"github.com/gnssro/collocate/internal/ncio"
	"github.com/gnssro/collocate/internal/rodb"
	"github.com/gnssro/collocate/internal/timestd"
)

var (
	// ErrInvalidArgument reports malformed or out-of-range caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingData reports an operation that needs a field not yet
	// populated.
	ErrMissingData = errors.New("missing data")
	// ErrInvalidOccultation reports an occultation whose product download
	// did not yield exactly one file.
	ErrInvalidOccultation = errors.New("invalid occultation")
)

// NadirInstrument is what the collocation entity needs from an instrument
// reader.
type NadirInstrument interface {
	Satellite() instrument.Satellite
	GetGeolocations(tr timestd.Range) (*instrument.ScanMetadata, error)
}

// refinementWindowScans is the half width, in scan periods, of the
// geolocation window fetched during refinement. Scan density is at least one
// scan per period, so the true nearest scan is guaranteed inside.
const refinementWindowScans = 4

// Candidate carries the optional fields a matching strategy may know about a
// collocation before refinement. Longitude and latitude are degrees, the
// scan angle degrees off nadir.
type Candidate struct {
	Longitude  *float64
	Latitude   *float64
	Time       *timestd.Time
	ScanAngle  *float64
	Scans      *instrument.ScanMetadata
	IScan      *int
	IFootprint *int
}

// Data is the materialized payload of one collocation.
type Data struct {
	OccID       string
	Occultation *dataset.Dataset
	Sounder     *dataset.Dataset
}

// Collocation is one matched or candidate occultation/footprint pair. It is
// single-owner: refinement and materialization mutate it and must not run
// concurrently.
type Collocation struct {
	occ  *rodb.OccList
	inst NadirInstrument

	Longitude  *float64 // degrees east
	Latitude   *float64 // degrees north
	Time       *timestd.Time
	ScanAngle  *float64 // degrees off nadir
	Scans      *instrument.ScanMetadata
	IScan      *int
	IFootprint *int

	// Data holds the merged payload once GetData has run.
	Data *Data

	openProfile func(path string) (ncio.File, error)
}

// New validates and builds a collocation from an occultation, an instrument
// reader and whatever the matching strategy knows so far.
func New(occ *rodb.OccList, inst NadirInstrument, cand Candidate) (*Collocation, error) {
	if occ == nil || occ.Size() != 1 {
		return nil, fmt.Errorf("occultation must be a list of size 1: %w", ErrInvalidArgument)
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument must not be nil: %w", ErrInvalidArgument)
	}
	if cand.IScan != nil && *cand.IScan < 0 {
		return nil, fmt.Errorf("scan index must not be negative: %w", ErrInvalidArgument)
	}
	if cand.IFootprint != nil && *cand.IFootprint < 0 {
		return nil, fmt.Errorf("footprint index must not be negative: %w", ErrInvalidArgument)
	}
	if cand.Scans != nil {
		nscans, nfootprints := cand.Scans.Dims()
		if cand.IScan != nil && *cand.IScan >= nscans {
			return nil, fmt.Errorf("scan index %d out of range [0,%d): %w", *cand.IScan, nscans, ErrInvalidArgument)
		}
		if cand.IFootprint != nil && *cand.IFootprint >= nfootprints {
			return nil, fmt.Errorf("footprint index %d out of range [0,%d): %w", *cand.IFootprint, nfootprints, ErrInvalidArgument)
		}
	}
	return &Collocation{
		occ:         occ,
		inst:        inst,
		Longitude:   cand.Longitude,
		Latitude:    cand.Latitude,
		Time:        cand.Time,
		ScanAngle:   cand.ScanAngle,
		Scans:       cand.Scans,
		IScan:       cand.IScan,
		IFootprint:  cand.IFootprint,
		openProfile: ncio.Open,
	}, nil
}

// OccID returns the identifier of the underlying occultation.
func (c *Collocation) OccID() string { return c.occ.Records()[0].OccID }

// Occultation returns the size-1 occultation list backing the collocation.
func (c *Collocation) Occultation() *rodb.OccList { return c.occ }

// Instrument returns the instrument reader backing the collocation.
func (c *Collocation) Instrument() NadirInstrument { return c.inst }

// RefineScannerIndices resolves the exact footprint nearest the occultation.
// It requires the approximate time and scan angle, fetches the geolocation
// window if absent, and overwrites the approximate coordinates with the
// resolved footprint's.
func (c *Collocation) RefineScannerIndices() error {
	if c.ScanAngle == nil {
		return fmt.Errorf("scan angle is required to refine scanner indices: %w", ErrMissingData)
	}
	if c.Time == nil {
		return fmt.Errorf("sounding time is required to refine scanner indices: %w", ErrMissingData)
	}

	if c.Scans == nil {
		// The window is closed on both ends; Range.Contains excludes End, so
		// nudge the upper bound past time + 4 scan periods.
		half := refinementWindowScans * c.inst.Satellite().TimeBetweenScans
		end := timestd.FromGPS(math.Nextafter(c.Time.Add(half).GPS(), math.Inf(1)))
		tr := timestd.Range{Start: c.Time.Add(-half), End: end}
		scans, err := c.inst.GetGeolocations(tr)
		if err != nil {
			return fmt.Errorf("error fetching geolocations: %w", err)
		}
		c.Scans = scans
	}

	nscans, nfootprints := c.Scans.Dims()
	if nscans == 0 {
		return fmt.Errorf("no scans in the refinement window: %w", ErrMissingData)
	}

	rec := c.occ.Records()[0]
	lon := rec.Longitude * math.Pi / 180
	lat := rec.Latitude * math.Pi / 180
	ox := math.Cos(lon) * math.Cos(lat)
	oy := math.Sin(lon) * math.Cos(lat)
	oz := math.Sin(lat)

	// Great-circle angular distance to every footprint; the first minimum
	// wins.
	lons, lats := c.Scans.Longitudes(), c.Scans.Latitudes()
	best, bestDist := 0, math.Inf(1)
	for i := range lons {
		sx := math.Cos(lons[i]) * math.Cos(lats[i])
		sy := math.Sin(lons[i]) * math.Cos(lats[i])
		sz := math.Sin(lats[i])
		dot := ox*sx + oy*sy + oz*sz
		dist := math.Acos(math.Max(-1, math.Min(1, dot)))
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}

	iscan := best / nfootprints
	ifootprint := best % nfootprints
	c.IScan = &iscan
	c.IFootprint = &ifootprint

	flon := lons[best] * 180 / math.Pi
	flat := lats[best] * 180 / math.Pi
	c.Longitude = &flon
	c.Latitude = &flat
	return nil
}

// GetData materializes the merged occultation and sounder payload, refining
// the scanner indices first when they are not yet resolved. center names the
// RO processing center whose retrieval product to download.
func (c *Collocation) GetData(ctx context.Context, center string) (*Data, error) {
	if center == "" {
		return nil, fmt.Errorf("processing center must not be empty: %w", ErrInvalidArgument)
	}

	product := center + "_refractivityRetrieval"
	files, err := c.occ.Download(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("unable to obtain %s for collocated occultation: %w", product, ErrInvalidOccultation)
	}
	if len(files) != 1 {
		return nil, fmt.Errorf("%s yielded %d files for collocated occultation, expected 1: %w",
			product, len(files), ErrInvalidOccultation)
	}

	if c.IScan == nil || c.IFootprint == nil {
		if err := c.RefineScannerIndices(); err != nil {
			return nil, err
		}
	}
	if c.Scans == nil {
		return nil, fmt.Errorf("scan metadata is required to materialize data: %w", ErrMissingData)
	}

	// The approximate time gives way to the resolved scan's mid time.
	t := c.Scans.MidTime(*c.IScan)
	c.Time = &t
	if c.Longitude == nil || c.Latitude == nil {
		lon, lat := c.Scans.At(*c.IScan, *c.IFootprint)
		flon, flat := lon*180/math.Pi, lat*180/math.Pi
		c.Longitude = &flon
		c.Latitude = &flat
	}

	occDS, err := c.readProfile(files[0], t)
	if err != nil {
		return nil, err
	}

	sounderDS, err := c.Scans.Extract(*c.IScan, *c.IFootprint, *c.Longitude, *c.Latitude, t)
	if err != nil {
		return nil, fmt.Errorf("error extracting sounder data: %w", err)
	}

	c.Data = &Data{
		OccID:       c.OccID(),
		Occultation: occDS,
		Sounder:     sounderDS,
	}
	return c.Data, nil
}

// readProfile extracts the fixed occultation profile schema from a
// refractivityRetrieval file.
func (c *Collocation) readProfile(file string, t timestd.Time) (*dataset.Dataset, error) {
	f, err := c.openProfile(file)
	if err != nil {
		return nil, fmt.Errorf("error opening occultation profile: %w", err)
	}
	defer f.Close()

	rec := c.occ.Records()[0]
	ds := dataset.NewDataset()

	ds.Add("longitude", dataset.Scalar(rec.Longitude).SetAttrs(map[string]string{
		"description": "Longitude of radio occultation sounding, eastward",
		"units":       "degrees",
	}))
	ds.Add("latitude", dataset.Scalar(rec.Latitude).SetAttrs(map[string]string{
		"description": "Latitude of radio occultation sounding, northward",
		"units":       "degrees",
	}))

	profileVars := []struct {
		name        string
		dim         string
		description string
		units       string
	}{
		{"bendingAngle", "impactParameter", "Bending angle, ionosphere calibrated, unoptimized", "radians"},
		{"impactParameter", "impactParameter", "Impact parameter of ray", "meters"},
		{"refractivity", "altitude", "Refractivity", "N-units"},
		{"geopotential", "altitude", "Geopotential energy per unit mass", "J/kg"},
		{"altitude", "altitude", "Altitude above mean sea-level geoid", "meters"},
	}
	for _, pv := range profileVars {
		values, _, err := ncio.Floats(f, pv.name)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", pv.name, err)
		}
		ds.Add(pv.name, dataset.Masked(values, pv.dim).SetAttrs(map[string]string{
			"description": pv.description,
			"units":       pv.units,
		}))
	}

	roc, err := ncio.Scalar(f, "radiusOfCurvature")
	if err != nil {
		return nil, fmt.Errorf("error reading radiusOfCurvature: %w", err)
	}
	ds.Add("radiusOfCurvature", dataset.Scalar(roc).SetAttrs(map[string]string{
		"description": "Local radius of curvature of the Earth",
		"units":       "meters",
	}))

	ds.SetAttrs(map[string]string{
		"file":        file,
		"mission":     rec.Mission,
		"transmitter": rec.Transmitter,
		"receiver":    rec.Receiver,
		"time":        t.ISO8601(),
	})
	return ds, nil
}
