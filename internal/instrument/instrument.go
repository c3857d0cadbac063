// Package instrument models nadir-scanning microwave sounders: the
// per-satellite scan geometry, the geolocation table for a queried time
// window (ScanMetadata), and the per-footprint science-data extraction.
package instrument

import (
	"errors"
	"fmt"

	"github.com/gnssro/collocate/internal/dataset"
	"github.com/gnssro/collocate/internal/timestd"
)

// ErrInvalidArgument reports malformed caller input.
var ErrInvalidArgument = errors.New("invalid argument")

// Satellite is the immutable configuration of one nadir-sounder platform.
type Satellite struct {
	Name              string
	Instrument        string
	MaxScanAngle      float64 // degrees, half swath
	TimeBetweenScans  float64 // seconds
	FootprintsPerScan int
	ScanAngleSpacing  float64 // degrees between adjacent footprints
}

// NewSatellite validates and builds a descriptor.
func NewSatellite(name, instr string, maxScanAngle, timeBetweenScans float64,
	footprintsPerScan int, scanAngleSpacing float64) (Satellite, error) {

	if name == "" || instr == "" {
		return Satellite{}, fmt.Errorf("satellite and instrument names must not be empty: %w", ErrInvalidArgument)
	}
	if footprintsPerScan < 1 {
		return Satellite{}, fmt.Errorf("footprints per scan must be at least 1: %w", ErrInvalidArgument)
	}
	if maxScanAngle <= 0 || timeBetweenScans <= 0 || scanAngleSpacing <= 0 {
		return Satellite{}, fmt.Errorf("scan geometry must be positive: %w", ErrInvalidArgument)
	}
	return Satellite{
		Name:              name,
		Instrument:        instr,
		MaxScanAngle:      maxScanAngle,
		TimeBetweenScans:  timeBetweenScans,
		FootprintsPerScan: footprintsPerScan,
		ScanAngleSpacing:  scanAngleSpacing,
	}, nil
}

// ExtractFunc pulls the science record of one footprint out of a granule
// file. fileScan is the scan row within that file. Longitude and latitude
// are degrees; they and the time ride along into the returned dataset for
// traceability.
type ExtractFunc func(file string, fileScan, ifootprint int, lonDeg, latDeg float64, t timestd.Time) (*dataset.Dataset, error)

// ScanMetadata is the geolocation table of all scans in a queried time
// window: a rectangular scans x footprints grid of longitudes and latitudes
// (radians) with one mid-scan time per row, tied back to the granule files
// the rows came from. It is produced fresh per query and owned by the
// caller.
type ScanMetadata struct {
	longitudes  []float64 // radians, row-major scans x footprints
	latitudes   []float64
	midTimes    []timestd.Time
	files       []string
	fileIndices []int // per scan: index into files
	fileScans   []int // per scan: row within that file
	nScans      int
	nFootprints int
	extract     ExtractFunc
}

// NewScanMetadata builds a table and validates its rectangularity.
func NewScanMetadata(extract ExtractFunc, longitudes, latitudes []float64,
	midTimes []timestd.Time, files []string, fileIndices, fileScans []int,
	nFootprints int) (*ScanMetadata, error) {

	if nFootprints < 1 {
		return nil, fmt.Errorf("footprints per scan must be at least 1: %w", ErrInvalidArgument)
	}
	if len(longitudes) != len(latitudes) {
		return nil, fmt.Errorf("%d longitudes vs %d latitudes: %w", len(longitudes), len(latitudes), ErrInvalidArgument)
	}
	if len(longitudes)%nFootprints != 0 {
		return nil, fmt.Errorf("%d geolocations do not tile %d footprints per scan: %w",
			len(longitudes), nFootprints, ErrInvalidArgument)
	}
	nScans := len(longitudes) / nFootprints
	if len(midTimes) != nScans || len(fileIndices) != nScans || len(fileScans) != nScans {
		return nil, fmt.Errorf("per-scan metadata does not match %d scans: %w", nScans, ErrInvalidArgument)
	}
	for _, fi := range fileIndices {
		if fi < 0 || fi >= len(files) {
			return nil, fmt.Errorf("file index %d out of range [0,%d): %w", fi, len(files), ErrInvalidArgument)
		}
	}
	return &ScanMetadata{
		longitudes:  longitudes,
		latitudes:   latitudes,
		midTimes:    midTimes,
		files:       files,
		fileIndices: fileIndices,
		fileScans:   fileScans,
		nScans:      nScans,
		nFootprints: nFootprints,
		extract:     extract,
	}, nil
}

// Dims returns (scans, footprints).
func (s *ScanMetadata) Dims() (int, int) { return s.nScans, s.nFootprints }

// At returns the longitude and latitude (radians) of one footprint.
func (s *ScanMetadata) At(iscan, ifootprint int) (float64, float64) {
	i := iscan*s.nFootprints + ifootprint
	return s.longitudes[i], s.latitudes[i]
}

// Longitudes returns the full longitude grid in radians. Callers must not
// mutate it.
func (s *ScanMetadata) Longitudes() []float64 { return s.longitudes }

// Latitudes returns the full latitude grid in radians.
func (s *ScanMetadata) Latitudes() []float64 { return s.latitudes }

// MidTime returns the mid-scan time of one scan row.
func (s *ScanMetadata) MidTime(iscan int) timestd.Time { return s.midTimes[iscan] }

// MidTimes returns all mid-scan times.
func (s *ScanMetadata) MidTimes() []timestd.Time { return s.midTimes }

// checkIndices validates a scan/footprint pair against the grid.
func (s *ScanMetadata) checkIndices(iscan, ifootprint int) error {
	if iscan < 0 || iscan >= s.nScans {
		return fmt.Errorf("scan index %d out of range [0,%d): %w", iscan, s.nScans, ErrInvalidArgument)
	}
	if ifootprint < 0 || ifootprint >= s.nFootprints {
		return fmt.Errorf("footprint index %d out of range [0,%d): %w", ifootprint, s.nFootprints, ErrInvalidArgument)
	}
	return nil
}

// Extract pulls the science record of the given footprint, resolving which
// granule file and in-file scan row back the table row.
func (s *ScanMetadata) Extract(iscan, ifootprint int, lonDeg, latDeg float64, t timestd.Time) (*dataset.Dataset, error) {
	if err := s.checkIndices(iscan, ifootprint); err != nil {
		return nil, err
	}
	if s.extract == nil {
		return nil, fmt.Errorf("scan metadata has no extraction callback: %w", ErrInvalidArgument)
	}
	file := s.files[s.fileIndices[iscan]]
	return s.extract(file, s.fileScans[iscan], ifootprint, lonDeg, latDeg, t)
}
