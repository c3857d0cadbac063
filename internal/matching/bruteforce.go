// Package matching generates collocation candidates: an exhaustive
// brute-force matcher used as ground truth, and the fast rotation matcher
// that propagates the sounder's orbit from a two-line element set.
package matching

import (
	"errors"
	"fmt"
	"math"

	"github.com/gnssro/collocate/internal/collocation"
	"github.com/gnssro/collocate/internal/instrument"
	"github.com/gnssro/collocate/internal/rodb"
)

// ErrInvalidArgument reports malformed caller input.
var ErrInvalidArgument = errors.New("invalid argument")

// earthRadius is the mean Earth radius in meters, used to convert great
// circle angles to ground distances.
const earthRadius = 6.371e6

// BruteForce runs the all-pairs check of every occultation against every
// footprint in the scan table. A match requires the scan's mid time within
// timeTolerance seconds of the occultation and the footprint within
// spatialTolerance meters along the great circle; the nearest qualifying
// footprint wins. The result carries exact scan and footprint indices.
func BruteForce(occs *rodb.OccList, inst collocation.NadirInstrument,
	scans *instrument.ScanMetadata, timeTolerance, spatialTolerance float64) (*collocation.CollocationList, error) {

	if occs == nil || occs.Size() == 0 {
		return nil, fmt.Errorf("occultation list must not be empty: %w", ErrInvalidArgument)
	}
	if scans == nil {
		return nil, fmt.Errorf("scan metadata must not be nil: %w", ErrInvalidArgument)
	}
	if timeTolerance <= 0 || spatialTolerance <= 0 {
		return nil, fmt.Errorf("tolerances must be positive: %w", ErrInvalidArgument)
	}

	nscans, nfootprints := scans.Dims()
	lons, lats := scans.Longitudes(), scans.Latitudes()
	angularTolerance := spatialTolerance / earthRadius
	desc := inst.Satellite()

	var items []*collocation.Collocation
	for i, rec := range occs.Records() {
		lon := rec.Longitude * math.Pi / 180
		lat := rec.Latitude * math.Pi / 180
		ox := math.Cos(lon) * math.Cos(lat)
		oy := math.Sin(lon) * math.Cos(lat)
		oz := math.Sin(lat)

		best, bestDist := -1, math.Inf(1)
		for iscan := 0; iscan < nscans; iscan++ {
			if math.Abs(scans.MidTime(iscan).Sub(rec.Time)) > timeTolerance {
				continue
			}
			for ifp := 0; ifp < nfootprints; ifp++ {
				j := iscan*nfootprints + ifp
				sx := math.Cos(lons[j]) * math.Cos(lats[j])
				sy := math.Sin(lons[j]) * math.Cos(lats[j])
				sz := math.Sin(lats[j])
				dot := ox*sx + oy*sy + oz*sz
				dist := math.Acos(math.Max(-1, math.Min(1, dot)))
				if dist < bestDist {
					best, bestDist = j, dist
				}
			}
		}
		if best < 0 || bestDist > angularTolerance {
			continue
		}

		occ, err := occs.At(i)
		if err != nil {
			return nil, err
		}
		iscan := best / nfootprints
		ifootprint := best % nfootprints
		flon := lons[best] * 180 / math.Pi
		flat := lats[best] * 180 / math.Pi
		t := scans.MidTime(iscan)
		angle := footprintScanAngle(ifootprint, desc)

		c, err := collocation.New(occ, inst, collocation.Candidate{
			Longitude:  &flon,
			Latitude:   &flat,
			Time:       &t,
			ScanAngle:  &angle,
			Scans:      scans,
			IScan:      &iscan,
			IFootprint: &ifootprint,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}

	return collocation.NewList(items)
}

// footprintScanAngle is the cross-track scan angle (degrees off nadir,
// negative on the first half of the scan) of a footprint position.
func footprintScanAngle(ifootprint int, desc instrument.Satellite) float64 {
	center := float64(desc.FootprintsPerScan-1) / 2
	return (float64(ifootprint) - center) * desc.ScanAngleSpacing
}
