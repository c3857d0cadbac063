package matching

import (
	"fmt"
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/gnssro/collocate/internal/celestrak"
	"github.com/gnssro/collocate/internal/collocation"
	"github.com/gnssro/collocate/internal/rodb"
	"github.com/gnssro/collocate/internal/timestd"
)

// earthRadiusKm matches earthRadius; go-satellite works in kilometres.
const earthRadiusKm = earthRadius / 1000

// Search steps for the time of closest approach, in seconds. The refinement
// window is wide enough that one-second accuracy suffices.
const (
	coarseStep = 10.0
	fineStep   = 1.0
)

// RotationMatcher generates approximate candidates by propagating the
// sounder's orbit with SGP4 and checking, per occultation, whether the
// occultation falls inside the swath at the time of closest approach. The
// candidates carry an approximate time and scan angle only; exact indices
// come from refinement.
type RotationMatcher struct {
	sgp4 satellite.Satellite
	inst collocation.NadirInstrument
}

// NewRotationMatcher builds a matcher from a two-line element set.
func NewRotationMatcher(tle celestrak.TLE, inst collocation.NadirInstrument) (*RotationMatcher, error) {
	if inst == nil {
		return nil, fmt.Errorf("instrument must not be nil: %w", ErrInvalidArgument)
	}
	if tle.Line1 == "" || tle.Line2 == "" {
		return nil, fmt.Errorf("element set must carry both lines: %w", ErrInvalidArgument)
	}
	return &RotationMatcher{
		sgp4: satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72),
		inst: inst,
	}, nil
}

// Match proposes a candidate for every occultation the swath reaches within
// timeTolerance seconds of the occultation time.
func (m *RotationMatcher) Match(occs *rodb.OccList, timeTolerance float64) (*collocation.CollocationList, error) {
	if occs == nil || occs.Size() == 0 {
		return nil, fmt.Errorf("occultation list must not be empty: %w", ErrInvalidArgument)
	}
	if timeTolerance <= 0 {
		return nil, fmt.Errorf("time tolerance must be positive: %w", ErrInvalidArgument)
	}

	desc := m.inst.Satellite()
	var items []*collocation.Collocation
	for i, rec := range occs.Records() {
		occDir := unitFromDegrees(rec.Longitude, rec.Latitude)

		tca := m.closestApproach(rec.Time, timeTolerance, occDir)
		pos := m.positionECEF(tca)
		beta := angleBetween(normalize(pos), occDir)

		alpha := scanAngle(beta, norm(pos)/earthRadiusKm) * 180 / math.Pi
		if alpha > desc.MaxScanAngle+desc.ScanAngleSpacing/2 {
			continue
		}
		alpha *= m.crossTrackSign(tca, occDir)

		occ, err := occs.At(i)
		if err != nil {
			return nil, err
		}
		t := tca
		c, err := collocation.New(occ, m.inst, collocation.Candidate{
			Time:      &t,
			ScanAngle: &alpha,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}

	return collocation.NewList(items)
}

// closestApproach finds the time inside the tolerance window at which the
// subsatellite point passes nearest the occultation: a coarse sweep followed
// by a fine sweep around the coarse minimum.
func (m *RotationMatcher) closestApproach(t0 timestd.Time, tolerance float64, occDir vec3) timestd.Time {
	best := t0.Add(-tolerance)
	bestAngle := math.Inf(1)
	for dt := -tolerance; dt <= tolerance; dt += coarseStep {
		t := t0.Add(dt)
		if a := angleBetween(normalize(m.positionECEF(t)), occDir); a < bestAngle {
			best, bestAngle = t, a
		}
	}
	coarse := best
	for dt := -coarseStep; dt <= coarseStep; dt += fineStep {
		t := coarse.Add(dt)
		if a := angleBetween(normalize(m.positionECEF(t)), occDir); a < bestAngle {
			best, bestAngle = t, a
		}
	}
	return best
}

// positionECEF propagates the orbit to t and rotates into the Earth-fixed
// frame. Kilometres.
func (m *RotationMatcher) positionECEF(t timestd.Time) vec3 {
	utc := t.UTC()
	year, month, day := utc.Date()
	hour, min, sec := utc.Clock()

	posECI, _ := satellite.Propagate(m.sgp4, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	p := satellite.ECIToECEF(posECI, gmst)
	return vec3{p.X, p.Y, p.Z}
}

// crossTrackSign reports which side of the ground track the occultation lies
// on: positive toward the orbit-normal side. The track direction comes from
// two Earth-fixed positions one second apart.
func (m *RotationMatcher) crossTrackSign(t timestd.Time, occDir vec3) float64 {
	r := normalize(m.positionECEF(t))
	ahead := normalize(m.positionECEF(t.Add(1)))
	track := normalize(sub(ahead, r))
	if dot(occDir, cross(r, track)) < 0 {
		return -1
	}
	return 1
}

// scanAngle converts the Earth-central angle beta (radians) between the
// subsatellite point and a ground target into the instrument scan angle off
// nadir (radians), for a satellite at ratio = r_sat / R_earth.
func scanAngle(beta, ratio float64) float64 {
	return math.Atan2(math.Sin(beta), ratio-math.Cos(beta))
}

type vec3 struct{ x, y, z float64 }

func unitFromDegrees(lonDeg, latDeg float64) vec3 {
	lon := lonDeg * math.Pi / 180
	lat := latDeg * math.Pi / 180
	return vec3{
		x: math.Cos(lon) * math.Cos(lat),
		y: math.Sin(lon) * math.Cos(lat),
		z: math.Sin(lat),
	}
}

func dot(a, b vec3) float64 { return a.x*b.x + a.y*b.y + a.z*b.z }

func cross(a, b vec3) vec3 {
	return vec3{
		x: a.y*b.z - a.z*b.y,
		y: a.z*b.x - a.x*b.z,
		z: a.x*b.y - a.y*b.x,
	}
}

func sub(a, b vec3) vec3 { return vec3{a.x - b.x, a.y - b.y, a.z - b.z} }

func norm(a vec3) float64 { return math.Sqrt(dot(a, a)) }

func normalize(a vec3) vec3 {
	n := norm(a)
	return vec3{a.x / n, a.y / n, a.z / n}
}

func angleBetween(a, b vec3) float64 {
	return math.Acos(math.Max(-1, math.Min(1, dot(a, b))))
}
