// Package timestd provides the scalar time coordinate shared by the
// collocation code. A Time is a count of SI seconds since the GPS epoch
// (1980-01-06T00:00:00 UTC), so arithmetic is free of leap-second
// discontinuities; conversion to and from UTC goes through the leap-second
// table below.
package timestd

import "time"

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// leap holds one leap-second insertion: the UTC instant it took effect and
// the cumulative GPS-UTC offset from that instant on.
type leap struct {
	utc    time.Time
	offset float64
}

// GPS-UTC offsets since the GPS epoch. The last entry (18 s) has been in
// effect since 2017-01-01.
var leaps = []leap{
	{time.Date(1981, 7, 1, 0, 0, 0, 0, time.UTC), 1},
	{time.Date(1982, 7, 1, 0, 0, 0, 0, time.UTC), 2},
	{time.Date(1983, 7, 1, 0, 0, 0, 0, time.UTC), 3},
	{time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC), 4},
	{time.Date(1988, 1, 1, 0, 0, 0, 0, time.UTC), 5},
	{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 6},
	{time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), 7},
	{time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC), 8},
	{time.Date(1993, 7, 1, 0, 0, 0, 0, time.UTC), 9},
	{time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC), 10},
	{time.Date(1996, 1, 1, 0, 0, 0, 0, time.UTC), 11},
	{time.Date(1997, 7, 1, 0, 0, 0, 0, time.UTC), 12},
	{time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 13},
	{time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC), 14},
	{time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), 15},
	{time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC), 16},
	{time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), 17},
	{time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 18},
}

// Time is an instant on the GPS time scale.
type Time struct {
	gps float64 // seconds since the GPS epoch
}

// FromGPS constructs a Time from seconds since the GPS epoch.
func FromGPS(sec float64) Time {
	return Time{gps: sec}
}

// FromUTC converts a civil UTC instant to GPS time.
func FromUTC(t time.Time) Time {
	var offset float64
	for _, l := range leaps {
		if !t.Before(l.utc) {
			offset = l.offset
		}
	}
	return Time{gps: t.Sub(gpsEpoch).Seconds() + offset}
}

// Now returns the current instant.
func Now() Time {
	return FromUTC(time.Now().UTC())
}

// GPS returns seconds since the GPS epoch.
func (t Time) GPS() float64 { return t.gps }

// UTC converts back to a civil UTC instant, truncated to nanoseconds.
func (t Time) UTC() time.Time {
	var offset float64
	for _, l := range leaps {
		// Effective GPS second of this leap entry.
		start := l.utc.Sub(gpsEpoch).Seconds() + l.offset
		if t.gps >= start {
			offset = l.offset
		}
	}
	return gpsEpoch.Add(time.Duration((t.gps - offset) * float64(time.Second)))
}

// Add returns the instant sec seconds later.
func (t Time) Add(sec float64) Time { return Time{gps: t.gps + sec} }

// Sub returns the elapsed seconds t - u.
func (t Time) Sub(u Time) float64 { return t.gps - u.gps }

func (t Time) Before(u Time) bool { return t.gps < u.gps }
func (t Time) After(u Time) bool  { return t.gps > u.gps }
func (t Time) Equal(u Time) bool  { return t.gps == u.gps }

// ISO8601 formats the instant as UTC with second precision and a trailing Z,
// the convention used for all artifact attributes.
func (t Time) ISO8601() string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}

// Range is a half-open [Start, End) time window.
type Range struct {
	Start, End Time
}

// Contains reports whether t lies inside the window.
func (r Range) Contains(t Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether two windows share any instant. Both bounds are
// treated inclusively here because archive granule ranges are inclusive.
func (r Range) Overlaps(o Range) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}
