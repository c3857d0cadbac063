package timestd

import (
	"testing"
	"time"
)

func TestFromUTC_EpochIsZero(t *testing.T) {
	got := FromUTC(time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC))
	if got.GPS() != 0 {
		t.Errorf("expected 0 at the GPS epoch, got %f", got.GPS())
	}
}

func TestFromUTC_LeapSecondOffset(t *testing.T) {
	// Since 2017-01-01 GPS leads UTC by 18 s.
	utc := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	gps := FromUTC(utc)
	naive := utc.Sub(time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)).Seconds()
	if diff := gps.GPS() - naive; diff != 18 {
		t.Errorf("expected GPS-UTC offset 18, got %f", diff)
	}
}

func TestUTC_RoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(1995, 6, 30, 23, 59, 59, 0, time.UTC),
		time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 18, 30, 15, 0, time.UTC),
	}
	for _, utc := range cases {
		got := FromUTC(utc).UTC()
		if d := got.Sub(utc); d > time.Microsecond || d < -time.Microsecond {
			t.Errorf("round trip of %v drifted by %v", utc, d)
		}
	}
}

func TestArithmetic(t *testing.T) {
	a := FromGPS(1000)
	b := a.Add(2.5)
	if b.Sub(a) != 2.5 {
		t.Errorf("expected 2.5 s difference, got %f", b.Sub(a))
	}
	if !a.Before(b) || !b.After(a) || a.Equal(b) {
		t.Error("comparison operators inconsistent")
	}
}

func TestISO8601(t *testing.T) {
	got := FromUTC(time.Date(2024, 3, 13, 6, 5, 4, 0, time.UTC)).ISO8601()
	if got != "2024-03-13T06:05:04Z" {
		t.Errorf("unexpected ISO-8601 string %q", got)
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: FromGPS(100), End: FromGPS(200)}
	if !r.Contains(FromGPS(100)) || r.Contains(FromGPS(200)) {
		t.Error("Contains must be half-open [Start, End)")
	}
	if !r.Overlaps(Range{Start: FromGPS(150), End: FromGPS(300)}) {
		t.Error("expected overlap")
	}
	if r.Overlaps(Range{Start: FromGPS(201), End: FromGPS(300)}) {
		t.Error("expected no overlap")
	}
}
