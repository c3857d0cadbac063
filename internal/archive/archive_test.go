package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gnssro/collocate/internal/timestd"
)

func utcRange(t *testing.T, start, end string) timestd.Range {
	t.Helper()
	t1, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("bad start time: %v", err)
	}
	t2, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("bad end time: %v", err)
	}
	return timestd.Range{Start: timestd.FromUTC(t1), End: timestd.FromUTC(t2)}
}

func writeGranule(t *testing.T, root, instrument, satellite, basename string) string {
	t.Helper()
	span, ok := granuleSpan(basename)
	if !ok {
		t.Fatalf("test granule name %q does not parse", basename)
	}
	ts := span.Start.UTC()
	dir := filepath.Join(root, instrument, satellite,
		fmt.Sprintf("%04d", ts.Year()), fmt.Sprintf("%02d", ts.Month()), fmt.Sprintf("%02d", ts.Day()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	path := filepath.Join(dir, basename)
	if err := os.WriteFile(path, []byte("granule"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestGranuleSpan(t *testing.T) {
	span, ok := granuleSpan("SNDR.SNPP.ATMS.20240313T1200.m06.g121.L1B.std.v03_09.G.240313154012.nc")
	if !ok {
		t.Fatal("expected granule name to parse")
	}
	start := span.Start.UTC()
	if start.Hour() != 12 || start.Minute() != 0 || start.Day() != 13 {
		t.Errorf("unexpected start time %v", start)
	}
	if span.End.Sub(span.Start) != 360 {
		t.Errorf("expected a 6-minute granule, got %f s", span.End.Sub(span.Start))
	}

	if _, ok := granuleSpan("random_file.nc"); ok {
		t.Error("non-granule name must not parse")
	}
}

func TestInventory_GetPaths(t *testing.T) {
	root := t.TempDir()
	p1 := writeGranule(t, root, "atms", "Suomi-NPP",
		"SNDR.SNPP.ATMS.20240313T1200.m06.g121.L1B.std.v03_09.G.nc")
	writeGranule(t, root, "atms", "Suomi-NPP",
		"SNDR.SNPP.ATMS.20240313T1800.m06.g181.L1B.std.v03_09.G.nc")
	writeGranule(t, root, "atms", "JPSS-1",
		"SNDR.J1.ATMS.20240313T1200.m06.g121.L1B.std.v03_09.G.nc")

	inv, err := NewInventory(root)
	if err != nil {
		t.Fatalf("NewInventory failed: %v", err)
	}

	paths, err := inv.GetPaths("SNPP", "atms", utcRange(t, "2024-03-13T12:03:00Z", "2024-03-13T12:30:00Z"))
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != p1 {
		t.Errorf("expected [%s], got %v", p1, paths)
	}

	paths, err = inv.GetPaths("Suomi-NPP", "atms", utcRange(t, "2024-03-13T00:00:00Z", "2024-03-14T00:00:00Z"))
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("expected 2 granules over the full day, got %d", len(paths))
	}

	if _, err := inv.GetPaths("Sentinel-6", "atms", utcRange(t, "2024-03-13T00:00:00Z", "2024-03-14T00:00:00Z")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown satellite, got %v", err)
	}

	bad := timestd.Range{Start: timestd.FromGPS(100), End: timestd.FromGPS(0)}
	if _, err := inv.GetPaths("Suomi-NPP", "atms", bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for inverted range, got %v", err)
	}
}

func TestInventory_MissingRootIsEmpty(t *testing.T) {
	inv, err := NewInventory(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("NewInventory failed: %v", err)
	}
	paths, err := inv.GetPaths("Suomi-NPP", "atms", utcRange(t, "2024-03-13T00:00:00Z", "2024-03-14T00:00:00Z"))
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected empty inventory, got %v", paths)
	}
}

func TestCanonicalSatellite(t *testing.T) {
	cases := map[string]string{
		"SNPP": "Suomi-NPP", "Suomi-NPP": "Suomi-NPP",
		"NOAA-20": "JPSS-1", "noaa-21": "JPSS-2",
	}
	for alias, want := range cases {
		got, err := CanonicalSatellite(alias)
		if err != nil {
			t.Errorf("CanonicalSatellite(%q) failed: %v", alias, err)
		}
		if got != want {
			t.Errorf("CanonicalSatellite(%q) = %q, expected %q", alias, got, want)
		}
	}
}

func TestEarthdata_Populate(t *testing.T) {
	const existing = "SNDR.SNPP.ATMS.20240313T1200.m06.g121.L1B.std.v03_09.G.nc"
	const missing = "SNDR.SNPP.ATMS.20240313T1206.m06.g122.L1B.std.v03_09.G.nc"
	const outside = "SNDR.SNPP.ATMS.20240314T0000.m06.g001.L1B.std.v03_09.G.nc"

	var downloads int
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("collection_concept_id") == "" {
			http.Error(w, "missing collection", http.StatusBadRequest)
			return
		}
		resp := map[string]any{"feed": map[string]any{"entry": []map[string]any{
			{"title": existing, "links": []map[string]string{
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": srv.URL + "/files/" + existing}}},
			{"title": missing, "links": []map[string]string{
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": srv.URL + "/files/" + missing}}},
			{"title": outside, "links": []map[string]string{
				{"rel": "http://esipfed.org/ns/fedsearch/1.1/data#", "href": srv.URL + "/files/" + outside}}},
		}}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		w.Write([]byte("granule-bytes"))
	})

	root := t.TempDir()
	writeGranule(t, root, "atms", "Suomi-NPP", existing)

	ed, err := NewEarthdata(root, srv.URL+"/search", "test-token", 2, 4)
	if err != nil {
		t.Fatalf("NewEarthdata failed: %v", err)
	}

	tr := utcRange(t, "2024-03-13T12:00:00Z", "2024-03-13T12:30:00Z")
	if err := ed.Populate(context.Background(), "SNPP", "atms", tr); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	// Only the missing in-range granule should have been fetched.
	if downloads != 1 {
		t.Errorf("expected 1 download, got %d", downloads)
	}

	paths, err := ed.GetPaths("Suomi-NPP", "atms", tr)
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 granules after populate, got %d: %v", len(paths), paths)
	}

	// A second populate is a no-op.
	if err := ed.Populate(context.Background(), "SNPP", "atms", tr); err != nil {
		t.Fatalf("second Populate failed: %v", err)
	}
	if downloads != 1 {
		t.Errorf("populate is not idempotent: %d downloads", downloads)
	}
}

func TestEarthdata_Populate_UnknownInstrument(t *testing.T) {
	ed, err := NewEarthdata(t.TempDir(), "http://unused", "", 1, 1)
	if err != nil {
		t.Fatalf("NewEarthdata failed: %v", err)
	}
	tr := utcRange(t, "2024-03-13T12:00:00Z", "2024-03-13T13:00:00Z")
	if err := ed.Populate(context.Background(), "Suomi-NPP", "mhs", tr); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestEpsSpan(t *testing.T) {
	span, ok := epsSpan("AMSA_xxx_1B_M01_20240313103358Z_20240313121558Z_N_O_20240313121800Z.nat")
	if !ok {
		t.Fatal("expected EPS product name to parse")
	}
	if span.End.Sub(span.Start) <= 0 {
		t.Error("sensing stop must follow sensing start")
	}
}

func TestEumetsat_Populate(t *testing.T) {
	const product = "AMSA_xxx_1B_M01_20240313103358Z_20240313121558Z_N_O_20240313121800Z.nat"

	var downloads int
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pi") != "EO:EUM:DAT:METOP:AMSUL1" {
			http.Error(w, "unknown collection", http.StatusBadRequest)
			return
		}
		resp := map[string]any{"products": []map[string]string{
			{"id": product, "download_url": srv.URL + "/files/" + product},
		}}
		json.NewEncoder(w).Encode(resp)
	})
	// The store enforces the same credentials on downloads as on search.
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		downloads++
		w.Write([]byte("product-bytes"))
	})

	em, err := NewEumetsat(t.TempDir(), srv.URL+"/search", "key", "secret", 2, 4)
	if err != nil {
		t.Fatalf("NewEumetsat failed: %v", err)
	}

	tr := utcRange(t, "2024-03-13T11:00:00Z", "2024-03-13T11:30:00Z")
	if err := em.Populate(context.Background(), "Metop-B", "amsua", tr); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	if downloads != 1 {
		t.Fatalf("expected 1 download, got %d", downloads)
	}

	paths, err := em.GetPaths("Metop-B", "amsua", tr)
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 product after populate, got %v", paths)
	}

	if err := em.Populate(context.Background(), "Metop-B", "amsua", tr); err != nil {
		t.Fatalf("second Populate failed: %v", err)
	}
	if downloads != 1 {
		t.Errorf("populate is not idempotent: %d downloads", downloads)
	}

	if _, err := em.GetPaths("GOES-16", "amsua", tr); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown satellite: expected ErrInvalidArgument, got %v", err)
	}
}
