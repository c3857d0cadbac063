package rodb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gnssro/collocate/internal/timestd"
)

func rec(occid string, lon, lat float64) Record {
	return Record{
		OccID: occid, Mission: "cosmic2", Transmitter: "G05", Receiver: "c2e1",
		Longitude: lon, Latitude: lat, Time: timestd.FromGPS(1e9),
	}
}

func TestOccList_ParallelArrays(t *testing.T) {
	l := NewOccList([]Record{rec("a", 10, 45), rec("b", -120, -30)})

	if l.Size() != 2 {
		t.Fatalf("expected size 2, got %d", l.Size())
	}
	if got := l.OccIDs(); got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected occids %v", got)
	}
	if got := l.Longitudes(); got[0] != 10 || got[1] != -120 {
		t.Errorf("unexpected longitudes %v", got)
	}
	if got := l.Latitudes(); got[0] != 45 || got[1] != -30 {
		t.Errorf("unexpected latitudes %v", got)
	}
	if got := l.Missions(); got[0] != "cosmic2" {
		t.Errorf("unexpected missions %v", got)
	}
}

func TestOccList_At(t *testing.T) {
	l := NewOccList([]Record{rec("a", 0, 0), rec("b", 1, 1)})

	one, err := l.At(1)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if one.Size() != 1 || one.OccIDs()[0] != "b" {
		t.Errorf("expected size-1 sublist for b, got %v", one.OccIDs())
	}

	if _, err := l.At(2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := l.At(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestOccList_Intersection(t *testing.T) {
	a := NewOccList([]Record{rec("x", 0, 0), rec("y", 1, 1), rec("z", 2, 2)})
	b := NewOccList([]Record{rec("z", 9, 9), rec("w", 3, 3), rec("x", 8, 8)})

	got := a.Intersection(b)
	ids := got.OccIDs()
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "z" {
		t.Fatalf("expected [x z], got %v", ids)
	}
	// Left-hand records win.
	if got.Longitudes()[0] != 0 {
		t.Errorf("expected left-hand record for x, got lon %f", got.Longitudes()[0])
	}
}

func TestQueryAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/occultations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mission") != "cosmic2" {
			http.Error(w, "bad mission", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"occultations": []map[string]any{{
			"occid": "cosmic2e1G05_2024-073-12-00", "mission": "cosmic2",
			"transmitter": "G05", "receiver": "c2e1",
			"longitude": 10.0, "latitude": 45.0, "time": "2024-03-13T12:00:00Z",
			"products": map[string]string{
				"ucar_refractivityRetrieval": srv.URL + "/files/retrieval.nc",
			},
		}}})
	})
	var downloads int
	mux.HandleFunc("/files/retrieval.nc", func(w http.ResponseWriter, r *http.Request) {
		downloads++
		w.Write([]byte("profile"))
	})

	client := NewClient(srv.URL, t.TempDir())
	tr := timestd.Range{Start: timestd.FromGPS(0), End: timestd.FromGPS(2e9)}
	l, err := client.Query(context.Background(), "cosmic2", tr)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if l.Size() != 1 {
		t.Fatalf("expected 1 record, got %d", l.Size())
	}
	if l.Transmitters()[0] != "G05" || l.Receivers()[0] != "c2e1" {
		t.Error("unexpected record metadata")
	}

	paths, err := l.Download(context.Background(), "ucar_refractivityRetrieval")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(paths))
	}
	if body, err := os.ReadFile(paths[0]); err != nil || string(body) != "profile" {
		t.Errorf("unexpected file content: %v %q", err, body)
	}

	// Cached on second download.
	if _, err := l.Download(context.Background(), "ucar_refractivityRetrieval"); err != nil {
		t.Fatalf("second Download failed: %v", err)
	}
	if downloads != 1 {
		t.Errorf("expected the cache to satisfy the second download, got %d fetches", downloads)
	}

	if _, err := l.Download(context.Background(), "jpl_refractivityRetrieval"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown product, got %v", err)
	}
}

func TestQuery_Validation(t *testing.T) {
	client := NewClient("http://unused", t.TempDir())
	tr := timestd.Range{Start: timestd.FromGPS(0), End: timestd.FromGPS(1)}
	if _, err := client.Query(context.Background(), "", tr); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty mission, got %v", err)
	}
	bad := timestd.Range{Start: timestd.FromGPS(1), End: timestd.FromGPS(0)}
	if _, err := client.Query(context.Background(), "cosmic2", bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for inverted range, got %v", err)
	}
}
