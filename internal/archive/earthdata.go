package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gnssro/collocate/internal/timestd"
	"github.com/gnssro/collocate/internal/worker"
)

// Earthdata accesses the NASA Earthdata DAACs: granule search goes through
// the CMR API, downloads are authorized with an Earthdata bearer token.
type Earthdata struct {
	inv       *Inventory
	searchURL string
	token     string
	client    *http.Client
	workers   int
	buffer    int
}

// NewEarthdata builds a client over the local root directory. workers and
// buffer size the download pool used by Populate.
func NewEarthdata(root, searchURL, token string, workers, buffer int) (*Earthdata, error) {
	inv, err := NewInventory(root)
	if err != nil {
		return nil, err
	}
	return &Earthdata{
		inv:       inv,
		searchURL: searchURL,
		token:     token,
		client:    &http.Client{Timeout: 120 * time.Second},
		workers:   workers,
		buffer:    buffer,
	}, nil
}

// GetPaths returns local granule paths overlapping the time range.
func (e *Earthdata) GetPaths(satellite, instrument string, tr timestd.Range) ([]string, error) {
	return e.inv.GetPaths(satellite, instrument, tr)
}

type cmrResponse struct {
	Feed struct {
		Entry []cmrEntry `json:"entry"`
	} `json:"feed"`
}

type cmrEntry struct {
	Title string `json:"title"`
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// dataLink picks the granule's data download link.
func (c cmrEntry) dataLink() string {
	for _, l := range c.Links {
		if strings.Contains(l.Rel, "/data#") {
			return l.Href
		}
	}
	return ""
}

// Populate downloads every granule of the satellite/instrument that overlaps
// the time range and is not already on disk (matched by basename), then
// rebuilds the inventory. It is idempotent.
func (e *Earthdata) Populate(ctx context.Context, satellite, instrument string, tr timestd.Range) error {
	canonical, err := CanonicalSatellite(satellite)
	if err != nil {
		return err
	}
	collection, ok := Satellites[canonical].Collections[instrument]
	if !ok {
		return fmt.Errorf("instrument %q is not defined for satellite %q: %w",
			instrument, canonical, ErrInvalidArgument)
	}
	if tr.End.Before(tr.Start) {
		return fmt.Errorf("time range ends before it starts: %w", ErrInvalidArgument)
	}

	entries, err := e.search(ctx, collection, tr)
	if err != nil {
		return err
	}

	have := e.inv.basenames(canonical, instrument)

	type job struct {
		url, dst string
	}
	var jobs []job
	for _, entry := range entries {
		link := entry.dataLink()
		if link == "" {
			continue
		}
		basename := path.Base(link)
		if have[basename] {
			continue
		}
		span, ok := granuleSpan(basename)
		if !ok || !span.Overlaps(tr) {
			continue
		}
		dst, err := e.inv.localPath(instrument, canonical, basename)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{url: link, dst: dst})
	}

	if len(jobs) > 0 {
		header := http.Header{}
		if e.token != "" {
			header.Set("Authorization", "Bearer "+e.token)
		}

		pool := worker.NewPool(e.workers, e.buffer, func(ctx context.Context, j job) error {
			slog.Info("downloading granule", "url", j.url)
			return download(ctx, e.client, j.url, j.dst, header)
		})
		pool.Start(ctx)
		for _, j := range jobs {
			pool.Submit(j)
		}
		if errs := pool.Wait(); len(errs) > 0 {
			return fmt.Errorf("%d of %d downloads failed: %w", len(errs), len(jobs), errs[0])
		}
		slog.Info("populated archive", "satellite", canonical, "instrument", instrument, "granules", len(jobs))
	}

	return e.inv.Rebuild()
}

// search runs one CMR granule query over the time range.
func (e *Earthdata) search(ctx context.Context, collection string, tr timestd.Range) ([]cmrEntry, error) {
	q := url.Values{}
	q.Set("collection_concept_id", collection)
	q.Set("temporal", tr.Start.ISO8601()+","+tr.End.ISO8601())
	q.Set("page_size", "2000")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data cmrResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return data.Feed.Entry, nil
}
