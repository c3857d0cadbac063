package archive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gnssro/collocate/internal/timestd"
	"github.com/gnssro/collocate/internal/worker"
)

// Metop AMSU-A level 1B collections in the EUMETSAT Data Store.
var metopCollections = map[string]string{
	"Metop-A": "EO:EUM:DAT:METOP:AMSUL1",
	"Metop-B": "EO:EUM:DAT:METOP:AMSUL1",
	"Metop-C": "EO:EUM:DAT:METOP:AMSUL1",
}

// EPS product names carry the sensing start and stop times.
var (
	epsPattern    = regexp.MustCompile(`_(\d{14})Z_(\d{14})Z_`)
	epsTimeLayout = "20060102150405"
)

func epsSpan(basename string) (timestd.Range, bool) {
	m := epsPattern.FindStringSubmatch(basename)
	if m == nil {
		return timestd.Range{}, false
	}
	t1, err1 := time.Parse(epsTimeLayout, m[1])
	t2, err2 := time.Parse(epsTimeLayout, m[2])
	if err1 != nil || err2 != nil {
		return timestd.Range{}, false
	}
	return timestd.Range{Start: timestd.FromUTC(t1.UTC()), End: timestd.FromUTC(t2.UTC())}, true
}

// Eumetsat accesses the EUMETSAT Data Store. The store files data by orbit,
// so populated files can extend well beyond the requested range.
type Eumetsat struct {
	inv       *Inventory
	searchURL string
	key       string
	secret    string
	client    *http.Client
	workers   int
	buffer    int
}

// NewEumetsat builds a client over the local root directory.
func NewEumetsat(root, searchURL, key, secret string, workers, buffer int) (*Eumetsat, error) {
	inv, err := newInventory(root, epsSpan)
	if err != nil {
		return nil, err
	}
	return &Eumetsat{
		inv:       inv,
		searchURL: searchURL,
		key:       key,
		secret:    secret,
		client:    &http.Client{Timeout: 120 * time.Second},
		workers:   workers,
		buffer:    buffer,
	}, nil
}

// GetPaths returns local product paths overlapping the time range.
func (e *Eumetsat) GetPaths(satellite, instrument string, tr timestd.Range) ([]string, error) {
	if _, ok := metopCollections[satellite]; !ok {
		return nil, fmt.Errorf("unknown Metop satellite %q: %w", satellite, ErrInvalidArgument)
	}
	if tr.End.Before(tr.Start) {
		return nil, fmt.Errorf("time range ends before it starts: %w", ErrInvalidArgument)
	}

	var paths []string
	for _, g := range e.inv.granules[instrument+"/"+satellite] {
		if g.span.Overlaps(tr) {
			paths = append(paths, g.path)
		}
	}
	return paths, nil
}

type eumetsatResponse struct {
	Products []struct {
		ID          string `json:"id"`
		DownloadURL string `json:"download_url"`
	} `json:"products"`
}

// Populate downloads missing products overlapping the time range, widened by
// one orbital period on each side so orbit-filed products at the window
// edges are not missed.
func (e *Eumetsat) Populate(ctx context.Context, satellite, instrument string, tr timestd.Range) error {
	collection, ok := metopCollections[satellite]
	if !ok {
		return fmt.Errorf("unknown Metop satellite %q: %w", satellite, ErrInvalidArgument)
	}
	if tr.End.Before(tr.Start) {
		return fmt.Errorf("time range ends before it starts: %w", ErrInvalidArgument)
	}

	const orbitalPeriod = 6081.7 // seconds, Metop
	wide := timestd.Range{Start: tr.Start.Add(-orbitalPeriod), End: tr.End.Add(orbitalPeriod)}

	q := url.Values{}
	q.Set("pi", collection)
	q.Set("dtstart", wide.Start.ISO8601())
	q.Set("dtend", wide.End.ISO8601())
	q.Set("sat", satellite)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(e.key, e.secret)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data eumetsatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}

	have := e.inv.basenames(satellite, instrument)

	type job struct {
		url, dst string
	}
	var jobs []job
	for _, p := range data.Products {
		if p.DownloadURL == "" {
			continue
		}
		basename := path.Base(p.DownloadURL)
		if have[basename] {
			continue
		}
		span, ok := epsSpan(basename)
		if !ok || !span.Overlaps(wide) {
			continue
		}
		dst, err := e.localPath(instrument, satellite, basename, span)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{url: p.DownloadURL, dst: dst})
	}

	if len(jobs) > 0 {
		// The store enforces the same credentials on downloads as on search.
		header := http.Header{}
		auth := base64.StdEncoding.EncodeToString([]byte(e.key + ":" + e.secret))
		header.Set("Authorization", "Basic "+auth)
		pool := worker.NewPool(e.workers, e.buffer, func(ctx context.Context, j job) error {
			slog.Info("downloading product", "url", j.url)
			return download(ctx, e.client, j.url, j.dst, header)
		})
		pool.Start(ctx)
		for _, j := range jobs {
			pool.Submit(j)
		}
		if errs := pool.Wait(); len(errs) > 0 {
			return fmt.Errorf("%d of %d downloads failed: %w", len(errs), len(jobs), errs[0])
		}
		slog.Info("populated archive", "satellite", satellite, "instrument", instrument, "products", len(jobs))
	}

	return e.inv.Rebuild()
}

func (e *Eumetsat) localPath(instrument, satellite, basename string, span timestd.Range) (string, error) {
	t := span.Start.UTC()
	return filepath.Join(e.inv.root, instrument, satellite,
		fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day()),
		basename), nil
}
