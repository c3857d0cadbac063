// Package rodb is the client for the GNSS radio-occultation metadata index.
// A query returns an OccList: an ordered set of occultation records exposing
// parallel-array metadata access and per-record product downloads into a
// local cache.
package rodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/gnssro/collocate/internal/timestd"
)

// ErrInvalidArgument reports malformed caller input.
var ErrInvalidArgument = errors.New("invalid argument")

// Record is the metadata of one occultation sounding.
type Record struct {
	OccID       string
	Mission     string
	Transmitter string
	Receiver    string
	Longitude   float64 // degrees east
	Latitude    float64 // degrees north
	Time        timestd.Time
	Products    map[string]string // product name -> remote URL
}

// Client queries the remote occultation index and caches product downloads
// under cacheRoot.
type Client struct {
	baseURL   string
	cacheRoot string
	client    *http.Client
}

// NewClient builds a catalog client.
func NewClient(baseURL, cacheRoot string) *Client {
	return &Client{
		baseURL:   baseURL,
		cacheRoot: cacheRoot,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type recordJSON struct {
	OccID       string            `json:"occid"`
	Mission     string            `json:"mission"`
	Transmitter string            `json:"transmitter"`
	Receiver    string            `json:"receiver"`
	Longitude   float64           `json:"longitude"`
	Latitude    float64           `json:"latitude"`
	Time        string            `json:"time"`
	Products    map[string]string `json:"products"`
}

type queryResponse struct {
	Occultations []recordJSON `json:"occultations"`
}

// Query returns the occultations of a mission inside the time range.
func (c *Client) Query(ctx context.Context, mission string, tr timestd.Range) (*OccList, error) {
	if mission == "" {
		return nil, fmt.Errorf("mission must not be empty: %w", ErrInvalidArgument)
	}
	if tr.End.Before(tr.Start) {
		return nil, fmt.Errorf("time range ends before it starts: %w", ErrInvalidArgument)
	}

	q := url.Values{}
	q.Set("mission", mission)
	q.Set("start", tr.Start.ISO8601())
	q.Set("end", tr.End.ISO8601())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/occultations?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	recs := make([]Record, 0, len(data.Occultations))
	for _, r := range data.Occultations {
		t, err := time.Parse(time.RFC3339, r.Time)
		if err != nil {
			return nil, fmt.Errorf("occultation %s has a bad time %q: %w", r.OccID, r.Time, err)
		}
		recs = append(recs, Record{
			OccID:       r.OccID,
			Mission:     r.Mission,
			Transmitter: r.Transmitter,
			Receiver:    r.Receiver,
			Longitude:   r.Longitude,
			Latitude:    r.Latitude,
			Time:        timestd.FromUTC(t.UTC()),
			Products:    r.Products,
		})
	}

	return &OccList{client: c, recs: recs}, nil
}

// OccList is an ordered set of occultation records.
type OccList struct {
	client *Client
	recs   []Record
}

// NewOccList wraps records that were assembled locally. Such a list cannot
// download products.
func NewOccList(recs []Record) *OccList {
	return &OccList{recs: recs}
}

// Size is the number of records.
func (l *OccList) Size() int { return len(l.recs) }

// At returns a size-1 sublist holding record i.
func (l *OccList) At(i int) (*OccList, error) {
	if i < 0 || i >= len(l.recs) {
		return nil, fmt.Errorf("index %d out of range [0,%d): %w", i, len(l.recs), ErrInvalidArgument)
	}
	return &OccList{client: l.client, recs: l.recs[i : i+1]}, nil
}

// Records returns the underlying records. The slice must not be mutated.
func (l *OccList) Records() []Record { return l.recs }

// Parallel-array metadata accessors.

func (l *OccList) OccIDs() []string {
	out := make([]string, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.OccID
	}
	return out
}

func (l *OccList) Missions() []string {
	out := make([]string, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Mission
	}
	return out
}

func (l *OccList) Transmitters() []string {
	out := make([]string, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Transmitter
	}
	return out
}

func (l *OccList) Receivers() []string {
	out := make([]string, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Receiver
	}
	return out
}

func (l *OccList) Longitudes() []float64 {
	out := make([]float64, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Longitude
	}
	return out
}

func (l *OccList) Latitudes() []float64 {
	out := make([]float64, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Latitude
	}
	return out
}

func (l *OccList) Times() []timestd.Time {
	out := make([]timestd.Time, len(l.recs))
	for i, r := range l.recs {
		out[i] = r.Time
	}
	return out
}

// Intersection returns the records whose occid appears in both lists,
// ordered by occid. Records from the receiver win.
func (l *OccList) Intersection(o *OccList) *OccList {
	other := map[string]bool{}
	for _, r := range o.recs {
		other[r.OccID] = true
	}

	byID := map[string]Record{}
	var ids []string
	for _, r := range l.recs {
		if other[r.OccID] {
			if _, seen := byID[r.OccID]; !seen {
				ids = append(ids, r.OccID)
			}
			byID[r.OccID] = r
		}
	}
	sort.Strings(ids)

	recs := make([]Record, len(ids))
	for i, id := range ids {
		recs[i] = byID[id]
	}
	return &OccList{client: l.client, recs: recs}
}

// Download fetches the named product file for every record in the list,
// skipping files already cached, and returns the local paths in record
// order.
func (l *OccList) Download(ctx context.Context, product string) ([]string, error) {
	if product == "" {
		return nil, fmt.Errorf("product must not be empty: %w", ErrInvalidArgument)
	}
	if l.client == nil {
		return nil, fmt.Errorf("list is not attached to a catalog client: %w", ErrInvalidArgument)
	}

	paths := make([]string, 0, len(l.recs))
	for _, r := range l.recs {
		remote, ok := r.Products[product]
		if !ok {
			return nil, fmt.Errorf("occultation %s has no product %q: %w", r.OccID, product, ErrInvalidArgument)
		}
		dst := filepath.Join(l.client.cacheRoot, product, path.Base(remote))
		if _, err := os.Stat(dst); err != nil {
			if err := l.client.fetch(ctx, remote, dst); err != nil {
				return nil, fmt.Errorf("error downloading %s for %s: %w", product, r.OccID, err)
			}
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func (c *Client) fetch(ctx context.Context, remote, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading body: %w", err)
	}
	return os.WriteFile(dst, body, 0o644)
}
