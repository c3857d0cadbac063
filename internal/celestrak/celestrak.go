// Package celestrak fetches two-line element sets for the JPSS platforms
// from Celestrak, caching them on disk so repeated runs inside the element
// set's useful lifetime stay offline.
package celestrak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidArgument reports malformed caller input.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultURL is the Celestrak general-perturbations query endpoint.
const DefaultURL = "https://celestrak.org/NORAD/elements/gp.php"

// defaultMaxAge bounds how old a cached element set may be before it is
// refetched. SGP4 accuracy over a collocation window degrades well before
// this.
const defaultMaxAge = 24 * time.Hour

// noradIDs maps canonical satellite names to NORAD catalog numbers.
var noradIDs = map[string]int{
	"Suomi-NPP": 37849,
	"JPSS-1":    43013,
	"JPSS-2":    54234,
}

// TLE is one two-line element set.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// Client fetches and caches element sets.
type Client struct {
	baseURL   string
	cacheRoot string
	maxAge    time.Duration
	client    *http.Client
}

// NewClient builds a client caching under cacheRoot. An empty baseURL picks
// DefaultURL.
func NewClient(baseURL, cacheRoot string) (*Client, error) {
	if cacheRoot == "" {
		return nil, fmt.Errorf("cache root must not be empty: %w", ErrInvalidArgument)
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:   baseURL,
		cacheRoot: cacheRoot,
		maxAge:    defaultMaxAge,
		client:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// GetTLE returns the current element set for the named satellite, from cache
// when fresh enough.
func (c *Client) GetTLE(ctx context.Context, satellite string) (TLE, error) {
	catnr, ok := noradIDs[satellite]
	if !ok {
		return TLE{}, fmt.Errorf("no NORAD catalog number for satellite %q: %w", satellite, ErrInvalidArgument)
	}

	path := filepath.Join(c.cacheRoot, strconv.Itoa(catnr)+".tle")
	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) < c.maxAge {
		raw, err := os.ReadFile(path)
		if err == nil {
			if tle, err := parseTLE(string(raw)); err == nil {
				return tle, nil
			}
		}
	}

	raw, err := c.fetch(ctx, catnr)
	if err != nil {
		return TLE{}, err
	}
	tle, err := parseTLE(raw)
	if err != nil {
		return TLE{}, fmt.Errorf("error parsing element set for catalog %d: %w", catnr, err)
	}

	if err := os.MkdirAll(c.cacheRoot, 0o755); err != nil {
		return TLE{}, fmt.Errorf("error creating TLE cache: %w", err)
	}
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return TLE{}, fmt.Errorf("error caching element set: %w", err)
	}
	return tle, nil
}

func (c *Client) fetch(ctx context.Context, catnr int) (string, error) {
	q := url.Values{}
	q.Set("CATNR", strconv.Itoa(catnr))
	q.Set("FORMAT", "TLE")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating TLE request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching element set: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("element set fetch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading element set: %w", err)
	}
	return string(body), nil
}

// parseTLE accepts the two- or three-line (name header) format.
func parseTLE(raw string) (TLE, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if line = strings.TrimRight(line, " "); line != "" {
			lines = append(lines, line)
		}
	}
	var tle TLE
	switch {
	case len(lines) == 2:
		tle = TLE{Line1: lines[0], Line2: lines[1]}
	case len(lines) == 3:
		tle = TLE{Name: strings.TrimSpace(lines[0]), Line1: lines[1], Line2: lines[2]}
	default:
		return TLE{}, fmt.Errorf("element set has %d lines", len(lines))
	}
	if !strings.HasPrefix(tle.Line1, "1 ") || !strings.HasPrefix(tle.Line2, "2 ") {
		return TLE{}, fmt.Errorf("malformed element set lines")
	}
	return tle, nil
}
