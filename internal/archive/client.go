package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gnssro/collocate/internal/timestd"
)

// Client is the narrow surface the instrument models consume: range queries
// against the local store plus idempotent population from the remote
// archive.
type Client interface {
	GetPaths(satellite, instrument string, tr timestd.Range) ([]string, error)
	Populate(ctx context.Context, satellite, instrument string, tr timestd.Range) error
}

// download fetches url into dst, creating parent directories. The body is
// streamed to a .part file and renamed only on success, so an interrupted
// download never pollutes the inventory.
func download(ctx context.Context, client *http.Client, url, dst string, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
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

	part := dst + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		return fmt.Errorf("error writing %s: %w", part, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return fmt.Errorf("error closing %s: %w", part, err)
	}
	return os.Rename(part, dst)
}
