// Package archive manages the local stores of nadir-sounder granules and the
// remote clients that fill them. Each client keeps an inventory of the files
// already on disk, keyed by the time range parsed from the granule filename,
// so range queries never touch the network.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gnssro/collocate/internal/timestd"
)

// ErrInvalidArgument reports an unknown satellite or instrument, or a
// malformed time range.
var ErrInvalidArgument = errors.New("invalid argument")

// Satellite describes one supported nadir-sounder platform.
type Satellite struct {
	Name        string
	Aliases     []string
	Collections map[string]string // instrument -> remote collection identifier
}

// Satellites lists the supported platforms. JPSS-2 data is not yet published
// to the archives, so it carries no collections.
var Satellites = map[string]Satellite{
	"Suomi-NPP": {
		Name:    "Suomi-NPP",
		Aliases: []string{"Suomi-NPP", "SNPP"},
		Collections: map[string]string{
			"atms": "C2087131083-GES_DISC",
			"cris": "C2087132178-GES_DISC",
		},
	},
	"JPSS-1": {
		Name:    "JPSS-1",
		Aliases: []string{"JPSS-1", "NOAA-20"},
		Collections: map[string]string{
			"atms": "C2105092163-GES_DISC",
			"cris": "C2105093001-GES_DISC",
		},
	},
	"JPSS-2": {
		Name:    "JPSS-2",
		Aliases: []string{"JPSS-2", "NOAA-21"},
	},
}

// CanonicalSatellite resolves a satellite name or alias to its canonical
// name.
func CanonicalSatellite(name string) (string, error) {
	for canonical, sat := range Satellites {
		for _, alias := range sat.Aliases {
			if strings.EqualFold(alias, name) {
				return canonical, nil
			}
		}
	}
	return "", fmt.Errorf("unknown satellite %q: %w", name, ErrInvalidArgument)
}

// Granule filenames embed the start time of the six-minute granule.
var (
	granulePattern    = regexp.MustCompile(`^SNDR\..*?(\d{8}T\d{4})\.m.*\.nc$`)
	granuleTimeLayout = "20060102T1504"
)

// granuleSeconds is the time span of one granule.
const granuleSeconds = 6 * 60

// granuleSpan parses the time range covered by a granule from its basename.
func granuleSpan(basename string) (timestd.Range, bool) {
	m := granulePattern.FindStringSubmatch(basename)
	if m == nil {
		return timestd.Range{}, false
	}
	t, err := time.Parse(granuleTimeLayout, m[1])
	if err != nil {
		return timestd.Range{}, false
	}
	start := timestd.FromUTC(t.UTC())
	return timestd.Range{Start: start, End: start.Add(granuleSeconds)}, true
}

type granule struct {
	path string
	span timestd.Range
}

// Inventory indexes the granule files below a local root. The layout is
// root/instrument/satellite/YYYY/MM/DD/basename. Rebuilding re-scans the
// whole tree; it is not incremental and must not run concurrently with
// downloads into the same tree.
type Inventory struct {
	root     string
	parse    func(string) (timestd.Range, bool)
	granules map[string][]granule // "instrument/satellite" -> granules
}

// NewInventory scans root and builds an index over SNDR granules. A missing
// root is not an error; the inventory is simply empty.
func NewInventory(root string) (*Inventory, error) {
	return newInventory(root, granuleSpan)
}

// newInventory builds an index using the given filename-to-timerange parser.
func newInventory(root string, parse func(string) (timestd.Range, bool)) (*Inventory, error) {
	inv := &Inventory{root: root, parse: parse}
	if err := inv.Rebuild(); err != nil {
		return nil, err
	}
	return inv, nil
}

// Rebuild re-scans the directory tree from scratch.
func (inv *Inventory) Rebuild() error {
	granules := map[string][]granule{}

	err := filepath.WalkDir(inv.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == inv.root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		span, ok := inv.parse(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(inv.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		key := parts[0] + "/" + parts[1]
		granules[key] = append(granules[key], granule{path: path, span: span})
		return nil
	})
	if err != nil {
		return fmt.Errorf("error scanning inventory: %w", err)
	}

	for _, gs := range granules {
		sort.Slice(gs, func(i, j int) bool { return gs[i].path < gs[j].path })
	}
	inv.granules = granules
	return nil
}

// GetPaths returns the sorted local paths of granules overlapping the time
// range.
func (inv *Inventory) GetPaths(satellite, instrument string, tr timestd.Range) ([]string, error) {
	canonical, err := CanonicalSatellite(satellite)
	if err != nil {
		return nil, err
	}
	if tr.End.Before(tr.Start) {
		return nil, fmt.Errorf("time range ends before it starts: %w", ErrInvalidArgument)
	}

	var paths []string
	for _, g := range inv.granules[instrument+"/"+canonical] {
		if g.span.Overlaps(tr) {
			paths = append(paths, g.path)
		}
	}
	return paths, nil
}

// localPath is the canonical location of a granule below the root.
func (inv *Inventory) localPath(instrument, satellite, basename string) (string, error) {
	span, ok := granuleSpan(basename)
	if !ok {
		return "", fmt.Errorf("granule name %q does not parse: %w", basename, ErrInvalidArgument)
	}
	t := span.Start.UTC()
	return filepath.Join(inv.root, instrument, satellite,
		fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day()),
		basename), nil
}

// basenames returns the set of granule basenames already present for the
// satellite and instrument.
func (inv *Inventory) basenames(satellite, instrument string) map[string]bool {
	set := map[string]bool{}
	for _, g := range inv.granules[instrument+"/"+satellite] {
		set[filepath.Base(g.path)] = true
	}
	return set
}
