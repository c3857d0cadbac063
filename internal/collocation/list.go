package collocation

import (
	"context"
	"fmt"
	"sort"

	"github.com/gnssro/collocate/internal/datafile"
	"github.com/gnssro/collocate/internal/timestd"
)

// FileType tags artifact files written by WriteFile.
const FileType = "gnssro-nadirsounder-collocations"

// CollocationList is an ordered collection of collocations. Set algebra
// operates on occultation identifier equality, never positional order.
type CollocationList struct {
	items []*Collocation
}

// NewList validates and wraps a slice of collocations.
func NewList(items []*Collocation) (*CollocationList, error) {
	for i, c := range items {
		if c == nil {
			return nil, fmt.Errorf("element %d is not a collocation: %w", i, ErrInvalidArgument)
		}
	}
	return &CollocationList{items: append([]*Collocation(nil), items...)}, nil
}

// Len is the number of collocations.
func (l *CollocationList) Len() int { return len(l.items) }

// At returns one collocation.
func (l *CollocationList) At(i int) (*Collocation, error) {
	if i < 0 || i >= len(l.items) {
		return nil, fmt.Errorf("index %d out of range [0,%d): %w", i, len(l.items), ErrInvalidArgument)
	}
	return l.items[i], nil
}

// Slice returns the sublist [i, j) as a new list.
func (l *CollocationList) Slice(i, j int) (*CollocationList, error) {
	if i < 0 || j > len(l.items) || i > j {
		return nil, fmt.Errorf("slice [%d,%d) out of range [0,%d]: %w", i, j, len(l.items), ErrInvalidArgument)
	}
	return &CollocationList{items: append([]*Collocation(nil), l.items[i:j]...)}, nil
}

// byOccID maps occultation identifiers to collocations, first occurrence
// winning.
func (l *CollocationList) byOccID() map[string]*Collocation {
	m := make(map[string]*Collocation, len(l.items))
	for _, c := range l.items {
		if _, seen := m[c.OccID()]; !seen {
			m[c.OccID()] = c
		}
	}
	return m
}

// Union returns the collocations whose identifier appears in either list,
// ordered by identifier. On a shared identifier the receiver's instance
// wins.
func (l *CollocationList) Union(o *CollocationList) (*CollocationList, error) {
	if o == nil {
		return nil, fmt.Errorf("argument must be a collocation list: %w", ErrInvalidArgument)
	}
	left, right := l.byOccID(), o.byOccID()

	ids := make([]string, 0, len(left)+len(right))
	for id := range left {
		ids = append(ids, id)
	}
	for id := range right {
		if _, ok := left[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	items := make([]*Collocation, len(ids))
	for i, id := range ids {
		if c, ok := left[id]; ok {
			items[i] = c
		} else {
			items[i] = right[id]
		}
	}
	return &CollocationList{items: items}, nil
}

// Intersection returns the collocations whose identifier appears in both
// lists, ordered by identifier. The receiver's instance wins.
func (l *CollocationList) Intersection(o *CollocationList) (*CollocationList, error) {
	if o == nil {
		return nil, fmt.Errorf("argument must be a collocation list: %w", ErrInvalidArgument)
	}
	left, right := l.byOccID(), o.byOccID()

	var ids []string
	for id := range left {
		if _, ok := right[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	items := make([]*Collocation, len(ids))
	for i, id := range ids {
		items[i] = left[id]
	}
	return &CollocationList{items: items}, nil
}

// SortByOccID returns a new list ordered by occultation identifier.
func (l *CollocationList) SortByOccID() *CollocationList {
	items := append([]*Collocation(nil), l.items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OccID() < items[j].OccID()
	})
	return &CollocationList{items: items}
}

// SortByTime returns a new list ordered by occultation time, identifier
// breaking ties.
func (l *CollocationList) SortByTime() *CollocationList {
	items := append([]*Collocation(nil), l.items...)
	sort.SliceStable(items, func(i, j int) bool {
		ti := items[i].occ.Records()[0].Time
		tj := items[j].occ.Records()[0].Time
		if ti.Equal(tj) {
			return items[i].OccID() < items[j].OccID()
		}
		return ti.Before(tj)
	})
	return &CollocationList{items: items}
}

// WriteFile writes the list to a collocation artifact at path, materializing
// any collocation whose data has not been fetched yet through the named RO
// processing center. An empty author omits the author attribute. Any error
// during the write loop leaves the file in an indeterminate state.
func (l *CollocationList) WriteFile(ctx context.Context, path, center, author string) error {
	f, err := datafile.Create(path)
	if err != nil {
		return fmt.Errorf("error creating artifact: %w", err)
	}
	if err := l.write(ctx, f, center, author); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *CollocationList) write(ctx context.Context, f *datafile.File, center, author string) error {
	attrs := map[string]string{
		"creation_time": timestd.Now().ISO8601(),
		"file_type":     FileType,
	}
	if author != "" {
		attrs["author"] = author
	}
	if err := f.SetAttrs(attrs); err != nil {
		return fmt.Errorf("error writing artifact attributes: %w", err)
	}

	for _, c := range l.items {
		if c.Data == nil {
			if _, err := c.GetData(ctx, center); err != nil {
				return fmt.Errorf("error materializing collocation %s: %w", c.OccID(), err)
			}
		}

		sat := c.inst.Satellite()
		name := fmt.Sprintf("%s+%s-%s", c.Data.OccID, sat.Name, sat.Instrument)
		g, err := f.CreateGroup(name)
		if err != nil {
			return fmt.Errorf("error creating group %q: %w", name, err)
		}

		og, err := g.CreateGroup("occultation")
		if err != nil {
			return err
		}
		if err := og.WriteDataset(c.Data.Occultation); err != nil {
			return fmt.Errorf("error writing occultation data of %s: %w", c.Data.OccID, err)
		}

		sg, err := g.CreateGroup("sounder")
		if err != nil {
			return err
		}
		if err := sg.WriteDataset(c.Data.Sounder); err != nil {
			return fmt.Errorf("error writing sounder data of %s: %w", c.Data.OccID, err)
		}
	}

	return nil
}
