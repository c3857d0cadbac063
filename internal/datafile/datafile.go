// Package datafile implements the on-disk collocation artifact: a
// hierarchical, self-describing container of groups, dimensions, variables
// and attributes backed by a single SQLite file. Groups nest arbitrarily;
// each group can hold one dataset (dimensions, variables with attributes)
// plus group-level attributes.
package datafile

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	_ "modernc.org/sqlite"

	"github.com/gnssro/collocate/internal/dataset"
)

// ErrInvalidArgument reports malformed caller input: a nil dataset, a nil or
// closed file handle, or an unknown group.
var ErrInvalidArgument = errors.New("invalid argument")

const schema = `
	CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent INTEGER,
		name TEXT NOT NULL,
		UNIQUE(parent, name)
	);

	CREATE TABLE IF NOT EXISTS group_attributes (
		group_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (group_id, name),
		FOREIGN KEY (group_id) REFERENCES groups(id)
	);

	CREATE TABLE IF NOT EXISTS dimensions (
		group_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		PRIMARY KEY (group_id, name),
		FOREIGN KEY (group_id) REFERENCES groups(id)
	);

	CREATE TABLE IF NOT EXISTS variables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		dims TEXT NOT NULL,
		data BLOB NOT NULL,
		UNIQUE(group_id, name),
		FOREIGN KEY (group_id) REFERENCES groups(id)
	);

	CREATE TABLE IF NOT EXISTS variable_attributes (
		variable_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (variable_id, name),
		FOREIGN KEY (variable_id) REFERENCES variables(id)
	);
`

// File is an open collocation artifact. The zero-named root group holds the
// file-level attributes and the top-level collocation groups.
type File struct {
	db   *sql.DB
	root int64
}

// Create opens path for writing, truncating any existing artifact.
func Create(path string) (*File, error) {
	if path != ":memory:" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error removing existing file: %w", err)
		}
	}
	return open(path, true)
}

// Open opens an existing artifact for reading.
func Open(path string) (*File, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error opening artifact: %w", err)
		}
	}
	return open(path, false)
}

func open(path string, create bool) (*File, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and matches
	// the strictly sequential access model of the artifact.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	f := &File{db: db}
	if create {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("error while migrating database: %w", err)
		}
		res, err := db.Exec(`INSERT INTO groups (parent, name) VALUES (NULL, '')`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating root group: %w", err)
		}
		f.root, _ = res.LastInsertId()
		return f, nil
	}

	row := db.QueryRow(`SELECT id FROM groups WHERE parent IS NULL AND name = ''`)
	if err := row.Scan(&f.root); err != nil {
		db.Close()
		return nil, fmt.Errorf("not a collocation artifact: %w", ErrInvalidArgument)
	}
	return f, nil
}

// Close releases the underlying database.
func (f *File) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

// Root returns the root group.
func (f *File) Root() *Group {
	return &Group{f: f, id: f.root}
}

// SetAttrs sets file-level attributes.
func (f *File) SetAttrs(attrs map[string]string) error { return f.Root().SetAttrs(attrs) }

// Attrs returns the file-level attributes.
func (f *File) Attrs() (map[string]string, error) { return f.Root().Attrs() }

// CreateGroup creates a top-level group.
func (f *File) CreateGroup(name string) (*Group, error) { return f.Root().CreateGroup(name) }

// Group looks up a top-level group by name.
func (f *File) Group(name string) (*Group, error) { return f.Root().Group(name) }

// Groups lists top-level group names in sorted order.
func (f *File) Groups() ([]string, error) { return f.Root().Groups() }

// Group is a node in the artifact hierarchy.
type Group struct {
	f  *File
	id int64
}

func (g *Group) valid() error {
	if g == nil || g.f == nil || g.f.db == nil {
		return fmt.Errorf("group handle is nil or closed: %w", ErrInvalidArgument)
	}
	return nil
}

// CreateGroup creates a child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.valid(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("group name must not be empty: %w", ErrInvalidArgument)
	}
	res, err := g.f.db.Exec(`INSERT INTO groups (parent, name) VALUES (?, ?)`, g.id, name)
	if err != nil {
		return nil, fmt.Errorf("error creating group %q: %w", name, err)
	}
	id, _ := res.LastInsertId()
	return &Group{f: g.f, id: id}, nil
}

// Group looks up a child group by name.
func (g *Group) Group(name string) (*Group, error) {
	if err := g.valid(); err != nil {
		return nil, err
	}
	var id int64
	row := g.f.db.QueryRow(`SELECT id FROM groups WHERE parent = ? AND name = ?`, g.id, name)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no group %q: %w", name, ErrInvalidArgument)
		}
		return nil, fmt.Errorf("error looking up group %q: %w", name, err)
	}
	return &Group{f: g.f, id: id}, nil
}

// Groups lists child group names in sorted order.
func (g *Group) Groups() ([]string, error) {
	if err := g.valid(); err != nil {
		return nil, err
	}
	rows, err := g.f.db.Query(`SELECT name FROM groups WHERE parent = ? ORDER BY name`, g.id)
	if err != nil {
		return nil, fmt.Errorf("error listing groups: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetAttrs writes group-level attributes, overwriting on name collision.
func (g *Group) SetAttrs(attrs map[string]string) error {
	if err := g.valid(); err != nil {
		return err
	}
	for name, value := range attrs {
		_, err := g.f.db.Exec(
			`INSERT OR REPLACE INTO group_attributes (group_id, name, value) VALUES (?, ?, ?)`,
			g.id, name, value)
		if err != nil {
			return fmt.Errorf("error writing attribute %q: %w", name, err)
		}
	}
	return nil
}

// Attrs returns the group-level attributes.
func (g *Group) Attrs() (map[string]string, error) {
	if err := g.valid(); err != nil {
		return nil, err
	}
	rows, err := g.f.db.Query(`SELECT name, value FROM group_attributes WHERE group_id = ?`, g.id)
	if err != nil {
		return nil, fmt.Errorf("error reading attributes: %w", err)
	}
	defer rows.Close()

	attrs := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

// WriteDataset writes a labeled dataset into the group: one dimension per
// distinct axis name, one variable per named array with its dimension names
// and attributes copied verbatim, and the dataset-level attributes as
// group-level attributes.
func (g *Group) WriteDataset(ds *dataset.Dataset) error {
	if err := g.valid(); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("dataset must not be nil: %w", ErrInvalidArgument)
	}

	sizes, err := ds.Sizes()
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	for dim, size := range sizes {
		_, err := g.f.db.Exec(
			`INSERT INTO dimensions (group_id, name, size) VALUES (?, ?, ?)`,
			g.id, dim, size)
		if err != nil {
			return fmt.Errorf("error writing dimension %q: %w", dim, err)
		}
	}

	for _, name := range ds.VarNames() {
		a := ds.Vars[name]
		dims, err := json.Marshal(a.Dims)
		if err != nil {
			return err
		}
		res, err := g.f.db.Exec(
			`INSERT INTO variables (group_id, name, dims, data) VALUES (?, ?, ?, ?)`,
			g.id, name, string(dims), encodeFloats(a.Values))
		if err != nil {
			return fmt.Errorf("error writing variable %q: %w", name, err)
		}
		varID, _ := res.LastInsertId()
		for aname, avalue := range a.Attrs {
			_, err := g.f.db.Exec(
				`INSERT OR REPLACE INTO variable_attributes (variable_id, name, value) VALUES (?, ?, ?)`,
				varID, aname, avalue)
			if err != nil {
				return fmt.Errorf("error writing attribute %q of %q: %w", aname, name, err)
			}
		}
	}

	return g.SetAttrs(ds.Attrs)
}

// ReadDataset reconstructs the dataset stored in the group.
func (g *Group) ReadDataset() (*dataset.Dataset, error) {
	if err := g.valid(); err != nil {
		return nil, err
	}

	sizes := map[string]int{}
	rows, err := g.f.db.Query(`SELECT name, size FROM dimensions WHERE group_id = ?`, g.id)
	if err != nil {
		return nil, fmt.Errorf("error reading dimensions: %w", err)
	}
	for rows.Next() {
		var name string
		var size int
		if err := rows.Scan(&name, &size); err != nil {
			rows.Close()
			return nil, err
		}
		sizes[name] = size
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ds := dataset.NewDataset()

	vrows, err := g.f.db.Query(`SELECT id, name, dims, data FROM variables WHERE group_id = ? ORDER BY name`, g.id)
	if err != nil {
		return nil, fmt.Errorf("error reading variables: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var varID int64
		var name, dimsJSON string
		var blob []byte
		if err := vrows.Scan(&varID, &name, &dimsJSON, &blob); err != nil {
			return nil, err
		}

		var dims []string
		if err := json.Unmarshal([]byte(dimsJSON), &dims); err != nil {
			return nil, fmt.Errorf("corrupt dims for variable %q: %w", name, err)
		}
		shape := make([]int, len(dims))
		for i, dim := range dims {
			size, ok := sizes[dim]
			if !ok {
				return nil, fmt.Errorf("variable %q references undeclared dimension %q", name, dim)
			}
			shape[i] = size
		}

		a := &dataset.DataArray{
			Values: decodeFloats(blob),
			Shape:  shape,
			Dims:   dims,
			Attrs:  map[string]string{},
		}
		if len(dims) == 0 {
			a.Shape = nil
		}

		arows, err := g.f.db.Query(`SELECT name, value FROM variable_attributes WHERE variable_id = ?`, varID)
		if err != nil {
			return nil, err
		}
		for arows.Next() {
			var aname, avalue string
			if err := arows.Scan(&aname, &avalue); err != nil {
				arows.Close()
				return nil, err
			}
			a.Attrs[aname] = avalue
		}
		arows.Close()
		if err := arows.Err(); err != nil {
			return nil, err
		}

		ds.Add(name, a)
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}

	attrs, err := g.Attrs()
	if err != nil {
		return nil, err
	}
	ds.SetAttrs(attrs)
	return ds, nil
}

func encodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFloats(buf []byte) []float64 {
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return values
}
