// Package sink owns the merged output tables.
//
// A table must be created before rows are appended to it. Rows are written in
// schema order with encoding/csv quoting, the same convention as the header.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
)

var (
	// ErrNotCreated is returned by Append for a table Create never saw.
	ErrNotCreated = errors.New("table not created")
	// ErrRowWidth is returned by Append for rows not shaped by the schema.
	ErrRowWidth = errors.New("row width does not match schema")
	// ErrClosed is returned by Create and Append after Close.
	ErrClosed = errors.New("sink closed")
)

// Sink receives the output of the merge.
type Sink interface {
	// Create starts (or restarts) a table and writes its header.
	Create(s schema.TableSchema) error
	// Append writes schema-shaped rows at the end of a created table.
	Append(table string, rows ...[]string) error
	Close() error
}

// IOError wraps a failure to create, write or close an output table.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sink: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TableStats summarises what was written to one table.
type TableStats struct {
	Table string
	Path  string
	Rows  int
	// Digest is the xxh3 hash of every byte written, header included.
	Digest uint64
}

type table struct {
	schema schema.TableSchema
	path   string
	f      *os.File
	w      *csv.Writer
	h      *xxh3.Hasher
	rows   int
}

// Directory writes one <table>.txt file per schema into a directory.
type Directory struct {
	dir    string
	order  []string
	tables map[string]*table
	closed bool
}

// NewDirectory returns a sink writing into dir. The directory must exist.
func NewDirectory(dir string) *Directory {
	return &Directory{dir: dir, tables: map[string]*table{}}
}

// Dir is the output directory.
func (d *Directory) Dir() string { return d.dir }

func (d *Directory) Create(s schema.TableSchema) error {
	path := filepath.Join(d.dir, s.FileName())
	if d.closed {
		return &IOError{Op: "create", Path: path, Err: ErrClosed}
	}
	if old, ok := d.tables[s.Name]; ok {
		_ = old.f.Close()
		d.forget(s.Name)
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	h := xxh3.New()
	t := &table{schema: s, path: path, f: f, h: h}
	t.w = csv.NewWriter(multiWriter{f, h})
	if err := t.write(s.Header()); err != nil {
		_ = f.Close()
		return &IOError{Op: "write header", Path: path, Err: err}
	}
	d.order = append(d.order, s.Name)
	d.tables[s.Name] = t
	return nil
}

func (d *Directory) forget(name string) {
	delete(d.tables, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}

func (d *Directory) Append(name string, rows ...[]string) error {
	t, ok := d.tables[name]
	if !ok {
		return &IOError{Op: "append", Path: filepath.Join(d.dir, name+".txt"), Err: ErrNotCreated}
	}
	if d.closed {
		return &IOError{Op: "append", Path: t.path, Err: ErrClosed}
	}
	for _, r := range rows {
		if len(r) != t.schema.Width() {
			return fmt.Errorf("sink: append %s: %w (got %d, want %d)", name, ErrRowWidth, len(r), t.schema.Width())
		}
	}
	for _, r := range rows {
		if err := t.w.Write(r); err != nil {
			return &IOError{Op: "append", Path: t.path, Err: err}
		}
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return &IOError{Op: "append", Path: t.path, Err: err}
	}
	t.rows += len(rows)
	return nil
}

func (t *table) write(rec []string) error {
	if err := t.w.Write(rec); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

// Close closes every table file. Stats stay readable afterwards.
func (d *Directory) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	for _, name := range d.order {
		t := d.tables[name]
		if err := t.f.Close(); err != nil {
			errs = append(errs, &IOError{Op: "close", Path: t.path, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Paths lists table files in creation order.
func (d *Directory) Paths() []string {
	out := make([]string, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, filepath.Join(d.dir, name+".txt"))
	}
	return out
}

// Stats reports rows and digests per table, in creation order.
func (d *Directory) Stats() []TableStats {
	out := make([]TableStats, 0, len(d.order))
	for _, name := range d.order {
		t := d.tables[name]
		out = append(out, TableStats{Table: name, Path: t.path, Rows: t.rows, Digest: t.h.Sum64()})
	}
	return out
}

// multiWriter writes to the file first and mirrors into the hash only what
// the file accepted.
type multiWriter struct {
	f *os.File
	h *xxh3.Hasher
}

func (m multiWriter) Write(p []byte) (int, error) {
	n, err := m.f.Write(p)
	_, _ = m.h.Write(p[:n])
	return n, err
}
