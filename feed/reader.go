package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
	rowtransform "github.com/theoremus-urban-solutions/gtfs-regional-merge/transform"
)

// ErrSourceNotFound is matched by errors.Is when a requested table file is
// missing from a feed.
var ErrSourceNotFound = errors.New("source table not found")

// Row is one parsed data line keyed by the file's own header.
type Row = rowtransform.Row

// Reader streams the data rows of one GTFS table file.
type Reader struct {
	path   string
	f      *os.File
	cr     *csv.Reader
	header []string
	rows   int
	done   bool
}

// OpenTable opens path and reads its header. Memory use stays at one record
// regardless of file size.
func OpenTable(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, &sink.IOError{Op: "open", Path: path, Err: err}
	}

	// A leading UTF-8 BOM is consumed; without one the bytes pass as UTF-8.
	decoded := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	r := &Reader{path: path, f: f, cr: cr}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	for {
		rec, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("feed: read header %s: %w", r.path, err)
		}
		if blank(rec) {
			continue
		}
		r.header = make([]string, len(rec))
		for i, h := range rec {
			r.header[i] = strings.TrimSpace(h)
		}
		return nil
	}
}

// Header is the trimmed column list of the file; nil for an empty file.
func (r *Reader) Header() []string { return r.header }

// Rows is the number of data rows returned so far.
func (r *Reader) Rows() int { return r.rows }

// Next returns the next data row, or io.EOF. Empty lines are skipped.
//
// Cells are trimmed. Cells past the header width are dropped; columns the
// line is too short for are absent from the row.
func (r *Reader) Next() (Row, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		rec, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("feed: parse %s: %w", r.path, err)
		}
		if blank(rec) {
			continue
		}
		row := make(Row, len(r.header))
		for i, h := range r.header {
			if i >= len(rec) {
				break
			}
			row[h] = strings.TrimSpace(rec[i])
		}
		r.rows++
		return row, nil
	}
}

// Close releases the file.
func (r *Reader) Close() error { return r.f.Close() }

// blank reports a line with no delimiter and nothing but whitespace.
// Delimiter-only lines such as ",," are data rows with empty cells.
func blank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
