// Package testutil builds GTFS fixtures on disk for package tests.
package testutil

import (
	"archive/zip"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Table is a header plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Feed maps file names (routes.txt, ...) to tables.
type Feed map[string]Table

// CSV renders a table with encoding/csv.
func CSV(t *testing.T, tbl Table) string {
	t.Helper()
	var b strings.Builder
	w := csv.NewWriter(&b)
	if tbl.Header != nil {
		if err := w.Write(tbl.Header); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	for _, r := range tbl.Rows {
		if err := w.Write(r); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	return b.String()
}

// WriteFile writes raw content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteDir writes every table of f into dir.
func WriteDir(t *testing.T, dir string, f Feed) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for name, tbl := range f {
		WriteFile(t, dir, name, CSV(t, tbl))
	}
}

// WriteZip packs f into a zip archive at path, entries sorted by name.
func WriteZip(t *testing.T, path string, f Feed) string {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer out.Close()

	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(out)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("zip entry %s: %v", n, err)
		}
		if _, err := w.Write([]byte(CSV(t, f[n]))); err != nil {
			t.Fatalf("zip write %s: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return path
}

// ReadCSV parses a file written by the sink.
func ReadCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return recs
}

// Column returns the cells of one named column, header excluded.
func Column(t *testing.T, recs [][]string, name string) []string {
	t.Helper()
	if len(recs) == 0 {
		t.Fatalf("no header")
	}
	idx := -1
	for i, h := range recs[0] {
		if h == name {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("column %q not in header %v", name, recs[0])
	}
	out := make([]string, 0, len(recs)-1)
	for _, r := range recs[1:] {
		out = append(out, r[idx])
	}
	return out
}
