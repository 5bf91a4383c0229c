package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/internal/testutil"
)

func TestExtract(t *testing.T) {
	tmp := t.TempDir()
	zipPath := testutil.WriteZip(t, filepath.Join(tmp, "feed.zip"), testutil.Feed{
		"routes.txt": {Header: []string{"route_id"}, Rows: [][]string{{"1"}}},
		"trips.txt":  {Header: []string{"trip_id"}, Rows: [][]string{{"T1"}}},
	})

	dest := filepath.Join(tmp, "out")
	files, err := Extract(zipPath, dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("extracted %d files", len(files))
	}
	recs := testutil.ReadCSV(t, filepath.Join(dest, "trips.txt"))
	if !reflect.DeepEqual(recs, [][]string{{"trip_id"}, {"T1"}}) {
		t.Errorf("trips.txt = %v", recs)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../escape.txt")
	w.Write([]byte("x"))
	zw.Close()
	f.Close()

	_, err = Extract(zipPath, filepath.Join(tmp, "out"))
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("want ErrUnsafePath, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(tmp, "escape.txt")); !os.IsNotExist(statErr) {
		t.Errorf("file escaped the destination")
	}
}

func TestExtractMissingArchive(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "none.zip"), t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestPackRoundTrip(t *testing.T) {
	src := t.TempDir()
	a := testutil.WriteFile(t, src, "agency.txt", "agency_id\nCM\n")
	b := testutil.WriteFile(t, src, "stops.txt", "stop_id\n1\n")

	out := filepath.Join(t.TempDir(), "merged.zip")
	if err := Pack(out, []string{a, b}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Method != zip.Deflate {
			t.Errorf("%s not deflated", f.Name)
		}
	}
	if !reflect.DeepEqual(names, []string{"agency.txt", "stops.txt"}) {
		t.Errorf("entries = %v", names)
	}

	dest := t.TempDir()
	if _, err := Extract(out, dest); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(filepath.Join(dest, "agency.txt"))
	if string(got) != "agency_id\nCM\n" {
		t.Errorf("agency.txt = %q", got)
	}
}

func TestPackErrors(t *testing.T) {
	src := t.TempDir()
	a := testutil.WriteFile(t, src, "agency.txt", "agency_id\n")
	other := t.TempDir()
	a2 := testutil.WriteFile(t, other, "agency.txt", "agency_id\n")

	if err := Pack(filepath.Join(t.TempDir(), "x.zip"), []string{a, a2}); err == nil {
		t.Error("duplicate entry accepted")
	}
	if err := Pack(filepath.Join(t.TempDir(), "y.zip"), []string{filepath.Join(src, "missing.txt")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing input: %v", err)
	}
	if err := Pack(filepath.Join(t.TempDir(), "no", "dir.zip"), nil); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing output dir: %v", err)
	}
}
