package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/config"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/internal/testutil"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/publish"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	testutil.WriteDir(t, filepath.Join(ws, "common"), testutil.Feed{
		"agency.txt":          {Header: []string{"agency_name"}, Rows: [][]string{{"CM"}}},
		"fare_attributes.txt": {Header: []string{"fare_id"}},
		"fare_rules.txt":      {Header: []string{"fare_id", "route_id"}},
		"feed_info.txt":       {Header: []string{"feed_publisher_name"}, Rows: [][]string{{"TML"}}},
		"municipalities.txt":  {Header: []string{"municipality_id"}},
		"stops.txt":           {Header: []string{"stop_id"}, Rows: [][]string{{"1"}}},
	})
	os.MkdirAll(filepath.Join(ws, "feeds"), 0o755)
	testutil.WriteZip(t, filepath.Join(ws, "feeds", "a.zip"), testutil.Feed{
		"calendar_dates.txt": {Header: []string{"service_id", "date"}, Rows: [][]string{{"WKD", "20240101"}}},
		"routes.txt":         {Header: []string{"route_id", "route_color", "route_text_color"}, Rows: [][]string{{"1", "FF0000", "FFFFFF"}}},
		"shapes.txt":         {Header: []string{"shape_id"}},
		"stop_times.txt":     {Header: []string{"trip_id", "stop_id"}},
		"trips.txt":          {Header: []string{"route_id", "service_id", "trip_id"}, Rows: [][]string{{"1", "WKD", "T"}}},
	})
	return ws
}

func TestRunLocal(t *testing.T) {
	ws := writeWorkspace(t)
	env := map[string]string{
		"GITHUB_WORKSPACE":     ws,
		"INPUT_FILES-TO-MERGE": "feeds/a.zip",
		"GITHUB_REPOSITORY":    "cm/gtfs",
		"INPUT_TOKEN":          "unused",
	}
	cfgPath := testutil.WriteFile(t, t.TempDir(), "config.yml", "timezone: UTC\n")
	dest := filepath.Join(t.TempDir(), "CarrisMetropolitana.zip")

	if err := run([]string{"-config", cfgPath, "-local", dest}, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("run: %v", err)
	}
	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open published archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 11 {
		t.Errorf("archive has %d entries", len(zr.File))
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfgPath := testutil.WriteFile(t, t.TempDir(), "config.yml", "timezone: UTC\n")
	if err := run([]string{"-config", cfgPath}, func(string) string { return "" }); err == nil {
		t.Fatal("run without sources succeeded")
	}
	if err := run([]string{"-unknown"}, func(string) string { return "" }); err == nil {
		t.Fatal("unknown flag accepted")
	}
}

func TestPublisherSelection(t *testing.T) {
	cfg := config.Default()
	if p, err := publisher(cfg, false); err != nil || p != nil {
		t.Errorf("no publisher expected, got %T, %v", p, err)
	}

	cfg.Publish.Enabled, cfg.Publish.Owner, cfg.Publish.Repo = true, "cm", "gtfs"
	if p, err := publisher(cfg, false); err != nil {
		t.Fatal(err)
	} else if _, ok := p.(*publish.GitHub); !ok {
		t.Errorf("got %T, want *publish.GitHub", p)
	}

	cfg.Publish.LocalDest = "out.zip"
	if p, _ := publisher(cfg, true); p == nil {
		t.Error("dry run with local dest has no publisher")
	} else if _, ok := p.(publish.Local); !ok {
		t.Errorf("got %T, want publish.Local", p)
	}
}
