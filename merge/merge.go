// Package merge runs a regional GTFS merge end to end.
//
// A run creates every selected output table, imports the common tables
// without a namespace, imports the source tables of every feed under its
// own p<i>_ namespace, packs the output into one archive and hands it to the
// publisher. The first error stops the run: nothing is packed or published
// and the partial output is removed.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/archive"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/config"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/feed"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/metrics"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/publish"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink/sqlite"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/transform"
)

// Result summarises a successful run.
type Result struct {
	RunID    string
	Archive  string
	Tables   []sink.TableStats
	Sources  int
	Duration time.Duration
}

// Orchestrator runs merges for one configuration.
type Orchestrator struct {
	cfg       config.AppConfig
	reg       *schema.Registry
	mirrors   []sink.Sink
	publisher publish.Publisher
	now       func() time.Time
	runID     string
	state     State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink adds s as a mirror that receives every Create and Append of the
// output tables. The orchestrator closes it at the end of the run.
func WithSink(s sink.Sink) Option {
	return func(o *Orchestrator) { o.mirrors = append(o.mirrors, s) }
}

// WithPublisher sets where the archive goes. Without one the run ends after
// packaging.
func WithPublisher(p publish.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an orchestrator for cfg. A nil reg uses cfg.Registry().
func New(cfg config.AppConfig, reg *schema.Registry, opts ...Option) *Orchestrator {
	if reg == nil {
		reg = cfg.Registry()
	}
	o := &Orchestrator{cfg: cfg, reg: reg, now: time.Now, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID identifies the run in logs and metrics.
func (o *Orchestrator) RunID() string { return o.runID }

// State is the state the last Run reached.
func (o *Orchestrator) State() State { return o.state }

type run struct {
	outDir     string
	createdDir bool
	dir        *sink.Directory
	out        sink.Sink
	closed     bool
	importer   *feed.Importer
	archive    string
}

// Run performs one merge.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	started := o.now()
	o.state = Init
	log.Printf("→ Starting GTFS Regional Merge (run %s)", o.runID)

	r := &run{}
	res, err := o.run(ctx, r, started)
	if err != nil {
		o.fail(r)
		log.Printf("✖︎ Merge failed in %s: %v", o.state, err)
		o.state = Failed
	} else {
		o.state = Success
		log.Printf("■ Done in %s", res.Duration.Round(time.Millisecond))
	}
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("WARN: failed to push metrics: %v", ferr)
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, r *run, started time.Time) (*Result, error) {
	if err := o.step(Init, func() error { return o.init(ctx, r, started) }); err != nil {
		return nil, err
	}
	if err := o.step(CommonImport, func() error { return o.importCommon(ctx, r) }); err != nil {
		return nil, err
	}
	if err := o.step(PerSourceImport, func() error { return o.importSources(ctx, r) }); err != nil {
		return nil, err
	}
	if err := o.step(Finalize, func() error { return o.finalize(r) }); err != nil {
		return nil, err
	}
	if o.publisher != nil {
		if err := o.step(Publish, func() error {
			log.Printf("→ Publishing %q...", r.archive)
			return o.publisher.Publish(ctx, publish.Artifact{Path: r.archive})
		}); err != nil {
			return nil, err
		}
	}
	return &Result{
		RunID:    o.runID,
		Archive:  r.archive,
		Tables:   r.dir.Stats(),
		Sources:  len(o.cfg.Sources),
		Duration: o.now().Sub(started),
	}, nil
}

// step moves to s, runs fn and records it. Errors are wrapped with the step.
func (o *Orchestrator) step(s State, fn func() error) error {
	o.state = s
	t0 := time.Now()
	err := fn()
	metrics.RecordStep(s.String(), err, time.Since(t0))
	if err != nil {
		return fmt.Errorf("merge: %s: %w", s, err)
	}
	return nil
}

func (o *Orchestrator) init(ctx context.Context, r *run, started time.Time) error {
	loc, err := time.LoadLocation(o.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", o.cfg.Timezone, err)
	}
	for _, names := range [][]string{o.cfg.Tables.Common, o.cfg.Tables.Source} {
		if missing, ok := o.reg.Has(names...); !ok {
			return fmt.Errorf("table %q is not in the registry", missing)
		}
	}

	r.outDir = o.cfg.Resolve(o.cfg.Paths.OutputDir)
	log.Printf("→ Creating output directory %q...", r.outDir)
	if _, err := os.Stat(r.outDir); errors.Is(err, os.ErrNotExist) {
		r.createdDir = true
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return &sink.IOError{Op: "mkdir", Path: r.outDir, Err: err}
	}

	r.dir = sink.NewDirectory(r.outDir)
	mirrors := append([]sink.Sink(nil), o.mirrors...)
	if p := o.cfg.SQLite.Path; p != "" {
		m, err := sqlite.New(ctx, o.cfg.Resolve(p))
		if err != nil {
			return err
		}
		mirrors = append(mirrors, m)
	}
	r.out = sink.Tee(r.dir, mirrors...)

	selected := map[string]bool{}
	for _, n := range o.cfg.Tables.Common {
		selected[n] = true
	}
	for _, n := range o.cfg.Tables.Source {
		selected[n] = true
	}
	log.Printf("→ Creating output files...")
	for _, s := range o.reg.Tables() {
		if !selected[s.Name] {
			continue
		}
		if err := r.out.Create(s); err != nil {
			return err
		}
	}
	log.Printf("✔︎ Created %d output files successfully.", len(selected))

	rc := transform.RunContext{StartedAt: started.In(loc)}
	r.importer = feed.NewImporter(r.out, feed.WithRunContext(rc))
	return nil
}

func (o *Orchestrator) importTables(ctx context.Context, r *run, dir string, names []string, ns string) error {
	for _, name := range names {
		s := o.reg.MustLookup(name)
		n, err := r.importer.ImportTable(ctx, dir, s.FileName(), s, ns)
		metrics.RecordRows(name, n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) importCommon(ctx context.Context, r *run) error {
	dir := o.cfg.Resolve(o.cfg.Paths.CommonDir)
	log.Printf("→ Importing common-data files from %q...", dir)
	if err := o.importTables(ctx, r, dir, o.cfg.Tables.Common, ""); err != nil {
		return fmt.Errorf("common %q: %w", dir, err)
	}
	log.Printf("✔︎ Parsed all common-data files successfully.")
	return nil
}

func (o *Orchestrator) importSources(ctx context.Context, r *run) error {
	for i, src := range o.cfg.Sources {
		if err := o.importSource(ctx, r, i, src); err != nil {
			return fmt.Errorf("source %d %q: %w", i, src, err)
		}
	}
	return nil
}

func (o *Orchestrator) importSource(ctx context.Context, r *run, i int, src string) error {
	ns := Namespace(i)
	path := o.cfg.Resolve(src)
	log.Printf("→ Importing %q with prefix %q...", path, ns)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", feed.ErrSourceNotFound, path)
		}
		return &sink.IOError{Op: "stat", Path: path, Err: err}
	}
	dir := path
	if !info.IsDir() {
		tmpRoot := o.cfg.Resolve(o.cfg.Paths.TempDir)
		if tmpRoot != "" {
			if err := os.MkdirAll(tmpRoot, 0o755); err != nil {
				return &sink.IOError{Op: "mkdir", Path: tmpRoot, Err: err}
			}
		}
		tmp, err := os.MkdirTemp(tmpRoot, "gtfs-merge-"+strings.TrimSuffix(ns, "_")+"-")
		if err != nil {
			return &sink.IOError{Op: "mkdir temp", Path: tmpRoot, Err: err}
		}
		defer func() {
			log.Printf("⤷ Removing temporary directory...")
			if err := os.RemoveAll(tmp); err != nil {
				log.Printf("WARN: failed to remove %q: %v", tmp, err)
			}
		}()
		log.Printf("⤷ Extracting zip file to %q...", tmp)
		if _, err := archive.Extract(path, tmp); err != nil {
			return err
		}
		dir = tmp
	}
	if err := o.importTables(ctx, r, dir, o.cfg.Tables.Source, ns); err != nil {
		return err
	}
	log.Printf("✔︎ Parsed all GTFS files successfully.")
	return nil
}

func (o *Orchestrator) finalize(r *run) error {
	r.closed = true
	if err := r.out.Close(); err != nil {
		return err
	}
	r.archive = filepath.Join(r.outDir, o.cfg.Paths.ArchiveName)
	log.Printf("→ Archiving output files to %q...", r.archive)
	if err := archive.Pack(r.archive, r.dir.Paths()); err != nil {
		return err
	}
	for _, st := range r.dir.Stats() {
		log.Printf("⤷ %-16s %8d rows  xxh3=%016x", st.Table, st.Rows, st.Digest)
	}
	log.Printf("✔︎ Archived all output files successfully.")
	return nil
}

// fail releases the sinks and removes what the run wrote. An output
// directory that existed before the run is kept; only the run's files go.
func (o *Orchestrator) fail(r *run) {
	if r.out != nil && !r.closed {
		if err := r.out.Close(); err != nil {
			log.Printf("WARN: closing output: %v", err)
		}
	}
	if r.outDir == "" {
		return
	}
	if r.createdDir {
		if err := os.RemoveAll(r.outDir); err != nil {
			log.Printf("WARN: failed to remove %q: %v", r.outDir, err)
		}
		return
	}
	var files []string
	if r.dir != nil {
		files = r.dir.Paths()
	}
	if r.archive != "" {
		files = append(files, r.archive)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: failed to remove %q: %v", f, err)
		}
	}
}
