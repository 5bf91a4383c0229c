// Package feed streams GTFS table files into the output sink.
//
// ImportTable reads one table of one feed row by row, transforms every row
// with the table's compiled plan and appends the result in small batches.
// The first failing row stops the import; rows before it stay written.
package feed

import (
	"context"
	"io"
	"log"
	"path/filepath"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
	rowtransform "github.com/theoremus-urban-solutions/gtfs-regional-merge/transform"
)

// DefaultBatchSize is the number of rows handed to the sink per Append.
const DefaultBatchSize = 500

// Importer drives source tables into a sink. It is not safe for concurrent use.
type Importer struct {
	sink  sink.Sink
	rc    rowtransform.RunContext
	batch int
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize sets the rows per Append; values below 1 mean 1.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n < 1 {
			n = 1
		}
		im.batch = n
	}
}

// WithRunContext sets the values computed columns read.
func WithRunContext(rc rowtransform.RunContext) Option {
	return func(im *Importer) { im.rc = rc }
}

// NewImporter returns an Importer writing into s.
func NewImporter(s sink.Sink, opts ...Option) *Importer {
	im := &Importer{sink: s, batch: DefaultBatchSize}
	for _, o := range opts {
		o(im)
	}
	return im
}

// ImportTable appends every data row of dir/fileName to the sink table of s,
// prefixing namespaced columns with ns. It returns the number of rows
// appended. s is compiled on every call.
func (im *Importer) ImportTable(ctx context.Context, dir, fileName string, s schema.TableSchema, ns string) (int, error) {
	p, err := rowtransform.Compile(s)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(dir, fileName)
	log.Printf("⤷ Importing %q to output %q (prefix %q)...", path, s.FileName(), ns)

	r, err := OpenTable(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	pending := make([][]string, 0, im.batch)
	written := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := im.sink.Append(s.Name, pending...); err != nil {
			return err
		}
		written += len(pending)
		pending = pending[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		raw, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
		out, err := p.Apply(raw, ns, im.rc, r.Rows())
		if err != nil {
			if ferr := flush(); ferr != nil {
				return written, ferr
			}
			return written, err
		}
		pending = append(pending, out)
		if len(pending) >= im.batch {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	log.Printf("✔︎ Imported %d rows to output %q", written, s.FileName())
	return written, nil
}
