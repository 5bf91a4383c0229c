package sink

import (
	"errors"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
)

type tee []Sink

// Tee sends every call to primary and then to each mirror, stopping at the
// first error.
func Tee(primary Sink, mirrors ...Sink) Sink {
	if len(mirrors) == 0 {
		return primary
	}
	return append(tee{primary}, mirrors...)
}

func (t tee) Create(s schema.TableSchema) error {
	for _, sk := range t {
		if err := sk.Create(s); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Append(table string, rows ...[]string) error {
	for _, sk := range t {
		if err := sk.Append(table, rows...); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink even when one fails.
func (t tee) Close() error {
	var errs []error
	for _, sk := range t {
		errs = append(errs, sk.Close())
	}
	return errors.Join(errs...)
}
