// Package transform turns one parsed source row into one output row.
//
// A Plan is compiled once per table: every column of the schema gets a small
// closure, so the per-row loop does no kind switching and no tag parsing.
// Plans hold no mutable state and are safe to reuse across sources.
package transform

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
)

// FeedVersionLayout is the fixed-width feed_version format.
const FeedVersionLayout = "20060102150405"

// Row maps source column names to raw cell text.
type Row map[string]string

// RunContext carries the run-scoped values computed columns read from.
type RunContext struct {
	StartedAt time.Time
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

type cell func(raw Row, ns string, rc RunContext, line int) (string, error)

// Plan is a compiled schema.
type Plan struct {
	table string
	cells []cell
}

// Compile builds a Plan. Unknown computed rules and malformed validator tags
// are reported here rather than on the first row.
func Compile(s schema.TableSchema) (*Plan, error) {
	p := &Plan{table: s.Name, cells: make([]cell, len(s.Columns))}
	for i, col := range s.Columns {
		c, err := compileColumn(s.Name, col)
		if err != nil {
			return nil, err
		}
		p.cells[i] = c
	}
	return p, nil
}

func compileColumn(table string, col schema.ColumnSpec) (cell, error) {
	name := col.Name
	switch col.Kind {
	case schema.Passthrough:
		return func(raw Row, _ string, _ RunContext, _ int) (string, error) {
			return raw[name], nil
		}, nil

	case schema.Namespaced:
		return func(raw Row, ns string, _ RunContext, _ int) (string, error) {
			v, ok := raw[name]
			if !ok {
				return "", nil
			}
			return ns + v, nil
		}, nil

	case schema.Constant:
		v := col.Value
		return func(Row, string, RunContext, int) (string, error) {
			return v, nil
		}, nil

	case schema.Computed:
		switch col.Rule {
		case schema.RuleFeedVersionTimestamp:
			return func(_ Row, _ string, rc RunContext, _ int) (string, error) {
				return rc.StartedAt.Format(FeedVersionLayout), nil
			}, nil
		default:
			return nil, fmt.Errorf("transform %s.%s: unknown computed rule %q", table, name, col.Rule)
		}

	case schema.Validated:
		tag := col.Rule
		if err := checkTag(tag); err != nil {
			return nil, fmt.Errorf("transform %s.%s: %w", table, name, err)
		}
		v := validatorInstance()
		return func(raw Row, _ string, _ RunContext, line int) (string, error) {
			val := raw[name]
			if err := v.Var(val, tag); err != nil {
				return "", &ValidationError{Table: table, Column: name, Value: val, Row: line, Rule: tag}
			}
			return val, nil
		}, nil

	default:
		return nil, fmt.Errorf("transform %s.%s: unsupported column kind %s", table, name, col.Kind)
	}
}

// checkTag rejects empty tags and tags the validator does not know; the
// validator panics on the latter.
func checkTag(tag string) (err error) {
	if tag == "" {
		return fmt.Errorf("empty validation rule")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid validation rule %q: %v", tag, r)
		}
	}()
	_ = validatorInstance().Var("", tag)
	return nil
}

// Table is the schema name the plan was compiled from.
func (p *Plan) Table() string { return p.table }

// Width is the number of cells Apply returns.
func (p *Plan) Width() int { return len(p.cells) }

// Apply produces the output row for raw. line is the 1-based data row number
// reported in validation errors.
func (p *Plan) Apply(raw Row, ns string, rc RunContext, line int) ([]string, error) {
	out := make([]string, len(p.cells))
	for i, c := range p.cells {
		v, err := c(raw, ns, rc, line)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Transform compiles s and applies it to a single row.
func Transform(raw Row, s schema.TableSchema, ns string, rc RunContext, line int) ([]string, error) {
	p, err := Compile(s)
	if err != nil {
		return nil, err
	}
	return p.Apply(raw, ns, rc, line)
}
