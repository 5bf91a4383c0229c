package schema

import (
	"fmt"
	"strings"
)

// Sentinel marks a namespaced column in the source column convention.
const Sentinel = "*"

// Kind selects how an output column is produced.
type Kind uint8

const (
	Passthrough Kind = iota
	Namespaced
	Constant
	Computed
	Validated
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Namespaced:
		return "namespaced"
	case Constant:
		return "constant"
	case Computed:
		return "computed"
	case Validated:
		return "validated"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Computed rule names.
const (
	// RuleFeedVersionTimestamp renders the run start as YYYYMMDDHHMMSS.
	RuleFeedVersionTimestamp = "feed_version_timestamp"
)

// Validation rules, expressed as go-playground/validator tags.
const (
	RuleColorLength    = "len=6"
	RuleRouteShortName = "numeric,len=4"
)

// ColumnSpec describes one output column.
type ColumnSpec struct {
	Name string
	Kind Kind
	// Value is the emitted value for Constant columns.
	Value string
	// Rule is the computed rule name for Computed columns, or the validator
	// tag for Validated columns.
	Rule string
}

// Column returns a passthrough column.
func Column(name string) ColumnSpec { return ColumnSpec{Name: name} }

// Prefixed returns a namespaced column.
func Prefixed(name string) ColumnSpec { return ColumnSpec{Name: name, Kind: Namespaced} }

// Fixed returns a constant column.
func Fixed(name, value string) ColumnSpec {
	return ColumnSpec{Name: name, Kind: Constant, Value: value}
}

// Derived returns a computed column.
func Derived(name, rule string) ColumnSpec {
	return ColumnSpec{Name: name, Kind: Computed, Rule: rule}
}

// Checked returns a validated column.
func Checked(name, rule string) ColumnSpec {
	return ColumnSpec{Name: name, Kind: Validated, Rule: rule}
}

// ParseColumn reads a column in the asterisk convention.
func ParseColumn(raw string) ColumnSpec {
	if strings.HasPrefix(raw, Sentinel) {
		return Prefixed(strings.TrimLeft(raw, Sentinel))
	}
	return Column(raw)
}

// TableSchema is the ordered column list of one output table.
type TableSchema struct {
	Name    string
	Columns []ColumnSpec
}

// New builds a TableSchema. It rejects empty and duplicate column names.
func New(name string, cols ...ColumnSpec) (TableSchema, error) {
	if name == "" {
		return TableSchema{}, fmt.Errorf("schema: table name is empty")
	}
	if len(cols) == 0 {
		return TableSchema{}, fmt.Errorf("schema %s: no columns", name)
	}
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return TableSchema{}, fmt.Errorf("schema %s: empty column name", name)
		}
		if _, dup := seen[c.Name]; dup {
			return TableSchema{}, fmt.Errorf("schema %s: duplicate column %q", name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	out := make([]ColumnSpec, len(cols))
	copy(out, cols)
	return TableSchema{Name: name, Columns: out}, nil
}

// MustParse builds a TableSchema from asterisk-convention column names and
// panics on an invalid declaration.
func MustParse(name string, raw ...string) TableSchema {
	cols := make([]ColumnSpec, len(raw))
	for i, r := range raw {
		cols[i] = ParseColumn(r)
	}
	s, err := New(name, cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// FileName is the GTFS file the table is read from and written to.
func (s TableSchema) FileName() string { return s.Name + ".txt" }

// Header returns the output header; sentinels are never part of a name.
func (s TableSchema) Header() []string {
	h := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		h[i] = strings.TrimLeft(c.Name, Sentinel)
	}
	return h
}

// Width is the number of cells in every output row.
func (s TableSchema) Width() int { return len(s.Columns) }

// With returns a copy of s where the column named col is replaced by spec.
// Unknown names leave the schema unchanged.
func (s TableSchema) With(col string, spec ColumnSpec) TableSchema {
	out := TableSchema{Name: s.Name, Columns: make([]ColumnSpec, len(s.Columns))}
	copy(out.Columns, s.Columns)
	for i := range out.Columns {
		if out.Columns[i].Name == col {
			out.Columns[i] = spec
		}
	}
	return out
}

// HasKind reports whether any column is of kind k.
func (s TableSchema) HasKind(k Kind) bool {
	for _, c := range s.Columns {
		if c.Kind == k {
			return true
		}
	}
	return false
}
