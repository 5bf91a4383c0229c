package transform

import "fmt"

// ValidationError reports a cell that failed its column rule.
type ValidationError struct {
	Table  string
	Column string
	Value  string
	// Row is the 1-based data row within the table being imported.
	Row  int
	Rule string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s row %d: column %q value %q fails %s", e.Table, e.Row, e.Column, e.Value, e.Rule)
}
