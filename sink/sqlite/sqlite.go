// Package sqlite mirrors the merged tables into a SQLite database file.
//
// Every table is recreated with TEXT columns in schema order; cells are stored
// exactly as written to the CSV output. Each Append runs in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/schema"
	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
)

// Mirror is a sink.Sink backed by SQLite.
type Mirror struct {
	ctx     context.Context
	db      *sql.DB
	path    string
	inserts map[string]string
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string) (*Mirror, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &sink.IOError{Op: "open", Path: path, Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &sink.IOError{Op: "open", Path: path, Err: err}
	}
	return &Mirror{ctx: ctx, db: db, path: path, inserts: map[string]string{}}, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Create drops and recreates the table.
func (m *Mirror) Create(s schema.TableSchema) error {
	header := s.Header()
	cols := make([]string, len(header))
	marks := make([]string, len(header))
	for i, h := range header {
		cols[i] = quote(h) + " TEXT"
		marks[i] = "?"
	}
	ddl := []string{
		"DROP TABLE IF EXISTS " + quote(s.Name),
		fmt.Sprintf("CREATE TABLE %s (%s)", quote(s.Name), strings.Join(cols, ", ")),
	}
	for _, stmt := range ddl {
		if _, err := m.db.ExecContext(m.ctx, stmt); err != nil {
			return &sink.IOError{Op: "create table " + s.Name, Path: m.path, Err: err}
		}
	}
	m.inserts[s.Name] = fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(s.Name), strings.Join(marks, ", "))
	return nil
}

// Append inserts rows inside a single transaction.
func (m *Mirror) Append(table string, rows ...[]string) error {
	stmtSQL, ok := m.inserts[table]
	if !ok {
		return &sink.IOError{Op: "append " + table, Path: m.path, Err: sink.ErrNotCreated}
	}
	if len(rows) == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(m.ctx, nil)
	if err != nil {
		return &sink.IOError{Op: "begin " + table, Path: m.path, Err: err}
	}
	stmt, err := tx.PrepareContext(m.ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return &sink.IOError{Op: "prepare " + table, Path: m.path, Err: err}
	}
	defer stmt.Close()

	args := make([]any, 0, 16)
	for _, r := range rows {
		args = args[:0]
		for _, v := range r {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(m.ctx, args...); err != nil {
			_ = tx.Rollback()
			return &sink.IOError{Op: "insert " + table, Path: m.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &sink.IOError{Op: "commit " + table, Path: m.path, Err: err}
	}
	return nil
}

// Close closes the database.
func (m *Mirror) Close() error {
	if err := m.db.Close(); err != nil {
		return &sink.IOError{Op: "close", Path: m.path, Err: err}
	}
	return nil
}

// Count returns the number of rows stored for a table.
func (m *Mirror) Count(ctx context.Context, table string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(table)).Scan(&n)
	return n, err
}
