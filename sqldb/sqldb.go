// Package sqldb wraps database/sql with helpers for loading table
// definitions from JSON, creating tables, and reading query results into
// generic records. The caller supplies the driver through the *sql.DB.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gurre/multidata/schema"
)

// ErrInvalidTableInfo is returned when a table definition file cannot be
// parsed or is missing required parts.
var ErrInvalidTableInfo = errors.New("sqldb: invalid table definition")

// Column is one column of a table definition. Definition holds the full SQL
// type clause, for example "VARCHAR(64) NOT NULL".
type Column struct {
	Name       string
	Definition string
}

// TableInfo describes one table to create. Column order follows the order in
// the definition file.
type TableInfo struct {
	Name    string
	Columns []Column
	Indexes []string // column names to index
}

// Helper runs statements against one database.
type Helper struct {
	db  *sql.DB
	log *slog.Logger
}

// NewHelper wraps an open database handle. A nil logger falls back to
// slog.Default().
func NewHelper(db *sql.DB, log *slog.Logger) *Helper {
	if log == nil {
		log = slog.Default()
	}
	return &Helper{db: db, log: log}
}

// Exec runs one statement.
func (h *Helper) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Query runs a query and returns each row as a record keyed by column name.
// Byte slices are converted to strings, since most drivers report text
// columns as []byte.
func (h *Helper) Query(ctx context.Context, query string, args ...any) ([]schema.Record, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var records []schema.Record
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record := make(schema.Record, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				record[name] = string(b)
			} else {
				record[name] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return records, nil
}

// ExecBatch runs one prepared statement for every argument set inside a
// single transaction. Any failure rolls the whole batch back.
func (h *Helper) ExecBatch(ctx context.Context, query string, argSets [][]any) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, args := range argSets {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute batch row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	h.log.Info("batch executed", "rows", len(argSets))
	return nil
}

// CreateTable drops any existing table of the same name and creates it from
// the definition.
func (h *Helper) CreateTable(ctx context.Context, info TableInfo) error {
	if info.Name == "" || len(info.Columns) == 0 {
		return fmt.Errorf("%w: missing table name or columns", ErrInvalidTableInfo)
	}
	if err := h.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", info.Name)); err != nil {
		return err
	}
	if err := h.Exec(ctx, BuildCreateStatement(info)); err != nil {
		return err
	}
	h.log.Info("table created", "table", info.Name, "columns", len(info.Columns))
	return nil
}

// CreateTableFromFile loads one node of a JSON table definition file and
// creates the table. A non-empty name overrides the node name as the table
// name.
func (h *Helper) CreateTableFromFile(ctx context.Context, name, schemaPath, node string) error {
	info, err := LoadTableInfo(schemaPath, node)
	if err != nil {
		return err
	}
	if name != "" {
		info.Name = name
	}
	return h.CreateTable(ctx, info)
}

// BuildCreateStatement renders the CREATE TABLE statement for a definition.
func BuildCreateStatement(info TableInfo) string {
	clauses := make([]string, 0, len(info.Columns)+len(info.Indexes))
	for _, col := range info.Columns {
		clauses = append(clauses, fmt.Sprintf("%s %s", col.Name, col.Definition))
	}
	for _, idx := range info.Indexes {
		clauses = append(clauses, fmt.Sprintf("INDEX (%s)", idx))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", info.Name, strings.Join(clauses, ", "))
}

// LoadTableInfo reads one node of a JSON table definition file. A definition
// file holds one object per table, keyed by node name:
//
//	{
//	    "Vehicle": {
//	        "Columns": {"id": "VARCHAR(64) NOT NULL", "name": "TEXT"},
//	        "Index": ["id"]
//	    },
//	    "TecData": {...}
//	}
//
// A missing node is an error. Column order within a node is preserved.
func LoadTableInfo(path, node string) (TableInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TableInfo{}, fmt.Errorf("failed to read table definition: %w", err)
	}
	info, err := ParseTableInfo(data, node)
	if err != nil {
		return TableInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// ParseTableInfo selects node from a JSON table definition and parses it,
// preserving column order. The table name defaults to the node name.
func ParseTableInfo(data []byte, node string) (TableInfo, error) {
	var nodes map[string]json.RawMessage
	if err := json.Unmarshal(data, &nodes); err != nil {
		return TableInfo{}, fmt.Errorf("%w: %v", ErrInvalidTableInfo, err)
	}

	raw, ok := nodes[node]
	if !ok {
		return TableInfo{}, fmt.Errorf("%w: node %q not found", ErrInvalidTableInfo, node)
	}

	var def struct {
		Columns json.RawMessage `json:"Columns"`
		Index   []string        `json:"Index"`
	}
	if err := json.Unmarshal(raw, &def); err != nil {
		return TableInfo{}, fmt.Errorf("%w: node %q: %v", ErrInvalidTableInfo, node, err)
	}
	if len(def.Columns) == 0 {
		return TableInfo{}, fmt.Errorf("%w: node %q has no columns", ErrInvalidTableInfo, node)
	}

	columns, err := parseOrderedColumns(def.Columns)
	if err != nil {
		return TableInfo{}, err
	}
	if len(columns) == 0 {
		return TableInfo{}, fmt.Errorf("%w: node %q has no columns", ErrInvalidTableInfo, node)
	}
	return TableInfo{Name: node, Columns: columns, Indexes: def.Index}, nil
}

// parseOrderedColumns walks the columns object token by token, since
// decoding into a map would lose the declaration order.
func parseOrderedColumns(raw json.RawMessage) ([]Column, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTableInfo, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: columns must be an object", ErrInvalidTableInfo)
	}

	var columns []Column
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTableInfo, err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: column name must be a string", ErrInvalidTableInfo)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTableInfo, err)
		}
		definition, ok := valTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: definition for column %s must be a string", ErrInvalidTableInfo, name)
		}
		columns = append(columns, Column{Name: name, Definition: definition})
	}
	return columns, nil
}
