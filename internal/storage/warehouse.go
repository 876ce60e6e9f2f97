package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/coindata-pipeline/internal/errors"
	"github.com/coindata-pipeline/internal/flatten"
)

// ColumnType is the warehouse type inferred for a snapshot column
type ColumnType string

const (
	// ColumnTypeString stores the value as-is
	ColumnTypeString ColumnType = "String"
	// ColumnTypeFloat64 stores a parsed numeric value; the empty sentinel
	// becomes NULL
	ColumnTypeFloat64 ColumnType = "Float64"
)

// Column is one inferred warehouse column
type Column struct {
	Name string
	Type ColumnType
}

// TableSchema is the inferred schema for one snapshot load. It lives for the
// duration of a single run and is discarded after the load.
type TableSchema struct {
	Columns []Column
}

// S3Source locates the uploaded CSV for the bulk load
type S3Source struct {
	URL       string
	AccessKey string
	SecretKey string
}

// InferSchema derives a column type for each snapshot column: Float64 when
// every non-empty value parses as a number, String otherwise. An all-empty
// column stays String. Deterministic given identical input.
func InferSchema(snapshot *flatten.Snapshot) TableSchema {
	schema := TableSchema{Columns: make([]Column, len(snapshot.Columns))}

	for i, name := range snapshot.Columns {
		colType := ColumnTypeString
		sawValue := false
		numeric := true

		for _, row := range snapshot.Rows {
			v := row[i]
			if v == flatten.Sentinel {
				continue
			}
			sawValue = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}

		if sawValue && numeric {
			colType = ColumnTypeFloat64
		}
		schema.Columns[i] = Column{Name: name, Type: colType}
	}

	return schema
}

// Warehouse performs full-refresh snapshot loads into ClickHouse
type Warehouse struct {
	db       *ClickHouseDB
	database string
}

// NewWarehouse creates a warehouse loader targeting the given database
func NewWarehouse(db *ClickHouseDB, database string) *Warehouse {
	return &Warehouse{db: db, database: database}
}

// EnsureDatabase creates the target database if absent; it never overwrites
// an existing one.
func (w *Warehouse) EnsureDatabase(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", quoteIdent(w.database))
	if err := w.db.Exec(ctx, stmt); err != nil {
		return errors.NewDatabaseError("create database", err)
	}
	return nil
}

// ReplaceTableContents recreates the table from the inferred schema and bulk
// loads the uploaded CSV into it. Every run is a full refresh: the table
// definition and its data are replaced together, never appended across runs.
func (w *Warehouse) ReplaceTableContents(ctx context.Context, table string, schema TableSchema, src S3Source) error {
	if len(schema.Columns) == 0 {
		return errors.NewLoadError(table, fmt.Errorf("schema has no columns"))
	}

	if err := w.db.Exec(ctx, createTableDDL(w.database, table, schema)); err != nil {
		return errors.NewLoadError(table, err)
	}

	if err := w.db.Exec(ctx, loadFromS3SQL(w.database, table, schema, src)); err != nil {
		return errors.NewLoadError(table, err)
	}

	return nil
}

// createTableDDL builds the CREATE OR REPLACE TABLE statement. Numeric
// columns are nullable so the empty sentinel loads as NULL.
func createTableDDL(database, table string, schema TableSchema) string {
	cols := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(col.Name), columnDDLType(col.Type))
	}

	return fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s.%s (%s) ENGINE = MergeTree ORDER BY tuple()",
		quoteIdent(database), quoteIdent(table), strings.Join(cols, ", "),
	)
}

// loadFromS3SQL builds the INSERT ... SELECT FROM s3(...) statement. The CSV
// is read with every column as String (header row consumed by the
// CSVWithNames format) and numeric columns are cast during the select.
func loadFromS3SQL(database, table string, schema TableSchema, src S3Source) string {
	names := make([]string, len(schema.Columns))
	selects := make([]string, len(schema.Columns))
	structure := make([]string, len(schema.Columns))

	for i, col := range schema.Columns {
		names[i] = quoteIdent(col.Name)
		structure[i] = fmt.Sprintf("%s String", quoteIdent(col.Name))
		if col.Type == ColumnTypeFloat64 {
			selects[i] = fmt.Sprintf("toFloat64OrNull(%s)", quoteIdent(col.Name))
		} else {
			selects[i] = quoteIdent(col.Name)
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s.%s (%s) SELECT %s FROM s3(%s, %s, %s, 'CSVWithNames', %s)",
		quoteIdent(database), quoteIdent(table),
		strings.Join(names, ", "),
		strings.Join(selects, ", "),
		quoteString(src.URL), quoteString(src.AccessKey), quoteString(src.SecretKey),
		quoteString(strings.Join(structure, ", ")),
	)
}

// columnDDLType maps an inferred type to its table column type
func columnDDLType(t ColumnType) string {
	if t == ColumnTypeFloat64 {
		return "Nullable(Float64)"
	}
	return string(t)
}

// quoteIdent backtick-quotes an identifier
func quoteIdent(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "`", "\\`")
	return "`" + escaped + "`"
}

// quoteString single-quotes a string literal
func quoteString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}
