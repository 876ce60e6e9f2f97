// Package flatten converts nested asset records into a uniform tabular
// snapshot ready for CSV export and warehouse loading.
package flatten

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/coindata-pipeline/internal/errors"
)

// Sentinel is the placeholder written for values absent from a record
const Sentinel = ""

// Snapshot is one flattened batch of asset records. Every row has exactly one
// value per column; columns are the union of sanitized keys across all
// records in first-seen order.
type Snapshot struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of data rows
func (s *Snapshot) RowCount() int {
	return len(s.Rows)
}

// Flatten converts raw asset records into a Snapshot.
//
// Nested objects are promoted to dotted paths and sanitized into column names
// (quote.USD.price -> quote_USD_price). Array elements become index-suffixed
// columns (tags.0, tags.1, ...). Null and missing values render as the empty
// sentinel. A record that is not a JSON object, or two distinct paths
// sanitizing to the same column name, fail with a NormalizationError.
func Flatten(records []json.RawMessage) (*Snapshot, error) {
	// columns holds sanitized names in first-seen order; sources maps each
	// sanitized name back to its dotted source path for collision reporting.
	var (
		columns []string
		sources = map[string]string{}
		rows    []map[string]string
	)

	for i, raw := range records {
		value, err := ParseValue(raw)
		if err != nil {
			return nil, errors.NewNormalizationError("malformed record", map[string]interface{}{
				"index": i,
				"cause": err.Error(),
			})
		}
		if value.Kind != KindObject {
			return nil, errors.NewNormalizationError("record is not an object", map[string]interface{}{
				"index": i,
			})
		}

		row := make(map[string]string)
		if err := flattenValue(value, "", row, &columns, sources); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	snapshot := &Snapshot{Columns: columns}
	for _, row := range rows {
		out := make([]string, len(columns))
		for j, col := range columns {
			if v, ok := row[col]; ok {
				out[j] = v
			} else {
				out[j] = Sentinel
			}
		}
		snapshot.Rows = append(snapshot.Rows, out)
	}

	return snapshot, nil
}

// flattenValue walks one value, writing scalars into row keyed by sanitized
// column name and registering new columns in first-seen order.
func flattenValue(v *Value, path string, row map[string]string, columns *[]string, sources map[string]string) error {
	switch v.Kind {
	case KindObject:
		for _, key := range v.Keys() {
			if err := flattenValue(v.Field(key), joinPath(path, key), row, columns, sources); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		for i, item := range v.Items() {
			if err := flattenValue(item, joinPath(path, strconv.Itoa(i)), row, columns, sources); err != nil {
				return err
			}
		}
		return nil
	case KindNull:
		return setColumn(path, Sentinel, row, columns, sources)
	default:
		return setColumn(path, v.Scalar(), row, columns, sources)
	}
}

// setColumn records one scalar under its sanitized column name, failing fast
// when two distinct source paths collide on the same name.
func setColumn(path, value string, row map[string]string, columns *[]string, sources map[string]string) error {
	name := SanitizeColumn(path)

	if prev, seen := sources[name]; seen {
		if prev != path {
			return errors.NewNormalizationError("column name collision after sanitization", map[string]interface{}{
				"column": name,
				"paths":  []string{prev, path},
			})
		}
	} else {
		sources[name] = path
		*columns = append(*columns, name)
	}

	row[name] = value
	return nil
}

// joinPath appends a segment to a dotted path
func joinPath(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + "." + segment
}

// SanitizeColumn converts a dotted path into a column name. Idempotent:
// sanitizing a sanitized name returns it unchanged.
func SanitizeColumn(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// WriteCSV serializes the snapshot with a header row
func (s *Snapshot) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(s.Columns); err != nil {
		return err
	}
	for _, row := range s.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile serializes the snapshot to a local file
func (s *Snapshot) WriteCSVFile(path string) error {
	f, err := os.Create(path) // #nosec G304 - path is constructed from the configured work dir
	if err != nil {
		return err
	}

	if err := s.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
