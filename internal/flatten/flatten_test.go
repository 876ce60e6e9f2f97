package flatten

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/coindata-pipeline/internal/errors"
)

func rawRecords(docs ...string) []json.RawMessage {
	records := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		records[i] = json.RawMessage(d)
	}
	return records
}

func TestFlatten_NestedObjects(t *testing.T) {
	records := rawRecords(
		`{"id": 1, "name": "Bitcoin", "quote": {"USD": {"price": 45000.12, "market_cap": 850000000000}}}`,
	)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantColumns := []string{"id", "name", "quote_USD_price", "quote_USD_market_cap"}
	if !reflect.DeepEqual(snapshot.Columns, wantColumns) {
		t.Errorf("Columns = %v, want %v", snapshot.Columns, wantColumns)
	}

	wantRow := []string{"1", "Bitcoin", "45000.12", "850000000000"}
	if !reflect.DeepEqual(snapshot.Rows[0], wantRow) {
		t.Errorf("Rows[0] = %v, want %v", snapshot.Rows[0], wantRow)
	}
}

func TestFlatten_RowCountMatchesRecordCount(t *testing.T) {
	records := rawRecords(
		`{"id": 1}`,
		`{"id": 2}`,
		`{"id": 3}`,
	)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	if snapshot.RowCount() != len(records) {
		t.Errorf("RowCount() = %d, want %d", snapshot.RowCount(), len(records))
	}
}

func TestFlatten_UnionColumnsWithSentinel(t *testing.T) {
	// The second record introduces a field the first lacks, and vice versa.
	// Columns are the union; missing cells carry the sentinel.
	records := rawRecords(
		`{"id": 1, "platform": {"name": "Ethereum"}}`,
		`{"id": 2, "max_supply": 21000000}`,
	)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantColumns := []string{"id", "platform_name", "max_supply"}
	if !reflect.DeepEqual(snapshot.Columns, wantColumns) {
		t.Errorf("Columns = %v, want %v", snapshot.Columns, wantColumns)
	}

	wantRows := [][]string{
		{"1", "Ethereum", Sentinel},
		{"2", Sentinel, "21000000"},
	}
	if !reflect.DeepEqual(snapshot.Rows, wantRows) {
		t.Errorf("Rows = %v, want %v", snapshot.Rows, wantRows)
	}
}

func TestFlatten_NullBecomesSentinel(t *testing.T) {
	records := rawRecords(`{"id": 1, "max_supply": null}`)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantColumns := []string{"id", "max_supply"}
	if !reflect.DeepEqual(snapshot.Columns, wantColumns) {
		t.Errorf("Columns = %v, want %v", snapshot.Columns, wantColumns)
	}
	if snapshot.Rows[0][1] != Sentinel {
		t.Errorf("null value = %q, want sentinel", snapshot.Rows[0][1])
	}
}

func TestFlatten_ArrayElementsIndexed(t *testing.T) {
	records := rawRecords(`{"id": 1, "tags": ["mineable", "pow", "store-of-value"]}`)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantColumns := []string{"id", "tags_0", "tags_1", "tags_2"}
	if !reflect.DeepEqual(snapshot.Columns, wantColumns) {
		t.Errorf("Columns = %v, want %v", snapshot.Columns, wantColumns)
	}

	wantRow := []string{"1", "mineable", "pow", "store-of-value"}
	if !reflect.DeepEqual(snapshot.Rows[0], wantRow) {
		t.Errorf("Rows[0] = %v, want %v", snapshot.Rows[0], wantRow)
	}
}

func TestFlatten_BooleansRenderAsText(t *testing.T) {
	records := rawRecords(`{"id": 1, "infinite_supply": false, "is_active": true}`)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantRow := []string{"1", "false", "true"}
	if !reflect.DeepEqual(snapshot.Rows[0], wantRow) {
		t.Errorf("Rows[0] = %v, want %v", snapshot.Rows[0], wantRow)
	}
}

func TestFlatten_NumbersKeepSourceText(t *testing.T) {
	// Large and high-precision numbers must survive without scientific
	// notation or rounding.
	records := rawRecords(`{"market_cap": 850000000000, "price": 0.000001234567}`)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantRow := []string{"850000000000", "0.000001234567"}
	if !reflect.DeepEqual(snapshot.Rows[0], wantRow) {
		t.Errorf("Rows[0] = %v, want %v", snapshot.Rows[0], wantRow)
	}
}

func TestFlatten_ColumnOrderIsFirstSeen(t *testing.T) {
	records := rawRecords(
		`{"a": 1, "b": 2}`,
		`{"c": 3, "a": 4}`,
	)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	wantColumns := []string{"a", "b", "c"}
	if !reflect.DeepEqual(snapshot.Columns, wantColumns) {
		t.Errorf("Columns = %v, want %v", snapshot.Columns, wantColumns)
	}
}

func TestFlatten_OrderingStableAcrossRuns(t *testing.T) {
	records := rawRecords(
		`{"id": 1, "name": "Bitcoin", "symbol": "BTC", "quote": {"USD": {"price": 1, "volume_24h": 2, "market_cap": 3}}}`,
		`{"id": 2, "name": "Ethereum", "symbol": "ETH", "quote": {"USD": {"price": 4, "volume_24h": 5, "market_cap": 6}}}`,
	)

	first, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		again, err := Flatten(records)
		if err != nil {
			t.Fatalf("Flatten() error = %v", err)
		}
		if !reflect.DeepEqual(again.Columns, first.Columns) {
			t.Fatalf("column order changed between runs: %v vs %v", again.Columns, first.Columns)
		}
	}
}

func TestFlatten_NonObjectRecordFails(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{name: "array", record: `[1, 2, 3]`},
		{name: "scalar", record: `42`},
		{name: "string", record: `"bitcoin"`},
		{name: "null", record: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Flatten(rawRecords(tt.record))
			if err == nil {
				t.Fatal("Flatten() error = nil, want NormalizationError")
			}
			if !errors.IsKind(err, errors.KindNormalization) {
				t.Errorf("KindOf(err) = %q, want %q", errors.KindOf(err), errors.KindNormalization)
			}
		})
	}
}

func TestFlatten_MalformedRecordFails(t *testing.T) {
	_, err := Flatten(rawRecords(`{"id": `))
	if err == nil {
		t.Fatal("Flatten() error = nil, want NormalizationError")
	}
	if !errors.IsKind(err, errors.KindNormalization) {
		t.Errorf("KindOf(err) = %q, want %q", errors.KindOf(err), errors.KindNormalization)
	}
}

func TestFlatten_SanitizationCollisionFails(t *testing.T) {
	// "quote.USD" and "quote_USD" sanitize to the same column name.
	records := rawRecords(`{"quote": {"USD": 1}, "quote_USD": 2}`)

	_, err := Flatten(records)
	if err == nil {
		t.Fatal("Flatten() error = nil, want NormalizationError")
	}
	if !errors.IsKind(err, errors.KindNormalization) {
		t.Errorf("KindOf(err) = %q, want %q", errors.KindOf(err), errors.KindNormalization)
	}
}

func TestFlatten_EmptyInput(t *testing.T) {
	snapshot, err := Flatten(nil)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}
	if snapshot.RowCount() != 0 {
		t.Errorf("RowCount() = %d, want 0", snapshot.RowCount())
	}
	if len(snapshot.Columns) != 0 {
		t.Errorf("Columns = %v, want empty", snapshot.Columns)
	}
}

func TestSanitizeColumn(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "quote.USD.price", want: "quote_USD_price"},
		{path: "name", want: "name"},
		{path: "tags.0", want: "tags_0"},
	}

	for _, tt := range tests {
		if got := SanitizeColumn(tt.path); got != tt.want {
			t.Errorf("SanitizeColumn(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSnapshot_WriteCSV(t *testing.T) {
	records := rawRecords(
		`{"id": 1, "name": "Bitcoin", "platform": null}`,
		`{"id": 2, "name": "Tether, Ltd."}`,
	)

	snapshot, err := Flatten(records)
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	var buf bytes.Buffer
	if err := snapshot.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	// Parse it back and verify header plus data survive, including the
	// comma-carrying name.
	parsed, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading produced CSV: %v", err)
	}

	want := [][]string{
		{"id", "name", "platform"},
		{"1", "Bitcoin", ""},
		{"2", "Tether, Ltd.", ""},
	}
	if !reflect.DeepEqual(parsed, want) {
		t.Errorf("CSV round-trip = %v, want %v", parsed, want)
	}
}

func TestParseValue_RejectsTrailingData(t *testing.T) {
	if _, err := ParseValue([]byte(`{"a": 1} {"b": 2}`)); err == nil {
		t.Error("ParseValue() error = nil, want trailing-data error")
	}
}

func TestParseValue_ObjectKeyOrder(t *testing.T) {
	v, err := ParseValue([]byte(`{"z": 1, "a": 2, "m": 3}`))
	if err != nil {
		t.Fatalf("ParseValue() error = %v", err)
	}

	want := []string{"z", "a", "m"}
	if !reflect.DeepEqual(v.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", v.Keys(), want)
	}
}
