package storage

import (
	"strings"
	"testing"

	"github.com/coindata-pipeline/internal/flatten"
)

func TestInferSchema(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *flatten.Snapshot
		want     []Column
	}{
		{
			name: "numeric column",
			snapshot: &flatten.Snapshot{
				Columns: []string{"price"},
				Rows:    [][]string{{"45000.12"}, {"0.0002"}},
			},
			want: []Column{{Name: "price", Type: ColumnTypeFloat64}},
		},
		{
			name: "text column",
			snapshot: &flatten.Snapshot{
				Columns: []string{"name"},
				Rows:    [][]string{{"Bitcoin"}, {"Ethereum"}},
			},
			want: []Column{{Name: "name", Type: ColumnTypeString}},
		},
		{
			name: "numeric with empty cells stays numeric",
			snapshot: &flatten.Snapshot{
				Columns: []string{"max_supply"},
				Rows:    [][]string{{"21000000"}, {flatten.Sentinel}},
			},
			want: []Column{{Name: "max_supply", Type: ColumnTypeFloat64}},
		},
		{
			name: "mixed column falls back to text",
			snapshot: &flatten.Snapshot{
				Columns: []string{"slug"},
				Rows:    [][]string{{"42"}, {"bitcoin"}},
			},
			want: []Column{{Name: "slug", Type: ColumnTypeString}},
		},
		{
			name: "all-empty column stays text",
			snapshot: &flatten.Snapshot{
				Columns: []string{"platform"},
				Rows:    [][]string{{flatten.Sentinel}, {flatten.Sentinel}},
			},
			want: []Column{{Name: "platform", Type: ColumnTypeString}},
		},
		{
			name: "no rows yields text columns",
			snapshot: &flatten.Snapshot{
				Columns: []string{"anything"},
			},
			want: []Column{{Name: "anything", Type: ColumnTypeString}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := InferSchema(tt.snapshot)
			if len(schema.Columns) != len(tt.want) {
				t.Fatalf("len(Columns) = %d, want %d", len(schema.Columns), len(tt.want))
			}
			for i, col := range schema.Columns {
				if col != tt.want[i] {
					t.Errorf("Columns[%d] = %+v, want %+v", i, col, tt.want[i])
				}
			}
		})
	}
}

func TestInferSchema_Deterministic(t *testing.T) {
	snapshot := &flatten.Snapshot{
		Columns: []string{"id", "name", "price"},
		Rows: [][]string{
			{"1", "Bitcoin", "45000.12"},
			{"2", "Ethereum", "3000"},
		},
	}

	first := InferSchema(snapshot)
	for i := 0; i < 10; i++ {
		again := InferSchema(snapshot)
		for j := range first.Columns {
			if again.Columns[j] != first.Columns[j] {
				t.Fatalf("schema changed between runs: %+v vs %+v", again.Columns[j], first.Columns[j])
			}
		}
	}
}

func TestCreateTableDDL(t *testing.T) {
	schema := TableSchema{Columns: []Column{
		{Name: "name", Type: ColumnTypeString},
		{Name: "quote_USD_price", Type: ColumnTypeFloat64},
	}}

	ddl := createTableDDL("cryptocurrency", "coin_data", schema)

	want := "CREATE OR REPLACE TABLE `cryptocurrency`.`coin_data` " +
		"(`name` String, `quote_USD_price` Nullable(Float64)) " +
		"ENGINE = MergeTree ORDER BY tuple()"
	if ddl != want {
		t.Errorf("createTableDDL() =\n%s\nwant\n%s", ddl, want)
	}
}

func TestLoadFromS3SQL(t *testing.T) {
	schema := TableSchema{Columns: []Column{
		{Name: "name", Type: ColumnTypeString},
		{Name: "quote_USD_price", Type: ColumnTypeFloat64},
	}}
	src := S3Source{
		URL:       "http://localhost:9000/coin-data/cryptocurrency-data/coin_data_1.csv",
		AccessKey: "access",
		SecretKey: "secret",
	}

	sql := loadFromS3SQL("cryptocurrency", "coin_data", schema, src)

	for _, fragment := range []string{
		"INSERT INTO `cryptocurrency`.`coin_data` (`name`, `quote_USD_price`)",
		"toFloat64OrNull(`quote_USD_price`)",
		"'CSVWithNames'",
		"'http://localhost:9000/coin-data/cryptocurrency-data/coin_data_1.csv'",
		"'`name` String, `quote_USD_price` String'",
	} {
		if !strings.Contains(sql, fragment) {
			t.Errorf("loadFromS3SQL() missing fragment %q in:\n%s", fragment, sql)
		}
	}

	// String columns pass through without a cast.
	if strings.Contains(sql, "toFloat64OrNull(`name`)") {
		t.Errorf("loadFromS3SQL() casts the text column:\n%s", sql)
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "coin_data", want: "`coin_data`"},
		{in: "weird`name", want: "`weird\\`name`"},
		{in: `back\slash`, want: "`back\\\\slash`"},
	}

	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "'plain'"},
		{in: "O'Brien", want: `'O\'Brien'`},
	}

	for _, tt := range tests {
		if got := quoteString(tt.in); got != tt.want {
			t.Errorf("quoteString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
