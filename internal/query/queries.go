// Package query runs the fixed analytical queries against the loaded
// coin data table.
package query

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/coindata-pipeline/internal/types"
)

// Querier is the warehouse read interface. Implemented by storage.ClickHouseDB.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error)
}

// Runner executes the five fixed analytical queries. Each query is
// independent and idempotent given a stable table snapshot.
type Runner struct {
	db       Querier
	database string
	table    string
}

// NewRunner creates a query runner for the given table
func NewRunner(db Querier, database, table string) *Runner {
	return &Runner{db: db, database: database, table: table}
}

// qualifiedTable returns the backtick-quoted database.table reference
func (r *Runner) qualifiedTable() string {
	return fmt.Sprintf("`%s`.`%s`", r.database, r.table)
}

// expensiveAssetCountSQL counts assets priced strictly above 8000 USD
func expensiveAssetCountSQL(table string) string {
	return fmt.Sprintf(
		"SELECT count() AS asset_count FROM %s WHERE `quote_USD_price` > 8000",
		table,
	)
}

// top100MarketCapSumSQL sums the market cap of the 100 best-ranked assets
// (lowest cmc_rank first)
func top100MarketCapSumSQL(table string) string {
	return fmt.Sprintf(
		"SELECT sum(`quote_USD_market_cap`) AS total_market_cap FROM "+
			"(SELECT `quote_USD_market_cap` FROM %s ORDER BY `cmc_rank` ASC LIMIT 100)",
		table,
	)
}

// lowSupplyAssetNamesSQL lists assets with a total supply under five million,
// smallest supply first
func lowSupplyAssetNamesSQL(table string) string {
	return fmt.Sprintf(
		"SELECT `name` FROM %s WHERE `total_supply` < 5000000 ORDER BY `total_supply` ASC",
		table,
	)
}

// topWeeklyGainersSQL lists the five assets with the highest 7-day percent
// change, descending
func topWeeklyGainersSQL(table string) string {
	return fmt.Sprintf(
		"SELECT `name` FROM %s ORDER BY `quote_USD_percent_change_7d` DESC LIMIT 5",
		table,
	)
}

// symbolsContainingXCountSQL counts assets whose ticker symbol contains the
// letter X, case-insensitively
func symbolsContainingXCountSQL(table string) string {
	return fmt.Sprintf(
		"SELECT count() AS symbol_count FROM %s WHERE positionCaseInsensitive(`symbol`, 'X') > 0",
		table,
	)
}

// ExpensiveAssetCount runs the price threshold query
func (r *Runner) ExpensiveAssetCount(ctx context.Context) (*types.QueryResult, error) {
	return r.run(ctx, "expensive_asset_count", expensiveAssetCountSQL(r.qualifiedTable()))
}

// Top100MarketCapSum runs the top-100 market cap aggregation
func (r *Runner) Top100MarketCapSum(ctx context.Context) (*types.QueryResult, error) {
	return r.run(ctx, "top100_market_cap_sum", top100MarketCapSumSQL(r.qualifiedTable()))
}

// LowSupplyAssetNames runs the low-supply listing query
func (r *Runner) LowSupplyAssetNames(ctx context.Context) (*types.QueryResult, error) {
	return r.run(ctx, "low_supply_asset_names", lowSupplyAssetNamesSQL(r.qualifiedTable()))
}

// TopWeeklyGainers runs the weekly gainers ranking
func (r *Runner) TopWeeklyGainers(ctx context.Context) (*types.QueryResult, error) {
	return r.run(ctx, "top_weekly_gainers", topWeeklyGainersSQL(r.qualifiedTable()))
}

// SymbolsContainingXCount runs the symbol substring count
func (r *Runner) SymbolsContainingXCount(ctx context.Context) (*types.QueryResult, error) {
	return r.run(ctx, "symbols_containing_x_count", symbolsContainingXCountSQL(r.qualifiedTable()))
}

// RunAll executes the five queries in order, stopping at the first failure
func (r *Runner) RunAll(ctx context.Context) ([]*types.QueryResult, error) {
	queries := []func(context.Context) (*types.QueryResult, error){
		r.ExpensiveAssetCount,
		r.Top100MarketCapSum,
		r.LowSupplyAssetNames,
		r.TopWeeklyGainers,
		r.SymbolsContainingXCount,
	}

	results := make([]*types.QueryResult, 0, len(queries))
	for _, q := range queries {
		result, err := q(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// run executes one query and collects its rows into a QueryResult
func (r *Runner) run(ctx context.Context, name, sql string) (*types.QueryResult, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", name, err)
	}
	defer rows.Close()

	result, err := collectRows(name, rows)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", name, err)
	}
	return result, nil
}

// collectRows drains driver rows into a generic tabular result. Scan targets
// are built from the driver's column types since the result shape differs
// per query.
func collectRows(name string, rows driver.Rows) (*types.QueryResult, error) {
	columnTypes := rows.ColumnTypes()

	result := &types.QueryResult{
		Name:    name,
		Columns: rows.Columns(),
	}

	for rows.Next() {
		dest := make([]interface{}, len(columnTypes))
		for i, ct := range columnTypes {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make([]interface{}, len(dest))
		for i, d := range dest {
			row[i] = reflect.ValueOf(d).Elem().Interface()
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
