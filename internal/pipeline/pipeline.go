// Package pipeline orchestrates one snapshot run: configuration, fetch,
// flatten, upload, warehouse load, and the analytical queries, strictly in
// that order. Each step is gated on the previous one; the first failure is
// logged and halts the run. There are no retries.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/coindata-pipeline/internal/config"
	"github.com/coindata-pipeline/internal/errors"
	"github.com/coindata-pipeline/internal/flatten"
	"github.com/coindata-pipeline/internal/logging"
	"github.com/coindata-pipeline/internal/storage"
	"github.com/coindata-pipeline/internal/types"
)

// ObjectStore is the object-storage surface the pipeline needs
type ObjectStore interface {
	Bucket() string
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, localPath, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	ObjectURL(key string) string
	Credentials() (accessKey, secretKey string)
}

// Fetcher fetches one page of asset listings
type Fetcher interface {
	Listings(ctx context.Context, limit, start int, convert string) ([]json.RawMessage, error)
}

// FetcherFactory builds a fetcher once the API endpoint and key are known.
// The remote configuration object can override both, so the client cannot be
// constructed until the config step has run.
type FetcherFactory func(uri, apiKey string) Fetcher

// WarehouseLoader is the warehouse surface the pipeline needs
type WarehouseLoader interface {
	EnsureDatabase(ctx context.Context) error
	ReplaceTableContents(ctx context.Context, table string, schema storage.TableSchema, src storage.S3Source) error
}

// QueryRunner executes the fixed analytical queries
type QueryRunner interface {
	RunAll(ctx context.Context) ([]*types.QueryResult, error)
}

// RunRecorder stores run history. Optional; a nil recorder disables history.
type RunRecorder interface {
	Create(ctx context.Context, run *types.Run) error
	Update(ctx context.Context, run *types.Run) error
}

// ListingsCache caches raw fetch payloads. Optional; a nil cache always misses.
type ListingsCache interface {
	Get(ctx context.Context, limit, start int, convert string) ([]json.RawMessage, bool, error)
	Set(ctx context.Context, limit, start int, convert string, records []json.RawMessage) error
}

// Deps bundles the pipeline's collaborators
type Deps struct {
	Store          ObjectStore
	FetcherFactory FetcherFactory
	Warehouse      WarehouseLoader
	Queries        QueryRunner
	Runs           RunRecorder   // optional
	Cache          ListingsCache // optional
}

// Pipeline executes snapshot runs
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *logging.Logger
	runLog *logging.RunLog
}

// New creates a pipeline. The logger should already tee into runLog so the
// uploaded run log carries every line.
func New(cfg *config.Config, deps Deps, logger *logging.Logger, runLog *logging.RunLog) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		runLog: runLog,
	}
}

// Run executes one full pipeline run. The returned error carries the kind of
// the failing step; only an upload-verification failure should map to a
// non-zero process exit.
func (p *Pipeline) Run(ctx context.Context) error {
	run := types.NewRun()
	logger := p.logger.WithField("runId", run.ID)

	stamp := run.StartedAt.Format("20060102T150405Z")
	csvName := fmt.Sprintf("coin_data_%s.csv", stamp)
	logName := fmt.Sprintf("pipeline_%s.log", stamp)
	localCSV := filepath.Join(p.cfg.Pipeline.WorkDir, csvName)
	localLog := filepath.Join(p.cfg.Pipeline.WorkDir, logName)
	dataKey := p.cfg.Pipeline.DataPrefix + "/" + csvName
	logKey := p.cfg.Pipeline.LogPrefix + "/" + logName

	logger.Info("pipeline start")

	if p.deps.Runs != nil {
		if err := p.deps.Runs.Create(ctx, run); err != nil {
			logger.ErrorWithErr("failed to record run start", err)
		}
	}

	// Local artifacts are removed and the run log uploaded on every exit
	// path, success or failure.
	defer p.finish(run, logger, localCSV, localLog, logKey)

	// Step 1: configuration
	remote, err := config.LoadRemote(ctx, p.deps.Store, p.cfg.ObjectStore.ConfigObjectKey)
	if err != nil {
		return p.fail(run, logger, types.StepConfig, err)
	}
	p.cfg.ApplyRemote(remote)
	logger.Info("configuration loaded")

	// Step 2: fetch
	records, err := p.fetchListings(ctx, logger)
	if err != nil {
		return p.fail(run, logger, types.StepFetch, err)
	}
	logger.Infof("fetched %d asset records", len(records))

	// Step 3: flatten + CSV
	snapshot, err := flatten.Flatten(records)
	if err != nil {
		return p.fail(run, logger, types.StepFlatten, err)
	}
	if err := snapshot.WriteCSVFile(localCSV); err != nil {
		return p.fail(run, logger, types.StepFlatten, err)
	}
	run.RowCount = int64(snapshot.RowCount())
	logger.Infof("flattened %d rows into %d columns", snapshot.RowCount(), len(snapshot.Columns))

	// Step 4: upload + verify
	if err := p.uploadAndVerify(ctx, localCSV, dataKey); err != nil {
		return p.fail(run, logger, types.StepUpload, err)
	}
	run.CSVObjectKey = &dataKey
	logger.Infof("uploaded and verified %s", dataKey)

	// Step 5: warehouse full refresh
	if err := p.loadWarehouse(ctx, snapshot, dataKey); err != nil {
		return p.fail(run, logger, types.StepLoad, err)
	}
	logger.Infof("loaded table %s.%s", p.cfg.Pipeline.Database, p.cfg.Pipeline.Table)

	// Step 6: analytical queries
	results, err := p.deps.Queries.RunAll(ctx)
	if err != nil {
		return p.fail(run, logger, types.StepQuery, err)
	}
	// The analytical answers go into the log so the uploaded run log carries
	// them alongside the step record.
	for _, result := range results {
		logger.WithFields(map[string]interface{}{
			"query":   result.Name,
			"columns": result.Columns,
			"rows":    result.Rows,
		}).Info("query completed")
	}

	run.MarkSucceeded()
	logger.Info("pipeline end")
	return nil
}

// fetchListings consults the cache before hitting the API. Cache failures are
// logged and ignored.
func (p *Pipeline) fetchListings(ctx context.Context, logger *logging.Logger) ([]json.RawMessage, error) {
	limit := p.cfg.Pipeline.Limit
	start := p.cfg.Pipeline.Start
	convert := p.cfg.Pipeline.Convert

	if p.deps.Cache != nil {
		records, hit, err := p.deps.Cache.Get(ctx, limit, start, convert)
		if err != nil {
			logger.ErrorWithErr("listings cache read failed", err)
		} else if hit {
			logger.Info("listings served from cache")
			return records, nil
		}
	}

	fetcher := p.deps.FetcherFactory(p.cfg.API.URI, p.cfg.API.Key)
	records, err := fetcher.Listings(ctx, limit, start, convert)
	if err != nil {
		return nil, err
	}

	if p.deps.Cache != nil {
		if err := p.deps.Cache.Set(ctx, limit, start, convert, records); err != nil {
			logger.ErrorWithErr("listings cache write failed", err)
		}
	}

	return records, nil
}

// uploadAndVerify uploads the CSV and confirms the object exists afterwards
func (p *Pipeline) uploadAndVerify(ctx context.Context, localCSV, dataKey string) error {
	if err := p.deps.Store.EnsureBucket(ctx); err != nil {
		return err
	}
	if err := p.deps.Store.Upload(ctx, localCSV, dataKey); err != nil {
		return err
	}

	exists, err := p.deps.Store.Exists(ctx, dataKey)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewUploadVerificationError(p.deps.Store.Bucket(), dataKey)
	}
	return nil
}

// loadWarehouse infers the schema and replaces the table contents from the
// uploaded CSV
func (p *Pipeline) loadWarehouse(ctx context.Context, snapshot *flatten.Snapshot, dataKey string) error {
	if err := p.deps.Warehouse.EnsureDatabase(ctx); err != nil {
		return err
	}

	schema := storage.InferSchema(snapshot)
	accessKey, secretKey := p.deps.Store.Credentials()
	src := storage.S3Source{
		URL:       p.deps.Store.ObjectURL(dataKey),
		AccessKey: accessKey,
		SecretKey: secretKey,
	}

	return p.deps.Warehouse.ReplaceTableContents(ctx, p.cfg.Pipeline.Table, schema, src)
}

// fail logs the step failure, marks the run, and returns the error
func (p *Pipeline) fail(run *types.Run, logger *logging.Logger, step string, err error) error {
	logger.WithField("step", step).ErrorWithErr("pipeline halted", err)
	run.MarkFailed(step, err)
	return err
}

// finish removes local artifacts, uploads the run log, and records the final
// run state. Runs on every exit path.
func (p *Pipeline) finish(run *types.Run, logger *logging.Logger, localCSV, localLog, logKey string) {
	// The deferred cleanup must not depend on the (possibly cancelled)
	// run context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if p.runLog != nil {
		if err := p.runLog.WriteFile(localLog); err != nil {
			logger.ErrorWithErr("failed to write run log file", err)
		} else if err := p.deps.Store.Upload(ctx, localLog, logKey); err != nil {
			logger.ErrorWithErr("failed to upload run log", err)
		} else {
			run.LogObjectKey = &logKey
		}
	}

	for _, path := range []string{localCSV, localLog} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.ErrorWithErr("failed to remove local artifact", err)
		}
	}

	if p.deps.Runs != nil {
		if err := p.deps.Runs.Update(ctx, run); err != nil {
			logger.ErrorWithErr("failed to record run result", err)
		}
	}
}
