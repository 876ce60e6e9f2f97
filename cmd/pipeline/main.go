// Package main provides the snapshot pipeline entry point: one full
// fetch-flatten-upload-load-query run per invocation.
package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/coindata-pipeline/internal/adapter"
	"github.com/coindata-pipeline/internal/config"
	"github.com/coindata-pipeline/internal/errors"
	"github.com/coindata-pipeline/internal/logging"
	"github.com/coindata-pipeline/internal/pipeline"
	"github.com/coindata-pipeline/internal/query"
	"github.com/coindata-pipeline/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Every log line of the run is teed into the run log, which the
	// pipeline uploads to the bucket at run end.
	runLog := logging.NewRunLog()
	logger := logging.NewLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger.SetOutput(io.MultiWriter(os.Stdout, runLog))

	store, err := storage.NewObjectStore(&cfg.ObjectStore)
	if err != nil {
		logger.ErrorWithErr("failed to create object storage client", err)
		os.Exit(1)
	}

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.ErrorWithErr("failed to connect to ClickHouse", err)
		os.Exit(1)
	}
	defer clickhouse.Close()

	deps := pipeline.Deps{
		Store: store,
		FetcherFactory: func(uri, apiKey string) pipeline.Fetcher {
			return adapter.NewCoinMarketCapClient(uri, apiKey)
		},
		Warehouse: storage.NewWarehouse(clickhouse, cfg.Pipeline.Database),
		Queries:   query.NewRunner(clickhouse, cfg.Pipeline.Database, cfg.Pipeline.Table),
	}

	// Run history and the fetch cache are conveniences; the snapshot run
	// proceeds without them.
	if postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres); err != nil {
		logger.WithError(err).Warn("run history disabled: Postgres unavailable")
	} else {
		defer postgres.Close()
		deps.Runs = storage.NewRunRepository(postgres)
	}

	if redis, err := storage.NewRedisCache(&cfg.Database.Redis); err != nil {
		logger.WithError(err).Warn("fetch cache disabled: Redis unavailable")
	} else {
		defer redis.Close()
		deps.Cache = storage.NewListingsCache(redis, cfg.Cache.TTL)
	}

	p := pipeline.New(cfg, deps, logger, runLog)

	if err := p.Run(context.Background()); err != nil {
		// Only the upload-verification failure path exits non-zero; other
		// failures are already logged and recorded against the run.
		if errors.IsKind(err, errors.KindUploadVerification) {
			os.Exit(1)
		}
	}
}
