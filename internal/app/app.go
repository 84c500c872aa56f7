// Package app assembles the indexer and its Index Store from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/config"
	"github.com/sh3r4rd/object_index/internal/handler"
	"github.com/sh3r4rd/object_index/internal/indexer"
	"github.com/sh3r4rd/object_index/internal/indexstore"
	"github.com/sh3r4rd/object_index/internal/metrics"
)

// OpenStore connects to the backend named by cfg.Backend. The returned
// close function releases it and is never nil.
func OpenStore(ctx context.Context, cfg config.Config, lg *zap.Logger) (indexstore.Store, func() error, error) {
	noop := func() error { return nil }
	lg = lg.With(zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		lg.Info("using dynamodb index store",
			zap.String("table", cfg.TableName),
			zap.String("region", cfg.Region),
		)
		return indexstore.NewDynamoStore(client, cfg.TableName), noop, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		store := indexstore.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ensure postgres schema: %w", err)
		}
		lg.Info("using postgres index store")
		return store, db.Close, nil

	case config.BackendPebble:
		store, err := indexstore.OpenPebbleStore(cfg.PebbleDir, &pebble.Options{})
		if err != nil {
			return nil, noop, err
		}
		lg.Info("using pebble index store", zap.String("dir", cfg.PebbleDir))
		return store, store.Close, nil

	case config.BackendMemory:
		lg.Warn("using in-memory index store, records are lost on exit")
		return indexstore.NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// NewIndexer builds the indexer over store with the configured write
// strategy. m may be nil.
func NewIndexer(cfg config.Config, store indexstore.Store, lg *zap.Logger, m *metrics.Metrics) *indexer.Indexer {
	opts := []indexer.Option{
		indexer.WithStrategy(indexer.Strategy(cfg.WriteStrategy), cfg.MaxConflictRetries),
	}
	if m != nil {
		opts = append(opts, indexer.WithObserver(m))
		store = m.Instrument(store)
	}

	return indexer.NewIndexer(store, lg, opts...)
}

// Policy returns the configured error policy.
func Policy(cfg config.Config) handler.ErrorPolicy {
	return handler.ErrorPolicy(cfg.ErrorPolicy)
}
