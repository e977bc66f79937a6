package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pmtexport/internal/ledger"
	"pmtexport/internal/mirror"
	"pmtexport/internal/pipeline"
	"pmtexport/internal/query"
	"pmtexport/internal/store"
)

// buildExporter connects to MongoDB and to whichever optional backends are
// configured. The returned cleanup closes them in reverse order.
func buildExporter(ctx context.Context, opts pipeline.Options) (*pipeline.Exporter, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*pipeline.Exporter, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	client, err := query.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
	logger.Debug("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	deps := pipeline.Deps{
		Source: query.NewMongoSource(client.Database(cfg.Database).Collection(cfg.Collection)),
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("database connection failed: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := store.ApplyMigrations(ctx, db); err != nil {
			return fail(fmt.Errorf("migrations failed: %w", err))
		}
		deps.Loader = store.NewPostgresStore(db)
		logger.Info("loading exports into postgres")
	}

	if cfg.RedisURL != "" {
		l, err := ledger.NewRedisLedger(cfg.RedisURL, cfg.LedgerSize)
		if err != nil {
			return fail(fmt.Errorf("redis connection failed: %w", err))
		}
		closers = append(closers, func() { _ = l.Close() })
		deps.Ledger = l
		logger.Info("recording runs in redis")
	}

	if cfg.MirrorEnabled() {
		m, err := mirror.New(mirror.Options{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return fail(err)
		}
		deps.Mirror = m
		logger.Info("mirroring exports", zap.String("bucket", cfg.S3Bucket))
	}

	return pipeline.New(deps, opts), cleanup, nil
}
