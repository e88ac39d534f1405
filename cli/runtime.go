package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hedisam/tiersync/batch"
	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/catalog/stacapi"
	"github.com/hedisam/tiersync/config"
	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/s3store"
	"github.com/hedisam/tiersync/storage/tier"
	"github.com/hedisam/tiersync/telemetry"
)

const appName = "tiersync"

// runtime is everything a batch command needs, built once per invocation.
type runtime struct {
	cfg    *config.Config
	logger *logrus.Logger
	runID  string

	catalog catalog.Store
	store   objects.Store

	// catalogPolicy retries catalog calls made by the engine. It is a single attempt when the catalog client retries
	// on its own.
	catalogPolicy retry.Policy
	objectPolicy  retry.Policy

	extractor  *catalog.Extractor
	enumerator *objects.Enumerator
	classifier *tier.Classifier

	metrics *telemetry.RunMetrics
	journal *journal.Journal
	closers []func(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) newRuntime(ctx context.Context) (*runtime, error) {
	cfg := a.cfg
	rt := &runtime{
		cfg:        cfg,
		logger:     a.logger,
		runID:      batch.NewRunID(),
		metrics:    telemetry.NewRunMetrics(),
		classifier: tier.NewClassifier(a.logger, cfg.StrictStorageClasses),
	}

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(appName, cfg.Tracing.Output)
		if err != nil {
			return nil, fmt.Errorf("could not set up tracing: %w", err)
		}
		rt.closers = append(rt.closers, shutdown)
	}

	base := cfg.RetryPolicy()
	rt.objectPolicy = base.WithOnRetry(rt.onRetry("s3"))
	rt.catalogPolicy = base.WithOnRetry(rt.onRetry("catalog"))

	resolver, err := catalog.NewHrefResolver(cfg.S3.GatewayURL)
	if err != nil {
		return nil, err
	}
	rt.extractor = catalog.NewExtractor(a.logger, resolver)

	rt.catalog = a.catalog
	if rt.catalog == nil {
		cli := &http.Client{
			Timeout:   cfg.Catalog.Timeout,
			Transport: otelhttp.NewTransport(rt.metrics.InstrumentTransport(http.DefaultTransport)),
		}
		client, err := stacapi.NewClient(a.logger, cfg.Catalog.URL,
			stacapi.WithHTTPClient(cli),
			stacapi.WithRetryPolicy(rt.catalogPolicy),
			stacapi.WithPageSize(cfg.Catalog.PageSize),
		)
		if err != nil {
			return nil, fmt.Errorf("could not create catalog client: %w", err)
		}
		rt.catalog = client
		rt.catalogPolicy = retry.Policy{MaxAttempts: 1}
	}
	if p, ok := rt.catalog.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return nil, err
		}
	}

	rt.store = a.store
	if rt.store == nil {
		store, err := s3store.Connect(ctx, a.logger, s3store.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.SDKRegion(),
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.PathStyle,
			MaxKeys:         cfg.S3.MaxKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("could not connect to object storage: %w", err)
		}
		if cfg.Schemes.Bucket != "" {
			if err := store.Ping(ctx, cfg.Schemes.Bucket); err != nil {
				return nil, fmt.Errorf("object storage is not reachable: %w", err)
			}
		}
		rt.store = store
	}
	rt.enumerator = objects.NewEnumerator(a.logger, rt.store, rt.objectPolicy)

	if cfg.Journal.Path != "" {
		j, err := journal.Open(a.logger, cfg.Journal.Path, rt.runID)
		if err != nil {
			return nil, err
		}
		rt.journal = j
		rt.closers = append(rt.closers, func(context.Context) error {
			j.Close()
			return nil
		})
	}

	return rt, nil
}

func (rt *runtime) onRetry(component string) func(err error, wait time.Duration) {
	count := rt.metrics.RetryObserver(component)
	return func(err error, wait time.Duration) {
		count(err, wait)
		rt.logger.WithError(err).WithFields(logrus.Fields{
			"component": component,
			"wait":      wait,
		}).Debug("Retrying provider call")
	}
}

// schemes builds the scheme table. Commands that read or write tier metadata need it.
func (rt *runtime) schemes() (*tier.SchemeTable, error) {
	sc, err := rt.cfg.SchemeConfig()
	if err != nil {
		return nil, err
	}
	table, err := tier.NewSchemeTable(sc)
	if err != nil {
		return nil, fmt.Errorf("invalid scheme configuration: %w", err)
	}
	return table, nil
}

func (rt *runtime) driver() *batch.Driver {
	opts := []batch.Option{
		batch.WithWorkers(rt.cfg.Workers),
		batch.WithObserver(rt.metrics),
		batch.WithMaxExamples(rt.cfg.Report.MaxExamples),
		batch.WithRunID(rt.runID),
	}
	if rt.journal != nil {
		opts = append(opts, batch.WithJournal(rt.journal))
	}
	return batch.NewDriver(rt.logger, rt.catalog, rt.catalogPolicy, opts...)
}

// close publishes the run metrics and releases everything the runtime opened.
func (rt *runtime) close(ctx context.Context) error {
	rt.metrics.Finish()

	var errs []error
	if url := rt.cfg.Metrics.PushgatewayURL; url != "" {
		errs = append(errs, rt.metrics.Push(ctx, url, appName))
	}
	if path := rt.cfg.Metrics.Textfile; path != "" {
		errs = append(errs, rt.metrics.WriteTextfile(path))
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i](ctx))
	}

	err := errors.Join(errs...)
	if err != nil {
		rt.logger.WithError(err).Warn("Failed to publish run telemetry")
	}
	return err
}
