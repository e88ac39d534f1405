// Package deletion removes catalog items together with the data backing them.
//
// The data is deleted first and a fresh enumeration must find nothing left before the catalog item is deleted. Any
// residue preserves the item.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/storage/objects"
)

//go:generate moq -out mocks/object_store.go -pkg mocks -skip-ensure . ObjectStore
//go:generate moq -out mocks/catalog.go -pkg mocks -skip-ensure . Catalog

const (
	// DeleteBatchSize is the number of keys sent per delete call.
	DeleteBatchSize   = 200
	DefaultSampleKeys = 5

	codeNoSuchKey = "NoSuchKey"
)

var ErrResidualObjects = errors.New("objects remain after deletion")

type State string

const (
	StateStart          State = "START"
	StateEnumerating    State = "ENUMERATING"
	StateDeleting       State = "DELETING"
	StateVerifying      State = "VERIFYING"
	StateMetadataDelete State = "METADATA_DELETE"
	StatePreserved      State = "PRESERVED"
)

type ObjectStore interface {
	DeleteObjects(ctx context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error)
}

type Catalog interface {
	DeleteItem(ctx context.Context, collection, id string) error
}

type Options struct {
	// WithData deletes the objects backing the item before the item itself.
	WithData bool
	DryRun   bool
	// SampleKeys bounds the number of example keys kept in the outcome.
	SampleKeys int
}

// LocationReport is what happened to one dataset location of the item.
type LocationReport struct {
	URL      string
	Objects  int
	Bytes    int64
	Residual int
}

// Outcome is the result of cleaning one item.
type Outcome struct {
	Collection  string
	ItemID      string
	WithData    bool
	DryRun      bool
	Transitions []State
	// Locations are the distinct dataset roots enumerated; several assets may share one.
	Locations []LocationReport
	// Skipped lists the assets without an object storage location.
	Skipped      []string
	Objects      int
	Bytes        int64
	Deleted      int
	DeleteFailed int
	Residual     int
	SampleKeys   []string
	ItemDeleted  bool
	assets       int
	// Err explains a preservation, or why the catalog item could not be deleted.
	Err error
}

// State returns the last state reached.
func (o *Outcome) State() State {
	if len(o.Transitions) == 0 {
		return StateStart
	}
	return o.Transitions[len(o.Transitions)-1]
}

func (o *Outcome) Preserved() bool {
	return o.State() == StatePreserved
}

// Assets is the number of assets with an object storage location.
func (o *Outcome) Assets() int {
	return o.assets
}

func (o *Outcome) String() string {
	switch {
	case o.DryRun && o.WithData:
		return fmt.Sprintf("would delete %d objects across %d assets", o.Objects, o.Assets())
	case o.DryRun:
		return "would delete the catalog item"
	case o.Preserved():
		return fmt.Sprintf("preserved with %d residual objects", o.Residual)
	case o.ItemDeleted:
		return fmt.Sprintf("deleted %d objects and the catalog item", o.Deleted)
	default:
		return fmt.Sprintf("catalog item not deleted: %v", o.Err)
	}
}

func (o *Outcome) enter(s State) {
	o.Transitions = append(o.Transitions, s)
}

// Coordinator runs the deletion protocol for one item at a time. It is safe for concurrent use across items.
type Coordinator struct {
	logger        *logrus.Logger
	extractor     *catalog.Extractor
	enumerator    *objects.Enumerator
	store         ObjectStore
	catalog       Catalog
	policy        retry.Policy
	catalogPolicy retry.Policy
}

type Option func(c *Coordinator)

// WithCatalogPolicy sets the policy of the catalog delete, for catalogs that retry on their own.
func WithCatalogPolicy(policy retry.Policy) Option {
	return func(c *Coordinator) {
		c.catalogPolicy = policy
	}
}

// NewCoordinator retries object deletes with policy. The catalog delete uses policy too unless WithCatalogPolicy is
// given.
func NewCoordinator(
	logger *logrus.Logger,
	extractor *catalog.Extractor,
	enumerator *objects.Enumerator,
	store ObjectStore,
	cat Catalog,
	policy retry.Policy,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		logger:        logger,
		extractor:     extractor,
		enumerator:    enumerator,
		store:         store,
		catalog:       cat,
		policy:        policy,
		catalogPolicy: policy,
	}
	for opt := range slices.Values(opts) {
		opt(c)
	}
	if c.catalogPolicy.Retryable == nil {
		c.catalogPolicy.Retryable = catalog.IsRetryable
	}

	return c
}

// Clean deletes the item, and its data first when opts.WithData is set. The returned error is set only when the
// catalog item could not be deleted after the data was confirmed gone; a preserved item is not an error.
func (c *Coordinator) Clean(ctx context.Context, item *catalog.Item, opts Options) (*Outcome, error) {
	ctx, span := otel.Tracer("").Start(ctx, "deletion.clean")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", item.Collection),
		attribute.String("item_id", item.ID),
		attribute.Bool("with_data", opts.WithData),
		attribute.Bool("dry_run", opts.DryRun),
	)

	logger := c.logger.WithContext(ctx).WithFields(logrus.Fields{
		"collection": item.Collection,
		"item_id":    item.ID,
	})
	if opts.SampleKeys <= 0 {
		opts.SampleKeys = DefaultSampleKeys
	}

	out := &Outcome{
		Collection: item.Collection,
		ItemID:     item.ID,
		WithData:   opts.WithData,
		DryRun:     opts.DryRun,
	}
	out.enter(StateStart)

	if opts.WithData {
		extraction := c.extractor.Extract(ctx, item)
		out.Skipped = extraction.Skipped
		out.assets = len(extraction.Refs)
		locations := extraction.Locations()

		out.enter(StateEnumerating)
		keys, err := c.enumerate(ctx, locations, out, opts.SampleKeys)
		if err != nil {
			logger.WithError(err).Warn("Failed to enumerate item data, preserving item")
			out.Err = err
			out.enter(StatePreserved)
			return out, nil
		}
		if opts.DryRun {
			logger.WithField("objects", out.Objects).Debug("Dry run, stopping after enumeration")
			return out, nil
		}

		out.enter(StateDeleting)
		c.delete(ctx, keys, out)

		out.enter(StateVerifying)
		err = c.verify(ctx, locations, out)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"residual":      out.Residual,
				"delete_failed": out.DeleteFailed,
			}).Warn("Item data is not fully deleted, preserving item")
			out.Err = err
			out.enter(StatePreserved)
			return out, nil
		}
	} else if opts.DryRun {
		return out, nil
	}

	out.enter(StateMetadataDelete)
	err := c.catalogPolicy.Do(ctx, func(ctx context.Context) error {
		return c.catalog.DeleteItem(ctx, item.Collection, item.ID)
	})
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		out.Err = err
		span.RecordError(err)
		return out, fmt.Errorf("could not delete catalog item: %w", err)
	}
	out.ItemDeleted = true
	logger.WithField("objects_deleted", out.Deleted).Info("Item deleted")

	return out, nil
}

type bucketKeys struct {
	bucket string
	keys   []string
}

func (c *Coordinator) enumerate(ctx context.Context, locations []objects.Location, out *Outcome, samples int) ([]bucketKeys, error) {
	var all []bucketKeys
	for _, loc := range locations {
		report := LocationReport{URL: loc.URL()}
		bk := bucketKeys{bucket: loc.BucketName()}
		for rec, err := range c.enumerator.Objects(ctx, loc) {
			if err != nil {
				return nil, err
			}
			report.Objects++
			report.Bytes += rec.Size
			bk.keys = append(bk.keys, rec.Key)
			if len(out.SampleKeys) < samples {
				out.SampleKeys = append(out.SampleKeys, "s3://"+rec.Bucket+"/"+rec.Key)
			}
		}
		out.Objects += report.Objects
		out.Bytes += report.Bytes
		out.Locations = append(out.Locations, report)
		all = append(all, bk)
	}

	return all, nil
}

func (c *Coordinator) delete(ctx context.Context, all []bucketKeys, out *Outcome) {
	policy := c.policy.WithRetryable(objects.IsRetryable)
	for _, bk := range all {
		for batch := range slices.Chunk(bk.keys, DeleteBatchSize) {
			failures, err := retry.Value(ctx, policy, func(ctx context.Context) ([]objects.DeleteFailure, error) {
				return c.store.DeleteObjects(ctx, bk.bucket, batch)
			})
			if err != nil {
				c.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
					"bucket": bk.bucket,
					"keys":   len(batch),
				}).Warn("Delete call failed")
				out.DeleteFailed += len(batch)
				continue
			}

			var failed int
			for _, f := range failures {
				if f.Code == codeNoSuchKey {
					continue
				}
				failed++
				c.logger.WithContext(ctx).WithFields(logrus.Fields{
					"bucket":  bk.bucket,
					"key":     f.Key,
					"code":    f.Code,
					"message": f.Message,
				}).Debug("Object not deleted")
			}
			out.DeleteFailed += failed
			out.Deleted += len(batch) - failed
		}
	}
}

// verify re-enumerates every location. Anything left, or a location that cannot be listed, fails the verification.
func (c *Coordinator) verify(ctx context.Context, locations []objects.Location, out *Outcome) error {
	var errs []error
	for i, loc := range locations {
		n, err := c.enumerator.Count(ctx, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("verify %s: %w", loc.URL(), err))
			continue
		}
		out.Locations[i].Residual = n
		out.Residual += n
	}
	if out.Residual > 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrResidualObjects, out.Residual))
	}

	return errors.Join(errs...)
}
