// Package metasync writes observed storage tiers back into catalog items.
package metasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/reconcile/mismatch"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/tier"
)

//go:generate moq -out mocks/catalog.go -pkg mocks -skip-ensure . Catalog

var ErrNoObjects = errors.New("no objects found")

// Catalog persists items.
type Catalog interface {
	UpsertItem(ctx context.Context, item *catalog.Item) error
}

type Options struct {
	// AddMissing synthesizes an s3 alternate for assets that only have an object storage href.
	AddMissing bool
	DryRun     bool
}

type AssetStatus int

const (
	AssetUnchanged AssetStatus = iota
	AssetUpdated
	AssetAdded
	AssetFailed
	// AssetIgnored is an asset without an s3 alternate when AddMissing is off.
	AssetIgnored
)

func (s AssetStatus) String() string {
	switch s {
	case AssetUpdated:
		return "updated"
	case AssetAdded:
		return "added"
	case AssetFailed:
		return "failed"
	case AssetIgnored:
		return "ignored"
	default:
		return "unchanged"
	}
}

type AssetResult struct {
	Asset    string
	Status   AssetStatus
	Ref      string
	Objects  int
	Observed tier.Distribution
	Recorded tier.Distribution
	// Mismatch is set when the observed distribution differs from the recorded one.
	Mismatch *mismatch.Mismatch
	Err      error
}

type Result struct {
	ItemID string
	// Written is true when the item was upserted, or would have been in a dry run.
	Written bool
	Assets  []AssetResult
	// Skipped lists the assets without an object storage location.
	Skipped []string
}

// Count returns the number of assets with the given status.
func (r *Result) Count(status AssetStatus) int {
	var n int
	for _, a := range r.Assets {
		if a.Status == status {
			n++
		}
	}
	return n
}

// Synchronizer updates the s3 alternates of an item's assets from a fresh enumeration.
type Synchronizer struct {
	logger     *logrus.Logger
	extractor  *catalog.Extractor
	enumerator *objects.Enumerator
	classifier *tier.Classifier
	schemes    *tier.SchemeTable
	catalog    Catalog
	policy     retry.Policy
}

func New(
	logger *logrus.Logger,
	extractor *catalog.Extractor,
	enumerator *objects.Enumerator,
	classifier *tier.Classifier,
	schemes *tier.SchemeTable,
	cat Catalog,
	policy retry.Policy,
) *Synchronizer {
	if policy.Retryable == nil {
		policy.Retryable = catalog.IsRetryable
	}

	return &Synchronizer{
		logger:     logger,
		extractor:  extractor,
		enumerator: enumerator,
		classifier: classifier,
		schemes:    schemes,
		catalog:    cat,
		policy:     policy,
	}
}

// SyncItem recomputes the scheme reference and distribution of every asset and upserts the item when anything
// changed. Asset level failures are reported in the result; the returned error is set when the item could not be
// written.
func (s *Synchronizer) SyncItem(ctx context.Context, item *catalog.Item, opts Options) (*Result, error) {
	logger := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"collection": item.Collection,
		"item_id":    item.ID,
	})

	updated, err := item.Clone()
	if err != nil {
		return nil, fmt.Errorf("could not copy item: %w", err)
	}

	extraction := s.extractor.Extract(ctx, updated)
	res := &Result{
		ItemID:  item.ID,
		Skipped: extraction.Skipped,
	}

	refs := make(map[string]struct{})
	var assetsChanged bool
	for _, ref := range extraction.Refs {
		ar := s.syncAsset(ctx, updated.Assets[ref.Name], ref, opts)
		switch ar.Status {
		case AssetUpdated, AssetAdded:
			assetsChanged = true
			refs[ar.Ref] = struct{}{}
		case AssetUnchanged:
			refs[ar.Ref] = struct{}{}
		case AssetFailed:
			logger.WithError(ar.Err).WithField("asset", ar.Asset).Warn("Failed to sync asset")
		}
		res.Assets = append(res.Assets, ar)
	}
	if len(refs) == 0 {
		return res, nil
	}

	itemChanged, err := s.ensureSchemes(updated, slices.Sorted(maps.Keys(refs)))
	if err != nil {
		return res, err
	}
	if !assetsChanged && !itemChanged {
		return res, nil
	}

	res.Written = true
	if opts.DryRun {
		logger.Debug("Dry run, not writing item")
		return res, nil
	}

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.catalog.UpsertItem(ctx, updated)
	})
	if err != nil {
		res.Written = false
		return res, fmt.Errorf("could not upsert item: %w", err)
	}
	logger.WithField("assets_changed", assetsChanged).Debug("Item metadata updated")

	return res, nil
}

func (s *Synchronizer) syncAsset(ctx context.Context, asset *catalog.Asset, ref catalog.AssetRef, opts Options) AssetResult {
	ar := AssetResult{
		Asset: ref.Name,
	}

	alt, hasAlt := asset.S3Alternate()
	if !hasAlt && !opts.AddMissing {
		ar.Status = AssetIgnored
		return ar
	}

	stats, err := s.classifier.Aggregate(s.enumerator.Objects(ctx, ref.Location))
	if err != nil {
		ar.Status = AssetFailed
		ar.Err = err
		return ar
	}
	ar.Objects = stats.Objects
	ar.Observed = stats.Distribution

	ar.Recorded, err = mismatch.RecordedDistribution(ref.Recorded, ref.Location, s.classifier, s.schemes)
	if err != nil {
		ar.Status = AssetFailed
		ar.Err = err
		return ar
	}
	if m, ok := mismatch.Detect(ref.Name, ar.Observed, ar.Recorded); ok {
		ar.Mismatch = &m
	}

	schemeRef, ok := s.schemes.RefFor(ar.Observed)
	if !ok {
		ar.Status = AssetFailed
		ar.Err = fmt.Errorf("%s: %w", ref.Location.URL(), ErrNoObjects)
		return ar
	}
	ar.Ref = schemeRef

	status := AssetUpdated
	if !hasAlt {
		alt = &catalog.S3Alternate{}
		status = AssetAdded
	}

	var changed bool
	if alt.Href == "" {
		alt.Href = ref.Location.URL()
		changed = true
	}
	if !slices.Equal(alt.Refs, []string{schemeRef}) {
		alt.Refs = []string{schemeRef}
		changed = true
	}
	switch ref.Location.(type) {
	case objects.ContainerRef:
		encoded := s.schemes.Encode(ar.Observed)
		if alt.Distribution == nil || !maps.Equal(alt.Distribution, encoded) {
			alt.Distribution = encoded
			changed = true
		}
	case objects.SingleObjectRef:
		if alt.ClearDistribution() {
			changed = true
		}
	}
	if alt.DropLegacyScheme() {
		changed = true
	}

	if !changed {
		ar.Status = AssetUnchanged
		return ar
	}

	err = asset.SetS3Alternate(alt)
	if err != nil {
		ar.Status = AssetFailed
		ar.Err = err
		return ar
	}
	ar.Status = status

	return ar
}

// ensureSchemes makes sure the item lists every referenced scheme and the extensions describing them. Existing
// scheme entries are kept as they are.
func (s *Synchronizer) ensureSchemes(item *catalog.Item, refs []string) (bool, error) {
	existing := make(map[string]json.RawMessage)
	if _, err := item.Property(catalog.StorageSchemesProperty, &existing); err != nil {
		return false, err
	}
	if existing == nil {
		existing = make(map[string]json.RawMessage)
	}

	var changed bool
	for _, key := range refs {
		if _, ok := existing[key]; ok {
			continue
		}
		scheme, ok := s.schemes.Lookup(key)
		if !ok {
			return false, fmt.Errorf("no scheme configured for %q", key)
		}
		raw, err := json.Marshal(scheme)
		if err != nil {
			return false, fmt.Errorf("encode scheme %q: %w", key, err)
		}
		existing[key] = raw
		changed = true
	}
	if changed {
		if err := item.SetProperty(catalog.StorageSchemesProperty, existing); err != nil {
			return false, err
		}
	}

	if item.AddExtension(catalog.AlternateAssetsExtension) {
		changed = true
	}
	if item.AddExtension(catalog.StorageExtension) {
		changed = true
	}

	return changed, nil
}
