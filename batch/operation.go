package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/reconcile/deletion"
	"github.com/hedisam/tiersync/reconcile/metasync"
	"github.com/hedisam/tiersync/reconcile/mismatch"
	"github.com/hedisam/tiersync/reconcile/retier"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/tier"
)

// Operation is applied to every item of a batch. Process must not fail the batch: problems are reported in the
// result.
type Operation interface {
	Name() string
	Process(ctx context.Context, item *catalog.Item) *ItemResult
}

// ItemRemover is implemented by operations that delete the items they process. The collection of such an operation
// is listed in full before any item is processed.
type ItemRemover interface {
	RemovesItems() bool
}

// ItemResult is the outcome of an operation on one item. Exactly one of the operation specific fields is set.
type ItemResult struct {
	ItemID  string
	Status  journal.Status
	Changed bool
	Err     error

	Sync       *metasync.Result
	TierChange *TierChangeResult
	Clean      *deletion.Outcome
	Stats      *ItemStats
}

// Detail is a one line description of the result for the journal and the report.
func (r *ItemResult) Detail() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Clean != nil:
		return r.Clean.String()
	case r.TierChange != nil:
		return fmt.Sprintf("changed %d objects, skipped %d, failed %d", r.TierChange.Changed, r.TierChange.Skipped, r.TierChange.Failed)
	case r.Sync != nil:
		return fmt.Sprintf("%d assets updated, %d added, %d failed",
			r.Sync.Count(metasync.AssetUpdated), r.Sync.Count(metasync.AssetAdded), r.Sync.Count(metasync.AssetFailed))
	case r.Stats != nil:
		return fmt.Sprintf("%d objects in %d assets", r.Stats.Objects, len(r.Stats.Assets))
	default:
		return ""
	}
}

func failed(item *catalog.Item, err error) *ItemResult {
	return &ItemResult{
		ItemID: item.ID,
		Status: journal.StatusFailed,
		Err:    err,
	}
}

// SyncOperation writes the observed tiers of every asset back into the item.
type SyncOperation struct {
	Synchronizer *metasync.Synchronizer
	Options      metasync.Options
}

func (o *SyncOperation) Name() string {
	return "sync-tier"
}

func (o *SyncOperation) Process(ctx context.Context, item *catalog.Item) *ItemResult {
	res, err := o.Synchronizer.SyncItem(ctx, item, o.Options)
	if err != nil {
		r := failed(item, err)
		r.Sync = res
		return r
	}

	out := &ItemResult{
		ItemID:  item.ID,
		Status:  journal.StatusOK,
		Changed: res.Written,
		Sync:    res,
	}
	if n := res.Count(metasync.AssetFailed); n > 0 {
		out.Status = journal.StatusFailed
		out.Err = fmt.Errorf("%d assets failed to sync", n)
	} else if o.Options.DryRun {
		out.Status = journal.StatusDryRun
	}

	return out
}

// TierChangeResult sums the tier changes of all dataset locations of an item.
type TierChangeResult struct {
	retier.Result
	Locations int
}

// ChangeTierOperation moves the objects of every asset to a target tier. When Synchronizer is set the item metadata
// is synced afterwards.
type ChangeTierOperation struct {
	Extractor    *catalog.Extractor
	Mutator      *retier.Mutator
	Synchronizer *metasync.Synchronizer
	Target       tier.Tier
	Filter       *retier.Filter
	DryRun       bool
}

func (o *ChangeTierOperation) Name() string {
	return "change-tier"
}

func (o *ChangeTierOperation) Process(ctx context.Context, item *catalog.Item) *ItemResult {
	extraction := o.Extractor.Extract(ctx, item)
	total := &TierChangeResult{}
	total.DryRun = o.DryRun

	var errs []error
	for _, loc := range extraction.Locations() {
		plan, err := o.Mutator.Plan(ctx, loc, o.Target, o.Filter)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res, err := o.Mutator.Apply(ctx, plan, o.DryRun)
		if err != nil {
			errs = append(errs, err)
		}
		total.Locations++
		total.Changed += res.Changed
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		total.FailedKeys = append(total.FailedKeys, res.FailedKeys...)
	}
	if total.Failed > 0 {
		errs = append(errs, fmt.Errorf("%d objects could not change tier", total.Failed))
	}

	out := &ItemResult{
		ItemID:     item.ID,
		Status:     journal.StatusOK,
		Changed:    total.Changed > 0,
		TierChange: total,
	}
	if len(errs) > 0 {
		out.Status = journal.StatusFailed
		out.Err = errors.Join(errs...)
		return out
	}
	if o.DryRun {
		out.Status = journal.StatusDryRun
		return out
	}

	if o.Synchronizer != nil && total.Changed > 0 {
		res, err := o.Synchronizer.SyncItem(ctx, item, metasync.Options{})
		out.Sync = res
		if err != nil {
			out.Status = journal.StatusFailed
			out.Err = fmt.Errorf("tier changed but metadata not synced: %w", err)
		}
	}

	return out
}

// CleanOperation deletes items, and their data first when asked to.
type CleanOperation struct {
	Coordinator *deletion.Coordinator
	Options     deletion.Options
}

func (o *CleanOperation) Name() string {
	if o.Options.WithData {
		return "clean-with-data"
	}
	return "clean"
}

func (o *CleanOperation) RemovesItems() bool {
	return !o.Options.DryRun
}

func (o *CleanOperation) Process(ctx context.Context, item *catalog.Item) *ItemResult {
	outcome, err := o.Coordinator.Clean(ctx, item, o.Options)
	out := &ItemResult{
		ItemID:  item.ID,
		Status:  journal.StatusOK,
		Changed: outcome.ItemDeleted,
		Clean:   outcome,
	}
	switch {
	case err != nil:
		out.Status = journal.StatusFailed
		out.Err = err
	case outcome.Preserved():
		out.Status = journal.StatusPreserved
		out.Err = outcome.Err
	case o.Options.DryRun:
		out.Status = journal.StatusDryRun
	}

	return out
}

// AssetStats is the storage state of one asset.
type AssetStats struct {
	Asset    string            `json:"asset" yaml:"asset"`
	URL      string            `json:"url" yaml:"url"`
	Kind     string            `json:"kind" yaml:"kind"`
	Objects  int               `json:"objects" yaml:"objects"`
	Bytes    int64             `json:"bytes" yaml:"bytes"`
	Observed tier.Distribution `json:"observed" yaml:"observed"`
	Recorded tier.Distribution `json:"recorded" yaml:"recorded"`
	InSync   bool              `json:"in_sync" yaml:"in_sync"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// ItemStats is the storage state of an item.
type ItemStats struct {
	Objects int          `json:"objects" yaml:"objects"`
	Bytes   int64        `json:"bytes" yaml:"bytes"`
	Assets  []AssetStats `json:"assets" yaml:"assets"`
	Skipped []string     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// StatsOperation enumerates every asset and compares it with the catalog without changing anything. With
// CatalogOnly set nothing is enumerated and only the recorded tiers are reported.
type StatsOperation struct {
	Extractor   *catalog.Extractor
	Enumerator  *objects.Enumerator
	Classifier  *tier.Classifier
	Schemes     *tier.SchemeTable
	CatalogOnly bool
}

func (o *StatsOperation) Name() string {
	return "stats"
}

func (o *StatsOperation) Process(ctx context.Context, item *catalog.Item) *ItemResult {
	extraction := o.Extractor.Extract(ctx, item)
	stats := &ItemStats{
		Skipped: extraction.Skipped,
	}

	var errs []error
	for _, ref := range extraction.Refs {
		as := AssetStats{
			Asset: ref.Name,
			URL:   ref.Location.URL(),
			Kind:  "single",
		}
		if _, ok := ref.Location.(objects.ContainerRef); ok {
			as.Kind = "container"
		}

		var err error
		as.Recorded, err = mismatch.RecordedDistribution(ref.Recorded, ref.Location, o.Classifier, o.Schemes)
		if err == nil && o.CatalogOnly {
			as.InSync = true
			stats.Assets = append(stats.Assets, as)
			continue
		}
		var agg *tier.Stats
		if err == nil {
			agg, err = o.Classifier.Aggregate(o.Enumerator.Objects(ctx, ref.Location))
		}
		if err != nil {
			as.Error = err.Error()
			errs = append(errs, fmt.Errorf("asset %q: %w", ref.Name, err))
			stats.Assets = append(stats.Assets, as)
			continue
		}

		as.Objects = agg.Objects
		as.Bytes = agg.Bytes
		as.Observed = agg.Distribution
		_, differs := mismatch.Detect(ref.Name, as.Observed, as.Recorded)
		as.InSync = !differs
		stats.Objects += agg.Objects
		stats.Bytes += agg.Bytes
		stats.Assets = append(stats.Assets, as)
	}

	out := &ItemResult{
		ItemID: item.ID,
		Status: journal.StatusOK,
		Stats:  stats,
	}
	if len(errs) > 0 {
		out.Status = journal.StatusFailed
		out.Err = errors.Join(errs...)
	}

	return out
}
