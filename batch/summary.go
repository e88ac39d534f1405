package batch

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/reconcile/metasync"
	"github.com/hedisam/tiersync/storage/tier"
)

const DefaultMaxExamples = 10

// Example names an item, and optionally one of its assets, with what happened to it.
type Example struct {
	Item   string `json:"item" yaml:"item"`
	Asset  string `json:"asset,omitempty" yaml:"asset,omitempty"`
	Detail string `json:"detail" yaml:"detail"`
}

func (e Example) String() string {
	if e.Asset == "" {
		return fmt.Sprintf("%s: %s", e.Item, e.Detail)
	}
	return fmt.Sprintf("%s/%s: %s", e.Item, e.Asset, e.Detail)
}

// Examples keeps the first few examples and counts the rest.
type Examples struct {
	max     int
	Shown   []Example `json:"shown" yaml:"shown"`
	Omitted int       `json:"omitted" yaml:"omitted"`
}

func (l *Examples) add(e Example) {
	if len(l.Shown) < l.max {
		l.Shown = append(l.Shown, e)
		return
	}
	l.Omitted++
}

// Total is the number of examples seen, shown or not.
func (l *Examples) Total() int {
	return len(l.Shown) + l.Omitted
}

type ItemCounts struct {
	Processed int `json:"processed" yaml:"processed"`
	Updated   int `json:"updated" yaml:"updated"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
	Deleted   int `json:"deleted" yaml:"deleted"`
	Preserved int `json:"preserved" yaml:"preserved"`
	DryRun    int `json:"dry_run" yaml:"dry_run"`
}

type AssetCounts struct {
	Updated   int `json:"updated" yaml:"updated"`
	Added     int `json:"added" yaml:"added"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
	Ignored   int `json:"ignored" yaml:"ignored"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

type ObjectCounts struct {
	Enumerated   int   `json:"enumerated" yaml:"enumerated"`
	Bytes        int64 `json:"bytes" yaml:"bytes"`
	Deleted      int   `json:"deleted" yaml:"deleted"`
	DeleteFailed int   `json:"delete_failed" yaml:"delete_failed"`
	Residual     int   `json:"residual" yaml:"residual"`
	TierChanged  int   `json:"tier_changed" yaml:"tier_changed"`
	TierSkipped  int   `json:"tier_skipped" yaml:"tier_skipped"`
	TierFailed   int   `json:"tier_failed" yaml:"tier_failed"`
}

// Estimate extrapolates a sampled run to the whole collection.
type Estimate struct {
	TotalItems   int   `json:"total_items" yaml:"total_items"`
	SampledItems int   `json:"sampled_items" yaml:"sampled_items"`
	Objects      int64 `json:"objects" yaml:"objects"`
	Bytes        int64 `json:"bytes" yaml:"bytes"`
}

// ItemReport is the per item detail kept for statistics runs.
type ItemReport struct {
	Item  string     `json:"item" yaml:"item"`
	Stats *ItemStats `json:"stats" yaml:"stats"`
}

// Summary accumulates the outcome of a batch. It is safe for concurrent use.
type Summary struct {
	mu sync.Mutex

	RunID      string    `json:"run_id" yaml:"run_id"`
	Operation  string    `json:"operation" yaml:"operation"`
	Collection string    `json:"collection" yaml:"collection"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	// Interrupted is set when the run stopped before every item was processed.
	Interrupted bool `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`

	Items   ItemCounts   `json:"items" yaml:"items"`
	Assets  AssetCounts  `json:"assets" yaml:"assets"`
	Objects ObjectCounts `json:"objects" yaml:"objects"`

	// Observed and Recorded are the object counts per tier in storage and in the catalog, over all assets.
	Observed tier.Distribution `json:"observed" yaml:"observed"`
	Recorded tier.Distribution `json:"recorded" yaml:"recorded"`

	Mismatches  Examples `json:"mismatches" yaml:"mismatches"`
	Corrections Examples `json:"corrections" yaml:"corrections"`
	Failures    Examples `json:"failures" yaml:"failures"`
	SampleKeys  Examples `json:"sample_keys" yaml:"sample_keys"`

	FailedItems    []string `json:"failed_items" yaml:"failed_items"`
	PreservedItems []string `json:"preserved_items" yaml:"preserved_items"`

	Estimate *Estimate     `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	Details  []*ItemReport `json:"details,omitempty" yaml:"details,omitempty"`
}

func NewSummary(runID, operation, collection string, dryRun bool, maxExamples int) *Summary {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}

	return &Summary{
		RunID:       runID,
		Operation:   operation,
		Collection:  collection,
		DryRun:      dryRun,
		StartedAt:   time.Now().UTC(),
		Observed:    make(tier.Distribution),
		Recorded:    make(tier.Distribution),
		Mismatches:  Examples{max: maxExamples},
		Corrections: Examples{max: maxExamples},
		Failures:    Examples{max: maxExamples},
		SampleKeys:  Examples{max: maxExamples},
	}
}

// Record folds the result of one item into the summary.
func (s *Summary) Record(res *ItemResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Items.Processed++
	switch res.Status {
	case journal.StatusFailed:
		s.Items.Failed++
		s.FailedItems = append(s.FailedItems, res.ItemID)
	case journal.StatusPreserved:
		s.Items.Preserved++
		s.PreservedItems = append(s.PreservedItems, res.ItemID)
	case journal.StatusDryRun:
		s.Items.DryRun++
	}
	if res.Err != nil {
		s.Failures.add(Example{Item: res.ItemID, Detail: res.Err.Error()})
	}

	switch {
	case res.Clean != nil && res.Clean.ItemDeleted:
		s.Items.Deleted++
	case res.Changed && res.Status != journal.StatusDryRun:
		s.Items.Updated++
	case res.Status == journal.StatusOK:
		s.Items.Unchanged++
	}

	if res.Sync != nil {
		s.recordSync(res)
	}
	if tc := res.TierChange; tc != nil {
		s.Objects.TierChanged += tc.Changed
		s.Objects.TierSkipped += tc.Skipped
		s.Objects.TierFailed += tc.Failed
	}
	if c := res.Clean; c != nil {
		s.Objects.Enumerated += c.Objects
		s.Objects.Bytes += c.Bytes
		s.Objects.Deleted += c.Deleted
		s.Objects.DeleteFailed += c.DeleteFailed
		s.Objects.Residual += c.Residual
		s.Assets.Skipped += len(c.Skipped)
		for _, key := range c.SampleKeys {
			s.SampleKeys.add(Example{Item: res.ItemID, Detail: key})
		}
		if c.Preserved() {
			s.Failures.add(Example{Item: res.ItemID, Detail: fmt.Sprintf("skipped, %d residual objects", c.Residual)})
		}
	}
	if st := res.Stats; st != nil {
		s.recordStats(res.ItemID, st)
	}
}

func (s *Summary) recordSync(res *ItemResult) {
	s.Assets.Skipped += len(res.Sync.Skipped)
	for _, a := range res.Sync.Assets {
		switch a.Status {
		case metasync.AssetUpdated:
			s.Assets.Updated++
			s.Corrections.add(Example{Item: res.ItemID, Asset: a.Asset, Detail: "storage:refs=" + a.Ref + " objects=" + a.Observed.String()})
		case metasync.AssetAdded:
			s.Assets.Added++
			s.Corrections.add(Example{Item: res.ItemID, Asset: a.Asset, Detail: "added s3 alternate, storage:refs=" + a.Ref})
		case metasync.AssetUnchanged:
			s.Assets.Unchanged++
		case metasync.AssetIgnored:
			s.Assets.Ignored++
			continue
		case metasync.AssetFailed:
			s.Assets.Failed++
			s.Failures.add(Example{Item: res.ItemID, Asset: a.Asset, Detail: a.Err.Error()})
			continue
		}

		s.Objects.Enumerated += a.Objects
		s.Observed.Add(a.Observed.Clone())
		s.Recorded.Add(a.Recorded.Clone())
		if a.Mismatch != nil {
			s.Mismatches.add(Example{
				Item:   res.ItemID,
				Asset:  a.Asset,
				Detail: fmt.Sprintf("observed=%s recorded=%s", a.Mismatch.Observed, a.Mismatch.Recorded),
			})
		}
	}
}

func (s *Summary) recordStats(itemID string, st *ItemStats) {
	s.Objects.Enumerated += st.Objects
	s.Objects.Bytes += st.Bytes
	s.Assets.Skipped += len(st.Skipped)
	for _, a := range st.Assets {
		if a.Error != "" {
			s.Assets.Failed++
			continue
		}
		s.Observed.Add(a.Observed.Clone())
		s.Recorded.Add(a.Recorded.Clone())
		if !a.InSync {
			s.Mismatches.add(Example{
				Item:   itemID,
				Asset:  a.Asset,
				Detail: fmt.Sprintf("observed=%s recorded=%s", a.Observed, a.Recorded),
			})
		}
	}
	if len(s.Details) < s.Mismatches.max {
		s.Details = append(s.Details, &ItemReport{Item: itemID, Stats: st})
	}
}

// finish stamps the end of the run and extrapolates a sampled run to the total number of items.
func (s *Summary) finish(total int, sampled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FinishedAt = time.Now().UTC()
	slices.Sort(s.FailedItems)
	slices.Sort(s.PreservedItems)
	if !sampled {
		return
	}

	est := &Estimate{
		TotalItems:   total,
		SampledItems: s.Items.Processed,
	}
	if s.Items.Processed > 0 {
		est.Objects = int64(s.Objects.Enumerated) * int64(total) / int64(s.Items.Processed)
		est.Bytes = int64(float64(s.Objects.Bytes) / float64(s.Items.Processed) * float64(total))
	}
	s.Estimate = est
}

// HasProblems reports whether any item failed or was preserved.
func (s *Summary) HasProblems() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Items.Failed > 0 || s.Items.Preserved > 0 || s.Interrupted
}
