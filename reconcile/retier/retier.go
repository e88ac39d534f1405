// Package retier changes the storage class of the objects backing an asset.
package retier

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hedisam/pipeline"
	"github.com/hedisam/pipeline/stage"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/lib/retry"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/tier"
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure . Store

// Store changes the storage class of a single object in place.
type Store interface {
	SetStorageClass(ctx context.Context, bucket, key, storageClass string) error
}

// Plan is the set of objects of one dataset split by what a tier change has to do with them.
type Plan struct {
	Location     objects.Location
	Target       tier.Tier
	StorageClass string
	// Change holds the objects whose tier differs from the target.
	Change          []objects.Record
	AlreadyAtTarget []objects.Record
	// Excluded holds the objects rejected by the filter.
	Excluded []objects.Record
}

// Skipped is the number of objects left untouched.
func (p *Plan) Skipped() int {
	return len(p.AlreadyAtTarget) + len(p.Excluded)
}

// Result counts what applying a plan did.
type Result struct {
	Changed    int
	Skipped    int
	Failed     int
	FailedKeys []string
	DryRun     bool
}

type Mutator struct {
	logger     *logrus.Logger
	enumerator *objects.Enumerator
	store      Store
	classifier *tier.Classifier
	schemes    *tier.SchemeTable
	policy     retry.Policy
	workers    uint
}

func NewMutator(
	logger *logrus.Logger,
	enumerator *objects.Enumerator,
	store Store,
	classifier *tier.Classifier,
	schemes *tier.SchemeTable,
	policy retry.Policy,
	workers uint,
) *Mutator {
	if policy.Retryable == nil {
		policy.Retryable = objects.IsRetryable
	}

	return &Mutator{
		logger:     logger,
		enumerator: enumerator,
		store:      store,
		classifier: classifier,
		schemes:    schemes,
		policy:     policy,
		workers:    max(workers, 1),
	}
}

// Plan enumerates the whole dataset loc belongs to and decides, per object, whether it needs to move to target.
// Filter patterns apply to keys relative to the dataset root; for a single object that is its file name.
func (m *Mutator) Plan(ctx context.Context, loc objects.Location, target tier.Tier, filter *Filter) (*Plan, error) {
	root := objects.RootLocation(loc)
	_, base := objects.Scope(root)
	if _, single := root.(objects.SingleObjectRef); single {
		base = path.Dir(base) + "/"
	}

	p := &Plan{
		Location:     root,
		Target:       target,
		StorageClass: m.schemes.StorageClass(target),
	}
	for rec, err := range m.enumerator.Objects(ctx, root) {
		if err != nil {
			return nil, err
		}

		rel := strings.TrimPrefix(rec.Key, base)
		if !filter.Match(rel) {
			p.Excluded = append(p.Excluded, rec)
			continue
		}

		current, err := m.classifier.Classify(rec.StorageClass)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", rec.Key, err)
		}
		if current == target {
			p.AlreadyAtTarget = append(p.AlreadyAtTarget, rec)
			continue
		}
		p.Change = append(p.Change, rec)
	}

	m.logger.WithContext(ctx).WithFields(logrus.Fields{
		"location":  root.URL(),
		"target":    target,
		"to_change": len(p.Change),
		"at_target": len(p.AlreadyAtTarget),
		"excluded":  len(p.Excluded),
	}).Debug("Planned tier change")

	return p, nil
}

// Apply issues one storage class change per object in plan.Change. Per object failures are counted, the returned
// error is only set when ctx is done.
func (m *Mutator) Apply(ctx context.Context, plan *Plan, dryRun bool) (*Result, error) {
	res := &Result{
		Skipped: plan.Skipped(),
		DryRun:  dryRun,
	}
	if dryRun {
		res.Changed = len(plan.Change)
		return res, nil
	}
	if len(plan.Change) == 0 {
		return res, nil
	}

	data := make([]any, 0, len(plan.Change))
	for rec := range slices.Values(plan.Change) {
		data = append(data, rec)
	}

	ws := &workerStage{
		logger:       m.logger,
		store:        m.store,
		policy:       m.policy,
		storageClass: plan.StorageClass,
		result:       res,
	}
	workers := min(m.workers, uint(len(data)))
	p := pipeline.NewPipeline(pipeline.SeqSource(slices.Values(data)), ws.sink)
	err := p.Run(ctx, stage.WorkerPoolRunner(workers, ws.worker))
	if err != nil {
		return res, fmt.Errorf("run tier change pipeline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	return res, nil
}

type change struct {
	rec objects.Record
	err error
}

type workerStage struct {
	logger       *logrus.Logger
	store        Store
	policy       retry.Policy
	storageClass string

	mu     sync.Mutex
	result *Result
}

func (s *workerStage) worker(ctx context.Context, payload any) (out any, drop bool, err error) {
	rec, ok := payload.(objects.Record)
	if !ok {
		return nil, false, fmt.Errorf("unknown payload type: %T", payload)
	}

	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.store.SetStorageClass(ctx, rec.Bucket, rec.Key, s.storageClass)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"bucket": rec.Bucket,
			"key":    rec.Key,
		}).Warn("Failed to change storage class")
	}

	return &change{rec: rec, err: err}, false, nil
}

func (s *workerStage) sink(_ context.Context, payload any) error {
	c, ok := payload.(*change)
	if !ok {
		return fmt.Errorf("invalid payload received by tier change sink: %T", payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.err != nil {
		s.result.Failed++
		s.result.FailedKeys = append(s.result.FailedKeys, c.rec.Key)
		return nil
	}
	s.result.Changed++

	return nil
}
