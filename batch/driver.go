package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/pipeline"
	"github.com/hedisam/pipeline/stage"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/journal"
	"github.com/hedisam/tiersync/lib/retry"
)

// Journal records the outcome of every item.
type Journal interface {
	Append(entry journal.Entry) error
}

// Observer is told about every processed item, for metrics.
type Observer interface {
	ItemDone(operation string, status journal.Status, elapsed time.Duration)
	ObjectsDone(operation, outcome string, n int)
}

// Request selects the items of a batch. Without ItemIDs the whole collection is listed. A positive Sample processes
// only the first Sample items and extrapolates the summary to the collection.
type Request struct {
	Collection string
	ItemIDs    []string
	Sample     int
	DryRun     bool
}

type Driver struct {
	logger      *logrus.Logger
	reader      ItemReader
	policy      retry.Policy
	workers     uint
	journal     Journal
	observer    Observer
	maxExamples int
	runID       string
}

type Option func(d *Driver)

func WithWorkers(n uint) Option {
	return func(d *Driver) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithJournal(j Journal) Option {
	return func(d *Driver) {
		d.journal = j
	}
}

func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

func WithMaxExamples(n int) Option {
	return func(d *Driver) {
		d.maxExamples = n
	}
}

func WithRunID(id string) Option {
	return func(d *Driver) {
		d.runID = id
	}
}

func NewDriver(logger *logrus.Logger, reader ItemReader, policy retry.Policy, opts ...Option) *Driver {
	d := &Driver{
		logger:      logger,
		reader:      reader,
		policy:      policy,
		workers:     1,
		maxExamples: DefaultMaxExamples,
	}
	for opt := range slices.Values(opts) {
		opt(d)
	}
	if d.policy.Retryable == nil {
		d.policy.Retryable = catalog.IsRetryable
	}
	if d.runID == "" {
		d.runID = NewRunID()
	}

	return d
}

// NewRunID returns a time ordered run id.
func NewRunID() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// Run applies op to every requested item. Failures of single items never stop the batch: they are recorded in the
// summary. The returned error is set when the collection could not be listed or ctx was cancelled, in which case the
// summary covers the items processed so far.
func (d *Driver) Run(ctx context.Context, req Request, op Operation) (*Summary, error) {
	logger := d.logger.WithContext(ctx).WithFields(logrus.Fields{
		"run_id":     d.runID,
		"operation":  op.Name(),
		"collection": req.Collection,
	})
	summary := NewSummary(d.runID, op.Name(), req.Collection, req.DryRun, d.maxExamples)

	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	remover, ok := op.(ItemRemover)
	snapshot := ok && remover.RemovesItems()
	src := newItemSource(srcCtx, d.logger, d.reader, d.policy, req.Collection, req.ItemIDs, req.Sample, snapshot)

	ps := &processStage{
		logger:     d.logger,
		op:         op,
		collection: req.Collection,
		journal:    d.journal,
		observer:   d.observer,
		summary:    summary,
	}
	logger.WithField("workers", d.workers).Info("Starting batch")
	p := pipeline.NewPipeline(src, ps.sink)
	runErr := p.Run(srcCtx, stage.WorkerPoolRunner(d.workers, ps.process))

	summary.finish(src.Seen(), req.Sample > 0)
	if err := ctx.Err(); err != nil {
		summary.Interrupted = true
		logger.WithField("processed", summary.Items.Processed).Warn("Batch interrupted")
		return summary, fmt.Errorf("batch interrupted: %w", err)
	}
	if runErr != nil {
		summary.Interrupted = true
		return summary, fmt.Errorf("run batch pipeline: %w", runErr)
	}

	logger.WithFields(logrus.Fields{
		"processed": summary.Items.Processed,
		"failed":    summary.Items.Failed,
		"preserved": summary.Items.Preserved,
	}).Info("Batch finished")

	return summary, nil
}

type processStage struct {
	logger     *logrus.Logger
	op         Operation
	collection string
	journal    Journal
	observer   Observer
	summary    *Summary
}

// process never returns an error: a failed item must not abort the pipeline.
func (s *processStage) process(ctx context.Context, payload any) (out any, drop bool, err error) {
	w, ok := payload.(*work)
	if !ok {
		return nil, false, fmt.Errorf("unknown payload type: %T", payload)
	}
	// items still queued when the batch is cancelled are left alone
	if ctx.Err() != nil {
		return nil, true, nil
	}

	start := time.Now()
	var res *ItemResult
	if w.err != nil {
		res = &ItemResult{
			ItemID: w.id,
			Status: journal.StatusFailed,
			Err:    w.err,
		}
	} else {
		res = s.op.Process(ctx, w.item)
	}
	if s.observer != nil {
		s.observe(res, time.Since(start))
	}

	return res, false, nil
}

func (s *processStage) observe(res *ItemResult, elapsed time.Duration) {
	name := s.op.Name()
	s.observer.ItemDone(name, res.Status, elapsed)
	if c := res.Clean; c != nil {
		s.observer.ObjectsDone(name, "enumerated", c.Objects)
		s.observer.ObjectsDone(name, "deleted", c.Deleted)
		s.observer.ObjectsDone(name, "delete_failed", c.DeleteFailed)
	}
	if tc := res.TierChange; tc != nil {
		s.observer.ObjectsDone(name, "tier_changed", tc.Changed)
		s.observer.ObjectsDone(name, "tier_failed", tc.Failed)
	}
	if st := res.Stats; st != nil {
		s.observer.ObjectsDone(name, "enumerated", st.Objects)
	}
	if sy := res.Sync; sy != nil {
		var n int
		for _, a := range sy.Assets {
			n += a.Objects
		}
		s.observer.ObjectsDone(name, "enumerated", n)
	}
}

func (s *processStage) sink(ctx context.Context, out any) error {
	res, ok := out.(*ItemResult)
	if !ok {
		return fmt.Errorf("invalid item result received by batch sink: %T", out)
	}

	s.summary.Record(res)

	logger := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"item_id": res.ItemID,
		"status":  res.Status,
	})
	if res.Err != nil {
		logger.WithError(res.Err).Warn("Item not processed cleanly")
	} else {
		logger.WithField("detail", res.Detail()).Debug("Item processed")
	}

	if s.journal == nil {
		return nil
	}
	err := s.journal.Append(journal.Entry{
		Operation:  s.op.Name(),
		Collection: s.collection,
		ItemID:     res.ItemID,
		Status:     res.Status,
		Detail:     res.Detail(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Failed to append item outcome to the journal")
	}

	return nil
}
