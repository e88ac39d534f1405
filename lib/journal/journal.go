package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/lib/chans"
)

type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusPreserved Status = "preserved"
	StatusSkipped   Status = "skipped"
	StatusDryRun    Status = "dry-run"
)

// Retry reports whether an item that ended with this status should be processed again.
func (s Status) Retry() bool {
	return s == StatusFailed || s == StatusPreserved
}

// Entry is the outcome of processing one item.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"        yaml:"timestamp"`
	RunID      string    `json:"run_id"           yaml:"run_id"`
	Operation  string    `json:"operation"        yaml:"operation"`
	Collection string    `json:"collection"       yaml:"collection"`
	ItemID     string    `json:"item_id"          yaml:"item_id"`
	Status     Status    `json:"status"           yaml:"status"`
	Detail     string    `json:"detail,omitempty" yaml:"detail,omitempty"`

	Error        string `json:"-" yaml:"-"`
	ErroredBytes []byte `json:"-" yaml:"-"`
}

// Journal is an append-only JSON-lines log of item outcomes. It is safe for concurrent use.
type Journal struct {
	logger *logrus.Logger
	runID  string

	mu        sync.Mutex
	closed    atomic.Bool
	writeFile *os.File
	encoder   *json.Encoder
}

// Open opens (or creates) the journal at path. Every entry appended through it is stamped with runID.
func Open(logger *logrus.Logger, path, runID string) (*Journal, error) {
	wf, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	return &Journal{
		logger:    logger,
		runID:     runID,
		writeFile: wf,
		encoder:   json.NewEncoder(wf),
	}, nil
}

// Append writes the entry as a single line. Timestamp and RunID are set by the journal.
func (j *Journal) Append(entry Entry) error {
	if j.closed.Load() {
		return os.ErrClosed
	}

	entry.Timestamp = time.Now().UTC()
	entry.RunID = j.runID

	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.encoder.Encode(&entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	return nil
}

func (j *Journal) Close() {
	if j.closed.CompareAndSwap(false, true) {
		j.mu.Lock()
		defer j.mu.Unlock()
		_ = j.writeFile.Close()
	}
}

type consumerConfig struct {
	follow bool
}

type Option func(cfg *consumerConfig)

// WithFollow keeps the consumer waiting for new entries at the end of the file, until the context is canceled.
func WithFollow() Option {
	return func(cfg *consumerConfig) {
		cfg.follow = true
	}
}

// Reader consumes a journal written by another process or a previous run.
type Reader struct {
	logger *logrus.Logger

	closed   atomic.Bool
	readFile *os.File
	reader   *bufio.Reader
}

func NewReader(logger *logrus.Logger, path string) (*Reader, error) {
	rf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	return &Reader{
		logger:   logger,
		readFile: rf,
		reader:   bufio.NewReader(rf),
	}, nil
}

// Consume returns a channel that emits the journal entries in order. It is closed at the end of the file, unless
// WithFollow is given.
func (r *Reader) Consume(ctx context.Context, opts ...Option) <-chan *Entry {
	out := make(chan *Entry)

	cfg := &consumerConfig{}
	for opt := range slices.Values(opts) {
		opt(cfg)
	}

	go func() {
		defer close(out)

		var partialData []byte
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := r.reader.ReadBytes('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					// the writer may be in the middle of a line, keep what was read so far
					if len(line) > 0 {
						partialData = append(partialData, line...)
					}
					if !cfg.follow {
						if len(partialData) > 0 {
							r.logger.WithField("bytes", len(partialData)).Warn("Journal ends with an incomplete entry")
						}
						return
					}
					time.Sleep(time.Millisecond * 100)
					continue
				}
				if !errors.Is(err, os.ErrClosed) {
					r.logger.WithError(err).Error("Failed to read from the journal")
				}
				return
			}
			if len(partialData) > 0 {
				line = append(partialData, line...)
				partialData = partialData[:0]
			}

			var entry Entry
			err = json.Unmarshal(line, &entry)
			if err != nil {
				r.logger.WithError(err).Error("Failed to unmarshal journal entry")
				entry = Entry{
					Timestamp:    time.Now().UTC(),
					Error:        err.Error(),
					ErroredBytes: line,
				}
			}

			if !chans.SendOrDone(ctx, out, &entry) {
				return
			}
		}
	}()

	return out
}

func (r *Reader) Close() {
	if r.closed.CompareAndSwap(false, true) {
		_ = r.readFile.Close()
	}
}

// FailedItems returns the items of the collection whose latest outcome in the journal was a failure or a
// preservation, in the order they first appeared.
func FailedItems(ctx context.Context, logger *logrus.Logger, path, collection string) ([]string, error) {
	r, err := NewReader(logger, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	latest := make(map[string]Status)
	var order []string
	var corrupt int
	for entry := range chans.ReceiveOrDoneSeq(ctx, r.Consume(ctx)) {
		if entry.Error != "" {
			corrupt++
			continue
		}
		if entry.Collection != collection || entry.ItemID == "" {
			continue
		}
		if _, ok := latest[entry.ItemID]; !ok {
			order = append(order, entry.ItemID)
		}
		latest[entry.ItemID] = entry.Status
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if corrupt > 0 {
		logger.WithField("entries", corrupt).Warn("Skipped unreadable journal entries")
	}

	var ids []string
	for id := range slices.Values(order) {
		if latest[id].Retry() {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
