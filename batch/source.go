package batch

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/lib/chans"
	"github.com/hedisam/tiersync/lib/retry"
)

// ItemReader is the read side of the catalog.
type ItemReader interface {
	GetItem(ctx context.Context, collection, id string) (*catalog.Item, error)
	ListItems(ctx context.Context, collection, token string) (*catalog.ItemPage, error)
}

// work is one unit handed to the workers. A work with an error and no item is an item that could not be read.
type work struct {
	id   string
	item *catalog.Item
	err  error
}

// itemSource feeds the pipeline with the items of a collection. Items are fetched by a background goroutine one
// page ahead of the workers.
type itemSource struct {
	ch <-chan *work
	// fatal is set when the collection listing failed and the batch cannot continue.
	fatal atomic.Pointer[error]
	seen  atomic.Int64
}

// newItemSource lists the collection, or fetches ids when given. When limit is positive only the first limit items
// are emitted, but the whole listing is still walked to count the items. With snapshot set the listing is read to
// the end before the first item is emitted, so items removed by the workers cannot shift the pages still to come.
func newItemSource(ctx context.Context, logger *logrus.Logger, reader ItemReader, policy retry.Policy, collection string, ids []string, limit int, snapshot bool) *itemSource {
	ch := make(chan *work)
	s := &itemSource{ch: ch}

	go func() {
		defer close(ch)
		if len(ids) > 0 {
			s.fetch(ctx, reader, policy, collection, ids, limit, ch)
			return
		}
		s.list(ctx, logger, reader, policy, collection, limit, snapshot, ch)
	}()

	return s
}

func (s *itemSource) Next(ctx context.Context) (any, error) {
	w, ok := chans.ReceiveOrDone(ctx, s.ch)
	if !ok {
		if errPtr := s.fatal.Load(); errPtr != nil {
			return nil, *errPtr
		}
		return nil, io.EOF
	}
	return w, nil
}

// Seen is the number of items found in the collection so far.
func (s *itemSource) Seen() int {
	return int(s.seen.Load())
}

func (s *itemSource) fetch(ctx context.Context, reader ItemReader, policy retry.Policy, collection string, ids []string, limit int, ch chan<- *work) {
	for i, id := range unique(ids) {
		s.seen.Add(1)
		if limit > 0 && i >= limit {
			continue
		}
		item, err := retry.Value(ctx, policy, func(ctx context.Context) (*catalog.Item, error) {
			return reader.GetItem(ctx, collection, id)
		})
		if ctx.Err() != nil {
			return
		}
		w := &work{id: id, item: item}
		if err != nil {
			w.item = nil
			w.err = fmt.Errorf("could not read item: %w", err)
		}
		if !chans.SendOrDone(ctx, ch, w) {
			return
		}
	}
}

func (s *itemSource) list(ctx context.Context, logger *logrus.Logger, reader ItemReader, policy retry.Policy, collection string, limit int, snapshot bool, ch chan<- *work) {
	var token string
	var emitted int
	var pending []*catalog.Item
	for {
		page, err := retry.Value(ctx, policy, func(ctx context.Context) (*catalog.ItemPage, error) {
			return reader.ListItems(ctx, collection, token)
		})
		if err != nil {
			if ctx.Err() == nil {
				err = fmt.Errorf("could not list items of collection %q: %w", collection, err)
				s.fatal.Store(&err)
			}
			return
		}

		for _, item := range page.Items {
			if item == nil {
				continue
			}
			s.seen.Add(1)
			if limit > 0 && emitted >= limit {
				continue
			}
			if item.Collection == "" {
				item.Collection = collection
			}
			emitted++
			if snapshot {
				pending = append(pending, item)
				continue
			}
			if !chans.SendOrDone(ctx, ch, &work{id: item.ID, item: item}) {
				return
			}
		}

		if page.NextToken == "" {
			logger.WithContext(ctx).WithFields(logrus.Fields{
				"collection": collection,
				"items":      s.seen.Load(),
				"snapshot":  snapshot,
			}).Debug("Listed collection")
			for _, item := range pending {
				if !chans.SendOrDone(ctx, ch, &work{id: item.ID, item: item}) {
					return
				}
			}
			return
		}
		token = page.NextToken
	}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
