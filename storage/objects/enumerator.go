package objects

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/lib/retry"
)

// QueryError is yielded by the Enumerator when a location could not be listed or probed, even after retrying.
type QueryError struct {
	Bucket string
	Prefix string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("could not query s3://%s/%s: %v", e.Bucket, e.Prefix, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Enumerator lists the objects behind a Location.
type Enumerator struct {
	logger *logrus.Logger
	store  Store
	policy retry.Policy
}

func NewEnumerator(logger *logrus.Logger, store Store, policy retry.Policy) *Enumerator {
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}

	return &Enumerator{
		logger: logger,
		store:  store,
		policy: policy,
	}
}

// Objects returns a lazy sequence of every object at loc. Ranging over the sequence again starts a fresh listing.
// A failure is yielded once as a *QueryError, after which the sequence ends.
func (e *Enumerator) Objects(ctx context.Context, loc Location) iter.Seq2[Record, error] {
	switch l := loc.(type) {
	case SingleObjectRef:
		return e.probe(ctx, l.Bucket, l.Key)
	case ContainerRef:
		return e.list(ctx, l.Bucket, l.Prefix)
	default:
		return func(yield func(Record, error) bool) {
			yield(Record{}, fmt.Errorf("%w: unsupported location type %T", ErrMalformedReference, loc))
		}
	}
}

// Collect drains the sequence for loc into a slice.
func (e *Enumerator) Collect(ctx context.Context, loc Location) ([]Record, error) {
	var records []Record
	for rec, err := range e.Objects(ctx, loc) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// Count returns the number of objects currently at loc.
func (e *Enumerator) Count(ctx context.Context, loc Location) (int, error) {
	var n int
	for _, err := range e.Objects(ctx, loc) {
		if err != nil {
			return 0, err
		}
		n++
	}

	return n, nil
}

func (e *Enumerator) list(ctx context.Context, bucket, prefix string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		logger := e.logger.WithContext(ctx).WithFields(logrus.Fields{
			"bucket": bucket,
			"prefix": prefix,
		})

		var token string
		var pages, total int
		for {
			page, err := retry.Value(ctx, e.policy, func(ctx context.Context) (*Page, error) {
				return e.store.List(ctx, bucket, prefix, token)
			})
			if err != nil {
				logger.WithError(err).Warn("Failed to list objects")
				yield(Record{}, &QueryError{Bucket: bucket, Prefix: prefix, Err: err})
				return
			}
			pages++

			for _, rec := range page.Records {
				total++
				if !yield(rec, nil) {
					return
				}
			}

			if page.NextToken == "" {
				logger.WithFields(logrus.Fields{
					"pages":   pages,
					"objects": total,
				}).Debug("Listed objects")
				return
			}
			token = page.NextToken
		}
	}
}

func (e *Enumerator) probe(ctx context.Context, bucket, key string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rec, err := retry.Value(ctx, e.policy, func(ctx context.Context) (*Record, error) {
			return e.store.Head(ctx, bucket, key)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return
			}
			e.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
				"bucket": bucket,
				"key":    key,
			}).Warn("Failed to probe object")
			yield(Record{}, &QueryError{Bucket: bucket, Prefix: key, Err: err})
			return
		}

		yield(*rec, nil)
	}
}
