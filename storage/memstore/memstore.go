package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/hedisam/tiersync/storage/objects"
)

const defaultPageSize = 1000

// Calls counts the calls made against a Store.
type Calls struct {
	List            int
	Head            int
	DeleteObjects   int
	DeletedKeys     int
	SetStorageClass int
}

type object struct {
	size         int64
	storageClass string
}

// Store is an in-memory objects.Store. Failures can be injected per key to simulate provider behaviour.
type Store struct {
	mu       sync.Mutex
	pageSize int
	buckets  map[string]map[string]*object

	listErrs      []error
	deleteFailure map[string]string
	retained      map[string]struct{}
	classFailure  map[string]error
	calls         Calls
}

type Option func(s *Store)

// WithPageSize sets the maximum number of records returned per List call.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		pageSize:      defaultPageSize,
		buckets:       make(map[string]map[string]*object),
		deleteFailure: make(map[string]string),
		retained:      make(map[string]struct{}),
		classFailure:  make(map[string]error),
	}
	for opt := range slices.Values(opts) {
		opt(s)
	}
	return s
}

// Put creates or replaces an object.
func (s *Store) Put(bucket, key string, size int64, storageClass string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]*object)
		s.buckets[bucket] = b
	}
	b[key] = &object{size: size, storageClass: storageClass}
}

// Snapshot returns the storage class of every object in the bucket, keyed by object key.
func (s *Store) Snapshot(bucket string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.buckets[bucket]))
	for k, obj := range s.buckets[bucket] {
		out[k] = obj.storageClass
	}
	return out
}

// FailListing makes the next List calls fail with the given errors, one per call.
func (s *Store) FailListing(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErrs = append(s.listErrs, errs...)
}

// FailDelete makes DeleteObjects report the key as not deleted with the given error code.
func (s *Store) FailDelete(bucket, key, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFailure[bucket+"/"+key] = code
}

// RetainOnDelete makes DeleteObjects report success for the key while keeping the object, the way a retention lock
// or an eventually consistent listing would.
func (s *Store) RetainOnDelete(bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retained[bucket+"/"+key] = struct{}{}
}

// FailStorageClass makes SetStorageClass fail for the key.
func (s *Store) FailStorageClass(bucket, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classFailure[bucket+"/"+key] = err
}

// Calls returns the calls made so far.
func (s *Store) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) List(_ context.Context, bucket, prefix, token string) (*objects.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.List++
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		return nil, err
	}

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket %q: %w", bucket, objects.ErrNotFound)
	}

	keys := slices.Sorted(maps.Keys(b))
	start := 0
	if token != "" {
		start = sort.SearchStrings(keys, token)
		if start < len(keys) && keys[start] == token {
			start++
		}
	}

	page := &objects.Page{}
	for _, k := range keys[start:] {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if len(page.Records) == s.pageSize {
			page.NextToken = page.Records[len(page.Records)-1].Key
			break
		}
		obj := b[k]
		page.Records = append(page.Records, objects.Record{
			Bucket:       bucket,
			Key:          k,
			Size:         obj.size,
			StorageClass: obj.storageClass,
		})
	}

	return page, nil
}

func (s *Store) Head(_ context.Context, bucket, key string) (*objects.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Head++
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, objects.ErrNotFound)
	}

	return &objects.Record{
		Bucket:       bucket,
		Key:          key,
		Size:         obj.size,
		StorageClass: obj.storageClass,
	}, nil
}

func (s *Store) DeleteObjects(_ context.Context, bucket string, keys []string) ([]objects.DeleteFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.DeleteObjects++
	var failures []objects.DeleteFailure
	for _, k := range keys {
		if code, ok := s.deleteFailure[bucket+"/"+k]; ok {
			failures = append(failures, objects.DeleteFailure{Key: k, Code: code, Message: "injected failure"})
			continue
		}
		s.calls.DeletedKeys++
		if _, ok := s.retained[bucket+"/"+k]; ok {
			continue
		}
		delete(s.buckets[bucket], k)
	}

	return failures, nil
}

func (s *Store) SetStorageClass(_ context.Context, bucket, key, storageClass string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.SetStorageClass++
	if err, ok := s.classFailure[bucket+"/"+key]; ok {
		return err
	}
	obj, ok := s.buckets[bucket][key]
	if !ok {
		return fmt.Errorf("s3://%s/%s: %w", bucket, key, objects.ErrNotFound)
	}
	obj.storageClass = storageClass

	return nil
}
