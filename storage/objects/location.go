package objects

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const zarrStoreSuffix = ".zarr"

// Location is where an asset's data lives in object storage. It is either a SingleObjectRef or a ContainerRef.
type Location interface {
	// BucketName returns the bucket holding the data.
	BucketName() string
	// URL renders the location as an s3:// URL.
	URL() string
	isLocation()
}

// SingleObjectRef points at exactly one object.
type SingleObjectRef struct {
	Bucket string
	Key    string
}

func (r SingleObjectRef) BucketName() string { return r.Bucket }
func (r SingleObjectRef) URL() string        { return "s3://" + r.Bucket + "/" + r.Key }
func (SingleObjectRef) isLocation()          {}

// ContainerRef points at every object under a prefix. Root is the prefix of the enclosing dataset store
// (for example the ".zarr/" directory) and equals Prefix when the prefix is not nested inside a store.
type ContainerRef struct {
	Bucket string
	Prefix string
	Root   string
}

func (r ContainerRef) BucketName() string { return r.Bucket }
func (r ContainerRef) URL() string        { return "s3://" + r.Bucket + "/" + strings.TrimSuffix(r.Prefix, "/") }
func (ContainerRef) isLocation()          {}

// ParseS3URL splits an s3://bucket/key URL into its bucket and key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", ErrMalformedReference, raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q is not an s3 url", ErrMalformedReference, raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket or key", ErrMalformedReference, raw)
	}

	return u.Host, key, nil
}

// Classify turns a bucket and key into a Location.
// Keys inside a zarr store, keys ending with "/" or ".zarr", and keys whose last segment has no extension are
// containers. Anything else is a single object.
func Classify(bucket, key string) Location {
	if idx := strings.Index(key, zarrStoreSuffix+"/"); idx >= 0 {
		root := key[:idx+len(zarrStoreSuffix)+1]
		return ContainerRef{
			Bucket: bucket,
			Prefix: asPrefix(key),
			Root:   root,
		}
	}

	trimmed := strings.TrimSuffix(key, "/")
	if strings.HasSuffix(key, "/") || strings.HasSuffix(trimmed, zarrStoreSuffix) || path.Ext(trimmed) == "" {
		prefix := asPrefix(key)
		return ContainerRef{
			Bucket: bucket,
			Prefix: prefix,
			Root:   prefix,
		}
	}

	return SingleObjectRef{
		Bucket: bucket,
		Key:    key,
	}
}

// ClassifyURL parses an s3:// URL and classifies it.
func ClassifyURL(raw string) (Location, error) {
	bucket, key, err := ParseS3URL(raw)
	if err != nil {
		return nil, err
	}

	return Classify(bucket, key), nil
}

// Scope returns the bucket and key or prefix that covers all data of the location, widened to the dataset root for
// containers nested inside a store.
func Scope(loc Location) (bucket, prefix string) {
	switch l := loc.(type) {
	case SingleObjectRef:
		return l.Bucket, l.Key
	case ContainerRef:
		return l.Bucket, l.Root
	default:
		panic(fmt.Sprintf("unknown location type %T", loc))
	}
}

// RootLocation returns the location covering the whole dataset store the given location belongs to.
func RootLocation(loc Location) Location {
	if c, ok := loc.(ContainerRef); ok {
		return ContainerRef{
			Bucket: c.Bucket,
			Prefix: c.Root,
			Root:   c.Root,
		}
	}
	return loc
}

func asPrefix(key string) string {
	if strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}
