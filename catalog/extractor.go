package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/storage/objects"
)

// Source tells where an asset's storage location was found.
type Source int

const (
	SourceAlternate Source = iota
	SourcePrimary
)

func (s Source) String() string {
	if s == SourceAlternate {
		return "alternate"
	}
	return "href"
}

// Recorded is the tier metadata stored on an asset's s3 alternate.
type Recorded struct {
	Refs []string
	// Distribution is keyed by provider storage class, as recorded. Nil when absent.
	Distribution map[string]int
}

// AssetRef is an asset resolved to its object storage location.
type AssetRef struct {
	Name     string
	Location objects.Location
	Source   Source
	// Recorded is nil when the asset has no s3 alternate.
	Recorded *Recorded
}

// Extraction is the result of resolving all assets of an item.
type Extraction struct {
	Refs []AssetRef
	// Skipped lists the assets without a usable storage location.
	Skipped []string
}

// Locations returns the distinct dataset locations of the item, widened to their store roots. A location lying
// inside another container location is left out, so no object is covered twice.
func (e *Extraction) Locations() []objects.Location {
	seen := make(map[string]struct{}, len(e.Refs))
	var locs []objects.Location
	for _, ref := range e.Refs {
		bucket, prefix := objects.Scope(ref.Location)
		id := bucket + "/" + prefix
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		locs = append(locs, objects.RootLocation(ref.Location))
	}

	out := make([]objects.Location, 0, len(locs))
	for i, loc := range locs {
		if !nested(locs, i) {
			out = append(out, loc)
		}
	}
	return out
}

func nested(locs []objects.Location, i int) bool {
	bucket, key := objects.Scope(locs[i])
	for j, other := range locs {
		c, ok := other.(objects.ContainerRef)
		if j == i || !ok || c.Bucket != bucket {
			continue
		}
		if key != c.Root && strings.HasPrefix(key, c.Root) {
			return true
		}
	}
	return false
}

// HrefResolver maps asset hrefs onto s3:// URLs.
type HrefResolver struct {
	gatewayHost string
}

// NewHrefResolver accepts the public gateway base URL serving the bucket contents over https. It may be empty.
func NewHrefResolver(gatewayURL string) (*HrefResolver, error) {
	r := &HrefResolver{}
	if gatewayURL == "" {
		return r, nil
	}

	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse gateway url: %w", err)
	}
	r.gatewayHost = u.Host

	return r, nil
}

// S3URL converts href to an s3:// URL. Gateway URLs (https://gateway/bucket/key) and virtual hosted URLs
// (https://bucket.s3.endpoint/key) are converted, s3:// URLs are returned unchanged.
func (r *HrefResolver) S3URL(href string) (string, bool) {
	if strings.HasPrefix(href, "s3://") {
		return href, true
	}
	if !strings.HasPrefix(href, "https://") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return "", false
	}

	if r.gatewayHost != "" && u.Host == r.gatewayHost {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" || key == "" {
			return "", false
		}
		return "s3://" + bucket + "/" + key, true
	}

	if bucket, _, ok := strings.Cut(u.Host, ".s3."); ok && bucket != "" {
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return "", false
		}
		return "s3://" + bucket + "/" + key, true
	}

	return "", false
}

// Extractor resolves item assets to storage locations. It never fails: assets without a usable location are
// reported as skipped.
type Extractor struct {
	logger   *logrus.Logger
	resolver *HrefResolver
}

func NewExtractor(logger *logrus.Logger, resolver *HrefResolver) *Extractor {
	if resolver == nil {
		resolver = &HrefResolver{}
	}

	return &Extractor{
		logger:   logger,
		resolver: resolver,
	}
}

func (e *Extractor) Extract(ctx context.Context, item *Item) *Extraction {
	logger := e.logger.WithContext(ctx).WithField("item_id", item.ID)

	out := &Extraction{}
	for _, name := range item.AssetNames() {
		asset := item.Assets[name]
		if asset == nil || asset.HasRole(ThumbnailRole) {
			continue
		}

		var recorded *Recorded
		alt, hasAlt := asset.S3Alternate()
		if hasAlt {
			recorded = &Recorded{
				Refs:         alt.Refs,
				Distribution: alt.Distribution,
			}
			if strings.HasPrefix(alt.Href, "s3://") {
				loc, err := objects.ClassifyURL(alt.Href)
				if err == nil {
					out.Refs = append(out.Refs, AssetRef{
						Name:     name,
						Location: loc,
						Source:   SourceAlternate,
						Recorded: recorded,
					})
					continue
				}
				logger.WithError(err).WithField("asset", name).Debug("Malformed alternate href, falling back to asset href")
			}
		}

		if s3URL, ok := e.resolver.S3URL(asset.Href); ok {
			loc, err := objects.ClassifyURL(s3URL)
			if err == nil {
				out.Refs = append(out.Refs, AssetRef{
					Name:     name,
					Location: loc,
					Source:   SourcePrimary,
					Recorded: recorded,
				})
				continue
			}
		}

		logger.WithFields(logrus.Fields{
			"asset": name,
			"href":  asset.Href,
		}).Warn("Asset has no object storage location, skipping")
		out.Skipped = append(out.Skipped, name)
	}

	return out
}
