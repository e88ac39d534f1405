package tier

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/tiersync/storage/objects"
)

var ErrUnknownStorageClass = errors.New("unknown storage class")

// providerClasses maps provider storage class names to canonical tiers. An absent class means STANDARD.
var providerClasses = map[string]Tier{
	"":                   Standard,
	"STANDARD":           Standard,
	"REDUCED_REDUNDANCY": Standard,
	"EXPRESS_ONEZONE":    Performance,
	"PERFORMANCE":        Performance,
	"STANDARD_IA":        Archive,
	"ONEZONE_IA":         Archive,
	"GLACIER":            Archive,
	"GLACIER_IR":         Archive,
	"DEEP_ARCHIVE":       Archive,
	"ARCHIVE":            Archive,
}

// Classifier maps provider storage classes to canonical tiers.
type Classifier struct {
	logger *logrus.Logger
	strict bool
	warned sync.Map
}

// NewClassifier returns a Classifier. In strict mode unknown storage classes are an error, otherwise they are
// treated as STANDARD and reported once with a warning.
func NewClassifier(logger *logrus.Logger, strict bool) *Classifier {
	return &Classifier{
		logger: logger,
		strict: strict,
	}
}

func (c *Classifier) Classify(storageClass string) (Tier, error) {
	normalized := strings.ToUpper(strings.TrimSpace(storageClass))
	if t, ok := providerClasses[normalized]; ok {
		return t, nil
	}

	if c.strict {
		return "", fmt.Errorf("%w: %q", ErrUnknownStorageClass, storageClass)
	}
	if _, loaded := c.warned.LoadOrStore(normalized, struct{}{}); !loaded {
		c.logger.WithField("storage_class", storageClass).Warn("Unknown storage class, counting it as STANDARD")
	}

	return Standard, nil
}

// Stats is the aggregated view of a sequence of objects.
type Stats struct {
	Distribution Distribution
	Objects      int
	Bytes        int64
}

// Aggregate folds the records into a distribution. The first enumeration or classification error aborts the
// aggregation.
func (c *Classifier) Aggregate(records iter.Seq2[objects.Record, error]) (*Stats, error) {
	stats := &Stats{
		Distribution: make(Distribution),
	}
	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		t, err := c.Classify(rec.StorageClass)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", rec.Key, err)
		}
		stats.Distribution[t]++
		stats.Objects++
		stats.Bytes += rec.Size
	}

	return stats, nil
}

// Distribution converts a recorded distribution keyed by provider or canonical class names.
func (c *Classifier) Distribution(recorded map[string]int) (Distribution, error) {
	d := make(Distribution, len(recorded))
	for class, n := range recorded {
		t, err := c.Classify(class)
		if err != nil {
			return nil, err
		}
		d[t] += n
	}

	return d, nil
}
