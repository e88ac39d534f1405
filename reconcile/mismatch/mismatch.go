// Package mismatch compares the live tier distribution of an asset with the one recorded in the catalog.
package mismatch

import (
	"fmt"

	"github.com/hedisam/tiersync/catalog"
	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/tier"
)

// Mismatch records an asset whose object counts per tier differ from the catalog.
type Mismatch struct {
	Asset    string            `json:"asset" yaml:"asset"`
	Observed tier.Distribution `json:"observed" yaml:"observed"`
	Recorded tier.Distribution `json:"recorded" yaml:"recorded"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: observed=%s recorded=%s", m.Asset, m.Observed, m.Recorded)
}

// Detect reports a mismatch when any tier count differs. Two mixed distributions with different counts mismatch.
func Detect(asset string, observed, recorded tier.Distribution) (Mismatch, bool) {
	if observed.Equal(recorded) {
		return Mismatch{}, false
	}

	return Mismatch{
		Asset:    asset,
		Observed: observed.Clone(),
		Recorded: recorded.Clone(),
	}, true
}

// RecordedDistribution returns what the catalog records for an asset at loc.
// A recorded distribution is used as is. Without one, a single object asset counts as one object at the tier of its
// first scheme reference, and anything else counts as empty.
func RecordedDistribution(rec *catalog.Recorded, loc objects.Location, classifier *tier.Classifier, schemes *tier.SchemeTable) (tier.Distribution, error) {
	if rec == nil {
		return tier.Distribution{}, nil
	}
	if rec.Distribution != nil {
		d, err := classifier.Distribution(rec.Distribution)
		if err != nil {
			return nil, fmt.Errorf("recorded distribution: %w", err)
		}
		return d, nil
	}

	if _, single := loc.(objects.SingleObjectRef); single && len(rec.Refs) > 0 {
		if t, ok := schemes.TierOf(rec.Refs[0]); ok {
			return tier.Of(t, 1), nil
		}
	}

	return tier.Distribution{}, nil
}
