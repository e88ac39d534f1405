package tier_test

import (
	"iter"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/tiersync/storage/objects"
	"github.com/hedisam/tiersync/storage/tier"
)

func TestClassifier_Classify(t *testing.T) {
	tests := map[string]struct {
		class    string
		strict   bool
		expected tier.Tier
		errIs    error
	}{
		"absent class is standard":    {class: "", expected: tier.Standard},
		"standard":                    {class: "STANDARD", expected: tier.Standard},
		"express one zone":            {class: "EXPRESS_ONEZONE", expected: tier.Performance},
		"infrequent access":           {class: "STANDARD_IA", expected: tier.Archive},
		"glacier":                     {class: "GLACIER", expected: tier.Archive},
		"deep archive":                {class: "DEEP_ARCHIVE", expected: tier.Archive},
		"lower case":                  {class: "standard_ia", expected: tier.Archive},
		"canonical name":              {class: "ARCHIVE", expected: tier.Archive},
		"unknown class in lenient":    {class: "HOT_SAUCE", expected: tier.Standard},
		"unknown class in strict":     {class: "HOT_SAUCE", strict: true, errIs: tier.ErrUnknownStorageClass},
		"known class in strict still": {class: "GLACIER_IR", strict: true, expected: tier.Archive},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := tier.NewClassifier(logrus.New(), tc.strict)
			got, err := c.Classify(tc.class)
			if tc.errIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestDistribution_Kind(t *testing.T) {
	tests := map[string]struct {
		d        tier.Distribution
		expected tier.Kind
	}{
		"nil":                 {d: nil, expected: tier.Empty},
		"only zeros":          {d: tier.Distribution{tier.Standard: 0, tier.Archive: 0}, expected: tier.Empty},
		"one tier":            {d: tier.Distribution{tier.Archive: 3}, expected: tier.Uniform},
		"one tier with zeros": {d: tier.Distribution{tier.Archive: 3, tier.Standard: 0}, expected: tier.Uniform},
		"two tiers":           {d: tier.Distribution{tier.Standard: 700, tier.Archive: 300}, expected: tier.Mixed},
		"three tiers":         {d: tier.Distribution{tier.Standard: 1, tier.Archive: 1, tier.Performance: 1}, expected: tier.Mixed},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.d.Kind())
		})
	}
}

func TestDistribution_KindMatchesNonzeroTiers(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		d := make(tier.Distribution)
		var nonzero int
		for _, tr := range tier.All {
			n := r.IntN(3)
			d[tr] = n
			if n > 0 {
				nonzero++
			}
		}
		assert.Equal(t, nonzero == 1, d.Kind() == tier.Uniform, d.String())
		assert.Equal(t, nonzero > 1, d.Kind() == tier.Mixed, d.String())
	}
}

func TestDistribution_Equal(t *testing.T) {
	assert.True(t, tier.Distribution{tier.Standard: 2}.Equal(tier.Distribution{tier.Standard: 2, tier.Archive: 0}))
	assert.True(t, tier.Distribution{}.Equal(nil))
	assert.False(t, tier.Distribution{tier.Standard: 2}.Equal(tier.Distribution{tier.Standard: 3}))
	assert.False(t,
		tier.Distribution{tier.Standard: 1, tier.Archive: 2}.Equal(tier.Distribution{tier.Standard: 2, tier.Archive: 1}),
		"two mixed distributions with different counts differ",
	)
}

func TestClassifier_Aggregate(t *testing.T) {
	var records []objects.Record
	for i := range 700 {
		records = append(records, objects.Record{Key: string(rune('a' + i%26)), Size: 2, StorageClass: "STANDARD"})
	}
	for range 300 {
		records = append(records, objects.Record{Key: "z", Size: 1, StorageClass: "STANDARD_IA"})
	}

	c := tier.NewClassifier(logrus.New(), false)
	stats, err := c.Aggregate(seqOf(records))
	require.NoError(t, err)
	assert.Equal(t, tier.Distribution{tier.Standard: 700, tier.Archive: 300}, stats.Distribution)
	assert.Equal(t, 1000, stats.Objects)
	assert.EqualValues(t, 1700, stats.Bytes)
	assert.Equal(t, stats.Objects, stats.Distribution.Total())

	shuffled := slices.Clone(records)
	rand.New(rand.NewPCG(3, 4)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	again, err := c.Aggregate(seqOf(shuffled))
	require.NoError(t, err)
	assert.True(t, stats.Distribution.Equal(again.Distribution))
}

func TestClassifier_AggregateError(t *testing.T) {
	c := tier.NewClassifier(logrus.New(), false)
	_, err := c.Aggregate(func(yield func(objects.Record, error) bool) {
		yield(objects.Record{}, objects.ErrAccessDenied)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, objects.ErrAccessDenied)
}

func TestClassifier_Distribution(t *testing.T) {
	c := tier.NewClassifier(logrus.New(), false)
	d, err := c.Distribution(map[string]int{"STANDARD": 450, "STANDARD_IA": 600, "GLACIER": 8})
	require.NoError(t, err)
	assert.Equal(t, tier.Distribution{tier.Standard: 450, tier.Archive: 608}, d)
}

func TestSchemeTable(t *testing.T) {
	table, err := tier.NewSchemeTable(tier.DefaultSchemeConfig("https://s3.de.example.net/", "bucket", "de"))
	require.NoError(t, err)

	ref, ok := table.RefFor(tier.Of(tier.Archive, 5))
	require.True(t, ok)
	assert.Equal(t, "glacier", ref)

	ref, ok = table.RefFor(tier.Distribution{tier.Standard: 1, tier.Performance: 2})
	require.True(t, ok)
	assert.Equal(t, "mixed", ref)

	_, ok = table.RefFor(nil)
	assert.False(t, ok)

	tr, ok := table.TierOf("performance")
	require.True(t, ok)
	assert.Equal(t, tier.Performance, tr)
	_, ok = table.TierOf("mixed")
	assert.False(t, ok)

	assert.Equal(t,
		map[string]int{"STANDARD": 450, "STANDARD_IA": 608},
		table.Encode(tier.Distribution{tier.Standard: 450, tier.Archive: 608, tier.Performance: 0}),
	)

	mixed, ok := table.Lookup("mixed")
	require.True(t, ok)
	assert.Equal(t, tier.MixedStorageClass, mixed.StorageClass)
	assert.Equal(t, "de", mixed.Region)
}

func TestNewSchemeTable_Invalid(t *testing.T) {
	tests := map[string]struct {
		mutate      func(cfg *tier.SchemeConfig)
		errContains string
	}{
		"missing platform": {
			mutate:      func(cfg *tier.SchemeConfig) { cfg.Platform = "" },
			errContains: "platform is required",
		},
		"missing storage class": {
			mutate:      func(cfg *tier.SchemeConfig) { delete(cfg.StorageClasses, tier.Archive) },
			errContains: "no storage class configured for tier ARCHIVE",
		},
		"storage class of another tier": {
			mutate:      func(cfg *tier.SchemeConfig) { cfg.StorageClasses[tier.Performance] = "GLACIER" },
			errContains: `storage class "GLACIER" does not belong to tier PERFORMANCE`,
		},
		"duplicate key": {
			mutate:      func(cfg *tier.SchemeConfig) { cfg.Keys[tier.Archive] = "standard" },
			errContains: "used more than once",
		},
		"key clashes with mixed": {
			mutate:      func(cfg *tier.SchemeConfig) { cfg.Keys[tier.Archive] = "mixed" },
			errContains: "used more than once",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := tier.DefaultSchemeConfig("https://s3.example/", "bucket", "de")
			tc.mutate(&cfg)
			_, err := tier.NewSchemeTable(cfg)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.errContains)
		})
	}
}

func seqOf(records []objects.Record) iter.Seq2[objects.Record, error] {
	return func(yield func(objects.Record, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
