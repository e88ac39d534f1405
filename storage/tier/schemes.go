package tier

import (
	"errors"
	"fmt"
)

const (
	// SchemeType is the scheme type written to the item level scheme table.
	SchemeType = "custom-s3"
	// MixedStorageClass is the provider storage class recorded for the mixed scheme.
	MixedStorageClass = "MIXED"
	DefaultMixedKey   = "mixed"
)

// Scheme is a named storage location plus tier, referenced by key from asset metadata.
type Scheme struct {
	Key          string `json:"-"`
	Tier         Tier   `json:"-"`
	Type         string `json:"type"`
	Platform     string `json:"platform"`
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	StorageClass string `json:"storage_class"`
}

// SchemeConfig is the static per-tier configuration a SchemeTable is built from.
type SchemeConfig struct {
	Platform       string
	Bucket         string
	Region         string
	Keys           map[Tier]string
	StorageClasses map[Tier]string
	MixedKey       string
}

// DefaultSchemeConfig returns the scheme keys and provider storage classes used by the catalog.
func DefaultSchemeConfig(platform, bucket, region string) SchemeConfig {
	return SchemeConfig{
		Platform: platform,
		Bucket:   bucket,
		Region:   region,
		Keys: map[Tier]string{
			Standard:    "standard",
			Performance: "performance",
			Archive:     "glacier",
		},
		StorageClasses: map[Tier]string{
			Standard:    "STANDARD",
			Performance: "EXPRESS_ONEZONE",
			Archive:     "STANDARD_IA",
		},
		MixedKey: DefaultMixedKey,
	}
}

// SchemeTable holds one scheme per canonical tier plus the mixed scheme. It is built once per run and is read-only
// afterwards.
type SchemeTable struct {
	byTier map[Tier]Scheme
	byKey  map[string]Scheme
	mixed  Scheme
}

func NewSchemeTable(cfg SchemeConfig) (*SchemeTable, error) {
	if cfg.Platform == "" {
		return nil, errors.New("scheme platform is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("scheme bucket is required")
	}
	mixedKey := cfg.MixedKey
	if mixedKey == "" {
		mixedKey = DefaultMixedKey
	}

	table := &SchemeTable{
		byTier: make(map[Tier]Scheme, len(All)),
		byKey:  make(map[string]Scheme, len(All)+1),
	}
	for _, t := range All {
		key := cfg.Keys[t]
		if key == "" {
			return nil, fmt.Errorf("no scheme key configured for tier %s", t)
		}
		class := cfg.StorageClasses[t]
		if class == "" {
			return nil, fmt.Errorf("no storage class configured for tier %s", t)
		}
		if providerClasses[class] != t {
			return nil, fmt.Errorf("storage class %q does not belong to tier %s", class, t)
		}
		if _, dup := table.byKey[key]; dup || key == mixedKey {
			return nil, fmt.Errorf("scheme key %q is used more than once", key)
		}

		s := Scheme{
			Key:          key,
			Tier:         t,
			Type:         SchemeType,
			Platform:     cfg.Platform,
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			StorageClass: class,
		}
		table.byTier[t] = s
		table.byKey[key] = s
	}

	table.mixed = Scheme{
		Key:          mixedKey,
		Type:         SchemeType,
		Platform:     cfg.Platform,
		Bucket:       cfg.Bucket,
		Region:       cfg.Region,
		StorageClass: MixedStorageClass,
	}
	table.byKey[mixedKey] = table.mixed

	return table, nil
}

func (t *SchemeTable) Lookup(key string) (Scheme, bool) {
	s, ok := t.byKey[key]
	return s, ok
}

// RefFor returns the scheme key describing the distribution: the tier's key when uniform, the mixed key when
// mixed. Empty distributions have no scheme.
func (t *SchemeTable) RefFor(d Distribution) (string, bool) {
	switch d.Kind() {
	case Uniform:
		return t.byTier[d.Tiers()[0]].Key, true
	case Mixed:
		return t.mixed.Key, true
	default:
		return "", false
	}
}

// TierOf returns the tier a scheme key stands for. The mixed key has no single tier.
func (t *SchemeTable) TierOf(key string) (Tier, bool) {
	s, ok := t.byKey[key]
	if !ok || s.Tier == "" {
		return "", false
	}
	return s.Tier, true
}

// StorageClass returns the provider storage class configured for the tier.
func (t *SchemeTable) StorageClass(tier Tier) string {
	return t.byTier[tier].StorageClass
}

// Encode renders a distribution keyed by provider storage class, the form it is recorded in.
func (t *SchemeTable) Encode(d Distribution) map[string]int {
	out := make(map[string]int, len(d))
	for _, tier := range d.Tiers() {
		out[t.StorageClass(tier)] += d[tier]
	}
	return out
}
