package catalog

import (
	"fmt"
)

const (
	StorageRefsField  = "storage:refs"
	DistributionField = "objects_per_storage_class"
	// LegacySchemeField is the per-asset scheme written before schemes moved to item properties.
	LegacySchemeField = "storage:scheme"
)

// S3Alternate is the object storage alternate of an asset.
type S3Alternate struct {
	Href string
	Refs []string
	// Distribution is the recorded object count per provider storage class. Nil when not recorded.
	Distribution map[string]int

	extra rawFields
}

func (s *S3Alternate) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode s3 alternate: %w", err)
	}

	*s = S3Alternate{}
	take(fields, "href", &s.Href)
	take(fields, StorageRefsField, &s.Refs)
	take(fields, DistributionField, &s.Distribution)
	s.extra = fields

	return nil
}

func (s S3Alternate) MarshalJSON() ([]byte, error) {
	known := make(map[string]any, 3)
	if s.Href != "" {
		known["href"] = s.Href
	}
	if s.Refs != nil {
		known[StorageRefsField] = s.Refs
	}
	if s.Distribution != nil {
		known[DistributionField] = s.Distribution
	}

	return encode(s.extra, known)
}

func (s *S3Alternate) HasLegacyScheme() bool {
	_, ok := s.extra[LegacySchemeField]
	return ok
}

// DropLegacyScheme removes the legacy per-asset scheme and reports whether there was one.
func (s *S3Alternate) DropLegacyScheme() bool {
	if !s.HasLegacyScheme() {
		return false
	}
	delete(s.extra, LegacySchemeField)
	return true
}

// ClearDistribution removes the recorded distribution, including one that could not be parsed, and reports whether
// anything was removed.
func (s *S3Alternate) ClearDistribution() bool {
	_, malformed := s.extra[DistributionField]
	had := s.Distribution != nil || malformed
	s.Distribution = nil
	delete(s.extra, DistributionField)
	return had
}
