package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

const (
	ThumbnailRole = "thumbnail"

	AlternateAssetsExtension = "https://stac-extensions.github.io/alternate-assets/v1.2.0/schema.json"
	StorageExtension         = "https://stac-extensions.github.io/storage/v2.0.0/schema.json"

	// StorageSchemesProperty is the item property holding the scheme table referenced by assets.
	StorageSchemesProperty = "storage:schemes"
)

// Item is a catalog item. Members that are not modeled (geometry, bbox, links, ...) are preserved verbatim.
type Item struct {
	ID         string
	Collection string
	Extensions []string
	Properties map[string]json.RawMessage
	Assets     map[string]*Asset

	extra rawFields
}

func (i *Item) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode item: %w", err)
	}

	*i = Item{}
	take(fields, "id", &i.ID)
	take(fields, "collection", &i.Collection)
	take(fields, "stac_extensions", &i.Extensions)
	take(fields, "properties", &i.Properties)
	take(fields, "assets", &i.Assets)
	i.extra = fields

	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"id": i.ID,
	}
	if i.Collection != "" {
		known["collection"] = i.Collection
	}
	if i.Extensions != nil {
		known["stac_extensions"] = i.Extensions
	}
	if i.Properties != nil {
		known["properties"] = i.Properties
	}
	if i.Assets != nil {
		known["assets"] = i.Assets
	}

	return encode(i.extra, known)
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() (*Item, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &out, nil
}

// AssetNames returns the asset names in a stable order.
func (i *Item) AssetNames() []string {
	return slices.Sorted(maps.Keys(i.Assets))
}

func (i *Item) HasExtension(uri string) bool {
	return slices.Contains(i.Extensions, uri)
}

// AddExtension lists the extension schema on the item and reports whether it was missing.
func (i *Item) AddExtension(uri string) bool {
	if i.HasExtension(uri) {
		return false
	}
	i.Extensions = append(i.Extensions, uri)
	return true
}

// Property decodes the named property into dst. It reports false when the property is absent.
func (i *Item) Property(key string, dst any) (bool, error) {
	raw, ok := i.Properties[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode property %q: %w", key, err)
	}
	return true, nil
}

func (i *Item) SetProperty(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode property %q: %w", key, err)
	}
	if i.Properties == nil {
		i.Properties = make(map[string]json.RawMessage)
	}
	i.Properties[key] = raw
	return nil
}

// Asset is an item asset. Only the members the engine reads or writes are modeled.
type Asset struct {
	Href  string
	Roles []string
	// Alternate holds the alternate locations by name. It is nil when the asset has no alternate block.
	Alternate map[string]json.RawMessage

	extra rawFields
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("decode asset: %w", err)
	}

	*a = Asset{}
	take(fields, "href", &a.Href)
	take(fields, "roles", &a.Roles)
	take(fields, "alternate", &a.Alternate)
	a.extra = fields

	return nil
}

func (a Asset) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"href": a.Href,
	}
	if a.Roles != nil {
		known["roles"] = a.Roles
	}
	if a.Alternate != nil {
		known["alternate"] = a.Alternate
	}

	return encode(a.extra, known)
}

func (a *Asset) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// S3Alternate returns the parsed "s3" alternate. It reports false when there is none or it is not an object.
func (a *Asset) S3Alternate() (*S3Alternate, bool) {
	raw, ok := a.Alternate["s3"]
	if !ok {
		return nil, false
	}
	var s S3Alternate
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// SetS3Alternate stores s as the "s3" alternate, keeping any other alternates.
func (a *Asset) SetS3Alternate(s *S3Alternate) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode s3 alternate: %w", err)
	}
	if a.Alternate == nil {
		a.Alternate = make(map[string]json.RawMessage)
	}
	a.Alternate["s3"] = raw
	return nil
}
