// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scene-fetch client:
// catalog items and assets, the search result table, download results, and
// component configuration.
package types

// Asset is a single downloadable file attached to a catalog item, such as
// one spectral band or a thumbnail.
type Asset struct {
	// Href is the asset URL. After signing it carries the access token
	// query string.
	Href string `json:"href" yaml:"href"`

	// Title is the human-readable asset description, when the catalog
	// provides one.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Type is the asset media type (e.g. "image/tiff; application=geotiff").
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Item is one catalog entry (a STAC item): a scene captured at a point in
// time, with metadata properties and named assets.
type Item struct {
	// ID is the catalog identifier, unique within a collection.
	ID string `json:"id" yaml:"id"`

	// Collection names the collection the item belongs to.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// Geometry is the item footprint as decoded GeoJSON.
	Geometry map[string]interface{} `json:"geometry,omitempty" yaml:"geometry,omitempty"`

	// BBox is the footprint bounding box [west, south, east, north].
	BBox []float64 `json:"bbox,omitempty" yaml:"bbox,omitempty"`

	// Properties carries the raw item metadata (datetime, cloud cover,
	// platform, and whatever else the collection records).
	Properties map[string]interface{} `json:"properties" yaml:"properties"`

	// Assets maps asset keys (e.g. "B04", "visual") to their descriptors.
	Assets map[string]Asset `json:"assets" yaml:"assets"`

	// TotalBytes is the summed asset size from the HEAD probe. Zero until
	// the item has been signed and probed.
	TotalBytes int64 `json:"total_bytes,omitempty" yaml:"total_bytes,omitempty"`
}

// Datetime returns the item capture time from the properties, or "" when
// the catalog did not record one.
func (it Item) Datetime() string {
	if s, ok := it.Properties["datetime"].(string); ok {
		return s
	}
	return ""
}

// CloudCover returns the cloud cover percentage from the properties, or -1
// when the collection does not record it.
func (it Item) CloudCover() float64 {
	if v, ok := it.Properties["eo:cloud_cover"].(float64); ok {
		return v
	}
	return -1
}
