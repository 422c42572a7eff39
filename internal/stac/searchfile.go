// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stac

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scene-fetch/pkg/types"
)

// SearchFile is the on-disk representation of a search and its results.
// The operator can save a search to a file and download from it later
// without re-querying the catalog.
type SearchFile struct {
	Query   SavedQuery    `yaml:"query"`
	Results []types.Item  `yaml:"results"`
	Summary SearchSummary `yaml:"summary"`
}

// SavedQuery stores the search parameters in a serializable form.
type SavedQuery struct {
	Collections []string               `yaml:"collections,omitempty"`
	Datetime    string                 `yaml:"datetime,omitempty"`
	Intersects  map[string]interface{} `yaml:"intersects,omitempty"`
	MaxItems    int                    `yaml:"max_items,omitempty"`
}

// SearchSummary stores result statistics and a timestamp.
type SearchSummary struct {
	Total     int       `yaml:"total"`
	Catalog   string    `yaml:"catalog"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteSearchFile saves a search request and its results to a YAML file.
func WriteSearchFile(path string, req SearchRequest, catalogURL string, items []types.Item) error {
	intersects, err := geometryMap(req.Intersects)
	if err != nil {
		return err
	}

	sf := SearchFile{
		Query: SavedQuery{
			Collections: req.Collections,
			Datetime:    req.Datetime,
			Intersects:  intersects,
			MaxItems:    req.MaxItems,
		},
		Results: items,
		Summary: SearchSummary{
			Total:     len(items),
			Catalog:   catalogURL,
			Timestamp: time.Now(),
		},
	}

	data, err := yaml.Marshal(&sf)
	if err != nil {
		return fmt.Errorf("marshaling search file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSearchFile loads a previously saved search file from disk.
func ReadSearchFile(path string) (*SearchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search file: %w", err)
	}
	var sf SearchFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing search file: %w", err)
	}
	return &sf, nil
}

// geometryMap converts a GeoJSON geometry value to a plain map so it
// serializes cleanly to YAML.
func geometryMap(g interface{}) (map[string]interface{}, error) {
	if g == nil {
		return nil, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding geometry: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	return m, nil
}
