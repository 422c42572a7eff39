// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aoi

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// fileAOI is the on-disk representation of a named area of interest. The
// operator can keep AOI files next to the config and reuse them across
// searches without re-typing coordinates.
type fileAOI struct {
	Kind  string      `yaml:"kind"`
	Point *fileCoord  `yaml:"point,omitempty"`
	Ring  []fileCoord `yaml:"ring,omitempty"`
	Notes string      `yaml:"notes,omitempty"`
}

type fileCoord struct {
	Lon float64 `yaml:"lon"`
	Lat float64 `yaml:"lat"`
}

// WriteFile saves a point or ring input to a YAML file. Prebuilt-geometry
// inputs are not serializable.
func WriteFile(path string, in Input) error {
	var f fileAOI
	switch in.kind {
	case kindPoint:
		f.Kind = "point"
		f.Point = &fileCoord{Lon: in.point.Lon, Lat: in.point.Lat}
	case kindRing:
		f.Kind = "ring"
		f.Ring = make([]fileCoord, len(in.ring))
		for i, c := range in.ring {
			f.Ring[i] = fileCoord{Lon: c.Lon, Lat: c.Lat}
		}
	default:
		return fmt.Errorf("cannot save AOI of this kind to a file")
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling AOI file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads an AOI file saved by WriteFile. The returned Input still
// goes through Build validation like any other.
func ReadFile(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("reading AOI file: %w", err)
	}
	var f fileAOI
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Input{}, fmt.Errorf("parsing AOI file: %w", err)
	}

	switch f.Kind {
	case "point":
		if f.Point == nil {
			return Input{}, fmt.Errorf("AOI file %s: kind is point but no point given", path)
		}
		return Point(f.Point.Lon, f.Point.Lat), nil
	case "ring":
		coords := make([]Coordinate, len(f.Ring))
		for i, c := range f.Ring {
			coords[i] = Coordinate{Lon: c.Lon, Lat: c.Lat}
		}
		return Ring(coords...), nil
	default:
		return Input{}, fmt.Errorf("AOI file %s: unknown kind %q", path, f.Kind)
	}
}
