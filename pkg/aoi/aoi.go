// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aoi builds and validates area-of-interest geometries from loose
// coordinate input. A single position becomes a GeoJSON Point; a sequence
// of positions becomes a Polygon whose outer ring is closed automatically.
package aoi

import (
	"errors"
	"fmt"

	"github.com/venicegeo/geojson-go/geojson"
)

// Coordinate is one position. GeoJSON axis order (longitude first) is
// applied when the geometry is serialized.
type Coordinate struct {
	Lon float64
	Lat float64
}

type inputKind int

const (
	kindNone inputKind = iota
	kindPoint
	kindRing
	kindGeometry
)

// Input is an area-of-interest in one of three accepted forms: a single
// point, a polygon ring, or a prebuilt GeoJSON geometry. The zero Input
// means no area was supplied.
type Input struct {
	kind  inputKind
	point Coordinate
	ring  []Coordinate
	geom  interface{}
}

// Point returns an Input for a single position.
func Point(lon, lat float64) Input {
	return Input{kind: kindPoint, point: Coordinate{Lon: lon, Lat: lat}}
}

// Ring returns an Input for a polygon outer ring. The ring does not need
// to be closed; Build appends the first vertex when the last differs.
func Ring(coords ...Coordinate) Input {
	return Input{kind: kindRing, ring: coords}
}

// Geometry returns an Input wrapping a prebuilt *geojson.Point or
// *geojson.Polygon. The geometry is revalidated by Build but never
// modified, so a prebuilt polygon ring must already be closed.
func Geometry(g interface{}) Input {
	return Input{kind: kindGeometry, geom: g}
}

// IsZero reports whether no area was supplied.
func (in Input) IsZero() bool {
	return in.kind == kindNone
}

// Build validates the input and returns the GeoJSON geometry, either a
// *geojson.Point or a *geojson.Polygon. The error describes exactly which
// validity rule failed; callers decide whether an invalid area is fatal.
func Build(in Input) (interface{}, error) {
	switch in.kind {
	case kindPoint:
		if err := checkCoordinate(in.point); err != nil {
			return nil, err
		}
		return geojson.NewPoint([]float64{in.point.Lon, in.point.Lat}), nil

	case kindRing:
		closed, err := closeRing(in.ring)
		if err != nil {
			return nil, err
		}
		if err := validateRing(closed); err != nil {
			return nil, err
		}
		coords := make([][]float64, len(closed))
		for i, c := range closed {
			coords[i] = []float64{c.Lon, c.Lat}
		}
		return geojson.NewPolygon([][][]float64{coords}), nil

	case kindGeometry:
		return buildPrebuilt(in.geom)

	default:
		return nil, errors.New("no geometry input")
	}
}

// closeRing appends the first vertex when the ring is open. The input
// slice is never modified.
func closeRing(ring []Coordinate) ([]Coordinate, error) {
	if len(ring) == 0 {
		return nil, errors.New("ring has no vertices")
	}
	closed := make([]Coordinate, len(ring), len(ring)+1)
	copy(closed, ring)
	if closed[0] != closed[len(closed)-1] {
		closed = append(closed, closed[0])
	}
	return closed, nil
}

// validateRing checks a closed ring: coordinate ranges, at least three
// distinct vertices, and no crossing between non-adjacent edges.
func validateRing(closed []Coordinate) error {
	for i, c := range closed {
		if err := checkCoordinate(c); err != nil {
			return fmt.Errorf("ring vertex %d: %w", i, err)
		}
	}

	distinct := make(map[Coordinate]bool, len(closed))
	for _, c := range closed[:len(closed)-1] {
		distinct[c] = true
	}
	if len(distinct) < 3 {
		return fmt.Errorf("ring has %d distinct vertices, need at least 3", len(distinct))
	}

	// Edge i runs closed[i] -> closed[i+1].
	n := len(closed) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last edge share the closing vertex
			}
			if segmentsCross(closed[i], closed[i+1], closed[j], closed[j+1]) {
				return fmt.Errorf("ring self-intersects: edge %d crosses edge %d", i, j)
			}
		}
	}
	return nil
}

func checkCoordinate(c Coordinate) error {
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %g out of range [-180, 180]", c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %g out of range [-90, 90]", c.Lat)
	}
	return nil
}

// segmentsCross reports whether segments ab and cd properly cross. Shared
// endpoints and collinear touches do not count.
func segmentsCross(a, b, c, d Coordinate) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// orient returns the cross product of ab with ap: positive when p lies
// left of ab, negative when right, zero when collinear.
func orient(a, b, p Coordinate) float64 {
	return (b.Lon-a.Lon)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lon-a.Lon)
}

// buildPrebuilt revalidates a caller-supplied geometry without copying or
// modifying it.
func buildPrebuilt(g interface{}) (interface{}, error) {
	switch gj := g.(type) {
	case *geojson.Point:
		c, err := toCoordinate(gj.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("prebuilt point: %w", err)
		}
		if err := checkCoordinate(c); err != nil {
			return nil, fmt.Errorf("prebuilt point: %w", err)
		}
		return gj, nil

	case *geojson.Polygon:
		if len(gj.Coordinates) == 0 {
			return nil, errors.New("prebuilt polygon has no rings")
		}
		outer, err := toRing(gj.Coordinates[0])
		if err != nil {
			return nil, fmt.Errorf("prebuilt polygon outer ring: %w", err)
		}
		if len(outer) < 2 || outer[0] != outer[len(outer)-1] {
			return nil, errors.New("prebuilt polygon outer ring is not closed")
		}
		if err := validateRing(outer); err != nil {
			return nil, fmt.Errorf("prebuilt polygon: %w", err)
		}
		return gj, nil

	case nil:
		return nil, errors.New("prebuilt geometry is nil")

	default:
		return nil, fmt.Errorf("unsupported geometry type %T, want *geojson.Point or *geojson.Polygon", g)
	}
}

func toCoordinate(position []float64) (Coordinate, error) {
	if len(position) < 2 {
		return Coordinate{}, fmt.Errorf("position has %d values, need at least 2", len(position))
	}
	return Coordinate{Lon: position[0], Lat: position[1]}, nil
}

func toRing(positions [][]float64) ([]Coordinate, error) {
	ring := make([]Coordinate, len(positions))
	for i, pos := range positions {
		c, err := toCoordinate(pos)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		ring[i] = c
	}
	return ring, nil
}
