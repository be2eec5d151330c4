// Copyright 2025 The AddrHarvest Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"
	"math"
	"strconv"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
// Persistence keeps the coordinates as plain lat/lng columns.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Box is an axis-aligned lon/lat rectangle.
type Box struct {
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether the coordinate falls inside the box, borders included.
func (b Box) Contains(lon, lat float64) bool {
	return b.MinLon <= lon && lon <= b.MaxLon &&
		b.MinLat <= lat && lat <= b.MaxLat
}

// Center returns the middle point of the box.
func (b Box) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLon + b.MaxLon) / 2,
	}
}

// AreaMeters approximates the box surface in square meters by multiplying
// the haversine lengths of its sides measured through the box center.
func (b Box) AreaMeters() float64 {
	midLat := (b.MinLat + b.MaxLat) / 2
	midLon := (b.MinLon + b.MaxLon) / 2

	height := (&Point{Lat: b.MinLat, Lng: midLon}).
		HaversineDistance(&Point{Lat: b.MaxLat, Lng: midLon})
	width := (&Point{Lat: midLat, Lng: b.MinLon}).
		HaversineDistance(&Point{Lat: midLat, Lng: b.MaxLon})

	return height * width
}

// ParseBoundingBox builds a Box from the four strings Nominatim returns:
// [min_lat, max_lat, min_lon, max_lon].
func ParseBoundingBox(bbox []string) (Box, error) {
	if len(bbox) != 4 {
		return Box{}, fmt.Errorf("spatial: bounding box needs 4 values, got %d", len(bbox))
	}

	vals := make([]float64, 4)

	for i, s := range bbox {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Box{}, fmt.Errorf("spatial: parsing bounding box value %q: %w", s, err)
		}

		vals[i] = v
	}

	return Box{
		MinLat: vals[0],
		MaxLat: vals[1],
		MinLon: vals[2],
		MaxLon: vals[3],
	}, nil
}
