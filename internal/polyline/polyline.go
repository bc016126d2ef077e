// Package polyline implements the Google polyline algorithm generalized to
// 3D records, matching the encoding used by OpenRouteService geometry strings
// (precision 5 for lat/lon, precision 2 for elevation).
package polyline

import "math"

const (
	coordFactor     = 1e5
	elevationFactor = 1e2
)

// Coordinate is an ordered (latitude, longitude, elevation) triple.
// Elevation is meters and defaults to 0 when unknown.
type Coordinate struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}

// Decode decodes a delta-encoded polyline string into coordinates. dims is 2
// (lat, lon) or 3 (lat, lon, elevation). An empty input decodes to an empty
// sequence. A truncated trailing record is recovered: a missing elevation
// defaults to 0, and a record cut off mid-value is dropped, returning
// everything decoded before it. Callers treat "no route" as valid, so the
// decoder never fails.
func Decode(encoded string, dims int) []Coordinate {
	if encoded == "" {
		return []Coordinate{}
	}

	coords := []Coordinate{}
	index := 0
	lat, lon, elevation := 0, 0, 0

	for index < len(encoded) {
		deltaLat, next, ok := decodeValue(encoded, index)
		if !ok {
			return coords
		}
		index = next
		lat += deltaLat

		deltaLon, next, ok := decodeValue(encoded, index)
		if !ok {
			return coords
		}
		index = next
		lon += deltaLon

		if dims == 3 {
			if index < len(encoded) {
				deltaElevation, next, _ := decodeValue(encoded, index)
				index = next
				elevation += deltaElevation
			} else {
				elevation = 0
			}
			coords = append(coords, Coordinate{
				Lat:       float64(lat) / coordFactor,
				Lon:       float64(lon) / coordFactor,
				Elevation: float64(elevation) / elevationFactor,
			})
		} else {
			coords = append(coords, Coordinate{
				Lat: float64(lat) / coordFactor,
				Lon: float64(lon) / coordFactor,
			})
		}
	}

	return coords
}

// decodeValue reads one zig-zag folded varint starting at index. The third
// return is false when the string ends before the value is complete.
func decodeValue(encoded string, index int) (int, int, bool) {
	shift := 0
	result := 0
	complete := false

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			complete = true
			break
		}
	}

	if !complete {
		return 0, index, false
	}
	if result&1 != 0 {
		return ^(result >> 1), index, true
	}
	return result >> 1, index, true
}

// Encode is the inverse of Decode for coordinates rounded to the codec
// precision (5 decimals for lat/lon, 2 for elevation).
func Encode(coords []Coordinate, dims int) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*6)
	prevLat, prevLon, prevElevation := 0, 0, 0

	for _, c := range coords {
		lat := int(math.Round(c.Lat * coordFactor))
		lon := int(math.Round(c.Lon * coordFactor))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)
		prevLat, prevLon = lat, lon

		if dims == 3 {
			elevation := int(math.Round(c.Elevation * elevationFactor))
			encoded = encodeValue(encoded, elevation-prevElevation)
			prevElevation = elevation
		}
	}

	return string(encoded)
}

func encodeValue(dst []byte, value int) []byte {
	value <<= 1
	if value < 0 {
		value = ^value
	}
	for value >= 0x20 {
		dst = append(dst, byte((0x20|(value&0x1f))+63))
		value >>= 5
	}
	return append(dst, byte(value+63))
}
