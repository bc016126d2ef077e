package geo

import "math"

const earthRadiusKm = 6371

// HaversineKm returns the great-circle distance between two points in
// kilometers. Elevation is ignored.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BearingDegrees returns the initial bearing from the first point to the
// second, normalized to [0, 360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	dLon := toRadians(lon2 - lon1)
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)

	y := math.Sin(dLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(dLon)

	bearing := toDegrees(math.Atan2(y, x))
	return math.Mod(bearing+360, 360)
}

// Destination returns the point reached by travelling distanceKm from the
// origin along the given bearing on a spherical earth.
func Destination(lat, lon, bearingDeg, distanceKm float64) (float64, float64) {
	bearingRad := toRadians(bearingDeg)
	latRad := toRadians(lat)
	lonRad := toRadians(lon)
	angular := distanceKm / earthRadiusKm

	destLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(angular) +
			math.Cos(latRad)*math.Sin(angular)*math.Cos(bearingRad))

	destLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(destLatRad))

	return toDegrees(destLatRad), toDegrees(destLonRad)
}

// GradientPercent returns the slope between two elevations over a horizontal
// distance, in percent. A zero distance yields zero.
func GradientPercent(elevA, elevB, distanceKm float64) float64 {
	if distanceKm == 0 {
		return 0
	}
	return (elevB - elevA) / (distanceKm * 1000) * 100
}

func IsValidCoordinate(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 &&
		lon >= -180 && lon <= 180
}

var cardinalDirections = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CardinalDirection maps a bearing to one of the 8 compass directions.
func CardinalDirection(bearing float64) string {
	idx := int(math.Round(bearing/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return cardinalDirections[idx]
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

func toDegrees(radians float64) float64 {
	return radians * (180 / math.Pi)
}
