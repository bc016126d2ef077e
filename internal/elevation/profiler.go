package elevation

import (
	"math"

	"github.com/einarnot/runningroute/internal/polyline"
	"github.com/einarnot/runningroute/internal/shared/geo"
)

// Profile is a read-only view over a coordinate sequence. It is recomputed on
// demand and never cached across coordinate mutation.
type Profile struct {
	TotalDistanceKm float64   `json:"total_distance_km"`
	TotalAscentM    float64   `json:"total_ascent_m"`
	TotalDescentM   float64   `json:"total_descent_m"`
	MaxElevationM   float64   `json:"max_elevation_m"`
	MinElevationM   float64   `json:"min_elevation_m"`
	AvgGradientPct  float64   `json:"avg_gradient_pct"`
	MaxGradientPct  float64   `json:"max_gradient_pct"`
	Segments        []Segment `json:"segments"`
}

type Segment struct {
	DistanceKm       float64 `json:"distance_km"`
	ElevationChangeM float64 `json:"elevation_change_m"`
	GradientPct      float64 `json:"gradient_pct"`
	StartElevationM  float64 `json:"start_elevation_m"`
	EndElevationM    float64 `json:"end_elevation_m"`
	CumulativeKm     float64 `json:"cumulative_km"`
	Color            string  `json:"color"`
}

// ColoredSegment pairs a two-point line with its gradient color bucket for
// map display.
type ColoredSegment struct {
	Start            polyline.Coordinate `json:"start"`
	End              polyline.Coordinate `json:"end"`
	GradientPct      float64             `json:"gradient_pct"`
	Color            string              `json:"color"`
	DistanceKm       float64             `json:"distance_km"`
	ElevationChangeM float64             `json:"elevation_change_m"`
}

type Classification struct {
	Level       string `json:"level"`
	Description string `json:"description"`
	Difficulty  int    `json:"difficulty"`
	Color       string `json:"color"`
}

const (
	colorFlat     = "#10b981"
	colorModerate = "#f59e0b"
	colorSteep    = "#ef4444"
)

// GradientColor buckets a segment gradient: flat up to 3%, moderate up to 8%,
// steep above.
func GradientColor(gradientPct float64) string {
	abs := math.Abs(gradientPct)
	if abs <= 3 {
		return colorFlat
	}
	if abs <= 8 {
		return colorModerate
	}
	return colorSteep
}

// ComputeProfile walks consecutive coordinate pairs accumulating distance,
// ascent, descent, elevation extremes and per-segment gradients. Average
// gradient is (ascent+descent) over total distance in meters, as a percent.
func ComputeProfile(coords []polyline.Coordinate) Profile {
	if len(coords) < 2 {
		return Profile{Segments: []Segment{}}
	}

	p := Profile{
		MaxElevationM: coords[0].Elevation,
		MinElevationM: coords[0].Elevation,
		Segments:      make([]Segment, 0, len(coords)-1),
	}

	for i := 1; i < len(coords); i++ {
		prev := coords[i-1]
		curr := coords[i]

		distance := geo.HaversineKm(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
		change := curr.Elevation - prev.Elevation
		gradient := geo.GradientPercent(prev.Elevation, curr.Elevation, distance)

		p.TotalDistanceKm += distance
		p.MaxElevationM = math.Max(p.MaxElevationM, curr.Elevation)
		p.MinElevationM = math.Min(p.MinElevationM, curr.Elevation)
		p.MaxGradientPct = math.Max(p.MaxGradientPct, math.Abs(gradient))

		if change > 0 {
			p.TotalAscentM += change
		} else {
			p.TotalDescentM += math.Abs(change)
		}

		p.Segments = append(p.Segments, Segment{
			DistanceKm:       distance,
			ElevationChangeM: change,
			GradientPct:      gradient,
			StartElevationM:  prev.Elevation,
			EndElevationM:    curr.Elevation,
			CumulativeKm:     p.TotalDistanceKm,
			Color:            GradientColor(gradient),
		})
	}

	if p.TotalDistanceKm > 0 {
		p.AvgGradientPct = (p.TotalAscentM + p.TotalDescentM) / (p.TotalDistanceKm * 1000) * 100
	}
	return p
}

// ColoredSegments returns one colored two-point segment per consecutive
// coordinate pair.
func ColoredSegments(coords []polyline.Coordinate) []ColoredSegment {
	segments := make([]ColoredSegment, 0)
	for i := 0; i+1 < len(coords); i++ {
		start := coords[i]
		end := coords[i+1]

		distance := geo.HaversineKm(start.Lat, start.Lon, end.Lat, end.Lon)
		gradient := geo.GradientPercent(start.Elevation, end.Elevation, distance)

		segments = append(segments, ColoredSegment{
			Start:            start,
			End:              end,
			GradientPct:      gradient,
			Color:            GradientColor(gradient),
			DistanceKm:       distance,
			ElevationChangeM: end.Elevation - start.Elevation,
		})
	}
	return segments
}

// ClassifyTerrain maps a profile to a four-level difficulty. Levels are tested
// flat first; mountainous is the catch-all.
func ClassifyTerrain(p Profile) Classification {
	ascentPerKm := 0.0
	if p.TotalDistanceKm > 0 {
		ascentPerKm = p.TotalAscentM / p.TotalDistanceKm
	}

	switch {
	case p.AvgGradientPct <= 2 && p.MaxGradientPct <= 5 && ascentPerKm <= 30:
		return Classification{
			Level:       "flat",
			Description: "Flat terrain with minimal elevation changes",
			Difficulty:  1,
			Color:       "#10b981",
		}
	case p.AvgGradientPct <= 5 && p.MaxGradientPct <= 12 && ascentPerKm <= 80:
		return Classification{
			Level:       "rolling",
			Description: "Rolling terrain with moderate hills",
			Difficulty:  2,
			Color:       "#f59e0b",
		}
	case p.AvgGradientPct <= 8 && p.MaxGradientPct <= 20 && ascentPerKm <= 150:
		return Classification{
			Level:       "hilly",
			Description: "Hilly terrain with challenging climbs",
			Difficulty:  3,
			Color:       "#ef4444",
		}
	default:
		return Classification{
			Level:       "mountainous",
			Description: "Mountainous terrain with steep climbs",
			Difficulty:  4,
			Color:       "#dc2626",
		}
	}
}

// SampleAtInterval reduces a coordinate sequence to points at least intervalKm
// apart by cumulative distance. The first and last points are always kept.
func SampleAtInterval(coords []polyline.Coordinate, intervalKm float64) []polyline.Coordinate {
	if len(coords) < 2 {
		return coords
	}

	sampled := []polyline.Coordinate{coords[0]}
	cumulative := 0.0
	lastSampled := 0.0

	for i := 1; i < len(coords); i++ {
		prev := coords[i-1]
		curr := coords[i]
		cumulative += geo.HaversineKm(prev.Lat, prev.Lon, curr.Lat, curr.Lon)

		if cumulative-lastSampled >= intervalKm {
			sampled = append(sampled, curr)
			lastSampled = cumulative
		}
	}

	last := coords[len(coords)-1]
	tail := sampled[len(sampled)-1]
	if tail.Lat != last.Lat || tail.Lon != last.Lon {
		sampled = append(sampled, last)
	}
	return sampled
}
