package route

import (
	"fmt"
	"math"

	"github.com/einarnot/runningroute/internal/shared/geo"
)

// Composite score weights.
const (
	weightDistance = 0.30
	weightTerrain  = 0.25
	weightSafety   = 0.20
	weightScenic   = 0.15
	weightNav      = 0.10
)

// FallbackScorer rates candidates with deterministic heuristics when the
// external scorer is unavailable. Same input always yields the same score.
type FallbackScorer struct{}

// Score evaluates every candidate against the runner's preferences.
func (FallbackScorer) Score(candidates []*Candidate, prefs Preferences) []Evaluation {
	evaluations := make([]Evaluation, 0, len(candidates))
	for _, c := range candidates {
		criteria := scoreCriteria(c, prefs)
		composite := criteria.DistanceAccuracy*weightDistance +
			criteria.TerrainMatch*weightTerrain +
			criteria.SafetyScore*weightSafety +
			criteria.ScenicValue*weightScenic +
			criteria.NavigationEase*weightNav

		evaluations = append(evaluations, Evaluation{
			RouteID:   c.ID,
			Score:     math.Round(composite*100) / 100,
			Reasoning: reasoning(c, prefs, criteria),
			Criteria:  criteria,
		})
	}
	return evaluations
}

func scoreCriteria(c *Candidate, prefs Preferences) ScoreCriteria {
	distanceAccuracy := 0.0
	if prefs.DistanceKm > 0 {
		distanceAccuracy = math.Max(0, 1-2*math.Abs(c.DistanceKm-prefs.DistanceKm)/prefs.DistanceKm)
	}

	ascentPerKm := 0.0
	if c.DistanceKm > 0 {
		ascentPerKm = c.AscentM / c.DistanceKm
	}
	terrainMatch := terrainScore(prefs.Terrain, ascentPerKm)

	pointsPerKm := 0.0
	if c.DistanceKm > 0 {
		pointsPerKm = float64(len(c.Coordinates)) / c.DistanceKm
	}

	return ScoreCriteria{
		DistanceAccuracy: distanceAccuracy,
		TerrainMatch:     terrainMatch,
		SafetyScore:      0.7,
		ScenicValue:      math.Min(0.9, 0.4+pointsPerKm/200),
		NavigationEase:   math.Max(0.3, 0.9-pointsPerKm/300),
	}
}

func terrainScore(terrain string, ascentPerKm float64) float64 {
	switch terrain {
	case TerrainHilly:
		switch {
		case ascentPerKm >= 50 && ascentPerKm <= 100:
			return 0.9
		case ascentPerKm < 50:
			return 0.4 + (ascentPerKm/50)*0.4
		default:
			return math.Max(0.3, 0.9-(ascentPerKm-100)/100)
		}
	default:
		if ascentPerKm < 30 {
			return 0.9
		}
		return math.Max(0.2, 0.9-(ascentPerKm-30)/50)
	}
}

func reasoning(c *Candidate, prefs Preferences, criteria ScoreCriteria) string {
	deviation := 0.0
	if prefs.DistanceKm > 0 {
		deviation = math.Abs(c.DistanceKm-prefs.DistanceKm) / prefs.DistanceKm * 100
	}

	terrainNote := "matches the requested terrain"
	if criteria.TerrainMatch < 0.6 {
		terrainNote = "deviates from the requested terrain"
	}
	return fmt.Sprintf("%.1f km route heading %s, %.0f%% off target distance, %s.",
		c.DistanceKm, geo.CardinalDirection(c.BearingDeg), deviation, terrainNote)
}
