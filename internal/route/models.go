// Package route holds the route generation pipeline: preference validation,
// candidate synthesis, scoring and persistence.
package route

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/einarnot/runningroute/internal/elevation"
	"github.com/einarnot/runningroute/internal/polyline"
)

// Route shapes.
const (
	ShapeLoop       = "loop"
	ShapeOutAndBack = "out-and-back"
)

// Terrain preferences.
const (
	TerrainFlat  = "flat"
	TerrainHilly = "hilly"
)

// Enrichment states of a candidate's geometry.
const (
	GeometryOnly      = "geometry_only"
	ElevationEnriched = "elevation_enriched"
)

// Validation bounds.
const (
	minDistanceKm = 0.5
	maxDistanceKm = 50.0
	minPaceMinKm  = 3.0
	maxPaceMinKm  = 8.0
)

// ErrNoCandidates means every synthesized candidate failed to snap onto the
// network, leaving nothing to score.
var ErrNoCandidates = errors.New("no routable candidates produced")

// ValidationError reports which preference field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

var coordinatePattern = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// Preferences describes what the runner asked for.
type Preferences struct {
	Location         string  `json:"location"`
	DistanceKm       float64 `json:"distance_km"`
	PaceMinPerKm     float64 `json:"pace_min_per_km"`
	Shape            string  `json:"shape"`
	Terrain          string  `json:"terrain"`
	PreferredBearing float64 `json:"preferred_bearing"`
	Alternatives     int     `json:"alternatives"`
}

// Validate checks every field and returns the first violation found.
func (p *Preferences) Validate() error {
	if strings.TrimSpace(p.Location) == "" {
		return &ValidationError{Field: "location", Message: "must not be empty"}
	}
	if p.DistanceKm < minDistanceKm || p.DistanceKm > maxDistanceKm {
		return &ValidationError{
			Field:   "distance_km",
			Message: fmt.Sprintf("must be between %.1f and %.1f", minDistanceKm, maxDistanceKm),
		}
	}
	if p.PaceMinPerKm != 0 {
		if p.PaceMinPerKm < minPaceMinKm || p.PaceMinPerKm > maxPaceMinKm {
			return &ValidationError{
				Field:   "pace_min_per_km",
				Message: fmt.Sprintf("must be between %.1f and %.1f", minPaceMinKm, maxPaceMinKm),
			}
		}
		// pace steps in 5 second increments
		seconds := p.PaceMinPerKm * 60
		if math.Abs(seconds-5*math.Round(seconds/5)) > 1e-6 {
			return &ValidationError{Field: "pace_min_per_km", Message: "must be in 5 second steps"}
		}
	}
	switch p.Shape {
	case ShapeLoop, ShapeOutAndBack:
	default:
		return &ValidationError{Field: "shape", Message: "must be loop or out-and-back"}
	}
	switch p.Terrain {
	case TerrainFlat, TerrainHilly:
	default:
		return &ValidationError{Field: "terrain", Message: "must be flat or hilly"}
	}
	if p.Alternatives < 0 {
		return &ValidationError{Field: "alternatives", Message: "must not be negative"}
	}
	return nil
}

// ParseCoordinates interprets the location field as a "lat, lon" pair. The
// second return is false for free text that needs geocoding instead.
func (p *Preferences) ParseCoordinates() (float64, float64, bool) {
	m := coordinatePattern.FindStringSubmatch(p.Location)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// ScoreCriteria is the per-dimension breakdown behind a composite score.
type ScoreCriteria struct {
	DistanceAccuracy float64 `json:"distanceAccuracy"`
	TerrainMatch     float64 `json:"terrainMatch"`
	SafetyScore      float64 `json:"safetyScore"`
	ScenicValue      float64 `json:"scenicValue"`
	NavigationEase   float64 `json:"navigationEase"`
}

// Evaluation is a single scored verdict for one candidate.
type Evaluation struct {
	RouteID   string        `json:"routeId"`
	Score     float64       `json:"score"`
	Reasoning string        `json:"reasoning"`
	Criteria  ScoreCriteria `json:"criteria"`
}

// Candidate is one generated route alternative.
type Candidate struct {
	ID                  string                    `json:"id"`
	Waypoints           [][2]float64              `json:"waypoints"`
	Coordinates         []polyline.Coordinate     `json:"coordinates"`
	Geometry            string                    `json:"geometry"`
	DistanceKm          float64                   `json:"distance_km"`
	DurationSec         float64                   `json:"duration_sec"`
	AscentM             float64                   `json:"ascent_m"`
	DescentM            float64                   `json:"descent_m"`
	BearingDeg          float64                   `json:"bearing_deg"`
	EnrichmentState     string                    `json:"enrichment_state"`
	Score               float64                   `json:"score"`
	Reasoning           string                    `json:"reasoning"`
	Criteria            ScoreCriteria             `json:"criteria"`
	UsedExternalScoring bool                      `json:"used_external_scoring"`
	Profile             *elevation.Profile        `json:"elevation_profile,omitempty"`
	Terrain             *elevation.Classification `json:"terrain,omitempty"`
}

// EstimatedDuration applies the runner's pace to the snapped distance.
func (c *Candidate) EstimatedDuration(paceMinPerKm float64) time.Duration {
	if paceMinPerKm <= 0 {
		return 0
	}
	return time.Duration(c.DistanceKm * paceMinPerKm * float64(time.Minute))
}

// Batch is the persisted outcome of one generation request.
type Batch struct {
	RequestID   string       `json:"request_id"`
	UserID      string       `json:"user_id"`
	Preferences Preferences  `json:"preferences"`
	Candidates  []*Candidate `json:"candidates"`
	CreatedAt   time.Time    `json:"created_at"`
}
