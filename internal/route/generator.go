package route

import (
	"math"
	"math/rand"
	"sync"

	"github.com/einarnot/runningroute/internal/shared/geo"
)

const (
	defaultAlternatives = 10
	loopWaypointCount   = 4

	// Straight-line geometry underestimates the snapped road distance, so
	// targets are stretched before snapping.
	loopRadiusFactor  = 1.2
	outAndBackDivisor = 2.4

	correctionMin   = 0.5
	correctionMax   = 2.0
	correctionAlpha = 0.3
)

var candidateBearings = []float64{0, 45, 90, 135, 180, 225, 270, 315}
var distanceMultipliers = []float64{0.9, 1.0, 1.1}

// CandidateSpec is one waypoint set ready to be snapped onto the network.
type CandidateSpec struct {
	Waypoints  [][2]float64
	BearingDeg float64
	TargetKm   float64
}

// Generator synthesizes waypoint candidates around a start coordinate.
type Generator struct {
	rand *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rand: rand.New(rand.NewSource(seed))}
}

// SweepStep is one bearing and distance multiplier combination of the
// candidate sweep.
type SweepStep struct {
	BearingDeg float64
	Multiplier float64
}

// Plan lists the bearing and multiplier combinations for up to
// prefs.Alternatives candidates.
func (g *Generator) Plan(prefs Preferences) []SweepStep {
	limit := prefs.Alternatives
	if limit <= 0 {
		limit = defaultAlternatives
	}

	steps := make([]SweepStep, 0, limit)
	for _, multiplier := range distanceMultipliers {
		for _, offset := range candidateBearings {
			if len(steps) >= limit {
				return steps
			}
			steps = append(steps, SweepStep{
				BearingDeg: math.Mod(prefs.PreferredBearing+offset, 360),
				Multiplier: multiplier,
			})
		}
	}
	return steps
}

// Layout builds the waypoint set for one sweep step. The current correction
// factor for the step's bearing scales the target before geometry is laid
// out, so each candidate must be laid out after the previous one was
// observed. TargetKm keeps the uncorrected value.
func (g *Generator) Layout(lat, lon float64, prefs Preferences, step SweepStep, state *CorrectionState) CandidateSpec {
	target := prefs.DistanceKm * step.Multiplier
	corrected := target
	if state != nil {
		corrected *= state.Factor(step.BearingDeg)
	}

	var waypoints [][2]float64
	if prefs.Shape == ShapeOutAndBack {
		waypoints = g.outAndBack(lat, lon, step.BearingDeg, corrected)
	} else {
		waypoints = g.loop(lat, lon, step.BearingDeg, corrected)
	}
	return CandidateSpec{
		Waypoints:  waypoints,
		BearingDeg: step.BearingDeg,
		TargetKm:   target,
	}
}

// loop places waypoints around a circle whose circumference approximates the
// target distance. Each waypoint's radius is jittered independently so the
// polygon is irregular and repeated requests vary. Waypoints are [lon, lat]
// pairs and the route closes back on the start.
func (g *Generator) loop(lat, lon, bearing, targetKm float64) [][2]float64 {
	base := targetKm / (2 * math.Pi) * loopRadiusFactor

	waypoints := make([][2]float64, 0, loopWaypointCount+2)
	waypoints = append(waypoints, [2]float64{lon, lat})
	step := 360.0 / loopWaypointCount
	for i := 0; i < loopWaypointCount; i++ {
		radius := base * (0.8 + g.rand.Float64()*0.4)
		wpLat, wpLon := geo.Destination(lat, lon, math.Mod(bearing+float64(i)*step, 360), radius)
		waypoints = append(waypoints, [2]float64{wpLon, wpLat})
	}
	waypoints = append(waypoints, [2]float64{lon, lat})
	return waypoints
}

// outAndBack heads out along the bearing, places an intermediate waypoint
// short of the turnaround, and retraces.
func (g *Generator) outAndBack(lat, lon, bearing, targetKm float64) [][2]float64 {
	d := targetKm / outAndBackDivisor

	midLat, midLon := geo.Destination(lat, lon, bearing, 0.7*d)
	turnLat, turnLon := geo.Destination(lat, lon, bearing, d)

	return [][2]float64{
		{lon, lat},
		{midLon, midLat},
		{turnLon, turnLat},
		{midLon, midLat},
		{lon, lat},
	}
}

// CorrectionState learns, per bearing bucket, how far snapped distances land
// from their targets and compensates future targets. State lives for one
// generation request; nothing is shared across requests.
type CorrectionState struct {
	mu      sync.Mutex
	factors map[int]float64
}

func NewCorrectionState() *CorrectionState {
	return &CorrectionState{factors: make(map[int]float64)}
}

func bearingBucket(bearing float64) int {
	return int(math.Mod(45*math.Round(bearing/45), 360))
}

// Factor returns the learned multiplier for a bearing, 1.0 before any
// observation.
func (s *CorrectionState) Factor(bearing float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.factors[bearingBucket(bearing)]; ok {
		return f
	}
	return 1.0
}

// Observe folds one snapped result into the bucket. The first observation
// seeds the factor directly, later ones blend in with an exponential moving
// average. Factors stay within [0.5, 2.0].
func (s *CorrectionState) Observe(bearing, actualKm, targetKm float64) {
	if targetKm <= 0 || actualKm <= 0 {
		return
	}
	ratio := actualKm / targetKm
	correction := 1 / ratio

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := bearingBucket(bearing)
	if prev, ok := s.factors[bucket]; ok {
		correction = (1-correctionAlpha)*prev + correctionAlpha*correction
	}
	s.factors[bucket] = math.Min(correctionMax, math.Max(correctionMin, correction))
}
