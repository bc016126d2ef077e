package route

import (
	"math"
	"testing"

	"github.com/einarnot/runningroute/internal/shared/geo"
)

func layoutAll(g *Generator, lat, lon float64, prefs Preferences, state *CorrectionState) []CandidateSpec {
	steps := g.Plan(prefs)
	specs := make([]CandidateSpec, 0, len(steps))
	for _, step := range steps {
		specs = append(specs, g.Layout(lat, lon, prefs, step, state))
	}
	return specs
}

func TestCandidatesLoopShape(t *testing.T) {
	g := NewGenerator(1)
	prefs := validPrefs()
	prefs.Alternatives = 4

	specs := layoutAll(g, 59.9139, 10.7522, prefs, nil)
	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d", len(specs))
	}

	for _, spec := range specs {
		if len(spec.Waypoints) != 6 {
			t.Fatalf("loop waypoint count: %d", len(spec.Waypoints))
		}
		if spec.Waypoints[0] != spec.Waypoints[len(spec.Waypoints)-1] {
			t.Fatalf("loop must close on the start")
		}
		// waypoints land near the jittered circle radius
		radius := spec.TargetKm / (2 * math.Pi) * 1.2
		for _, wp := range spec.Waypoints[1 : len(spec.Waypoints)-1] {
			d := geo.HaversineKm(59.9139, 10.7522, wp[1], wp[0])
			if d < radius*0.8-0.01 || d > radius*1.2+0.01 {
				t.Fatalf("waypoint off circle: %v km, radius %v", d, radius)
			}
		}
	}
}

func TestLoopWaypointsJitteredIndependently(t *testing.T) {
	g := NewGenerator(1)
	prefs := validPrefs()
	prefs.Alternatives = 1

	specs := layoutAll(g, 59.9139, 10.7522, prefs, nil)
	circle := specs[0].Waypoints[1 : len(specs[0].Waypoints)-1]

	radii := map[float64]bool{}
	for _, wp := range circle {
		d := geo.HaversineKm(59.9139, 10.7522, wp[1], wp[0])
		radii[math.Round(d*1e6)] = true
	}
	if len(radii) < 2 {
		t.Fatalf("all waypoints share one radius, jitter is not per waypoint")
	}
}

func TestCandidatesOutAndBackShape(t *testing.T) {
	g := NewGenerator(1)
	prefs := validPrefs()
	prefs.Shape = ShapeOutAndBack
	prefs.Alternatives = 1

	specs := layoutAll(g, 59.9139, 10.7522, prefs, nil)
	if len(specs) != 1 {
		t.Fatalf("specs: %d", len(specs))
	}

	wps := specs[0].Waypoints
	if len(wps) != 5 {
		t.Fatalf("out-and-back waypoint count: %d", len(wps))
	}
	if wps[0] != wps[4] || wps[1] != wps[3] {
		t.Fatalf("return leg must retrace the outbound leg")
	}

	d := prefs.DistanceKm / 2.4
	turnDist := geo.HaversineKm(59.9139, 10.7522, wps[2][1], wps[2][0])
	if math.Abs(turnDist-d) > 0.02 {
		t.Fatalf("turnaround at %v km, want %v", turnDist, d)
	}
	midDist := geo.HaversineKm(59.9139, 10.7522, wps[1][1], wps[1][0])
	if math.Abs(midDist-0.7*d) > 0.02 {
		t.Fatalf("intermediate at %v km, want %v", midDist, 0.7*d)
	}
}

func TestCandidatesSweepsBearingsAndMultipliers(t *testing.T) {
	g := NewGenerator(1)
	prefs := validPrefs()
	prefs.Alternatives = 24

	specs := layoutAll(g, 59.9139, 10.7522, prefs, nil)
	if len(specs) != 24 {
		t.Fatalf("expected 24 specs, got %d", len(specs))
	}

	bearings := map[float64]int{}
	targets := map[float64]int{}
	for _, spec := range specs {
		bearings[spec.BearingDeg]++
		targets[math.Round(spec.TargetKm*10)/10]++
	}
	if len(bearings) != 8 {
		t.Fatalf("expected 8 distinct bearings, got %d", len(bearings))
	}
	for _, want := range []float64{4.5, 5.0, 5.5} {
		if targets[want] != 8 {
			t.Fatalf("target %v appears %d times", want, targets[want])
		}
	}
}

func TestCandidatesDefaultLimit(t *testing.T) {
	g := NewGenerator(1)
	prefs := validPrefs()

	specs := layoutAll(g, 59.9139, 10.7522, prefs, nil)
	if len(specs) != defaultAlternatives {
		t.Fatalf("expected %d specs, got %d", defaultAlternatives, len(specs))
	}
}

func TestCorrectionStateFirstObservation(t *testing.T) {
	s := NewCorrectionState()
	if f := s.Factor(90); f != 1.0 {
		t.Fatalf("unobserved factor: %v", f)
	}

	// routes snap 25% long, so future targets shrink to 1/1.25
	s.Observe(90, 6.25, 5)
	if f := s.Factor(90); math.Abs(f-0.8) > 1e-9 {
		t.Fatalf("seeded factor: %v", f)
	}
}

func TestCorrectionStateEMA(t *testing.T) {
	s := NewCorrectionState()
	s.Observe(90, 6.25, 5) // seeds 0.8
	s.Observe(90, 5, 5)    // blends toward 1.0

	want := 0.7*0.8 + 0.3*1.0
	if f := s.Factor(90); math.Abs(f-want) > 1e-9 {
		t.Fatalf("blended factor: got %v want %v", f, want)
	}
}

func TestCorrectionStateClamp(t *testing.T) {
	s := NewCorrectionState()
	s.Observe(0, 50, 5)
	if f := s.Factor(0); f != correctionMin {
		t.Fatalf("lower clamp: %v", f)
	}

	s2 := NewCorrectionState()
	s2.Observe(0, 1, 5)
	if f := s2.Factor(0); f != correctionMax {
		t.Fatalf("upper clamp: %v", f)
	}
}

func TestCorrectionStateBuckets(t *testing.T) {
	s := NewCorrectionState()
	s.Observe(88, 6.25, 5)

	// 88 and 92 share the 90 degree bucket, 130 rounds to 135
	if f := s.Factor(92); math.Abs(f-0.8) > 1e-9 {
		t.Fatalf("bucket neighbor: %v", f)
	}
	if f := s.Factor(130); f != 1.0 {
		t.Fatalf("distinct bucket polluted: %v", f)
	}
	// 359 wraps to the 0 bucket
	s.Observe(359, 6.25, 5)
	if f := s.Factor(1); math.Abs(f-0.8) > 1e-9 {
		t.Fatalf("wraparound bucket: %v", f)
	}
}

func TestCorrectionStateConverges(t *testing.T) {
	s := NewCorrectionState()
	// routes consistently snap 30% long; the factor approaches 1/1.3
	for i := 0; i < 30; i++ {
		s.Observe(45, 6.5, 5)
	}
	want := 1 / 1.3
	if f := s.Factor(45); math.Abs(f-want) > 0.01 {
		t.Fatalf("converged factor: got %v want %v", f, want)
	}
}

func TestCorrectionStateIgnoresBadInput(t *testing.T) {
	s := NewCorrectionState()
	s.Observe(0, 0, 5)
	s.Observe(0, 5, 0)
	if f := s.Factor(0); f != 1.0 {
		t.Fatalf("bad input changed state: %v", f)
	}
}

func TestCandidatesApplyCorrection(t *testing.T) {
	state := NewCorrectionState()
	for _, b := range candidateBearings {
		state.Observe(b, 10, 5) // everything snaps double, factor clamps to 0.5
	}

	g := NewGenerator(1)
	prefs := validPrefs()
	prefs.Shape = ShapeOutAndBack
	prefs.Alternatives = 8

	specs := layoutAll(g, 59.9139, 10.7522, prefs, state)
	for _, spec := range specs {
		// corrected target is 0.9 * 5 * 0.5; turnaround sits at target/2.4
		wantTurn := spec.TargetKm * 0.5 / 2.4
		turnDist := geo.HaversineKm(59.9139, 10.7522, spec.Waypoints[2][1], spec.Waypoints[2][0])
		if math.Abs(turnDist-wantTurn) > 0.02 {
			t.Fatalf("correction not applied: turn at %v, want %v", turnDist, wantTurn)
		}
	}
}
