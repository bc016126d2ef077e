package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Oslo (59.9139, 10.7522) to Bergen (60.3913, 5.3221) ~ 300-310 km
	d := HaversineKm(59.9139, 10.7522, 60.3913, 5.3221)
	if d < 290 || d > 320 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineSymmetryAndZero(t *testing.T) {
	ab := HaversineKm(59.9, 10.7, 60.4, 5.3)
	ba := HaversineKm(60.4, 5.3, 59.9, 10.7)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
	if d := HaversineKm(59.9, 10.7, 59.9, 10.7); d != 0 {
		t.Fatalf("distance to self should be 0, got %v", d)
	}
}

func TestBearingRoundTrip(t *testing.T) {
	for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		lat, lon := Destination(59.9139, 10.7522, bearing, 2.5)
		got := BearingDegrees(59.9139, 10.7522, lat, lon)

		diff := math.Abs(got - bearing)
		if diff > 180 {
			diff = 360 - diff
		}
		if diff > 0.5 {
			t.Fatalf("bearing %v: round trip gave %v", bearing, got)
		}
	}
}

func TestDestinationDistance(t *testing.T) {
	lat, lon := Destination(59.9139, 10.7522, 73, 4.2)
	d := HaversineKm(59.9139, 10.7522, lat, lon)
	if math.Abs(d-4.2) > 0.01 {
		t.Fatalf("destination distance off: %v", d)
	}
}

func TestGradientPercent(t *testing.T) {
	if g := GradientPercent(100, 150, 1); math.Abs(g-5) > 1e-9 {
		t.Fatalf("expected 5%%, got %v", g)
	}
	if g := GradientPercent(150, 100, 1); math.Abs(g+5) > 1e-9 {
		t.Fatalf("expected -5%%, got %v", g)
	}
	if g := GradientPercent(100, 200, 0); g != 0 {
		t.Fatalf("expected 0 for zero distance, got %v", g)
	}
}

func TestIsValidCoordinate(t *testing.T) {
	if !IsValidCoordinate(59.9, 10.7) {
		t.Fatalf("expected valid")
	}
	if IsValidCoordinate(91, 0) || IsValidCoordinate(0, 181) || IsValidCoordinate(math.NaN(), 0) {
		t.Fatalf("expected invalid")
	}
}

func TestCardinalDirection(t *testing.T) {
	cases := map[float64]string{0: "N", 44: "NE", 90: "E", 180: "S", 270: "W", 359: "N"}
	for bearing, want := range cases {
		if got := CardinalDirection(bearing); got != want {
			t.Fatalf("bearing %v: got %s want %s", bearing, got, want)
		}
	}
}
