package route

import (
	"errors"
	"testing"
)

func validPrefs() Preferences {
	return Preferences{
		Location:     "59.9139, 10.7522",
		DistanceKm:   5,
		PaceMinPerKm: 5.5,
		Shape:        ShapeLoop,
		Terrain:      TerrainFlat,
	}
}

func TestValidateAccepts(t *testing.T) {
	p := validPrefs()
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Preferences)
		field  string
	}{
		{"empty location", func(p *Preferences) { p.Location = "  " }, "location"},
		{"distance too short", func(p *Preferences) { p.DistanceKm = 0.4 }, "distance_km"},
		{"distance too long", func(p *Preferences) { p.DistanceKm = 50.5 }, "distance_km"},
		{"pace too fast", func(p *Preferences) { p.PaceMinPerKm = 2.9 }, "pace_min_per_km"},
		{"pace too slow", func(p *Preferences) { p.PaceMinPerKm = 8.1 }, "pace_min_per_km"},
		{"pace off grid", func(p *Preferences) { p.PaceMinPerKm = 5.52 }, "pace_min_per_km"},
		{"bad shape", func(p *Preferences) { p.Shape = "figure-eight" }, "shape"},
		{"bad terrain", func(p *Preferences) { p.Terrain = "mountain" }, "terrain"},
		{"negative alternatives", func(p *Preferences) { p.Alternatives = -1 }, "alternatives"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPrefs()
			tc.mutate(&p)
			err := p.Validate()
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, validationErr.Field)
			}
		})
	}
}

func TestValidatePaceGrid(t *testing.T) {
	// 5:05 min/km = 305 seconds falls on the 5 second grid
	p := validPrefs()
	p.PaceMinPerKm = 305.0 / 60.0
	if err := p.Validate(); err != nil {
		t.Fatalf("pace on grid rejected: %v", err)
	}
}

func TestValidateZeroPaceAllowed(t *testing.T) {
	p := validPrefs()
	p.PaceMinPerKm = 0
	if err := p.Validate(); err != nil {
		t.Fatalf("unset pace rejected: %v", err)
	}
}

func TestParseCoordinates(t *testing.T) {
	cases := []struct {
		location string
		lat, lon float64
		ok       bool
	}{
		{"59.9139, 10.7522", 59.9139, 10.7522, true},
		{"  -33.86,151.21 ", -33.86, 151.21, true},
		{"Frogner Park, Oslo", 0, 0, false},
		{"95.0, 10.0", 0, 0, false},
		{"59.0, 200.0", 0, 0, false},
	}

	for _, tc := range cases {
		p := Preferences{Location: tc.location}
		lat, lon, ok := p.ParseCoordinates()
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v", tc.location, tc.ok)
		}
		if ok && (lat != tc.lat || lon != tc.lon) {
			t.Fatalf("%q: got %v, %v", tc.location, lat, lon)
		}
	}
}

func TestEstimatedDuration(t *testing.T) {
	c := Candidate{DistanceKm: 5}
	d := c.EstimatedDuration(6)
	if d.Minutes() != 30 {
		t.Fatalf("expected 30 minutes, got %v", d)
	}
	if c.EstimatedDuration(0) != 0 {
		t.Fatalf("expected zero duration without pace")
	}
}
