package route

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/einarnot/runningroute/internal/directions"
	"github.com/einarnot/runningroute/internal/elevation"
	"github.com/einarnot/runningroute/internal/geocode"
	"github.com/einarnot/runningroute/internal/polyline"

	"github.com/google/uuid"
)

const (
	batchAttempts      = 3
	batchBackoffBase   = 2 * time.Second
	scoringAttempts    = 3
	scoringBackoffBase = 2 * time.Second
)

// DirectionsClient snaps a waypoint sequence onto the walking network.
type DirectionsClient interface {
	Route(ctx context.Context, waypoints [][2]float64, profile string) (directions.Route, error)
}

// ElevationEnricher fills elevation values into a coordinate track.
type ElevationEnricher interface {
	Enrich(ctx context.Context, coords []polyline.Coordinate) ([]polyline.Coordinate, error)
}

// ExternalScorer evaluates a candidate batch remotely.
type ExternalScorer interface {
	Score(ctx context.Context, candidates []*Candidate, prefs Preferences) ([]Evaluation, error)
}

// Geocoder resolves free-text locations to coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Place, error)
}

// BatchStore persists generation results.
type BatchStore interface {
	SaveBatch(ctx context.Context, batch *Batch) error
	GetBatch(ctx context.Context, requestID string) (*Batch, error)
	UpdateCandidate(ctx context.Context, requestID string, candidate *Candidate) error
	ListBatches(ctx context.Context, userID string, limit int) ([]*Batch, error)
}

// ProgressPublisher pushes pipeline progress events to listeners.
type ProgressPublisher interface {
	Publish(ctx context.Context, requestID string, event ProgressEvent)
}

// ProgressEvent is one step of the generation pipeline as seen by a client.
type ProgressEvent struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// Orchestrator runs the full generation pipeline.
type Orchestrator struct {
	directions DirectionsClient
	elevation  ElevationEnricher
	scorer     ExternalScorer
	geocoder   Geocoder
	store      BatchStore
	progress   ProgressPublisher
	fallback   FallbackScorer
	newSeed    func() int64

	// overridable in tests to avoid real waits
	sleep func(context.Context, time.Duration) error
}

func NewOrchestrator(directionsClient DirectionsClient, enricher ElevationEnricher, scorer ExternalScorer, geocoder Geocoder, store BatchStore, progress ProgressPublisher) *Orchestrator {
	return &Orchestrator{
		directions: directionsClient,
		elevation:  enricher,
		scorer:     scorer,
		geocoder:   geocoder,
		store:      store,
		progress:   progress,
		newSeed:    func() int64 { return time.Now().UnixNano() },
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Generate validates preferences, synthesizes candidates, snaps them onto
// the network, scores and ranks them, and persists the batch. Candidates
// that fail to snap are skipped; the whole batch is retried when nothing
// snaps at all.
func (o *Orchestrator) Generate(ctx context.Context, userID string, prefs Preferences) (*Batch, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	o.publish(ctx, requestID, ProgressEvent{Stage: "validated", Message: "preferences accepted"})

	lat, lon, err := o.resolveLocation(ctx, prefs)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, requestID, ProgressEvent{Stage: "located", Message: fmt.Sprintf("start at %.5f, %.5f", lat, lon)})

	// one correction state covers all attempts, so a retry keeps what the
	// previous attempt learned
	state := NewCorrectionState()
	var candidates []*Candidate
	for attempt := 1; attempt <= batchAttempts; attempt++ {
		candidates = o.snapBatch(ctx, requestID, lat, lon, prefs, state)
		if len(candidates) > 0 {
			break
		}
		log.Printf("generation attempt %d produced no routable candidates", attempt)
		if attempt < batchAttempts {
			if o.sleep(ctx, time.Duration(attempt)*batchBackoffBase) != nil {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	o.scoreAndRank(ctx, requestID, candidates, prefs)

	batch := &Batch{
		RequestID:   requestID,
		UserID:      userID,
		Preferences: prefs,
		Candidates:  candidates,
		CreatedAt:   time.Now().UTC(),
	}
	if o.store != nil {
		if err := o.store.SaveBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("persist batch: %w", err)
		}
	}
	o.publish(ctx, requestID, ProgressEvent{Stage: "done", Message: "routes ready", Completed: len(candidates), Total: len(candidates)})
	return batch, nil
}

func (o *Orchestrator) resolveLocation(ctx context.Context, prefs Preferences) (float64, float64, error) {
	if lat, lon, ok := prefs.ParseCoordinates(); ok {
		return lat, lon, nil
	}
	if o.geocoder == nil {
		return 0, 0, &ValidationError{Field: "location", Message: "must be a coordinate pair"}
	}
	places, err := o.geocoder.Search(ctx, prefs.Location)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			return 0, 0, &ValidationError{Field: "location", Message: "could not be resolved"}
		}
		return 0, 0, fmt.Errorf("geocode location: %w", err)
	}
	return places[0].Lat, places[0].Lon, nil
}

// snapBatch lays out and snaps candidates one at a time. Every successful
// snap feeds the correction state before the next candidate is laid out, so
// later candidates in the batch aim better. Failed snaps are isolated and
// logged.
func (o *Orchestrator) snapBatch(ctx context.Context, requestID string, lat, lon float64, prefs Preferences, state *CorrectionState) []*Candidate {
	generator := NewGenerator(o.newSeed())
	steps := generator.Plan(prefs)

	candidates := make([]*Candidate, 0, len(steps))
	for i, step := range steps {
		spec := generator.Layout(lat, lon, prefs, step, state)
		route, err := o.directions.Route(ctx, spec.Waypoints, directions.ProfileFootWalking)
		if err != nil {
			if !errors.Is(err, directions.ErrNoRoute) {
				log.Printf("directions request failed for candidate %d: %v", i, err)
			}
			continue
		}

		state.Observe(spec.BearingDeg, route.DistanceKm, spec.TargetKm)
		candidate := &Candidate{
			ID:              uuid.NewString(),
			Waypoints:       spec.Waypoints,
			Coordinates:     route.Coordinates,
			Geometry:        polyline.Encode(route.Coordinates, 3),
			DistanceKm:      route.DistanceKm,
			DurationSec:     route.DurationSec,
			AscentM:         route.AscentM,
			DescentM:        route.DescentM,
			BearingDeg:      spec.BearingDeg,
			EnrichmentState: GeometryOnly,
		}
		// a stated pace overrides the collaborator's walking estimate
		if prefs.PaceMinPerKm > 0 {
			candidate.DurationSec = math.Round(candidate.EstimatedDuration(prefs.PaceMinPerKm).Seconds())
		}
		candidates = append(candidates, candidate)
		o.publish(ctx, requestID, ProgressEvent{
			Stage:     "routing",
			Message:   fmt.Sprintf("snapped candidate %d", len(candidates)),
			Completed: i + 1,
			Total:     len(steps),
		})
	}
	return candidates
}

// scoreAndRank tries the external scorer with retries, silently degrading to
// the deterministic scorer. Candidates end up sorted by score, best first,
// with ties keeping generation order.
func (o *Orchestrator) scoreAndRank(ctx context.Context, requestID string, candidates []*Candidate, prefs Preferences) {
	evaluations, external := o.scoreWithRetry(ctx, candidates, prefs)
	if !external {
		evaluations = o.fallback.Score(candidates, prefs)
	}

	byID := make(map[string]Evaluation, len(evaluations))
	for _, e := range evaluations {
		byID[e.RouteID] = e
	}
	for _, c := range candidates {
		if e, ok := byID[c.ID]; ok {
			c.Score = e.Score
			c.Reasoning = e.Reasoning
			c.Criteria = e.Criteria
			c.UsedExternalScoring = external
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	o.publish(ctx, requestID, ProgressEvent{Stage: "scored", Message: "candidates ranked", Completed: len(candidates), Total: len(candidates)})
}

func (o *Orchestrator) scoreWithRetry(ctx context.Context, candidates []*Candidate, prefs Preferences) ([]Evaluation, bool) {
	if o.scorer == nil {
		return nil, false
	}
	for attempt := 1; attempt <= scoringAttempts; attempt++ {
		evaluations, err := o.scorer.Score(ctx, candidates, prefs)
		if err == nil {
			return evaluations, true
		}
		log.Printf("external scoring attempt %d failed: %v", attempt, err)
		if attempt < scoringAttempts {
			if o.sleep(ctx, time.Duration(attempt)*scoringBackoffBase) != nil {
				return nil, false
			}
		}
	}
	return nil, false
}

// Enhance upgrades one candidate from geometry-only to a fully enriched
// route with an elevation profile and terrain classification. Already
// enriched candidates are returned as-is.
func (o *Orchestrator) Enhance(ctx context.Context, requestID, candidateID string) (*Candidate, error) {
	batch, err := o.store.GetBatch(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var candidate *Candidate
	for _, c := range batch.Candidates {
		if c.ID == candidateID {
			candidate = c
			break
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("candidate %q not in batch %q", candidateID, requestID)
	}
	if candidate.EnrichmentState == ElevationEnriched {
		return candidate, nil
	}

	coords := candidate.Coordinates
	if o.elevation != nil {
		enriched, err := o.elevation.Enrich(ctx, coords)
		if err != nil {
			return nil, fmt.Errorf("enrich elevations: %w", err)
		}
		coords = enriched
	}

	profile := elevation.ComputeProfile(coords)
	terrain := elevation.ClassifyTerrain(profile)

	candidate.Coordinates = coords
	candidate.Geometry = polyline.Encode(coords, 3)
	candidate.Profile = &profile
	candidate.Terrain = &terrain
	candidate.EnrichmentState = ElevationEnriched

	if err := o.store.UpdateCandidate(ctx, requestID, candidate); err != nil {
		return nil, fmt.Errorf("persist enhancement: %w", err)
	}
	return candidate, nil
}

func (o *Orchestrator) publish(ctx context.Context, requestID string, event ProgressEvent) {
	if o.progress != nil {
		o.progress.Publish(ctx, requestID, event)
	}
}
