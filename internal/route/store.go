package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/einarnot/runningroute/internal/db"
	"github.com/einarnot/runningroute/internal/elevation"
	"github.com/einarnot/runningroute/internal/polyline"

	"github.com/jackc/pgx/v5"
)

// ErrBatchNotFound means no stored batch matches the request id.
var ErrBatchNotFound = errors.New("batch not found")

// Store persists generation batches in Postgres. Geometry is stored as the
// encoded polyline and decoded on load.
type Store struct {
	db db.Querier
}

func NewStore(querier db.Querier) *Store {
	return &Store{db: querier}
}

func (s *Store) SaveBatch(ctx context.Context, batch *Batch) error {
	prefs, err := json.Marshal(batch.Preferences)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO route_batches (request_id, user_id, preferences, created_at) VALUES ($1, $2, $3, $4)`,
		batch.RequestID, batch.UserID, prefs, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for position, c := range batch.Candidates {
		if err := s.insertCandidate(ctx, batch.RequestID, position, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertCandidate(ctx context.Context, requestID string, position int, c *Candidate) error {
	waypoints, err := json.Marshal(c.Waypoints)
	if err != nil {
		return err
	}
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO route_candidates
		 (id, request_id, position, waypoints, geometry, distance_km, duration_sec, ascent_m, descent_m,
		  bearing_deg, enrichment_state, score, reasoning, criteria, used_external_scoring, profile, terrain)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, requestID, position, waypoints, c.Geometry, c.DistanceKm, c.DurationSec, c.AscentM, c.DescentM,
		c.BearingDeg, c.EnrichmentState, c.Score, c.Reasoning, criteria, c.UsedExternalScoring,
		marshalOrNil(c.Profile), marshalOrNil(c.Terrain))
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, requestID string) (*Batch, error) {
	batch := &Batch{RequestID: requestID}

	var prefs []byte
	err := s.db.QueryRow(ctx,
		`SELECT user_id, preferences, created_at FROM route_batches WHERE request_id = $1`,
		requestID).Scan(&batch.UserID, &prefs, &batch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("select batch: %w", err)
	}
	if err := json.Unmarshal(prefs, &batch.Preferences); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, waypoints, geometry, distance_km, duration_sec, ascent_m, descent_m, bearing_deg,
		        enrichment_state, score, reasoning, criteria, used_external_scoring, profile, terrain
		 FROM route_candidates WHERE request_id = $1 ORDER BY position`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		batch.Candidates = append(batch.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

func scanCandidate(rows pgx.Rows) (*Candidate, error) {
	c := &Candidate{}
	var waypoints, criteria []byte
	var profile, terrain []byte

	err := rows.Scan(&c.ID, &waypoints, &c.Geometry, &c.DistanceKm, &c.DurationSec, &c.AscentM, &c.DescentM,
		&c.BearingDeg, &c.EnrichmentState, &c.Score, &c.Reasoning, &criteria, &c.UsedExternalScoring,
		&profile, &terrain)
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}

	if err := json.Unmarshal(waypoints, &c.Waypoints); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteria, &c.Criteria); err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		c.Profile = &elevation.Profile{}
		if err := json.Unmarshal(profile, c.Profile); err != nil {
			return nil, err
		}
	}
	if len(terrain) > 0 {
		c.Terrain = &elevation.Classification{}
		if err := json.Unmarshal(terrain, c.Terrain); err != nil {
			return nil, err
		}
	}
	c.Coordinates = polyline.Decode(c.Geometry, 3)
	return c, nil
}

func (s *Store) UpdateCandidate(ctx context.Context, requestID string, c *Candidate) error {
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE route_candidates
		 SET geometry = $1, enrichment_state = $2, score = $3, reasoning = $4, criteria = $5,
		     used_external_scoring = $6, profile = $7, terrain = $8
		 WHERE id = $9 AND request_id = $10`,
		c.Geometry, c.EnrichmentState, c.Score, c.Reasoning, criteria,
		c.UsedExternalScoring, marshalOrNil(c.Profile), marshalOrNil(c.Terrain),
		c.ID, requestID)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (s *Store) ListBatches(ctx context.Context, userID string, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		`SELECT request_id, preferences, created_at FROM route_batches
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b := &Batch{UserID: userID}
		var prefs []byte
		var createdAt time.Time
		if err := rows.Scan(&b.RequestID, &prefs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.CreatedAt = createdAt
		if err := json.Unmarshal(prefs, &b.Preferences); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func marshalOrNil(v any) []byte {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case *elevation.Profile:
		if t == nil {
			return nil
		}
	case *elevation.Classification:
		if t == nil {
			return nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
