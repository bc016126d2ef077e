package elevation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/einarnot/runningroute/internal/polyline"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func elevationServer(t *testing.T, requestCount *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requestCount++
		lats := strings.Split(r.URL.Query().Get("latitude"), ",")
		elevations := make([]float64, len(lats))
		for i := range elevations {
			elevations[i] = float64(10 * (i + 1))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"elevation": elevations})
	}))
}

func TestElevationsSingleBatch(t *testing.T) {
	count := 0
	srv := elevationServer(t, &count)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	coords := []polyline.Coordinate{
		{Lat: 59.91, Lon: 10.75},
		{Lat: 59.92, Lon: 10.76},
	}

	elevations, err := client.Elevations(context.Background(), coords)
	if err != nil {
		t.Fatalf("elevations: %v", err)
	}
	if len(elevations) != 2 || elevations[0] != 10 || elevations[1] != 20 {
		t.Fatalf("unexpected elevations: %v", elevations)
	}
	if count != 1 {
		t.Fatalf("expected 1 request, got %d", count)
	}
}

func TestElevationsSplitsLargeBatches(t *testing.T) {
	count := 0
	srv := elevationServer(t, &count)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	coords := make([]polyline.Coordinate, 205)
	for i := range coords {
		coords[i] = polyline.Coordinate{Lat: 59.9 + float64(i)*0.0001, Lon: 10.75}
	}

	elevations, err := client.Elevations(context.Background(), coords)
	if err != nil {
		t.Fatalf("elevations: %v", err)
	}
	if len(elevations) != 205 {
		t.Fatalf("expected 205 elevations, got %d", len(elevations))
	}
	if count != 3 {
		t.Fatalf("expected 3 batched requests, got %d", count)
	}
	// concatenation preserves order: first element of each batch is 10
	if elevations[0] != 10 || elevations[100] != 10 || elevations[200] != 10 {
		t.Fatalf("batch order broken: %v %v %v", elevations[0], elevations[100], elevations[200])
	}
}

func TestElevationsUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	count := 0
	srv := elevationServer(t, &count)
	defer srv.Close()

	client := NewClient(srv.URL, rdb)
	coords := []polyline.Coordinate{{Lat: 59.91, Lon: 10.75}, {Lat: 59.92, Lon: 10.76}}

	if _, err := client.Elevations(context.Background(), coords); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.Elevations(context.Background(), coords); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected cache hit on second call, got %d requests", count)
	}
}

func TestElevationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.Elevations(context.Background(), []polyline.Coordinate{{Lat: 1, Lon: 2}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEnrich(t *testing.T) {
	count := 0
	srv := elevationServer(t, &count)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	coords := []polyline.Coordinate{{Lat: 59.91, Lon: 10.75}, {Lat: 59.92, Lon: 10.76}}

	enriched, err := client.Enrich(context.Background(), coords)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if enriched[0].Elevation != 10 || enriched[1].Elevation != 20 {
		t.Fatalf("unexpected enrichment: %+v", enriched)
	}
	if coords[0].Elevation != 0 {
		t.Fatalf("input mutated")
	}
}
