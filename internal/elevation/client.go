package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/einarnot/runningroute/internal/polyline"

	"github.com/redis/go-redis/v9"
)

const (
	batchSize = 100
	cacheTTL  = 24 * time.Hour
)

// Client looks up terrain elevations from an Open-Meteo style endpoint.
// A nil redis client disables response caching.
type Client struct {
	baseURL string
	http    *http.Client
	redis   *redis.Client
}

func NewClient(baseURL string, redisClient *redis.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		redis:   redisClient,
	}
}

type apiResponse struct {
	Elevation []float64 `json:"elevation"`
}

// Elevations returns one elevation per input coordinate, in order. Batches
// larger than 100 points are split into sequential sub-requests and the
// results concatenated.
func (c *Client) Elevations(ctx context.Context, coords []polyline.Coordinate) ([]float64, error) {
	if len(coords) == 0 {
		return []float64{}, nil
	}

	if cached, ok := c.cacheGet(ctx, coords); ok {
		return cached, nil
	}

	all := make([]float64, 0, len(coords))
	for start := 0; start < len(coords); start += batchSize {
		end := start + batchSize
		if end > len(coords) {
			end = len(coords)
		}

		batch, err := c.fetchBatch(ctx, coords[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}

	c.cacheSet(ctx, coords, all)
	return all, nil
}

// Enrich returns a copy of coords with the elevation component filled in from
// the lookup service.
func (c *Client) Enrich(ctx context.Context, coords []polyline.Coordinate) ([]polyline.Coordinate, error) {
	elevations, err := c.Elevations(ctx, coords)
	if err != nil {
		return nil, err
	}

	enriched := make([]polyline.Coordinate, len(coords))
	for i, coord := range coords {
		enriched[i] = polyline.Coordinate{Lat: coord.Lat, Lon: coord.Lon, Elevation: elevations[i]}
	}
	return enriched, nil
}

func (c *Client) fetchBatch(ctx context.Context, coords []polyline.Coordinate) ([]float64, error) {
	lats := make([]string, len(coords))
	lons := make([]string, len(coords))
	for i, coord := range coords {
		lats[i] = strconv.FormatFloat(coord.Lat, 'f', -1, 64)
		lons[i] = strconv.FormatFloat(coord.Lon, 'f', -1, 64)
	}

	params := url.Values{}
	params.Set("latitude", strings.Join(lats, ","))
	params.Set("longitude", strings.Join(lons, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevation api status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Elevation) != len(coords) {
		return nil, errors.New("elevation api returned mismatched point count")
	}
	return parsed.Elevation, nil
}

func (c *Client) cacheKey(coords []polyline.Coordinate) string {
	first := coords[0]
	last := coords[len(coords)-1]
	middle := coords[len(coords)/2]
	return fmt.Sprintf("elevation:%.4f,%.4f_%.4f,%.4f_%.4f,%.4f_%d",
		first.Lat, first.Lon, middle.Lat, middle.Lon, last.Lat, last.Lon, len(coords))
}

func (c *Client) cacheGet(ctx context.Context, coords []polyline.Coordinate) ([]float64, bool) {
	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, c.cacheKey(coords)).Result()
	if err != nil {
		return nil, false
	}

	var elevations []float64
	if err := json.Unmarshal([]byte(raw), &elevations); err != nil || len(elevations) != len(coords) {
		return nil, false
	}
	return elevations, true
}

func (c *Client) cacheSet(ctx context.Context, coords []polyline.Coordinate, elevations []float64) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(elevations)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.cacheKey(coords), raw, cacheTTL).Err()
}
