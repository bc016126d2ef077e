// Package geocode wraps a Nominatim-style geocoder for resolving free-text
// start locations and reverse-resolving display addresses.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound means the geocoder answered but had no match for the query.
var ErrNotFound = errors.New("location not found")

const cacheTTL = 24 * time.Hour

type Client struct {
	baseURL string
	http    *http.Client
	redis   *redis.Client
}

func NewClient(baseURL string, redisClient *redis.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		redis:   redisClient,
	}
}

type Place struct {
	Lat         float64      `json:"lat"`
	Lon         float64      `json:"lon"`
	DisplayName string       `json:"display_name"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"`
}

// Search geocodes a free-text address into ranked candidate places.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	if query == "" {
		return nil, ErrNotFound
	}

	cacheKey := "geocode:search:" + query
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			var places []Place
			if json.Unmarshal([]byte(raw), &places) == nil && len(places) > 0 {
				return places, nil
			}
		}
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "5")

	results, err := c.fetch(ctx, c.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		place, err := r.toPlace()
		if err != nil {
			continue
		}
		places = append(places, place)
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}

	if c.redis != nil {
		if raw, err := json.Marshal(places); err == nil {
			_ = c.redis.Set(ctx, cacheKey, raw, cacheTTL).Err()
		}
	}
	return places, nil
}

// Reverse resolves a coordinate to a best-effort display address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("User-Agent", "runningroute/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var result nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Place{}, err
	}
	if result.DisplayName == "" {
		return Place{}, ErrNotFound
	}
	return result.toPlace()
}

func (c *Client) fetch(ctx context.Context, url string) ([]nominatimResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "runningroute/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}

func (r nominatimResult) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, err
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, err
	}

	place := Place{Lat: lat, Lon: lon, DisplayName: r.DisplayName}
	if len(r.BoundingBox) == 4 {
		minLat, err1 := strconv.ParseFloat(r.BoundingBox[0], 64)
		maxLat, err2 := strconv.ParseFloat(r.BoundingBox[1], 64)
		minLon, err3 := strconv.ParseFloat(r.BoundingBox[2], 64)
		maxLon, err4 := strconv.ParseFloat(r.BoundingBox[3], 64)
		if err1 == nil && err2 == nil && err3 == nil && err4 == nil {
			place.BoundingBox = &BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
		}
	}
	return place, nil
}
