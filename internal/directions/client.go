// Package directions wraps the OpenRouteService directions API used to snap
// synthesized waypoints onto the walking network.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/einarnot/runningroute/internal/polyline"
)

// ErrNoRoute means the service answered but found no route between the
// waypoints. Callers skip the candidate and move on; it is not a transport
// failure.
var ErrNoRoute = errors.New("no route found")

const ProfileFootWalking = "foot-walking"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// Route is one snapped route with its decoded 3D geometry.
type Route struct {
	Coordinates []polyline.Coordinate
	DistanceKm  float64
	DurationSec float64
	AscentM     float64
	DescentM    float64
}

type request struct {
	Coordinates  [][]float64    `json:"coordinates"`
	Format       string         `json:"format"`
	Elevation    bool           `json:"elevation"`
	ExtraInfo    []string       `json:"extra_info"`
	Instructions bool           `json:"instructions"`
	Options      requestOptions `json:"options"`
}

type requestOptions struct {
	AvoidFeatures []string `json:"avoid_features"`
}

type response struct {
	Routes []struct {
		Geometry string `json:"geometry"`
		Summary  struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Ascent   float64 `json:"ascent"`
			Descent  float64 `json:"descent"`
		} `json:"summary"`
	} `json:"routes"`
}

// Route snaps an ordered waypoint list ([lon, lat] pairs) onto the network
// for the given travel profile and returns the first route with decoded
// geometry. An empty result set maps to ErrNoRoute.
func (c *Client) Route(ctx context.Context, waypoints [][2]float64, profile string) (Route, error) {
	body := request{
		Coordinates:  make([][]float64, len(waypoints)),
		Format:       "json",
		Elevation:    true,
		ExtraInfo:    []string{"steepness"},
		Instructions: false,
		Options:      requestOptions{AvoidFeatures: []string{"ferries"}},
	}
	for i, wp := range waypoints {
		body.Coordinates[i] = []float64{wp[0], wp[1]}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Route{}, err
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Route{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Route{}, ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Route{}, fmt.Errorf("directions api status %d: %s", resp.StatusCode, detail)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Route{}, err
	}
	if len(parsed.Routes) == 0 {
		return Route{}, ErrNoRoute
	}

	first := parsed.Routes[0]
	return Route{
		Coordinates: polyline.Decode(first.Geometry, 3),
		DistanceKm:  first.Summary.Distance / 1000,
		DurationSec: first.Summary.Duration,
		AscentM:     first.Summary.Ascent,
		DescentM:    first.Summary.Descent,
	}, nil
}
