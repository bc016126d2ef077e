package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AIScorer asks an OpenAI-compatible chat completion endpoint to rank route
// candidates. The model must answer with a strict JSON array, one evaluation
// per candidate.
type AIScorer struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewAIScorer(baseURL, apiKey, model string) *AIScorer {
	return &AIScorer{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are an expert running coach evaluating route candidates.
Score each route from 0.0 to 1.0 on distance accuracy, terrain match, safety,
scenic value and navigation ease. Respond with ONLY a JSON array, one object
per route, shaped like:
[{"routeId":"...","score":0.85,"reasoning":"...","criteria":{"distanceAccuracy":0.9,"terrainMatch":0.8,"safetyScore":0.7,"scenicValue":0.6,"navigationEase":0.9}}]`

// Score submits candidate summaries and parses the model's evaluations. It
// fails when the answer is not valid JSON or does not cover every candidate.
func (s *AIScorer) Score(ctx context.Context, candidates []*Candidate, prefs Preferences) ([]Evaluation, error) {
	summary, err := json.Marshal(candidateSummaries(candidates, prefs))
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(summary)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scorer status %d: %s", resp.StatusCode, detail)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("scorer returned no choices")
	}

	return parseEvaluations(parsed.Choices[0].Message.Content, candidates)
}

type candidateSummary struct {
	RouteID     string  `json:"routeId"`
	DistanceKm  float64 `json:"distanceKm"`
	TargetKm    float64 `json:"targetKm"`
	AscentM     float64 `json:"ascentM"`
	DescentM    float64 `json:"descentM"`
	Terrain     string  `json:"requestedTerrain"`
	Shape       string  `json:"shape"`
	PointCount  int     `json:"pointCount"`
	BearingDeg  float64 `json:"bearingDeg"`
}

func candidateSummaries(candidates []*Candidate, prefs Preferences) []candidateSummary {
	summaries := make([]candidateSummary, 0, len(candidates))
	for _, c := range candidates {
		summaries = append(summaries, candidateSummary{
			RouteID:    c.ID,
			DistanceKm: c.DistanceKm,
			TargetKm:   prefs.DistanceKm,
			AscentM:    c.AscentM,
			DescentM:   c.DescentM,
			Terrain:    prefs.Terrain,
			Shape:      prefs.Shape,
			PointCount: len(c.Coordinates),
			BearingDeg: c.BearingDeg,
		})
	}
	return summaries
}

// parseEvaluations extracts the JSON array, tolerating a markdown code fence
// around it. Every candidate must be covered exactly once.
func parseEvaluations(content string, candidates []*Candidate) ([]Evaluation, error) {
	content = stripFence(content)

	var evaluations []Evaluation
	if err := json.Unmarshal([]byte(content), &evaluations); err != nil {
		return nil, fmt.Errorf("scorer answer is not a JSON array: %w", err)
	}
	if len(evaluations) != len(candidates) {
		return nil, fmt.Errorf("scorer covered %d of %d candidates", len(evaluations), len(candidates))
	}

	remaining := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		remaining[c.ID] = true
	}
	for _, e := range evaluations {
		if !remaining[e.RouteID] {
			return nil, fmt.Errorf("scorer referenced unknown or duplicate route %q", e.RouteID)
		}
		delete(remaining, e.RouteID)
		if e.Score < 0 || e.Score > 1 {
			return nil, fmt.Errorf("score %v out of range for route %q", e.Score, e.RouteID)
		}
	}
	return evaluations, nil
}

func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
