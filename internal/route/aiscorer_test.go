package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func scorerServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

func evaluationJSON(routeID string) string {
	return `[{"routeId":"` + routeID + `","score":0.82,"reasoning":"good fit","criteria":{"distanceAccuracy":0.9,"terrainMatch":0.8,"safetyScore":0.7,"scenicValue":0.6,"navigationEase":0.9}}]`
}

func TestAIScorerParsesEvaluations(t *testing.T) {
	srv := scorerServer(t, evaluationJSON("route-1"))
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	candidates := []*Candidate{{ID: "route-1", DistanceKm: 5}}

	evaluations, err := scorer.Score(context.Background(), candidates, validPrefs())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(evaluations) != 1 || evaluations[0].Score != 0.82 {
		t.Fatalf("unexpected evaluations: %+v", evaluations)
	}
	if evaluations[0].Criteria.TerrainMatch != 0.8 {
		t.Fatalf("criteria: %+v", evaluations[0].Criteria)
	}
}

func TestAIScorerStripsMarkdownFence(t *testing.T) {
	srv := scorerServer(t, "```json\n"+evaluationJSON("route-1")+"\n```")
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	evaluations, err := scorer.Score(context.Background(), []*Candidate{{ID: "route-1"}}, validPrefs())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if evaluations[0].RouteID != "route-1" {
		t.Fatalf("route id: %s", evaluations[0].RouteID)
	}
}

func TestAIScorerRejectsPartialCoverage(t *testing.T) {
	srv := scorerServer(t, evaluationJSON("route-1"))
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	candidates := []*Candidate{{ID: "route-1"}, {ID: "route-2"}}
	if _, err := scorer.Score(context.Background(), candidates, validPrefs()); err == nil {
		t.Fatalf("expected coverage error")
	}
}

func TestAIScorerRejectsDuplicateRoutes(t *testing.T) {
	content := `[{"routeId":"route-1","score":0.8,"reasoning":"","criteria":{}},` +
		`{"routeId":"route-1","score":0.7,"reasoning":"","criteria":{}}]`
	srv := scorerServer(t, content)
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	candidates := []*Candidate{{ID: "route-1"}, {ID: "route-2"}}
	if _, err := scorer.Score(context.Background(), candidates, validPrefs()); err == nil {
		t.Fatalf("expected duplicate route error")
	}
}

func TestAIScorerRejectsUnknownRoute(t *testing.T) {
	srv := scorerServer(t, evaluationJSON("route-99"))
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	if _, err := scorer.Score(context.Background(), []*Candidate{{ID: "route-1"}}, validPrefs()); err == nil {
		t.Fatalf("expected unknown route error")
	}
}

func TestAIScorerRejectsNonJSON(t *testing.T) {
	srv := scorerServer(t, "I think the first route looks great!")
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	if _, err := scorer.Score(context.Background(), []*Candidate{{ID: "route-1"}}, validPrefs()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAIScorerRejectsOutOfRangeScore(t *testing.T) {
	srv := scorerServer(t, `[{"routeId":"route-1","score":1.4,"reasoning":"","criteria":{}}]`)
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	if _, err := scorer.Score(context.Background(), []*Candidate{{ID: "route-1"}}, validPrefs()); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestAIScorerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	scorer := NewAIScorer(srv.URL, "sk-test", "gpt-4o-mini")
	if _, err := scorer.Score(context.Background(), []*Candidate{{ID: "route-1"}}, validPrefs()); err == nil {
		t.Fatalf("expected status error")
	}
}
