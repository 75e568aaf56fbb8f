package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteScoreDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scores" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req remoteScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Features) != 3 {
			t.Errorf("expected 3 features, got %d", len(req.Features))
		}
		anomaly := -0.4
		_ = json.NewEncoder(w).Encode(remoteScoreResponse{
			ProbReal: 0.82,
			ProbFake: 0.18,
			Anomaly:  &anomaly,
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second)
	res, err := r.Score(context.Background(), Sample{
		Label:    "clip.wav",
		Features: []float32{0.1, 0.2, 0.3},
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.ProbReal != 0.82 || res.ProbFake != 0.18 {
		t.Fatalf("unexpected probabilities: %+v", res)
	}
	if res.Anomaly == nil || *res.Anomaly != -0.4 {
		t.Fatalf("expected anomaly -0.4, got %v", res.Anomaly)
	}
}

func TestRemoteScoreNullAnomalyStaysAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prob_real":0.9,"prob_fake":0.1,"anomaly_score":null}`))
	}))
	defer srv.Close()

	res, err := NewRemote(srv.URL, time.Second).Score(context.Background(), Sample{Features: []float32{1}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if res.Anomaly != nil {
		t.Fatalf("expected absent anomaly, got %v", *res.Anomaly)
	}
}

func TestRemoteScoreSurfacesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, time.Second).Score(context.Background(), Sample{Features: []float32{1}})
	if err == nil {
		t.Fatalf("expected error for 503 response")
	}
}
