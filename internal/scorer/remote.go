package scorer

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

// Remote calls an HTTP scoring service that hosts the spoof classifier
// and anomaly detector.
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote builds a client for the scoring service at baseURL.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *Remote) Name() string { return "remote:" + r.baseURL }

type remoteScoreRequest struct {
	Label     string    `json:"label,omitempty"`
	Features  []float32 `json:"features"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type remoteScoreResponse struct {
	ProbReal float64  `json:"prob_real"`
	ProbFake float64  `json:"prob_fake"`
	Anomaly  *float64 `json:"anomaly_score"`
	Error    string   `json:"error,omitempty"`
}

// Score POSTs the sample vectors to the service's /v1/scores endpoint.
func (r *Remote) Score(ctx context.Context, sample Sample) (Result, error) {
	payload, err := json.Marshal(remoteScoreRequest{
		Label:     sample.Label,
		Features:  sample.Features,
		Embedding: sample.Embedding,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/scores", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scoring service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read score response: %w", err)
	}

	var decoded remoteScoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode score response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, fmt.Errorf("scoring service status %d: %s", resp.StatusCode, msg)
	}

	return Result{
		ProbReal: decoded.ProbReal,
		ProbFake: decoded.ProbFake,
		Anomaly:  decoded.Anomaly,
	}, nil
}

func (r *Remote) Close() error { return nil }
