// Package activation emits one audit event per analyzed sample to the
// configured sinks. The session ledger remains the source of truth for
// the session; sinks are fire-and-forget copies for external audit.
package activation

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/voxguard-ai/voxguard/internal/verdict"
)

const (
	// LevelMetadata keeps events to verdict/risk/reasons only.
	LevelMetadata = "metadata"
	// LevelFull additionally carries raw scores and match details.
	LevelFull = "full"
)

// ScorePayload mirrors the raw signals that went into a decision.
type ScorePayload struct {
	ProbReal   float64  `json:"prob_real"`
	ProbFake   float64  `json:"prob_fake"`
	Anomaly    *float64 `json:"anomaly_score,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
	BestMatch  string   `json:"best_match,omitempty"`
}

// TimingMs captures per-stage latency of one analysis.
type TimingMs struct {
	Scorer float64 `json:"scorer"`
	Total  float64 `json:"total"`
}

// Event is the canonical audit payload for one decision.
type Event struct {
	Version       string             `json:"version"`
	Timestamp     time.Time          `json:"timestamp"`
	RequestID     string             `json:"request_id"`
	Sample        string             `json:"sample"`
	Verdict       verdict.Verdict    `json:"verdict"`
	RiskTier      verdict.RiskTier   `json:"risk_level"`
	Reasons       []string           `json:"reasons"`
	Thresholds    verdict.Thresholds `json:"thresholds_used"`
	Scores        *ScorePayload      `json:"scores,omitempty"`
	EmbeddingHash string             `json:"embedding_hash,omitempty"`
	TimingMs      TimingMs           `json:"timing_ms"`
}

// BuildParams collects the inputs for one audit event.
type BuildParams struct {
	Record    verdict.Record
	RequestID string
	Level     string
	TimingMs  TimingMs
}

// BuildEvent assembles the canonical event for a decision. At metadata
// level the raw scores and match details are withheld.
func BuildEvent(params BuildParams) *Event {
	rec := params.Record

	ev := &Event{
		Version:    "1",
		Timestamp:  time.Now().UTC(),
		RequestID:  ensureRequestID(params.RequestID),
		Sample:     rec.Label,
		Verdict:    rec.Verdict,
		RiskTier:   rec.RiskTier,
		Reasons:    append([]string(nil), rec.Reasons...),
		Thresholds: rec.Thresholds,
		TimingMs:   params.TimingMs,
	}

	if params.Level == LevelFull {
		ev.Scores = &ScorePayload{
			ProbReal:   rec.Scores.ProbReal,
			ProbFake:   rec.Scores.ProbFake,
			Anomaly:    cloneFloat(rec.Scores.Anomaly),
			Similarity: cloneFloat(rec.Scores.Similarity),
			BestMatch:  rec.BestMatch,
		}
		ev.EmbeddingHash = rec.EmbeddingHash
	}

	return ev
}

func ensureRequestID(id string) string {
	if id != "" {
		return id
	}
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
