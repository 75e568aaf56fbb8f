// Package scorer obtains raw authenticity signals for an audio sample
// from the scoring backends (local ONNX models or a remote scoring
// service). Scoring always happens before the decision engine runs; the
// engine itself never does I/O.
package scorer

import "context"

// Sample is the normalized input to a scorer. Audio decoding and feature
// extraction happen upstream; the gateway only ever sees the resulting
// vectors.
type Sample struct {
	Label string
	// Features feed the spoof classifier.
	Features []float32
	// Embedding feeds the anomaly detector and the speaker matcher.
	Embedding []float32
}

// Result carries the raw scores for one sample. Anomaly is a pointer
// because the anomaly detector is optional; absence must stay absence,
// never become zero.
type Result struct {
	ProbReal float64
	ProbFake float64
	Anomaly  *float64
}

// Scorer produces raw signal scores for a sample.
type Scorer interface {
	Score(ctx context.Context, sample Sample) (Result, error)
	Name() string
	Close() error
}
