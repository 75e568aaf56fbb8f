// Package verdict implements the audio-authenticity decision engine.
// It fuses the raw outputs of the external spoof classifier, anomaly
// detector, and speaker matcher into an access verdict and a risk tier.
// Decide is a pure function: same scores + same thresholds always yield
// the same record.
package verdict

import "time"

// Verdict is the three-way access decision for an analyzed sample.
type Verdict string

const (
	Accept     Verdict = "ACCEPT"
	Reject     Verdict = "REJECT"
	Suspicious Verdict = "SUSPICIOUS"
)

// RiskTier is the operator-facing severity label. It is a separate axis
// from the verdict: a sample can be SUSPICIOUS but Low risk.
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// Reason strings are part of the output contract; history and export
// layers match them literally.
const (
	ReasonLowRealProbability = "Spoof model: low real probability"
	ReasonUnusualEmbedding   = "Anomaly detector: unusual embedding"
	ReasonLowSimilarity      = "Speaker mismatch: low similarity"
)

// spoofRealFloor is the baseline confidence bar for the spoof classifier.
// It is a fixed policy constant, independent of the operator thresholds.
const spoofRealFloor = 0.6

// fakeRejectBar is the fake probability above which the base classifier
// forces rejection regardless of the secondary checks.
const fakeRejectBar = 0.6

// SignalScores carries the raw outputs of the external scoring services
// for one sample. ProbReal and ProbFake are both given explicitly; the
// engine never assumes ProbFake == 1-ProbReal. Anomaly and Similarity are
// pointers because absence is meaningful: a nil score deactivates the
// corresponding check instead of tripping it at zero.
type SignalScores struct {
	ProbReal      float64  `json:"prob_real"`
	ProbFake      float64  `json:"prob_fake"`
	Anomaly       *float64 `json:"anomaly_score,omitempty"`
	HasEnrollment bool     `json:"has_enrollment"`
	Similarity    *float64 `json:"similarity,omitempty"`
}

// Thresholds are the operator-tunable cutoffs captured at decision time.
type Thresholds struct {
	Similarity float64 `json:"similarity" yaml:"similarity"`
	Anomaly    float64 `json:"anomaly" yaml:"anomaly"`
}

// DefaultThresholds returns the cutoffs the gateway starts with.
func DefaultThresholds() Thresholds {
	return Thresholds{Similarity: 0.8, Anomaly: 0.0}
}

// Record is the outcome of one decision. Label, ID, Timestamp, BestMatch
// and EmbeddingHash are attached by the caller; Decide fills the rest.
type Record struct {
	ID            string       `json:"id,omitempty"`
	Label         string       `json:"file"`
	Timestamp     time.Time    `json:"timestamp,omitempty"`
	Verdict       Verdict      `json:"verdict"`
	RiskTier      RiskTier     `json:"risk_level"`
	Reasons       []string     `json:"reasons"`
	Scores        SignalScores `json:"scores"`
	Thresholds    Thresholds   `json:"thresholds_used"`
	BestMatch     string       `json:"best_match,omitempty"`
	EmbeddingHash string       `json:"embedding_hash,omitempty"`
}

// Decide evaluates one sample against the given thresholds. It is total:
// out-of-range inputs are evaluated literally, never rejected. Range
// validation, where wanted, belongs to the boundary that produced the
// scores (see server handlers).
func Decide(scores SignalScores, th Thresholds) Record {
	spoofFailed := scores.ProbReal < spoofRealFloor
	anomalyFailed := scores.Anomaly != nil && *scores.Anomaly < th.Anomaly
	identityFailed := scores.HasEnrollment && scores.Similarity != nil && *scores.Similarity < th.Similarity

	// Fixed reason order: spoof, anomaly, identity. Reproducibility of
	// the list matters to history/export consumers.
	reasons := []string{}
	if spoofFailed {
		reasons = append(reasons, ReasonLowRealProbability)
	}
	if anomalyFailed {
		reasons = append(reasons, ReasonUnusualEmbedding)
	}
	if identityFailed {
		reasons = append(reasons, ReasonLowSimilarity)
	}

	// The base classifier alone can force REJECT; the threshold checks
	// only ever downgrade an accept to SUSPICIOUS.
	baseReject := scores.ProbFake > fakeRejectBar

	var v Verdict
	switch {
	case baseReject:
		v = Reject
	case len(reasons) == 0:
		v = Accept
	default:
		v = Suspicious
	}

	return Record{
		Verdict:    v,
		RiskTier:   riskTier(scores, anomalyFailed, identityFailed),
		Reasons:    reasons,
		Scores:     scores,
		Thresholds: th,
	}
}

// riskTier scores "how much review attention does this deserve",
// independently of the accept/reject outcome.
func riskTier(scores SignalScores, anomalyFailed, identityFailed bool) RiskTier {
	// A confidently fake sample is worst-case risk no matter what the
	// other detectors say.
	if scores.ProbReal < 0.5 {
		return RiskHigh
	}

	risk := 0
	if scores.ProbReal < 0.75 {
		risk++
	}
	if anomalyFailed {
		risk++
	}
	if identityFailed {
		risk++
	}

	switch {
	case risk <= 1:
		return RiskLow
	case risk == 2:
		return RiskMedium
	default:
		return RiskHigh
	}
}
