package verdict

import (
	"reflect"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestDecide_CleanSampleAccepts(t *testing.T) {
	scores := SignalScores{
		ProbReal: 0.9,
		ProbFake: 0.1,
		Anomaly:  f(0.5),
	}

	rec := Decide(scores, DefaultThresholds())

	if rec.Verdict != Accept {
		t.Fatalf("expected ACCEPT, got %s", rec.Verdict)
	}
	if rec.RiskTier != RiskLow {
		t.Fatalf("expected Low risk, got %s", rec.RiskTier)
	}
	if len(rec.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %+v", rec.Reasons)
	}
}

func TestDecide_ConfidentFakeRejectsHighRisk(t *testing.T) {
	scores := SignalScores{ProbReal: 0.3, ProbFake: 0.7}

	rec := Decide(scores, DefaultThresholds())

	if rec.Verdict != Reject {
		t.Fatalf("expected REJECT, got %s", rec.Verdict)
	}
	if rec.RiskTier != RiskHigh {
		t.Fatalf("expected High risk for prob_real<0.5, got %s", rec.RiskTier)
	}
}

func TestDecide_AllChecksFailSuspiciousHighRisk(t *testing.T) {
	scores := SignalScores{
		ProbReal:      0.55,
		ProbFake:      0.45,
		Anomaly:       f(-0.2),
		HasEnrollment: true,
		Similarity:    f(0.7),
	}

	rec := Decide(scores, Thresholds{Similarity: 0.8, Anomaly: 0.0})

	if rec.Verdict != Suspicious {
		t.Fatalf("expected SUSPICIOUS, got %s", rec.Verdict)
	}
	want := []string{ReasonLowRealProbability, ReasonUnusualEmbedding, ReasonLowSimilarity}
	if !reflect.DeepEqual(rec.Reasons, want) {
		t.Fatalf("expected reasons %v, got %v", want, rec.Reasons)
	}
	// risk = 1 (0.5 <= prob_real < 0.75) + 1 anomaly + 1 identity = 3
	if rec.RiskTier != RiskHigh {
		t.Fatalf("expected High risk, got %s", rec.RiskTier)
	}
}

func TestDecide_AbsentScoresDeactivateChecks(t *testing.T) {
	// No anomaly score, no enrollment: only the spoof check can fire.
	scores := SignalScores{ProbReal: 0.95, ProbFake: 0.05}

	rec := Decide(scores, Thresholds{Similarity: 0.99, Anomaly: 1.5})

	if rec.Verdict != Accept {
		t.Fatalf("expected ACCEPT with absent optional scores, got %s (%v)", rec.Verdict, rec.Reasons)
	}
}

func TestDecide_SimilarityIgnoredWithoutEnrollment(t *testing.T) {
	// Similarity present but no enrollment profile existed: check inactive.
	scores := SignalScores{
		ProbReal:   0.9,
		ProbFake:   0.1,
		Similarity: f(0.1),
	}

	rec := Decide(scores, DefaultThresholds())

	if len(rec.Reasons) != 0 {
		t.Fatalf("expected no reasons without enrollment, got %v", rec.Reasons)
	}
}

func TestDecide_BaseRejectIgnoresSecondaryChecks(t *testing.T) {
	// ProbFake > 0.6 forces REJECT even when every threshold check passes.
	scores := SignalScores{
		ProbReal:      0.62,
		ProbFake:      0.65,
		Anomaly:       f(1.0),
		HasEnrollment: true,
		Similarity:    f(0.95),
	}

	rec := Decide(scores, DefaultThresholds())

	if rec.Verdict != Reject {
		t.Fatalf("expected REJECT on base classifier, got %s", rec.Verdict)
	}
}

func TestDecide_VerdictAndRiskAreSeparateAxes(t *testing.T) {
	// Identity mismatch alone: SUSPICIOUS, but risk stays Low (score 1).
	scores := SignalScores{
		ProbReal:      0.9,
		ProbFake:      0.1,
		HasEnrollment: true,
		Similarity:    f(0.5),
	}

	rec := Decide(scores, DefaultThresholds())

	if rec.Verdict != Suspicious {
		t.Fatalf("expected SUSPICIOUS, got %s", rec.Verdict)
	}
	if rec.RiskTier != RiskLow {
		t.Fatalf("expected Low risk with a single mismatch, got %s", rec.RiskTier)
	}
}

func TestDecide_RiskTierBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		scores SignalScores
		th     Thresholds
		want   RiskTier
	}{
		{
			name:   "high probability no failures",
			scores: SignalScores{ProbReal: 0.8, ProbFake: 0.2},
			th:     DefaultThresholds(),
			want:   RiskLow,
		},
		{
			name:   "mid probability alone is low",
			scores: SignalScores{ProbReal: 0.6, ProbFake: 0.4},
			th:     DefaultThresholds(),
			want:   RiskLow,
		},
		{
			name: "mid probability plus anomaly is medium",
			scores: SignalScores{
				ProbReal: 0.6, ProbFake: 0.4, Anomaly: f(-1.0),
			},
			th:   DefaultThresholds(),
			want: RiskMedium,
		},
		{
			name: "both secondary failures at high probability is medium",
			scores: SignalScores{
				ProbReal: 0.9, ProbFake: 0.1, Anomaly: f(-1.0),
				HasEnrollment: true, Similarity: f(0.2),
			},
			th:   DefaultThresholds(),
			want: RiskMedium,
		},
		{
			name:   "hard override below half",
			scores: SignalScores{ProbReal: 0.49, ProbFake: 0.2},
			th:     DefaultThresholds(),
			want:   RiskHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Decide(tc.scores, tc.th)
			if rec.RiskTier != tc.want {
				t.Fatalf("expected %s, got %s (reasons %v)", tc.want, rec.RiskTier, rec.Reasons)
			}
		})
	}
}

func TestDecide_Deterministic(t *testing.T) {
	scores := SignalScores{
		ProbReal:      0.55,
		ProbFake:      0.45,
		Anomaly:       f(-0.2),
		HasEnrollment: true,
		Similarity:    f(0.7),
	}
	th := Thresholds{Similarity: 0.85, Anomaly: 0.1}

	first := Decide(scores, th)
	for i := 0; i < 10; i++ {
		if got := Decide(scores, th); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestDecide_ReasonCountMatchesFailedChecks(t *testing.T) {
	cases := []struct {
		name   string
		scores SignalScores
		want   int
	}{
		{"none", SignalScores{ProbReal: 0.9, ProbFake: 0.1}, 0},
		{"spoof only", SignalScores{ProbReal: 0.55, ProbFake: 0.45}, 1},
		{"spoof and anomaly", SignalScores{ProbReal: 0.55, ProbFake: 0.45, Anomaly: f(-1.0)}, 2},
		{
			"all three",
			SignalScores{ProbReal: 0.55, ProbFake: 0.45, Anomaly: f(-1.0), HasEnrollment: true, Similarity: f(0.1)},
			3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Decide(tc.scores, DefaultThresholds())
			if len(rec.Reasons) != tc.want {
				t.Fatalf("expected %d reasons, got %v", tc.want, rec.Reasons)
			}
		})
	}
}

func TestDecide_ThresholdsSnapshotCarried(t *testing.T) {
	th := Thresholds{Similarity: 0.91, Anomaly: -0.3}
	rec := Decide(SignalScores{ProbReal: 0.9, ProbFake: 0.1}, th)
	if rec.Thresholds != th {
		t.Fatalf("expected thresholds snapshot %+v, got %+v", th, rec.Thresholds)
	}
}

func TestDecide_OutOfRangeInputsStillTotal(t *testing.T) {
	// Policy-nonsensical inputs get a well-defined answer, not a panic.
	rec := Decide(SignalScores{ProbReal: -0.2, ProbFake: 1.7}, DefaultThresholds())
	if rec.Verdict != Reject {
		t.Fatalf("expected REJECT for prob_fake>0.6, got %s", rec.Verdict)
	}
	if rec.RiskTier != RiskHigh {
		t.Fatalf("expected High risk for prob_real<0.5, got %s", rec.RiskTier)
	}
}
