package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxguard-ai/voxguard/internal/activation"
	"github.com/voxguard-ai/voxguard/internal/challenge"
	"github.com/voxguard-ai/voxguard/internal/config"
	"github.com/voxguard-ai/voxguard/internal/scorer"
	"github.com/voxguard-ai/voxguard/internal/session"
	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

// analyzeRequest accepts either precomputed signal scores or raw feature
// vectors to run through the configured scorer. Exactly one of the two
// shapes must be present.
type analyzeRequest struct {
	File      string     `json:"file"`
	Scores    *rawScores `json:"scores,omitempty"`
	Features  []float32  `json:"features,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"`
}

type rawScores struct {
	ProbReal float64  `json:"prob_real"`
	ProbFake float64  `json:"prob_fake"`
	Anomaly  *float64 `json:"anomaly_score,omitempty"`
	// HasEnrollment is an independent input: when omitted, enrollment is
	// inferred from similarity presence.
	HasEnrollment *bool    `json:"has_enrollment,omitempty"`
	Similarity    *float64 `json:"similarity,omitempty"`
}

// maxAnalyzeBodyBytes bounds the analyze payload; feature and embedding
// vectors are small, so anything past this is not a legitimate request.
const maxAnalyzeBodyBytes = 1 << 20

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	start := time.Now()
	ctx, root := s.startSpan(r.Context(), "voxguard.analyze", trace.SpanKindServer, map[string]interface{}{
		"http.method": r.Method,
		"http.route":  "/v1/analyze",
	})
	defer root.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxAnalyzeBodyBytes)

	var reqBody analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		if isRequestTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "invalid_request_error")
			return
		}
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if reqBody.File == "" {
		writeError(w, http.StatusBadRequest, "missing file label", "invalid_request_error")
		return
	}
	// The export format is fixed unquoted CSV; labels must stay plain.
	if strings.ContainsAny(reqBody.File, ",\r\n") {
		writeError(w, http.StatusBadRequest, "file label must not contain commas or line breaks", "invalid_request_error")
		return
	}

	var (
		scores    verdict.SignalScores
		bestMatch string
		scorerMs  float64
	)

	switch {
	case reqBody.Scores != nil:
		if err := validateRawScores(reqBody.Scores); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
			return
		}
		hasEnrollment := reqBody.Scores.Similarity != nil
		if reqBody.Scores.HasEnrollment != nil {
			hasEnrollment = *reqBody.Scores.HasEnrollment
		}
		scores = verdict.SignalScores{
			ProbReal:      reqBody.Scores.ProbReal,
			ProbFake:      reqBody.Scores.ProbFake,
			Anomaly:       reqBody.Scores.Anomaly,
			HasEnrollment: hasEnrollment,
			Similarity:    reqBody.Scores.Similarity,
		}

	case len(reqBody.Features) > 0:
		scoreCtx, scoreSpan := s.startSpan(ctx, "voxguard.score", trace.SpanKindInternal, map[string]interface{}{
			"voxguard.scorer": s.scorer.Name(),
		})
		scorerStart := time.Now()
		res, err := s.scorer.Score(scoreCtx, scorer.Sample{
			Label:     reqBody.File,
			Features:  reqBody.Features,
			Embedding: reqBody.Embedding,
		})
		scorerMs = float64(time.Since(scorerStart).Milliseconds())
		scoreSpan.End()
		if err != nil {
			log.Printf("scorer %q error: %v", s.scorer.Name(), err)
			writeError(w, http.StatusBadGateway, "scoring failed", "scorer_error")
			return
		}
		scores = verdict.SignalScores{
			ProbReal: res.ProbReal,
			ProbFake: res.ProbFake,
			Anomaly:  res.Anomaly,
		}
		if len(reqBody.Embedding) > 0 && s.enrolled.Len() > 0 {
			if m, ok := s.enrolled.BestMatch(reqBody.Embedding); ok {
				sim := m.Similarity
				scores.HasEnrollment = true
				scores.Similarity = &sim
				bestMatch = m.ID
			}
		}

	default:
		writeError(w, http.StatusBadRequest, "either scores or features must be provided", "invalid_request_error")
		return
	}

	th := s.currentThresholds()
	rec := verdict.Decide(scores, th)
	rec.ID = uuid.NewString()
	rec.Label = reqBody.File
	rec.Timestamp = time.Now().UTC()
	rec.BestMatch = bestMatch
	rec.EmbeddingHash = embeddingHash(reqBody.Embedding)

	s.ledger.Append(rec)

	setSpanAttrs(root, map[string]interface{}{
		"voxguard.verdict":      string(rec.Verdict),
		"voxguard.risk_tier":    string(rec.RiskTier),
		"voxguard.reason_count": len(rec.Reasons),
	})

	totalMs := float64(time.Since(start).Milliseconds())
	ev := activation.BuildEvent(activation.BuildParams{
		Record:    rec,
		RequestID: rec.ID,
		Level:     s.logLevel,
		TimingMs:  activation.TimingMs{Scorer: scorerMs, Total: totalMs},
	})
	s.emitter.Emit(ctx, ev)

	s.tele.RecordRequestMetrics(string(rec.Verdict), string(rec.RiskTier), s.scorer.Name(), totalMs, scorerMs)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		log.Printf("failed to write analyze response: %v", err)
	}
}

// validateRawScores is the boundary check for caller-supplied scores.
// The decision engine itself is total; rejecting nonsense inputs is the
// transport layer's job.
func validateRawScores(sc *rawScores) error {
	if sc.ProbReal < 0 || sc.ProbReal > 1 {
		return fmt.Errorf("prob_real must be in [0,1], got %g", sc.ProbReal)
	}
	if sc.ProbFake < 0 || sc.ProbFake > 1 {
		return fmt.Errorf("prob_fake must be in [0,1], got %g", sc.ProbFake)
	}
	if sc.Similarity != nil && (*sc.Similarity < -1 || *sc.Similarity > 1) {
		return fmt.Errorf("similarity must be in [-1,1], got %g", *sc.Similarity)
	}
	return nil
}

type historyResponse struct {
	Order   string           `json:"order"`
	Count   int              `json:"count"`
	Records []verdict.Record `json:"records"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	order := r.URL.Query().Get("order")
	if order == "" {
		order = "recent"
	}

	var records []verdict.Record
	switch order {
	case "recent":
		records = s.ledger.Recent()
	case "chronological":
		records = s.ledger.Chronological()
	default:
		writeError(w, http.StatusBadRequest, "order must be recent or chronological", "invalid_request_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(historyResponse{
		Order:   order,
		Count:   len(records),
		Records: records,
	}); err != nil {
		log.Printf("failed to write history response: %v", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	csv, err := s.ledger.ExportCSV()
	if err != nil {
		if errors.Is(err, session.ErrNoRecords) {
			writeError(w, http.StatusNotFound, "no records to export", "empty_session_error")
			return
		}
		writeError(w, http.StatusInternalServerError, "export failed", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="voxguard_session.csv"`)
	if _, err := w.Write([]byte(csv)); err != nil {
		log.Printf("failed to write export response: %v", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	cleared := s.ledger.Len()
	s.ledger.Reset()
	log.Printf("session reset; %d record(s) cleared", cleared)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"cleared": cleared})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.currentThresholds())

	case http.MethodPut:
		var th verdict.Thresholds
		if err := json.NewDecoder(r.Body).Decode(&th); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := config.ValidateThresholds(th); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
			return
		}

		s.thresholdsMu.Lock()
		s.thresholds = th
		s.thresholdsMu.Unlock()
		log.Printf("thresholds updated: similarity=%.2f anomaly=%.2f", th.Similarity, th.Anomaly)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(th)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing API key", "authentication_error")
		return
	}

	phrase, err := challenge.Phrase()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "challenge generation failed", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"phrase": phrase})
}

// startSpan opens a span on the server's tracer with optional attributes.
func (s *Server) startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs map[string]interface{}) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithSpanKind(kind))
	setSpanAttrs(span, attrs)
	return ctx, span
}

func setSpanAttrs(span trace.Span, attrs map[string]interface{}) {
	if span == nil || len(attrs) == 0 {
		return
	}
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

func isRequestTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
