package server

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/voxguard-ai/voxguard/internal/activation"
	"github.com/voxguard-ai/voxguard/internal/config"
	"github.com/voxguard-ai/voxguard/internal/enroll"
	"github.com/voxguard-ai/voxguard/internal/scorer"
	"github.com/voxguard-ai/voxguard/internal/session"
	"github.com/voxguard-ai/voxguard/internal/telemetry"
	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// Server wraps the HTTP server components for VoxGuard.
type Server struct {
	mux      *http.ServeMux
	cfg      *config.Config
	scorer   scorer.Scorer
	enrolled *enroll.DB
	ledger   *session.Ledger
	emitter  *activation.Emitter
	tele     *telemetry.Provider
	tracer   trace.Tracer
	logLevel string
	apiKeys  map[string]struct{}

	thresholdsMu sync.RWMutex
	thresholds   verdict.Thresholds
}

// New creates a new VoxGuard server with all routes registered.
func New(cfg *config.Config) *Server {
	mux := http.NewServeMux()

	// Build the scorer per config; fall back to the fake scorer on any
	// setup failure so the /v1/analyze precomputed-scores path keeps
	// working without models.
	sc := buildScorer(cfg)

	// Load enrolled speaker profiles (optional).
	enrolled, err := enroll.Load(cfg.Enrollment.Path)
	if err != nil {
		log.Printf("enrollment: failed to load profiles from %s: %v; running without speaker verification", cfg.Enrollment.Path, err)
		enrolled = enroll.NewDB(nil)
	}
	if enrolled.Len() > 0 {
		log.Printf("enrollment: loaded %d speaker profile(s)", enrolled.Len())
	}

	// Build activation sinks + emitter.
	sinks := buildSinks(cfg.Activation.Sinks)
	emitter := activation.NewEmitter(activation.EmitterConfig{
		QueueSize: cfg.Activation.QueueSize,
		Workers:   cfg.Activation.Workers,
	}, sinks)

	// Telemetry is best-effort: on setup failure run with no-op providers.
	tele, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "voxguard",
		Version:  "0.1.0",
	})
	if err != nil || tele == nil {
		log.Printf("telemetry setup failed: %v; continuing without telemetry", err)
		tele, _ = telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: false})
	}

	apiKeys := make(map[string]struct{}, len(cfg.Server.APIKeys))
	for _, k := range cfg.Server.APIKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			apiKeys[k] = struct{}{}
		}
	}

	s := &Server{
		mux:        mux,
		cfg:        cfg,
		scorer:     sc,
		enrolled:   enrolled,
		ledger:     session.NewLedger(),
		emitter:    emitter,
		tele:       tele,
		tracer:     tele.Tracer(),
		logLevel:   strings.ToLower(cfg.Logging.ActivationLevel),
		apiKeys:    apiKeys,
		thresholds: cfg.Thresholds,
	}

	// Routes
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("/v1/session/history", s.handleHistory)
	mux.HandleFunc("/v1/session/export", s.handleExport)
	mux.HandleFunc("/v1/session/reset", s.handleReset)
	mux.HandleFunc("/v1/thresholds", s.handleThresholds)
	mux.HandleFunc("/v1/challenge", s.handleChallenge)

	return s
}

func buildScorer(cfg *config.Config) scorer.Scorer {
	switch strings.ToLower(cfg.Scoring.Mode) {
	case "local":
		sc, err := scorer.NewLocal(scorer.LocalConfig{
			BundleDir:    cfg.Scoring.BundleDir,
			FeatureDim:   cfg.Scoring.FeatureDim,
			EmbeddingDim: cfg.Scoring.EmbeddingDim,
		})
		if err != nil {
			log.Printf("scorer: failed to load ONNX bundle from %s: %v", cfg.Scoring.BundleDir, err)
			log.Printf("falling back to fake scorer")
			return scorer.NewFake(scorer.Result{ProbReal: 0.5, ProbFake: 0.5})
		}
		return sc
	case "remote":
		return scorer.NewRemote(cfg.Scoring.BaseURL, time.Duration(cfg.Scoring.TimeoutSeconds)*time.Second)
	default:
		return scorer.NewFake(scorer.Result{ProbReal: 0.5, ProbFake: 0.5})
	}
}

func buildSinks(configs []config.SinkConfig) []activation.Sink {
	var sinks []activation.Sink
	for _, sc := range configs {
		switch strings.ToLower(sc.Type) {
		case "file_jsonl":
			sink, err := activation.NewFileSink(sc.Path)
			if err != nil {
				log.Printf("activation: failed to open file sink %s: %v; skipping", sc.Path, err)
				continue
			}
			sinks = append(sinks, sink)
		case "webhook":
			sink, err := activation.NewWebhookSink(sc.URL, sc.Headers, time.Duration(sc.TimeoutSeconds)*time.Second)
			if err != nil {
				log.Printf("activation: failed to build webhook sink %s: %v; skipping", sc.URL, err)
				continue
			}
			sinks = append(sinks, sink)
		default:
			log.Printf("activation: unknown sink type %q; skipping", sc.Type)
		}
	}
	return sinks
}

// Start begins serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("VoxGuard gateway running on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// Shutdown flushes the activation queue and telemetry providers.
func (s *Server) Shutdown(ctx context.Context) {
	if s.emitter != nil {
		s.emitter.Close(ctx)
	}
	if s.scorer != nil {
		if err := s.scorer.Close(); err != nil {
			log.Printf("scorer close: %v", err)
		}
	}
	s.tele.Shutdown(ctx)
}

// currentThresholds snapshots the live thresholds for one decision.
func (s *Server) currentThresholds() verdict.Thresholds {
	s.thresholdsMu.RLock()
	defer s.thresholdsMu.RUnlock()
	return s.thresholds
}

// authorized reports whether the request may touch /v1 routes. With no
// configured API keys the gateway is open.
func (s *Server) authorized(r *http.Request) bool {
	if len(s.apiKeys) == 0 {
		return true
	}
	key, ok := parseBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	_, ok = s.apiKeys[key]
	return ok
}

// parseBearerToken extracts the token from an Authorization: Bearer header.
func parseBearerToken(h string) (string, bool) {
	if h == "" {
		return "", false
	}
	parts := strings.Fields(h)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// embeddingHash returns a short stable fingerprint of an embedding so
// audit events can correlate samples without carrying the vector.
func embeddingHash(embedding []float32) string {
	if len(embedding) == 0 {
		return ""
	}
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])[:16]
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeError writes the VoxGuard error JSON envelope.
func writeError(w http.ResponseWriter, status int, message, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Message: message,
			Type:    typ,
		},
	})
}
