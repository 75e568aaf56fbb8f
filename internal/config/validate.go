package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// Operator threshold ranges. The decision engine evaluates whatever it
// is given; range enforcement happens here and at the thresholds API.
const (
	SimilarityMin = 0.6
	SimilarityMax = 0.99
	AnomalyMin    = -1.5
	AnomalyMax    = 1.5
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := ValidateThresholds(cfg.Thresholds); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Scoring.Mode)) {
	case "local":
		if strings.TrimSpace(cfg.Scoring.BundleDir) == "" {
			return errors.New("scoring.bundle_dir must be set for local mode")
		}
		if cfg.Scoring.FeatureDim <= 0 || cfg.Scoring.EmbeddingDim <= 0 {
			return fmt.Errorf("scoring dims must be positive, got feature_dim=%d embedding_dim=%d",
				cfg.Scoring.FeatureDim, cfg.Scoring.EmbeddingDim)
		}
	case "remote":
		u, err := url.Parse(cfg.Scoring.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("scoring.base_url must be a valid URL for remote mode")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("scoring.base_url must be http or https")
		}
	case "fake":
	default:
		return fmt.Errorf("scoring.mode must be local, remote or fake, got %q", cfg.Scoring.Mode)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.ActivationLevel)) {
	case "", "metadata", "full":
	default:
		return fmt.Errorf("logging.activation_level must be metadata or full, got %q", cfg.Logging.ActivationLevel)
	}

	if err := validateActivationConfig(cfg.Activation); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

// ValidateThresholds enforces the operator ranges. Shared by config
// loading and the live thresholds endpoint.
func ValidateThresholds(th verdict.Thresholds) error {
	if th.Similarity < SimilarityMin || th.Similarity > SimilarityMax {
		return fmt.Errorf("thresholds.similarity must be in [%.2f, %.2f], got %g",
			SimilarityMin, SimilarityMax, th.Similarity)
	}
	if th.Anomaly < AnomalyMin || th.Anomaly > AnomalyMax {
		return fmt.Errorf("thresholds.anomaly must be in [%.1f, %.1f], got %g",
			AnomalyMin, AnomalyMax, th.Anomaly)
	}
	return nil
}

func validateActivationConfig(a ActivationConfig) error {
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("activation sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("activation sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("activation sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("activation sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("activation sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
