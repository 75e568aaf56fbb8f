// Package config loads and validates the VoxGuard gateway configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// Config holds VoxGuard configuration.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Thresholds verdict.Thresholds `yaml:"thresholds"`
	Scoring    ScoringConfig      `yaml:"scoring"`
	Enrollment EnrollmentConfig   `yaml:"enrollment"`
	Logging    LoggingConfig      `yaml:"logging"`
	Activation ActivationConfig   `yaml:"activation"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	// APIKeys, when non-empty, gates /v1/* behind bearer-key auth.
	APIKeys []string `yaml:"api_keys"`
}

// ScoringConfig selects how raw signal scores are obtained when the
// caller submits feature vectors instead of precomputed scores.
type ScoringConfig struct {
	Mode           string `yaml:"mode"`       // local | remote | fake
	BundleDir      string `yaml:"bundle_dir"` // local: dir with ONNX models
	FeatureDim     int    `yaml:"feature_dim"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	BaseURL        string `yaml:"base_url"` // remote: scoring service root
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EnrollmentConfig struct {
	Path string `yaml:"path"` // YAML file with enrolled speaker profiles
}

type LoggingConfig struct {
	// ActivationLevel is "metadata" (default) or "full".
	ActivationLevel string `yaml:"activation_level"`
}

type ActivationConfig struct {
	QueueSize int          `yaml:"queue_size"`
	Workers   int          `yaml:"workers"`
	Sinks     []SinkConfig `yaml:"sinks"`
}

type SinkConfig struct {
	Type           string            `yaml:"type"` // file_jsonl | webhook
	Path           string            `yaml:"path"`
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server:     ServerConfig{Addr: ":8080"},
		Thresholds: verdict.DefaultThresholds(),
		Scoring: ScoringConfig{
			Mode:           "fake",
			FeatureDim:     57,
			EmbeddingDim:   52,
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{ActivationLevel: "metadata"},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	if cfg.Thresholds.Similarity == 0 {
		cfg.Thresholds.Similarity = verdict.DefaultThresholds().Similarity
	}
	// Anomaly default is 0.0, which is also the zero value; nothing to do.

	if cfg.Scoring.Mode == "" {
		cfg.Scoring.Mode = "fake"
	}
	// The local feature layout: 26 MFCC means + 26 MFCC stds + 5
	// spectral scalars; embeddings are MFCC mean+std, L2-normalized.
	if cfg.Scoring.FeatureDim == 0 {
		cfg.Scoring.FeatureDim = 57
	}
	if cfg.Scoring.EmbeddingDim == 0 {
		cfg.Scoring.EmbeddingDim = 52
	}
	if cfg.Scoring.TimeoutSeconds == 0 {
		cfg.Scoring.TimeoutSeconds = 10
	}

	if cfg.Logging.ActivationLevel == "" {
		cfg.Logging.ActivationLevel = "metadata"
	}
}
