package config

import (
	"strings"
	"testing"

	"github.com/voxguard-ai/voxguard/internal/verdict"
)

func validConfig() *Config {
	return &Config{
		Server:     ServerConfig{Addr: ":8080"},
		Thresholds: verdict.DefaultThresholds(),
		Scoring:    ScoringConfig{Mode: "fake", FeatureDim: 57, EmbeddingDim: 52, TimeoutSeconds: 10},
		Logging:    LoggingConfig{ActivationLevel: "metadata"},
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server.addr",
		},
		{
			name:   "similarity below range",
			mutate: func(c *Config) { c.Thresholds.Similarity = 0.5 },
			want:   "thresholds.similarity",
		},
		{
			name:   "similarity above range",
			mutate: func(c *Config) { c.Thresholds.Similarity = 1.0 },
			want:   "thresholds.similarity",
		},
		{
			name:   "anomaly out of range",
			mutate: func(c *Config) { c.Thresholds.Anomaly = 2.0 },
			want:   "thresholds.anomaly",
		},
		{
			name:   "unknown scoring mode",
			mutate: func(c *Config) { c.Scoring.Mode = "quantum" },
			want:   "scoring.mode",
		},
		{
			name: "local mode without bundle dir",
			mutate: func(c *Config) {
				c.Scoring.Mode = "local"
				c.Scoring.BundleDir = ""
			},
			want: "bundle_dir",
		},
		{
			name: "remote mode with bad url",
			mutate: func(c *Config) {
				c.Scoring.Mode = "remote"
				c.Scoring.BaseURL = "not a url"
			},
			want: "base_url",
		},
		{
			name:   "bad activation level",
			mutate: func(c *Config) { c.Logging.ActivationLevel = "debug" },
			want:   "activation_level",
		},
		{
			name: "file sink without path",
			mutate: func(c *Config) {
				c.Activation.Sinks = []SinkConfig{{Type: "file_jsonl"}}
			},
			want: "missing path",
		},
		{
			name: "webhook sink without url",
			mutate: func(c *Config) {
				c.Activation.Sinks = []SinkConfig{{Type: "webhook"}}
			},
			want: "missing url",
		},
		{
			name: "unknown sink type",
			mutate: func(c *Config) {
				c.Activation.Sinks = []SinkConfig{{Type: "kafka"}}
			},
			want: "unknown type",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			want: "endpoint",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "udp"}
			},
			want: "protocol",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring = ScoringConfig{Mode: "local", BundleDir: "./models", FeatureDim: 57, EmbeddingDim: 52}
	cfg.Activation.Sinks = []SinkConfig{
		{Type: "file_jsonl", Path: "audit/events.jsonl"},
		{Type: "webhook", URL: "https://audit.example.com/hook"},
	}
	cfg.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "grpc"}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateThresholdBoundariesInclusive(t *testing.T) {
	for _, th := range []verdict.Thresholds{
		{Similarity: SimilarityMin, Anomaly: 0},
		{Similarity: SimilarityMax, Anomaly: 0},
		{Similarity: 0.8, Anomaly: AnomalyMin},
		{Similarity: 0.8, Anomaly: AnomalyMax},
	} {
		if err := ValidateThresholds(th); err != nil {
			t.Fatalf("boundary %+v should be valid: %v", th, err)
		}
	}
}
