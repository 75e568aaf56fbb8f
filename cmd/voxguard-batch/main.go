package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/voxguard-ai/voxguard/internal/config"
	"github.com/voxguard-ai/voxguard/internal/enroll"
	"github.com/voxguard-ai/voxguard/internal/scorer"
	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// batchSample is one precomputed feature file, as produced by the
// feature-extraction pipeline.
type batchSample struct {
	Label     string    `json:"label"`
	Features  []float32 `json:"features"`
	Embedding []float32 `json:"embedding"`
}

func main() {
	cfgPath := flag.String("config", "voxguard.yaml", "path to config yaml")
	dir := flag.String("dir", "", "directory of sample JSON files (required)")
	flag.Parse()

	if *dir == "" {
		log.Fatalf("dir flag is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	sc, err := buildScorer(cfg)
	if err != nil {
		log.Fatalf("build scorer: %v", err)
	}
	defer func() {
		if err := sc.Close(); err != nil {
			log.Printf("scorer close: %v", err)
		}
	}()

	enrolled, err := enroll.Load(cfg.Enrollment.Path)
	if err != nil {
		log.Fatalf("load enrollment db: %v", err)
	}

	samples, err := loadSamples(*dir)
	if err != nil {
		log.Fatalf("load samples: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("no sample JSON files found in %s", *dir)
	}

	ctx := context.Background()
	th := cfg.Thresholds

	var (
		durations = make([]time.Duration, 0, len(samples))
		counts    = map[verdict.Verdict]int{}
	)

	for _, sample := range samples {
		start := time.Now()

		res, err := sc.Score(ctx, scorer.Sample{
			Label:     sample.Label,
			Features:  sample.Features,
			Embedding: sample.Embedding,
		})
		if err != nil {
			log.Fatalf("score %s: %v", sample.Label, err)
		}

		scores := verdict.SignalScores{
			ProbReal: res.ProbReal,
			ProbFake: res.ProbFake,
			Anomaly:  res.Anomaly,
		}
		bestMatch := ""
		if len(sample.Embedding) > 0 && enrolled.Len() > 0 {
			if m, ok := enrolled.BestMatch(sample.Embedding); ok {
				sim := m.Similarity
				scores.HasEnrollment = true
				scores.Similarity = &sim
				bestMatch = m.ID
			}
		}

		rec := verdict.Decide(scores, th)
		durations = append(durations, time.Since(start))
		counts[rec.Verdict]++

		line := fmt.Sprintf("%s: %s risk=%s prob_real=%.3f prob_fake=%.3f", sample.Label, rec.Verdict, rec.RiskTier, res.ProbReal, res.ProbFake)
		if bestMatch != "" {
			line += fmt.Sprintf(" best_match=%s similarity=%.3f", bestMatch, *scores.Similarity)
		}
		if len(rec.Reasons) > 0 {
			line += " reasons=" + strings.Join(rec.Reasons, "; ")
		}
		fmt.Println(line)
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("batch: n=%d accept=%d reject=%d suspicious=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f scorer=%s\n",
		len(durations),
		counts[verdict.Accept],
		counts[verdict.Reject],
		counts[verdict.Suspicious],
		avg,
		p50,
		p95,
		sc.Name(),
	)
}

func buildScorer(cfg *config.Config) (scorer.Scorer, error) {
	switch strings.ToLower(cfg.Scoring.Mode) {
	case "local":
		return scorer.NewLocal(scorer.LocalConfig{
			BundleDir:    cfg.Scoring.BundleDir,
			FeatureDim:   cfg.Scoring.FeatureDim,
			EmbeddingDim: cfg.Scoring.EmbeddingDim,
		})
	case "remote":
		return scorer.NewRemote(cfg.Scoring.BaseURL, time.Duration(cfg.Scoring.TimeoutSeconds)*time.Second), nil
	default:
		return scorer.NewFake(scorer.Result{ProbReal: 0.5, ProbFake: 0.5}), nil
	}
}

func loadSamples(dir string) ([]batchSample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var samples []batchSample
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var sample batchSample
		if err := json.Unmarshal(data, &sample); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if sample.Label == "" {
			sample.Label = strings.TrimSuffix(entry.Name(), ".json")
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
