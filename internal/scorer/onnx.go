package scorer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Local runs the spoof classifier and anomaly detector as ONNX sessions
// in-process. The spoof model is required; the anomaly model is optional
// and, when its file is missing, anomaly scores are simply absent.
type Local struct {
	spoof   *ort.AdvancedSession
	anomaly *ort.AdvancedSession

	featureDim   int
	embeddingDim int

	spoofInput    *ort.Tensor[float32]
	spoofOutput   *ort.Tensor[float32]
	anomalyInput  *ort.Tensor[float32]
	anomalyOutput *ort.Tensor[float32]

	// The onnxruntime session is not safe for concurrent Run calls.
	mu sync.Mutex
}

// LocalConfig sizes the model inputs. Dims must match the exported models.
type LocalConfig struct {
	BundleDir    string
	FeatureDim   int
	EmbeddingDim int
}

const (
	spoofModelFile   = "spoof_detector.onnx"
	anomalyModelFile = "anomaly_detector.onnx"
)

// NewLocal initializes the ONNX runtime and loads the model bundle.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.BundleDir == "" {
		return nil, errors.New("bundle dir is empty")
	}
	if cfg.FeatureDim <= 0 || cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("invalid dims: features=%d embedding=%d", cfg.FeatureDim, cfg.EmbeddingDim)
	}

	libPath := resolveSharedLibraryPath(cfg.BundleDir)
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	spoofPath := filepath.Join(cfg.BundleDir, spoofModelFile)
	if _, err := os.Stat(spoofPath); err != nil {
		return nil, fmt.Errorf("spoof model missing at %s: %w", spoofPath, err)
	}

	l := &Local{
		featureDim:   cfg.FeatureDim,
		embeddingDim: cfg.EmbeddingDim,
	}

	var err error
	l.spoofInput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.FeatureDim)))
	if err != nil {
		return nil, fmt.Errorf("allocate features tensor: %w", err)
	}
	// Output order matches the classifier's training labels:
	// [prob_fake, prob_real].
	l.spoofOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		return nil, fmt.Errorf("allocate probabilities tensor: %w", err)
	}
	l.spoof, err = ort.NewAdvancedSession(
		spoofPath,
		[]string{"features"},
		[]string{"probabilities"},
		[]ort.Value{l.spoofInput},
		[]ort.Value{l.spoofOutput},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create spoof session: %w", err)
	}

	anomalyPath := filepath.Join(cfg.BundleDir, anomalyModelFile)
	if _, err := os.Stat(anomalyPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("anomaly model unreadable at %s: %w", anomalyPath, err)
		}
		log.Printf("scorer: anomaly model not present in %s; anomaly scoring disabled", cfg.BundleDir)
		return l, nil
	}

	l.anomalyInput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.EmbeddingDim)))
	if err != nil {
		return nil, fmt.Errorf("allocate embedding tensor: %w", err)
	}
	l.anomalyOutput, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, fmt.Errorf("allocate score tensor: %w", err)
	}
	l.anomaly, err = ort.NewAdvancedSession(
		anomalyPath,
		[]string{"embedding"},
		[]string{"score"},
		[]ort.Value{l.anomalyInput},
		[]ort.Value{l.anomalyOutput},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create anomaly session: %w", err)
	}

	return l, nil
}

func (l *Local) Name() string { return "onnx_local" }

// Score runs the spoof classifier on the sample features and, when both
// the anomaly session and an embedding are available, the anomaly
// detector on the embedding.
func (l *Local) Score(ctx context.Context, sample Sample) (Result, error) {
	if l == nil || l.spoof == nil {
		return Result{}, errors.New("local scorer not initialized")
	}
	if len(sample.Features) != l.featureDim {
		return Result{}, fmt.Errorf("expected %d features, got %d", l.featureDim, len(sample.Features))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	copy(l.spoofInput.GetData(), sample.Features)
	if err := l.spoof.Run(); err != nil {
		return Result{}, fmt.Errorf("spoof model run: %w", err)
	}
	probs := l.spoofOutput.GetData()
	res := Result{
		ProbFake: float64(probs[0]),
		ProbReal: float64(probs[1]),
	}

	if l.anomaly != nil && len(sample.Embedding) > 0 {
		if len(sample.Embedding) != l.embeddingDim {
			return Result{}, fmt.Errorf("expected %d embedding values, got %d", l.embeddingDim, len(sample.Embedding))
		}
		copy(l.anomalyInput.GetData(), sample.Embedding)
		if err := l.anomaly.Run(); err != nil {
			return Result{}, fmt.Errorf("anomaly model run: %w", err)
		}
		score := float64(l.anomalyOutput.GetData()[0])
		res.Anomaly = &score
	}

	return res, nil
}

// Close releases the ONNX sessions and tensors.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.spoof != nil {
		errs = append(errs, l.spoof.Destroy())
	}
	if l.anomaly != nil {
		errs = append(errs, l.anomaly.Destroy())
	}
	if l.spoofInput != nil {
		errs = append(errs, l.spoofInput.Destroy())
	}
	if l.spoofOutput != nil {
		errs = append(errs, l.spoofOutput.Destroy())
	}
	if l.anomalyInput != nil {
		errs = append(errs, l.anomalyInput.Destroy())
	}
	if l.anomalyOutput != nil {
		errs = append(errs, l.anomalyOutput.Destroy())
	}
	return errors.Join(errs...)
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared
// library. ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise probe common
// names and locations, the bundle dir first.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
