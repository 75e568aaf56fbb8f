package enroll

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestBestMatchPicksHighestSimilarity(t *testing.T) {
	db := NewDB([]Profile{
		{ID: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "bravo", Embedding: []float32{0, 1, 0}},
	})

	m, ok := db.BestMatch([]float32{0.9, 0.1, 0})
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.ID != "alpha" {
		t.Fatalf("expected alpha, got %s", m.ID)
	}
	if m.Similarity <= 0.9 {
		t.Fatalf("expected similarity close to 1, got %f", m.Similarity)
	}
}

func TestBestMatchEmptyDB(t *testing.T) {
	if _, ok := NewDB(nil).BestMatch([]float32{1, 2, 3}); ok {
		t.Fatalf("expected no match from empty db")
	}
}

func TestBestMatchZeroVector(t *testing.T) {
	db := NewDB([]Profile{{ID: "alpha", Embedding: []float32{1, 0}}})
	m, ok := db.BestMatch([]float32{0, 0})
	if !ok {
		t.Fatalf("expected a match entry even for zero vector")
	}
	if m.Similarity != 0 {
		t.Fatalf("expected similarity 0 for zero vector, got %f", m.Similarity)
	}
}

func TestCosineIdentical(t *testing.T) {
	v := []float32{0.3, -0.2, 0.7}
	if got := cosine(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected cosine 1.0 for identical vectors, got %f", got)
	}
}

func TestLoadMissingFileYieldsEmptyDB(t *testing.T) {
	db, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if db.Len() != 0 {
		t.Fatalf("expected empty db, got %d profiles", db.Len())
	}
}

func TestLoadParsesProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.yaml")
	doc := `speakers:
  - id: commander
    embedding: [0.1, 0.2, 0.3]
  - id: operator
    embedding: [0.4, 0.5, 0.6]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	db, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if db.Len() != 2 {
		t.Fatalf("expected 2 profiles, got %d", db.Len())
	}
	ids := db.IDs()
	if ids[0] != "commander" || ids[1] != "operator" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestLoadRejectsProfileWithoutEmbedding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.yaml")
	doc := `speakers:
  - id: commander
    embedding: []
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for profile without embedding")
	}
}
