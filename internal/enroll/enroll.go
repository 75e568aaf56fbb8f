// Package enroll holds the enrolled speaker profiles the matcher
// compares incoming voice embeddings against.
package enroll

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one enrolled identity with its reference voice embedding.
type Profile struct {
	ID        string    `yaml:"id"`
	Embedding []float32 `yaml:"embedding"`
}

// Match is the best enrolled candidate for a sample embedding.
type Match struct {
	ID         string
	Similarity float64
}

// DB is an immutable in-memory set of enrolled profiles.
type DB struct {
	profiles []Profile
}

// Load reads enrollment profiles from a YAML file. A missing file yields
// an empty DB and no error: identity matching is simply not enforced when
// nobody is enrolled.
func Load(path string) (*DB, error) {
	if path == "" {
		return &DB{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &DB{}, nil
		}
		return nil, fmt.Errorf("read enrollment file: %w", err)
	}

	var doc struct {
		Speakers []Profile `yaml:"speakers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse enrollment file: %w", err)
	}

	for _, p := range doc.Speakers {
		if p.ID == "" {
			return nil, fmt.Errorf("enrollment profile with empty id")
		}
		if len(p.Embedding) == 0 {
			return nil, fmt.Errorf("enrollment profile %q has no embedding", p.ID)
		}
	}

	return &DB{profiles: doc.Speakers}, nil
}

// NewDB builds a DB directly from profiles. Used by tests and the batch CLI.
func NewDB(profiles []Profile) *DB {
	return &DB{profiles: profiles}
}

// Len reports the number of enrolled identities.
func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.profiles)
}

// IDs lists the enrolled identities in file order.
func (db *DB) IDs() []string {
	if db == nil {
		return nil
	}
	out := make([]string, 0, len(db.profiles))
	for _, p := range db.profiles {
		out = append(out, p.ID)
	}
	return out
}

// BestMatch scans every enrolled profile and returns the one with the
// highest cosine similarity to the sample embedding. The second return is
// false when nobody is enrolled or the embedding is empty.
func (db *DB) BestMatch(embedding []float32) (Match, bool) {
	if db == nil || len(db.profiles) == 0 || len(embedding) == 0 {
		return Match{}, false
	}

	best := Match{}
	found := false
	for _, p := range db.profiles {
		sim := cosine(embedding, p.Embedding)
		if !found || sim > best.Similarity {
			best = Match{ID: p.ID, Similarity: sim}
			found = true
		}
	}
	return best, found
}

// cosine computes cosine similarity over the overlapping prefix of the
// two vectors. Zero vectors score 0.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
