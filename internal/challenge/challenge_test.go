package challenge

import (
	"slices"
	"testing"
)

func TestPhraseComesFromKnownSet(t *testing.T) {
	for i := 0; i < 50; i++ {
		p, err := Phrase()
		if err != nil {
			t.Fatalf("phrase: %v", err)
		}
		if !slices.Contains(phrases, p) {
			t.Fatalf("unexpected phrase %q", p)
		}
	}
}
