// Package challenge generates challenge phrases for the
// challenge-response flow: the caller is asked to speak a fresh phrase
// so a replayed recording cannot match it.
package challenge

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var phrases = []string{
	"Hold position at checkpoint",
	"Authentication required for override",
	"Alpha team proceed to sector three",
	"Secure channel only",
	"Abort mission on my signal",
	"Confirm identity and continue",
}

// Phrase returns a randomly selected challenge phrase.
func Phrase() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(phrases))))
	if err != nil {
		return "", fmt.Errorf("pick challenge phrase: %w", err)
	}
	return phrases[n.Int64()], nil
}
