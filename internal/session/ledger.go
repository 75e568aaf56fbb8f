// Package session holds the in-process record of decisions made during
// the current session. The ledger is the only mutable state in the core:
// append-only, cleared only by an explicit reset.
package session

import (
	"sync"

	"github.com/voxguard-ai/voxguard/internal/verdict"
)

// Ledger is an append-only, insertion-ordered sequence of verdict
// records. All methods are safe for concurrent use; readers never see a
// partially appended record.
type Ledger struct {
	mu      sync.RWMutex
	records []verdict.Record
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a record at the end of the chronological sequence.
func (l *Ledger) Append(rec verdict.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Chronological returns a copy of the records, oldest first.
func (l *Ledger) Chronological() []verdict.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]verdict.Record, len(l.records))
	copy(out, l.records)
	return out
}

// Recent returns a copy of the records, newest first. It is the exact
// reverse of Chronological: insertion order breaks timestamp ties, no
// re-sort by any other key.
func (l *Ledger) Recent() []verdict.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]verdict.Record, len(l.records))
	for i, rec := range l.records {
		out[len(l.records)-1-i] = rec
	}
	return out
}

// Len reports the number of records held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Reset drops every record. Only an explicit session reset may do this.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
