package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecords is returned by ExportCSV on an empty ledger; an empty
// session never produces a header-only file.
var ErrNoRecords = errors.New("session: no records to export")

// exportHeader is a compatibility contract with prior exports.
const exportHeader = "index,file,verdict,prob_real,prob_fake,risk"

// ExportCSV serializes the ledger as CSV, newest-first. The index column
// starts at the ledger's current size and counts down, so the oldest row
// is always 1. Probabilities are fixed to 3 decimals.
func (l *Ledger) ExportCSV() (string, error) {
	recent := l.Recent()
	if len(recent) == 0 {
		return "", ErrNoRecords
	}

	var b strings.Builder
	b.WriteString(exportHeader)
	b.WriteByte('\n')
	for i, rec := range recent {
		fmt.Fprintf(&b, "%d,%s,%s,%.3f,%.3f,%s\n",
			len(recent)-i,
			rec.Label,
			rec.Verdict,
			rec.Scores.ProbReal,
			rec.Scores.ProbFake,
			rec.RiskTier,
		)
	}
	return b.String(), nil
}
