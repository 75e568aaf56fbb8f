package scorer

import "context"

// Fake returns canned scores. Used by tests and as the dev-mode fallback
// when no model bundle or scoring service is configured.
type Fake struct {
	Result Result
	Err    error
}

// NewFake returns a scorer that always yields the given result.
func NewFake(res Result) *Fake {
	return &Fake{Result: res}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Score(ctx context.Context, sample Sample) (Result, error) {
	if f.Err != nil {
		return Result{}, f.Err
	}
	return f.Result, nil
}

func (f *Fake) Close() error { return nil }
