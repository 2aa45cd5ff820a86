package search

import "context"

// NullDriver is the driver used when search is disabled: every search is
// empty, indexing is a no-op.
type NullDriver struct{}

// NewNullDriver creates a NullDriver.
func NewNullDriver() *NullDriver { return &NullDriver{} }

// Search always returns no results.
func (*NullDriver) Search(_ context.Context, _, _ string, _ int) ([]Result, error) {
	return nil, nil
}

// SearchMultiple always returns no results.
func (*NullDriver) SearchMultiple(_ context.Context, _ string, _ []string, _ int) ([]Result, error) {
	return nil, nil
}

// Index reports the record as skipped.
func (*NullDriver) Index(_ context.Context, _, _ string) IndexOutcome {
	return OutcomeSkippedUnchanged
}

// Delete is a no-op.
func (*NullDriver) Delete(_ context.Context, _, _ string) {}
