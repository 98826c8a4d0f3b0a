package tx

import (
	"context"
)

// MockManager is a test implementation of Manager.
// It executes the function directly without a database transaction.
type MockManager struct {
	// RunFunc overrides RunInTransaction when set.
	RunFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTransaction implements Manager.
func (m *MockManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, fn)
	}
	return fn(ctx)
}

// ReadOnly implements ReadOnlyManager.
func (m *MockManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

// Ensure compile-time interface compliance.
var _ ReadOnlyManager = (*MockManager)(nil)
