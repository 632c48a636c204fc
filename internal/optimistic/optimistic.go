// Package optimistic applies a local change before the server confirms it.
package optimistic

import "context"

// Mutation describes one pending change. Insert shows Pending locally, Commit performs the
// remote call, Reconcile swaps the pending value for the confirmed one and Rollback
// removes it when Commit fails.
type Mutation[T any] struct {
	Pending   T
	Insert    func(pending T)
	Commit    func(ctx context.Context) (T, error)
	Reconcile func(pending, confirmed T)
	Rollback  func(pending T)
}

// Apply runs m. Nothing is retried; the Commit error is returned as is.
func Apply[T any](ctx context.Context, m Mutation[T]) (T, error) {
	if m.Insert != nil {
		m.Insert(m.Pending)
	}
	confirmed, err := m.Commit(ctx)
	if err != nil {
		if m.Rollback != nil {
			m.Rollback(m.Pending)
		}
		var zero T
		return zero, err
	}
	if m.Reconcile != nil {
		m.Reconcile(m.Pending, confirmed)
	}
	return confirmed, nil
}
