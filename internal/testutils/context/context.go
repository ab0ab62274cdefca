package context

import (
	"context"
	"testing"
	"time"
)

// WithTest returns a context which is done 1 second before the test deadline,
// leaving time to clean up fake servers.
//
// Without test deadline, ctx is returned as it is.
func WithTest(ctx context.Context, t *testing.T) (context.Context, func()) {
	t.Helper()
	if deadline, ok := t.Deadline(); ok {
		return context.WithDeadline(ctx, deadline.Add(-time.Second))
	}
	return ctx, func() {}
}
