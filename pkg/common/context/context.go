package context

import (
	"context"
)

// IsCanceled returns true if the context has been canceled or its deadline passed
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// OrBackground returns ctx, or context.Background when ctx is nil
func OrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
