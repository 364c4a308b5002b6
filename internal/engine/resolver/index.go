package resolver

import (
	"context"
	"time"

	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/util"
)

// boundedIndex puts a timeout and the rate limit around every index call.
// Lookups ignore the caller's cancellation: a batch is only cancelled between
// entities, so one key is never half decoded.
type boundedIndex struct {
	table   symbols.Table
	limiter *util.Limiter
	timeout time.Duration
}

func (b *boundedIndex) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
}

func (b *boundedIndex) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	// Wait fails early when the deadline cannot be met.
	return b.limiter.Wait(ctx)
}

func (b *boundedIndex) Lookup(ctx context.Context, qualifiedName string) (*symbols.TypeDecl, bool, error) {
	lctx, cancel := b.lookupContext(ctx)
	defer cancel()
	if err := b.wait(lctx); err != nil {
		return nil, false, err
	}
	return b.table.Lookup(lctx, qualifiedName)
}

func (b *boundedIndex) ElementAt(ctx context.Context, path string, line, column int) (*symbols.Element, bool, error) {
	lctx, cancel := b.lookupContext(ctx)
	defer cancel()
	if err := b.wait(lctx); err != nil {
		return nil, false, err
	}
	return b.table.ElementAt(lctx, path, line, column)
}
