// Package resolver resolves batches of keys and source handles. Each batch runs
// in its own Session: a fresh registry, a decoder over the project index, and
// lookups bounded by a timeout and a rate limit.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"bindkey/internal/engine/codec"
	"bindkey/internal/engine/registry"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/util"
)

const defaultLookupTimeout = 2 * time.Second

type Options struct {
	// LookupTimeout bounds each index lookup. A lookup that runs out degrades
	// the key that needed it to a recovered binding.
	LookupTimeout time.Duration
	// LookupsPerSecond throttles index lookups; zero disables throttling.
	LookupsPerSecond float64
	Burst            int
}

// KeyRecorder persists the keys a batch resolved.
type KeyRecorder interface {
	RecordKeys(ctx context.Context, records []symbols.KeyRecord) error
}

type Resolver struct {
	index    symbols.Table
	opts     Options
	limiter  *util.Limiter
	recorder KeyRecorder
	logger   *slog.Logger
}

func NewResolver(index symbols.Table, opts Options) *Resolver {
	return newResolver(index, opts, nil)
}

// NewResolverWithRecorder resolves against index and records resolved keys
// through recorder, which the caller keeps ownership of.
func NewResolverWithRecorder(index symbols.Table, opts Options, recorder KeyRecorder) *Resolver {
	return newResolver(index, opts, recorder)
}

func newResolver(index symbols.Table, opts Options, recorder KeyRecorder) *Resolver {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaultLookupTimeout
	}
	var limiter *util.Limiter
	if opts.LookupsPerSecond > 0 {
		limiter = util.NewLimiter(opts.LookupsPerSecond, opts.Burst)
	}
	return &Resolver{
		index:    index,
		opts:     opts,
		limiter:  limiter,
		recorder: recorder,
		logger:   slog.Default(),
	}
}

// NewSession starts an isolated resolution session. Sessions share nothing
// mutable but the limiter, so independent sessions may run on separate
// goroutines.
func (r *Resolver) NewSession() *Session {
	reg := registry.New()
	idx := &boundedIndex{
		table:   r.index,
		limiter: r.limiter,
		timeout: r.opts.LookupTimeout,
	}
	return &Session{
		id:       reg.Session(),
		index:    idx,
		decoder:  codec.NewDecoder(reg, idx),
		recorder: r.recorder,
		logger:   r.logger.With("session", reg.Session()),
	}
}

// ResolveBatch resolves handles and keys in one new session.
func (r *Resolver) ResolveBatch(ctx context.Context, handles []symbols.Handle, keyList []string) (*BatchResult, error) {
	return r.NewSession().ResolveBatch(ctx, handles, keyList)
}
