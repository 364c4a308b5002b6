package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/codec"
	"bindkey/internal/engine/keys"
	"bindkey/internal/engine/registry"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
)

// Session is one resolution: every binding it returns lives in its registry,
// so a handle and a key naming the same entity yield the same instance. A
// Session is not safe for concurrent use.
type Session struct {
	id       string
	index    *boundedIndex
	decoder  *codec.Decoder
	recorder KeyRecorder
	logger   *slog.Logger
}

func (s *Session) ID() string { return s.id }

func (s *Session) Registry() *registry.Registry { return s.decoder.Registry() }

// Decode resolves one key in the session.
func (s *Session) Decode(ctx context.Context, key string) (binding.Binding, error) {
	return s.decoder.Decode(ctx, key)
}

// BatchResult maps every request of a batch to its binding. Requests that
// could not be decoded at all are listed in Errors instead.
type BatchResult struct {
	Session   string
	Keys      map[string]binding.Binding
	Handles   map[symbols.Handle]binding.Binding
	Errors    map[string]error
	Cancelled bool
}

func newBatchResult(session string) *BatchResult {
	return &BatchResult{
		Session: session,
		Keys:    make(map[string]binding.Binding),
		Handles: make(map[symbols.Handle]binding.Binding),
		Errors:  make(map[string]error),
	}
}

// Recovered counts the bindings that stand in for unresolved references.
func (r *BatchResult) Recovered() int {
	n := 0
	for _, b := range r.Keys {
		if _, ok := b.(*binding.Recovered); ok {
			n++
		}
	}
	for _, b := range r.Handles {
		if _, ok := b.(*binding.Recovered); ok {
			n++
		}
	}
	return n
}

// ResolveBatch resolves handles first, then keys. Cancellation is checked
// between entities; a cancelled batch returns what it resolved so far together
// with a CANCELLED error.
func (s *Session) ResolveBatch(ctx context.Context, handles []symbols.Handle, keyList []string) (*BatchResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.ResolveBatch", trace.WithAttributes(
		attribute.String("session", s.id),
		attribute.Int("handles", len(handles)),
		attribute.Int("keys", len(keyList)),
	))
	defer span.End()
	start := time.Now()
	defer func() { observability.BatchDuration.Observe(time.Since(start).Seconds()) }()

	res := newBatchResult(s.id)
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return res, s.cancelled(ctx, res, err)
		}
		if _, done := res.Handles[h]; done {
			continue
		}
		res.Handles[h] = s.ResolveHandle(ctx, h)
	}
	for _, key := range keyList {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return res, s.cancelled(ctx, res, err)
		}
		if _, done := res.Keys[key]; done {
			continue
		}
		if strings.TrimSpace(key) == "" {
			res.Errors[key] = coreerrors.New(coreerrors.CodeValidationError, "empty key")
			continue
		}
		b, err := s.decoder.Decode(ctx, key)
		if err != nil {
			res.Errors[key] = err
			continue
		}
		res.Keys[key] = b
	}
	span.SetAttributes(attribute.Int("recovered", res.Recovered()), attribute.Int("errors", len(res.Errors)))
	s.record(ctx, res)
	s.logger.Debug("batch resolved", "handles", len(res.Handles), "keys", len(res.Keys), "recovered", res.Recovered(), "errors", len(res.Errors))
	return res, nil
}

func (s *Session) cancelled(ctx context.Context, res *BatchResult, cause error) error {
	res.Cancelled = true
	observability.BatchCancelledTotal.Inc()
	s.record(context.WithoutCancel(ctx), res)
	s.logger.Info("batch cancelled", "handles", len(res.Handles), "keys", len(res.Keys))
	err := coreerrors.Wrap(cause, coreerrors.CodeCancelled, "batch resolution cancelled")
	return coreerrors.AddContext(err, coreerrors.CtxSession, s.id)
}

// ResolveHandle resolves the innermost declaration or member at a source
// position. A position the index knows nothing about yields a recovered
// binding keyed by the handle.
func (s *Session) ResolveHandle(ctx context.Context, h symbols.Handle) binding.Binding {
	reg := s.Registry()
	el, ok, err := s.index.ElementAt(ctx, h.Path, h.Line, h.Column)
	if err != nil {
		s.logger.Warn("element lookup failed", "handle", h.String(), "error", err)
		return reg.Recovered(h.String(), codec.Reason(err))
	}
	if !ok {
		return reg.Recovered(h.String(), codec.ReasonNotFound)
	}
	decl, err := s.decoder.Declaration(ctx, el.QualifiedName)
	if err != nil {
		return reg.Recovered(keys.TypeKey(el.QualifiedName), codec.Reason(err))
	}
	s.decoder.Complete(ctx, decl)
	switch el.Member {
	case symbols.MemberMethod:
		if el.Index >= 0 && el.Index < len(decl.Methods) {
			return decl.Methods[el.Index]
		}
	case symbols.MemberField:
		if el.Index >= 0 && el.Index < len(decl.Fields) {
			return decl.Fields[el.Index]
		}
	default:
		return decl
	}
	return reg.Recovered(h.String(), codec.ReasonNoMember)
}

func (s *Session) record(ctx context.Context, res *BatchResult) {
	if s.recorder == nil {
		return
	}
	records := make([]symbols.KeyRecord, 0, len(res.Keys)+len(res.Handles))
	add := func(b binding.Binding) {
		_, recovered := b.(*binding.Recovered)
		records = append(records, symbols.KeyRecord{
			Key:       codec.Encode(b),
			Kind:      b.Kind().String(),
			Recovered: recovered,
			Session:   s.id,
		})
	}
	for _, b := range res.Keys {
		add(b)
	}
	for _, b := range res.Handles {
		// A recovered handle is keyed by its position, which is not a key.
		if _, ok := b.(*binding.Recovered); !ok {
			add(b)
		}
	}
	if err := s.recorder.RecordKeys(ctx, records); err != nil {
		s.logger.Warn("recording resolved keys failed", "count", len(records), "error", err)
	}
}
