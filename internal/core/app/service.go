package app

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/core/ports"
	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/codec"
	"bindkey/internal/engine/keys"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
)

type keyService struct {
	app *App
}

var _ ports.KeyService = (*keyService)(nil)

func NewKeyService(app *App) ports.KeyService {
	return &keyService{app: app}
}

func (a *App) KeyService() ports.KeyService {
	return NewKeyService(a)
}

func (s *keyService) Close(ctx context.Context) error {
	if s == nil || s.app == nil {
		return nil
	}
	return s.app.Close(ctx)
}

func (s *keyService) Index(ctx context.Context, req ports.IndexRequest) (ports.IndexResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.IndexResult{}, coreerrors.Wrap(err, coreerrors.CodeCancelled, "index cancelled")
	}
	if s.app == nil {
		return ports.IndexResult{}, fmt.Errorf("app is required")
	}
	if len(req.Paths) == 0 {
		return s.app.IndexAll(ctx)
	}
	return s.app.Refresh(ctx, req.Paths)
}

// Resolve resolves a batch in one session. On cancellation the resolutions
// finished so far are returned together with the CANCELLED error.
func (s *keyService) Resolve(ctx context.Context, req ports.ResolveRequest) (ports.ResolveResult, error) {
	if s.app == nil {
		return ports.ResolveResult{}, fmt.Errorf("app is required")
	}
	if err := s.app.ensureIndexed(ctx); err != nil {
		return ports.ResolveResult{}, coreerrors.AddContext(err, coreerrors.CtxOperation, "index")
	}

	handles := make([]symbols.Handle, len(req.Handles))
	for i, h := range req.Handles {
		h.Path = s.app.indexPath(h.Path)
		handles[i] = h
	}
	batch, err := s.app.resolver.ResolveBatch(ctx, handles, req.Keys)
	if batch == nil {
		return ports.ResolveResult{}, err
	}

	out := ports.ResolveResult{Session: batch.Session, Cancelled: batch.Cancelled}
	for i, h := range handles {
		b, ok := batch.Handles[h]
		if !ok {
			continue
		}
		r := resolution(req.Handles[i].String(), b)
		if rec, ok := b.(*binding.Recovered); ok && rec.RequestedKey == h.String() {
			// recovered by position: there is no key to report
			r.Key = ""
		}
		out.Resolutions = append(out.Resolutions, r)
	}
	for _, k := range req.Keys {
		if b, ok := batch.Keys[k]; ok {
			out.Resolutions = append(out.Resolutions, resolution(k, b))
		} else if kerr, ok := batch.Errors[k]; ok {
			out.Resolutions = append(out.Resolutions, ports.Resolution{Request: k, Error: kerr})
		}
	}
	return out, err
}

func resolution(request string, b binding.Binding) ports.Resolution {
	r := ports.Resolution{Request: request, Key: codec.Encode(b), Kind: b.Kind()}
	if rec, ok := b.(*binding.Recovered); ok {
		r.Recovered = true
		r.Reason = rec.Reason
	}
	return r
}

// Signatures converts keys to their signature form. Keys are not resolved,
// so the index is not consulted.
func (s *keyService) Signatures(ctx context.Context, keyList []string) ([]ports.SignatureResult, error) {
	out := make([]ports.SignatureResult, 0, len(keyList))
	for _, k := range keyList {
		if err := ctx.Err(); err != nil {
			return out, coreerrors.Wrap(err, coreerrors.CodeCancelled, "signature conversion cancelled")
		}
		if strings.TrimSpace(k) == "" {
			out = append(out, ports.SignatureResult{Key: k, Error: coreerrors.New(coreerrors.CodeValidationError, "empty key")})
			continue
		}
		sig, err := keys.Signature(k)
		if err != nil {
			err = coreerrors.AddContext(coreerrors.Wrap(err, coreerrors.CodeMalformedKey, "malformed key"), coreerrors.CtxKey, k)
		}
		out = append(out, ports.SignatureResult{Key: k, Signature: sig, Error: err})
	}
	return out, nil
}

// Verify re-decodes every persisted key in a fresh session and reports the
// keys that no longer decode to themselves or changed between resolved and
// recovered.
func (s *keyService) Verify(ctx context.Context) (ports.VerifyResult, error) {
	if s.app == nil || s.app.store == nil {
		return ports.VerifyResult{}, coreerrors.New(coreerrors.CodeNotSupported, "verify needs the index store, enable [db]")
	}
	ctx, span := observability.Tracer.Start(ctx, "keyService.Verify")
	defer span.End()

	records, err := s.app.store.Keys(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ports.VerifyResult{}, coreerrors.Wrap(err, coreerrors.CodeInternal, "list persisted keys")
	}
	session := s.app.resolver.NewSession()
	var out ports.VerifyResult
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return out, coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeCancelled, "verify cancelled"),
				coreerrors.CtxSession, session.ID())
		}
		out.Checked++
		b, err := session.Decode(ctx, rec.Key)
		if err != nil {
			out.Mismatches = append(out.Mismatches, ports.VerifyMismatch{Key: rec.Key, Reason: err.Error(), Session: rec.Session})
			continue
		}
		got := codec.Encode(b)
		rb, recovered := b.(*binding.Recovered)
		if recovered {
			out.Recovered++
		}
		switch {
		case got != rec.Key:
			out.Mismatches = append(out.Mismatches, ports.VerifyMismatch{Key: rec.Key, Got: got, Reason: "re-encodes differently", Session: rec.Session})
		case recovered && !rec.Recovered:
			out.Mismatches = append(out.Mismatches, ports.VerifyMismatch{Key: rec.Key, Got: got, Reason: "no longer resolves: " + rb.Reason, Session: rec.Session})
		case !recovered && rec.Recovered:
			out.Mismatches = append(out.Mismatches, ports.VerifyMismatch{Key: rec.Key, Got: got, Reason: "now resolves", Session: rec.Session})
		}
	}
	span.SetAttributes(attribute.Int("checked", out.Checked), attribute.Int("mismatches", len(out.Mismatches)))
	return out, nil
}
