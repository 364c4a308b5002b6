package ports

import (
	"context"

	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/parser"
	"bindkey/internal/engine/symbols"
)

// CodeParser abstracts Java source extraction and file support checks.
type CodeParser interface {
	ParseFile(path string, content []byte, known parser.Known) (*symbols.File, error)
	DeclaredTypes(path string, content []byte) ([]string, error)
	IsSupportedPath(filePath string) bool
}

// IndexRequest defines an index operation. Empty Paths indexes every
// configured source root; otherwise only the given files are refreshed.
type IndexRequest struct {
	Paths []string
}

// IndexResult summarizes a completed index operation.
type IndexResult struct {
	FilesScanned int
	FilesChanged int
	FilesRemoved int
	Types        int
	Warnings     []string
}

// ResolveRequest is one batch of keys and source handles.
type ResolveRequest struct {
	Keys    []string
	Handles []symbols.Handle
}

// Resolution is the outcome of one requested key or handle.
type Resolution struct {
	Request   string
	Key       string
	Kind      binding.Kind
	Recovered bool
	Reason    string
	Error     error
}

// ResolveResult lists resolutions in request order: handles first, then keys.
type ResolveResult struct {
	Session     string
	Resolutions []Resolution
	Cancelled   bool
}

// SignatureResult maps a key to its signature form.
type SignatureResult struct {
	Key       string
	Signature string
	Error     error
}

// VerifyMismatch is a persisted key that no longer decodes to itself.
type VerifyMismatch struct {
	Key     string
	Got     string
	Reason  string
	Session string
}

// VerifyResult summarizes a verification run over the persisted keys.
type VerifyResult struct {
	Checked    int
	Recovered  int
	Mismatches []VerifyMismatch
}

// KeyService exposes indexing and key resolution to driving adapters.
type KeyService interface {
	Index(ctx context.Context, req IndexRequest) (IndexResult, error)
	Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error)
	Signatures(ctx context.Context, keys []string) ([]SignatureResult, error)
	Verify(ctx context.Context) (VerifyResult, error)
	Close(ctx context.Context) error
}

// WatchService keeps the index current while sources change.
type WatchService interface {
	// Start watches the source roots and, when configPath is set, the
	// configuration file. It returns once watching has begun.
	Start(ctx context.Context, configPath string) error
	SetUpdateHandler(handler func(IndexResult))
}
