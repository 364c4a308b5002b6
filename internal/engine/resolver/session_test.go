package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/codec"
	"bindkey/internal/engine/symbols"
)

const fooKey = "Lp/X;.foo<U:Ljava/lang/Object;>(TU;)V"

func fixtureTable() *symbols.MemoryTable {
	return symbols.NewMemoryTable(
		&symbols.File{
			Path:    "java/lang/Object.java",
			Package: "java.lang",
			Types: []symbols.TypeDecl{
				{QualifiedName: "java.lang.Object", Kind: "class"},
				{QualifiedName: "java.lang.String", Kind: "class", Superclass: "Ljava.lang.Object;"},
			},
		},
		&symbols.File{
			Path:    "p/X.java",
			Package: "p",
			Types: []symbols.TypeDecl{{
				QualifiedName: "p.X",
				Kind:          "class",
				TypeParams:    []symbols.TypeParam{{Name: "E"}},
				Fields:        []symbols.FieldDecl{{Name: "value", Type: "TE;"}},
				Methods: []symbols.MethodDecl{
					{Name: "foo", TypeParams: []symbols.TypeParam{{Name: "U"}}, Params: []string{"TU;"}, Return: "V"},
				},
			}},
			Elements: []symbols.Element{
				{Path: "p/X.java", StartLine: 1, StartColumn: 1, EndLine: 9, EndColumn: 1, QualifiedName: "p.X", Member: symbols.MemberType},
				{Path: "p/X.java", StartLine: 2, StartColumn: 5, EndLine: 2, EndColumn: 20, QualifiedName: "p.X", Member: symbols.MemberField, Index: 0},
				{Path: "p/X.java", StartLine: 3, StartColumn: 5, EndLine: 5, EndColumn: 5, QualifiedName: "p.X", Member: symbols.MemberMethod, Index: 0},
			},
		},
	)
}

func TestHandleAndKeyYieldSameBinding(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{})
	res, err := r.ResolveBatch(context.Background(),
		[]symbols.Handle{{Path: "p/X.java", Line: 4, Column: 7}, {Path: "p/X.java", Line: 1, Column: 1}, {Path: "p/X.java", Line: 2, Column: 6}},
		[]string{fooKey, "Lp/X<TE;>;", "Lp/X;.value)TE;"},
	)
	require.NoError(t, err)
	require.False(t, res.Cancelled)
	require.Empty(t, res.Errors)

	assert.Same(t, res.Keys[fooKey], res.Handles[symbols.Handle{Path: "p/X.java", Line: 4, Column: 7}])
	assert.Same(t, res.Keys["Lp/X<TE;>;"], res.Handles[symbols.Handle{Path: "p/X.java", Line: 1, Column: 1}])
	assert.Same(t, res.Keys["Lp/X;.value)TE;"], res.Handles[symbols.Handle{Path: "p/X.java", Line: 2, Column: 6}])
	assert.Equal(t, 0, res.Recovered())
}

func TestBatchSeparatesMalformedAndRecovered(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{})
	res, err := r.ResolveBatch(context.Background(),
		[]symbols.Handle{{Path: "p/Missing.java", Line: 1, Column: 1}},
		[]string{"Lp/X", "Lp/Missing;", ""},
	)
	require.NoError(t, err)

	var de *codec.DecodeError
	require.True(t, errors.As(res.Errors["Lp/X"], &de))
	assert.Equal(t, 4, de.Offset)
	assert.True(t, coreerrors.IsCode(res.Errors[""], coreerrors.CodeValidationError))

	rec, ok := res.Keys["Lp/Missing;"].(*binding.Recovered)
	require.True(t, ok)
	assert.Equal(t, codec.ReasonNotFound, rec.Reason)

	handle, ok := res.Handles[symbols.Handle{Path: "p/Missing.java", Line: 1, Column: 1}].(*binding.Recovered)
	require.True(t, ok)
	assert.Equal(t, "p/Missing.java:1:1", handle.RequestedKey)
	assert.Equal(t, 2, res.Recovered())
}

// cancellingTable cancels the batch context while serving its first lookup.
type cancellingTable struct {
	*symbols.MemoryTable
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancellingTable) Lookup(ctx context.Context, qualifiedName string) (*symbols.TypeDecl, bool, error) {
	c.once.Do(c.cancel)
	return c.MemoryTable.Lookup(ctx, qualifiedName)
}

func TestCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	table := &cancellingTable{MemoryTable: fixtureTable(), cancel: cancel}
	r := NewResolver(table, Options{})

	res, err := r.ResolveBatch(ctx, nil, []string{"Lp/X<TE;>;", fooKey})
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeCancelled))
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)

	first, ok := res.Keys["Lp/X<TE;>;"].(*binding.TypeDeclaration)
	require.True(t, ok, "expected the key in flight to finish, got %T", res.Keys["Lp/X<TE;>;"])
	assert.Equal(t, "p.X", first.QualifiedName)
	assert.NotContains(t, res.Keys, fooKey)
}

type blockingTable struct {
	*symbols.MemoryTable
	block string
}

func (b *blockingTable) Lookup(ctx context.Context, qualifiedName string) (*symbols.TypeDecl, bool, error) {
	if qualifiedName == b.block {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	return b.MemoryTable.Lookup(ctx, qualifiedName)
}

func TestLookupTimeoutRecovers(t *testing.T) {
	table := &blockingTable{MemoryTable: fixtureTable(), block: "p.X"}
	r := NewResolver(table, Options{LookupTimeout: 20 * time.Millisecond})

	res, err := r.ResolveBatch(context.Background(), nil, []string{"Lp/X<Ljava/lang/String;>;", "Ljava/lang/String;"})
	require.NoError(t, err)

	rec, ok := res.Keys["Lp/X<Ljava/lang/String;>;"].(*binding.Recovered)
	require.True(t, ok)
	assert.Equal(t, codec.ReasonLookupTimeout, rec.Reason)
	assert.IsType(t, &binding.TypeDeclaration{}, res.Keys["Ljava/lang/String;"])
}

func TestRateLimitedLookupsStillResolve(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{LookupsPerSecond: 1000, Burst: 2})
	res, err := r.ResolveBatch(context.Background(), nil, []string{"Lp/X<Ljava/lang/String;>;"})
	require.NoError(t, err)
	assert.IsType(t, &binding.Parameterized{}, res.Keys["Lp/X<Ljava/lang/String;>;"])
}

func TestThrottledLookupRecoversAsTimeout(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{LookupTimeout: 20 * time.Millisecond, LookupsPerSecond: 0.1, Burst: 1})
	res, err := r.ResolveBatch(context.Background(), nil, []string{"Ljava/lang/String;", "Lp/X;"})
	require.NoError(t, err)

	rec, ok := res.Keys["Lp/X;"].(*binding.Recovered)
	require.True(t, ok, "expected recovery, got %T", res.Keys["Lp/X;"])
	assert.Equal(t, codec.ReasonLookupTimeout, rec.Reason)
}

type memoryRecorder struct {
	records []symbols.KeyRecord
}

func (m *memoryRecorder) RecordKeys(_ context.Context, records []symbols.KeyRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func TestBatchRecordsResolvedKeys(t *testing.T) {
	rec := &memoryRecorder{}
	r := NewResolverWithRecorder(fixtureTable(), Options{}, rec)
	res, err := r.ResolveBatch(context.Background(),
		[]symbols.Handle{{Path: "nowhere.java", Line: 1, Column: 1}},
		[]string{"Lp/X<Ljava/lang/String;>;", "Lp/Missing;"},
	)
	require.NoError(t, err)
	require.Len(t, rec.records, 2)

	byKey := make(map[string]symbols.KeyRecord)
	for _, r := range rec.records {
		byKey[r.Key] = r
		assert.Equal(t, res.Session, r.Session)
	}
	assert.False(t, byKey["Lp/X<Ljava/lang/String;>;"].Recovered)
	assert.Equal(t, "parameterized", byKey["Lp/X<Ljava/lang/String;>;"].Kind)
	assert.True(t, byKey["Lp/Missing;"].Recovered)
}

func TestSessionsAreIsolated(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{})
	a, b := r.NewSession(), r.NewSession()
	require.NotEqual(t, a.ID(), b.ID())

	ctx := context.Background()
	x1, err := a.Decode(ctx, "Lp/X<Ljava/lang/String;>;")
	require.NoError(t, err)
	x2, err := b.Decode(ctx, "Lp/X<Ljava/lang/String;>;")
	require.NoError(t, err)

	assert.NotSame(t, x1, x2)
	assert.True(t, binding.IsEqualTo(x1, x2))
	assert.Equal(t, codec.Encode(x1), codec.Encode(x2))
}

func TestConcurrentSessions(t *testing.T) {
	r := NewResolver(fixtureTable(), Options{})
	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.ResolveBatch(context.Background(), nil, []string{fooKey})
			if err == nil {
				results[i] = codec.Encode(res.Keys[fooKey])
			}
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, fooKey, got)
	}
}
