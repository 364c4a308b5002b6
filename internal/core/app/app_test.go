package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bindkey/internal/core/config"
	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/core/ports"
	"bindkey/internal/engine/binding"
	"bindkey/internal/engine/symbols"
)

const shopSource = `package p;

public class Shop {
    private Item item;

    public Item find(int count) {
        return item;
    }
}
`

const itemSource = `package p;

public class Item {
}
`

const findKey = "Lp/Shop;.find(I)Lp/Item;"

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, withStore bool) (*App, string) {
	t.Helper()
	root := t.TempDir()
	writeSource(t, root, "src/p/Shop.java", shopSource)
	writeSource(t, root, "src/p/Item.java", itemSource)
	writeSource(t, root, "src/build/Generated.java", "package build;\nclass Generated {}\n")
	writeSource(t, root, "src/p/notes.txt", "not java")

	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Sources.Roots = []string{"src"}
	cfg.Resolver.Workers = 2
	cfg.DB.Enabled = withStore

	a, err := New(cfg, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, root
}

func TestScanSources_AppliesPatterns(t *testing.T) {
	a, root := newTestApp(t, false)
	files, err := a.ScanSources()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "p", "Item.java"),
		filepath.Join(root, "src", "p", "Shop.java"),
	}, files)
}

func TestIndexAll(t *testing.T) {
	a, _ := newTestApp(t, false)
	res, err := a.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesScanned)
	assert.Equal(t, 2, res.FilesChanged)
	assert.Equal(t, 2, res.Types)
	assert.Empty(t, res.Warnings)

	decl, ok, err := a.Table.Lookup(context.Background(), "p.Shop")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, decl.Fields, 1)
	assert.Equal(t, "Lp.Item;", decl.Fields[0].Type)

	again, err := a.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.FilesChanged, "unchanged content must not count as changed")
}

func TestResolve_KeysAndHandles(t *testing.T) {
	a, _ := newTestApp(t, false)
	svc := a.KeyService()

	res, err := svc.Resolve(context.Background(), ports.ResolveRequest{
		Keys: []string{findKey, "Lp/Missing;", "Lp/Shop"},
		Handles: []symbols.Handle{
			{Path: "src/p/Shop.java", Line: 7, Column: 9},
			{Path: "src/p/Shop.java", Line: 4, Column: 18},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Resolutions, 5)
	assert.NotEmpty(t, res.Session)

	method := res.Resolutions[0]
	assert.Equal(t, "src/p/Shop.java:7:9", method.Request)
	assert.Equal(t, findKey, method.Key)
	assert.Equal(t, binding.KindMethod, method.Kind)
	assert.False(t, method.Recovered)

	assert.Equal(t, "Lp/Shop;.item)Lp/Item;", res.Resolutions[1].Key)
	assert.Equal(t, findKey, res.Resolutions[2].Key)

	missing := res.Resolutions[3]
	assert.True(t, missing.Recovered)
	assert.Equal(t, "not-found", missing.Reason)
	assert.Equal(t, "Lp/Missing;", missing.Key)

	malformed := res.Resolutions[4]
	assert.True(t, coreerrors.IsCode(malformed.Error, coreerrors.CodeMalformedKey))
}

func TestResolve_UnknownHandleHasNoKey(t *testing.T) {
	a, _ := newTestApp(t, false)
	res, err := a.KeyService().Resolve(context.Background(), ports.ResolveRequest{
		Handles: []symbols.Handle{{Path: "src/p/Nowhere.java", Line: 1, Column: 1}},
	})
	require.NoError(t, err)
	require.Len(t, res.Resolutions, 1)

	got := res.Resolutions[0]
	assert.Equal(t, "src/p/Nowhere.java:1:1", got.Request)
	assert.True(t, got.Recovered)
	assert.Equal(t, "not-found", got.Reason)
	assert.Empty(t, got.Key)
}

func TestResolve_Cancelled(t *testing.T) {
	a, _ := newTestApp(t, false)
	_, err := a.IndexAll(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := a.KeyService().Resolve(ctx, ports.ResolveRequest{Keys: []string{findKey}})
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeCancelled))
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Resolutions)
}

func TestRefresh(t *testing.T) {
	a, root := newTestApp(t, false)
	_, err := a.IndexAll(context.Background())
	require.NoError(t, err)

	shop := filepath.Join(root, "src", "p", "Shop.java")
	res, err := a.Refresh(context.Background(), []string{shop})
	require.NoError(t, err)
	assert.Zero(t, res.FilesChanged)

	writeSource(t, root, "src/p/Shop.java", "package p;\n\npublic class Shop {\n    int total;\n}\n")
	writeSource(t, root, "src/p/Order.java", "package p;\n\nclass Order {\n    Shop shop;\n}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "src", "p", "Item.java")))

	res, err = a.Refresh(context.Background(), []string{
		shop,
		filepath.Join(root, "src", "p", "Order.java"),
		filepath.Join(root, "src", "p", "Item.java"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesChanged)
	assert.Equal(t, 1, res.FilesRemoved)

	_, ok, _ := a.Table.Lookup(context.Background(), "p.Item")
	assert.False(t, ok)
	order, ok, _ := a.Table.Lookup(context.Background(), "p.Order")
	require.True(t, ok)
	assert.Equal(t, "Lp.Shop;", order.Fields[0].Type)
	shopDecl, ok, _ := a.Table.Lookup(context.Background(), "p.Shop")
	require.True(t, ok)
	assert.Equal(t, "total", shopDecl.Fields[0].Name)
}

func TestSignatures(t *testing.T) {
	a, _ := newTestApp(t, false)
	out, err := a.KeyService().Signatures(context.Background(), []string{"Ljava/util/List<Ljava/lang/String;>;", "Lbroken"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Ljava.util.List<Ljava.lang.String;>;", out[0].Signature)
	assert.NoError(t, out[0].Error)
	assert.True(t, coreerrors.IsCode(out[1].Error, coreerrors.CodeMalformedKey))
}

func TestVerify_NeedsStore(t *testing.T) {
	a, _ := newTestApp(t, false)
	_, err := a.KeyService().Verify(context.Background())
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeNotSupported))
}

func TestStore_PersistsAndVerifies(t *testing.T) {
	a, root := newTestApp(t, true)
	require.True(t, a.HasStore())
	svc := a.KeyService()

	_, err := svc.Index(context.Background(), ports.IndexRequest{})
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), ports.ResolveRequest{Keys: []string{findKey, "Lp/Missing;"}})
	require.NoError(t, err)

	res, err := svc.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Recovered)
	assert.Empty(t, res.Mismatches)

	// A second app over the same database resolves without reindexing.
	require.NoError(t, a.Close(context.Background()))
	b, err := New(a.Config, root)
	require.NoError(t, err)
	defer b.Close(context.Background())
	assert.Zero(t, b.Table.Len())

	writeSource(t, root, "src/p/Shop.java", "package p;\n\npublic class Shop {\n}\n")
	_, err = b.Refresh(context.Background(), []string{filepath.Join(root, "src", "p", "Shop.java")})
	require.NoError(t, err)

	res, err = b.KeyService().Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, findKey, res.Mismatches[0].Key)
	assert.Contains(t, res.Mismatches[0].Reason, "no longer resolves")
}
