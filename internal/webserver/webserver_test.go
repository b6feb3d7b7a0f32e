package webserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hgboot/internal/tactile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const indexPage = `<!DOCTYPE html>
<html>
<head>
<title>HiGlass</title>
<link rel="stylesheet" href="app.css">
</head>
<body><div id="root"></div><script src="app.js"></script></body>
</html>
`

func TestSwapConfig(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "galaxy_nginx.conf")
	dst := filepath.Join(dir, "sites-enabled", "hgserver_nginx.conf")
	require.NoError(t, os.WriteFile(src, []byte("server { listen 80; }"), 0644))

	require.NoError(t, SwapConfig(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "server { listen 80; }", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestSwapConfig_ReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.conf")
	dst := filepath.Join(dir, "current.conf")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	require.NoError(t, SwapConfig(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestSwapConfig_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := SwapConfig(filepath.Join(dir, "missing.conf"), filepath.Join(dir, "dst.conf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0600))
	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))
}

func TestInjectNoCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte(indexPage), 0644))

	changed, err := InjectNoCache(path)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, `<meta http-equiv="Cache-Control" content="no-cache, no-store, must-revalidate"/>`)
	assert.Contains(t, page, `<meta http-equiv="Pragma" content="no-cache"/>`)
	assert.Contains(t, page, `<meta http-equiv="Expires" content="0"/>`)
	assert.Less(t, strings.Index(page, "Cache-Control"), strings.Index(page, "Pragma"))
	assert.Less(t, strings.Index(page, "Expires"), strings.Index(page, "<title>"))
	assert.Contains(t, page, `<script src="app.js"></script>`)

	// A second pass leaves the page untouched.
	changed, err = InjectNoCache(path)
	require.NoError(t, err)
	assert.False(t, changed)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, page, string(again))
	assert.Equal(t, 1, strings.Count(string(again), "Cache-Control"))
}

func TestInjectNoCache_PartiallyPresent(t *testing.T) {
	page := `<html><head><META HTTP-EQUIV="pragma" CONTENT="no-cache"></head><body></body></html>`
	out, changed, err := injectNoCache([]byte(page))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, strings.Count(strings.ToLower(string(out)), "pragma"))
	assert.Contains(t, string(out), "Cache-Control")
	assert.Contains(t, string(out), "Expires")
}

func TestInjectNoCache_BareFragment(t *testing.T) {
	// The parser synthesizes a head for documents without one.
	out, changed, err := injectNoCache([]byte(`<p>hello</p>`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, string(out), `<head><meta http-equiv="Cache-Control"`)
}

func TestInjectNoCache_MissingFile(t *testing.T) {
	_, err := InjectNoCache(filepath.Join(t.TempDir(), "index.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReload(t *testing.T) {
	cfg := tactile.DefaultExecutorConfig()
	cfg.LogDir = t.TempDir()
	exec := tactile.NewDirectExecutorWithConfig(cfg, zap.NewNop())
	h, err := Reload(context.Background(), exec, []string{"echo", "-s", "reload"})
	require.NoError(t, err)

	results, err := tactile.WaitAll(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "-s reload\n", results[0].Stdout)
	assert.True(t, strings.HasPrefix(filepath.Base(results[0].LogFile), "reload-"))

	_, err = Reload(context.Background(), exec, nil)
	assert.Error(t, err)
}
