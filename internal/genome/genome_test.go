package genome

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"hgboot/internal/importer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildsFor(t *testing.T) {
	descriptors := []importer.Descriptor{
		{UID: "1", DataType: importer.DataMatrix, Genome: "hg19"},
		{UID: "2", DataType: importer.DataVector, Genome: "mm10"},
		{UID: "3", DataType: importer.DataBedlike, Genome: "hg38"},
		{UID: "4", DataType: importer.DataVector, Genome: "hg19"},
		{UID: "5", DataType: importer.DataVector, Genome: "mm10"},
		{UID: "6", DataType: importer.DataVector, Genome: ""},
		{UID: "7", DataType: importer.DataVector, Genome: UnknownBuild},
	}
	assert.Equal(t, BuildSet{"mm10", "hg19"}, BuildsFor(descriptors))
	assert.Empty(t, BuildsFor(nil))
	assert.Empty(t, BuildsFor(descriptors[:1]))
}

func newSizesServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if !strings.HasPrefix(r.URL.Path, "/hg19/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("chr1\t249250621\nchr2\t243199373\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_Fetch(t *testing.T) {
	var hits int32
	srv := newSizesServer(t, &hits)
	dir := filepath.Join(t.TempDir(), "genomes")
	f := NewFetcher(srv.URL+"/{build}/{build}.chrom.sizes", dir, nil, zap.NewNop())

	assert.Equal(t, srv.URL+"/hg19/hg19.chrom.sizes", f.URL("hg19"))
	assert.Equal(t, filepath.Join(dir, "hg19.chrom.sizes"), f.Path("hg19"))
	assert.False(t, f.Exists("hg19"))

	require.NoError(t, f.Fetch(context.Background(), "hg19"))
	assert.True(t, f.Exists("hg19"))
	data, err := os.ReadFile(f.Path("hg19"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "chr1\t249250621")

	// Present files are not downloaded again.
	require.NoError(t, f.Fetch(context.Background(), "hg19"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetcher_FetchFailureLeavesNoFile(t *testing.T) {
	var hits int32
	srv := newSizesServer(t, &hits)
	dir := t.TempDir()
	f := NewFetcher(srv.URL+"/{build}/{build}.chrom.sizes", dir, nil, zap.NewNop())

	err := f.Fetch(context.Background(), "dm6")
	require.ErrorIs(t, err, ErrDownload)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, f.Exists("dm6"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files should remain")
}

func TestFetcher_RejectsPathLikeBuilds(t *testing.T) {
	f := NewFetcher("http://127.0.0.1:1/{build}", t.TempDir(), nil, zap.NewNop())
	for _, build := range []string{"", ".", "..", "../etc", `a\b`, UnknownBuild} {
		assert.ErrorIs(t, f.Fetch(context.Background(), build), ErrDownload, build)
	}
}

func TestFetcher_FetchAllContinuesPastFailures(t *testing.T) {
	var hits int32
	srv := newSizesServer(t, &hits)
	f := NewFetcher(srv.URL+"/{build}/{build}.chrom.sizes", t.TempDir(), nil, zap.NewNop())

	err := f.FetchAll(context.Background(), BuildSet{"dm6", "hg19"})
	require.ErrorIs(t, err, ErrDownload)
	assert.False(t, f.Exists("dm6"))
	assert.True(t, f.Exists("hg19"))
}

func TestFetcher_URLEscapesBuild(t *testing.T) {
	f := NewFetcher("https://example.org/goldenPath/{build}/bigZips/{build}.chrom.sizes", t.TempDir(), nil, zap.NewNop())
	assert.Equal(t, "https://example.org/goldenPath/a%3Fb/bigZips/a%3Fb.chrom.sizes", f.URL("a?b"))
	assert.Equal(t, "https://example.org/goldenPath/hg%2019/bigZips/hg%2019.chrom.sizes", f.URL("hg 19"))
}

func TestFetcher_QueryCharactersStayInPath(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		if strings.Contains(r.URL.Path, "?") {
			_, _ = w.Write([]byte("chr1\t1000\n"))
			return
		}
		// Anything else is the directory index.
		_, _ = w.Write([]byte("<html>index of goldenPath</html>"))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(srv.URL+"/goldenPath/{build}/bigZips/{build}.chrom.sizes", t.TempDir(), nil, zap.NewNop())
	require.NoError(t, f.Fetch(context.Background(), "hg19?v2"))

	assert.Equal(t, "/goldenPath/hg19?v2/bigZips/hg19?v2.chrom.sizes", gotPath)
	assert.Empty(t, gotQuery)
	data, err := os.ReadFile(f.Path("hg19?v2"))
	require.NoError(t, err)
	assert.Equal(t, "chr1\t1000\n", string(data))
}

func TestFetcher_UnknownBuildIsNeverRequested(t *testing.T) {
	var hits int32
	srv := newSizesServer(t, &hits)
	f := NewFetcher(srv.URL+"/{build}/{build}.chrom.sizes", t.TempDir(), nil, zap.NewNop())

	require.ErrorIs(t, f.Fetch(context.Background(), UnknownBuild), ErrDownload)
	assert.False(t, f.Exists(UnknownBuild))
	assert.Zero(t, atomic.LoadInt32(&hits))
}
