package registrar

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"hgboot/internal/importer"
	"hgboot/internal/tactile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingExecutor struct {
	started  []tactile.Command
	startErr error
}

func (r *recordingExecutor) Execute(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	return nil, errors.New("not supported")
}

func (r *recordingExecutor) Start(ctx context.Context, cmd tactile.Command) (*tactile.Handle, error) {
	r.started = append(r.started, cmd)
	return nil, r.startErr
}

func (r *recordingExecutor) Validate(cmd tactile.Command) error { return nil }

func TestRegisterDataset(t *testing.T) {
	exec := &recordingExecutor{}
	reg := New(exec, "", "/srv/manage.py", zap.NewNop())

	_, err := reg.RegisterDataset(context.Background(), importer.Descriptor{
		Name:     "contacts",
		UID:      "1_contacts",
		Path:     "/data/media/1_contacts",
		FileType: "cooler",
		DataType: importer.DataMatrix,
		Genome:   "hg19",
	})
	require.NoError(t, err)
	require.Len(t, exec.started, 1)

	cmd := exec.started[0]
	assert.Equal(t, "python", cmd.Binary)
	assert.Equal(t, []string{
		"/srv/manage.py", "ingest_tileset",
		"--filetype", "cooler",
		"--datatype", "matrix",
		"--uid", "1_contacts",
		"--filename", "/data/media/1_contacts",
		"--no-upload",
		"--coordSystem", "hg19",
	}, cmd.Arguments)
}

func TestRegisterGenome(t *testing.T) {
	exec := &recordingExecutor{}
	reg := New(exec, "python3", "manage.py", zap.NewNop())

	_, err := reg.RegisterGenome(context.Background(), "mm10", "/data/genomes/mm10.chrom.sizes")
	require.NoError(t, err)
	require.Len(t, exec.started, 1)

	cmd := exec.started[0]
	assert.Equal(t, "python3", cmd.Binary)
	assert.Equal(t, "python3 manage.py ingest_tileset --filetype chromsizes-tsv --datatype chromsizes "+
		"--uid mm10 --filename /data/genomes/mm10.chrom.sizes --no-upload --coordSystem mm10", cmd.CommandString())
}

func TestSubmit_LaunchFailure(t *testing.T) {
	exec := &recordingExecutor{startErr: errors.New("exec: not found")}
	reg := New(exec, "python", "manage.py", zap.NewNop())

	_, err := reg.Submit(context.Background(), Ingest{UID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
}

func TestSubmit_RealProcessIsAwaitable(t *testing.T) {
	// echo stands in for the interpreter so the full argument list is observable.
	cfg := tactile.DefaultExecutorConfig()
	cfg.LogDir = t.TempDir()
	reg := New(tactile.NewDirectExecutorWithConfig(cfg, zap.NewNop()), "echo", "manage.py", zap.NewNop())

	h, err := reg.RegisterGenome(context.Background(), "hg19", "/tmp/hg19.chrom.sizes")
	require.NoError(t, err)

	results, err := tactile.WaitAll(context.Background(), h)
	require.NoError(t, err)
	assert.Contains(t, results[0].Stdout, "--coordSystem hg19")
	assert.Equal(t, cfg.LogDir, filepath.Dir(results[0].LogFile))
}
