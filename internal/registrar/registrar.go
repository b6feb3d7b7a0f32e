// Package registrar submits datasets and genome coordinate files to the
// higlass-server tileset store through manage.py ingest_tileset.
package registrar

import (
	"context"
	"fmt"

	"hgboot/internal/importer"
	"hgboot/internal/tactile"

	"go.uber.org/zap"
)

const (
	chromSizesFileType = "chromsizes-tsv"
	chromSizesDataType = "chromsizes"
)

// Ingest is one ingest_tileset invocation.
type Ingest struct {
	FileType    string
	DataType    string
	UID         string
	Filename    string
	CoordSystem string
}

// Registrar launches ingest_tileset processes without waiting for them.
type Registrar struct {
	executor tactile.Executor
	python   string
	managePy string
	logger   *zap.Logger
}

// New creates a registrar running managePy with the given interpreter.
func New(executor tactile.Executor, python, managePy string, logger *zap.Logger) *Registrar {
	if python == "" {
		python = "python"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{
		executor: executor,
		python:   python,
		managePy: managePy,
		logger:   logger,
	}
}

// Command builds the process invocation for in.
func (r *Registrar) Command(in Ingest) tactile.Command {
	return tactile.Command{
		Binary: r.python,
		Arguments: []string{
			r.managePy, "ingest_tileset",
			"--filetype", in.FileType,
			"--datatype", in.DataType,
			"--uid", in.UID,
			"--filename", in.Filename,
			"--no-upload",
			"--coordSystem", in.CoordSystem,
		},
		Tags: map[string]string{"uid": in.UID},
	}
}

// Submit launches in and returns its handle. Ingestion failures are only
// observable through the handle.
func (r *Registrar) Submit(ctx context.Context, in Ingest) (*tactile.Handle, error) {
	h, err := r.executor.Start(ctx, r.Command(in))
	if err != nil {
		return nil, fmt.Errorf("failed to launch ingestion of %s: %w", in.UID, err)
	}
	r.logger.Debug("ingestion launched",
		zap.String("uid", in.UID),
		zap.String("filetype", in.FileType),
		zap.String("coord_system", in.CoordSystem))
	return h, nil
}

// RegisterDataset ingests an imported dataset against its genome build.
func (r *Registrar) RegisterDataset(ctx context.Context, d importer.Descriptor) (*tactile.Handle, error) {
	return r.Submit(ctx, Ingest{
		FileType:    d.FileType,
		DataType:    string(d.DataType),
		UID:         d.UID,
		Filename:    d.Path,
		CoordSystem: d.Genome,
	})
}

// RegisterGenome ingests a chromosome sizes file; the build is both the uid
// and the coordinate system.
func (r *Registrar) RegisterGenome(ctx context.Context, build, path string) (*tactile.Handle, error) {
	return r.Submit(ctx, Ingest{
		FileType:    chromSizesFileType,
		DataType:    chromSizesDataType,
		UID:         build,
		Filename:    path,
		CoordSystem: build,
	})
}
