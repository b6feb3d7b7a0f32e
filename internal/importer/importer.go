package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hgboot/internal/galaxy"

	"go.uber.org/zap"
)

// Source is the Galaxy API surface the importer reads.
type Source interface {
	HistoryContents(ctx context.Context, historyID string) ([]galaxy.HistoryItem, error)
	Dataset(ctx context.Context, datasetID string) (*galaxy.Dataset, error)
}

// Importer links Galaxy's staged files into the media directory.
type Importer struct {
	importDir string
	mediaDir  string
	logger    *zap.Logger
}

// New creates an importer reading staged files from importDir and linking
// them into mediaDir.
func New(importDir, mediaDir string, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		importDir: importDir,
		mediaDir:  mediaDir,
		logger:    logger,
	}
}

// StagedPath is where Galaxy places a dataset for the container:
// "<import_dir>/[<hid>] <name>.<extension>".
func (im *Importer) StagedPath(ds *galaxy.Dataset) string {
	return filepath.Join(im.importDir, fmt.Sprintf("[%d] %s.%s", ds.HID, ds.Name, ds.Extension))
}

// Import returns descriptors for every requested dataset that could be
// classified and linked, in history order. Per-dataset failures are logged
// and skipped; only a failure to list the history is returned.
func (im *Importer) Import(ctx context.Context, src Source, historyID string, datasetIDs []string) ([]Descriptor, error) {
	wanted := make(map[string]bool, len(datasetIDs))
	for _, id := range datasetIDs {
		wanted[id] = true
	}

	items, err := src.HistoryContents(ctx, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history %s: %w", historyID, err)
	}

	var descriptors []Descriptor
	for _, item := range items {
		if !wanted[item.ID] {
			continue
		}
		d, err := im.importOne(ctx, src, item)
		if err != nil {
			if errors.Is(err, ErrUnsupportedExtension) {
				im.logger.Debug("invalid datatype, skipping",
					zap.String("dataset", item.ID),
					zap.Strings("supported", Extensions()),
					zap.Error(err))
			} else {
				im.logger.Warn("failed to load dataset", zap.String("dataset", item.ID), zap.Error(err))
			}
			continue
		}
		im.logger.Debug("loading dataset",
			zap.String("uid", d.UID),
			zap.String("path", d.Path),
			zap.String("datatype", string(d.DataType)))
		descriptors = append(descriptors, d)
	}

	if missing := len(datasetIDs) - len(descriptors); missing > 0 {
		im.logger.Info("some requested datasets were not imported",
			zap.Int("requested", len(datasetIDs)),
			zap.Int("imported", len(descriptors)))
	}
	return descriptors, nil
}

func (im *Importer) importOne(ctx context.Context, src Source, item galaxy.HistoryItem) (Descriptor, error) {
	ds, err := src.Dataset(ctx, item.ID)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	if ds.Extension == "" {
		ds.Extension = item.Extension
	}

	kind, err := Classify(ds.Extension)
	if err != nil {
		return Descriptor{}, err
	}

	uid := SanitizeUID(ds.HID, ds.Name)
	staged := im.StagedPath(ds)
	link := filepath.Join(im.mediaDir, uid)
	if err := im.link(staged, link); err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		Name:      ds.Name,
		UID:       uid,
		Path:      link,
		FileType:  kind.FileType,
		DataType:  kind.DataType,
		TrackType: kind.TrackType,
		Genome:    ds.GenomeBuild,
	}, nil
}

// link points dst at src, replacing an existing link. The staged file does
// not need to exist yet.
func (im *Importer) link(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}
	if fi, err := os.Lstat(dst); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("refusing to replace non-link %s", dst)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("failed to replace link %s: %w", dst, err)
		}
	}
	if err := os.Symlink(src, dst); err != nil {
		return fmt.Errorf("failed to link %s: %w", dst, err)
	}
	return nil
}
