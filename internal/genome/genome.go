// Package genome downloads chromosome size files for the genome builds that
// coordinate-aware tracks are registered against.
package genome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hgboot/internal/importer"
	"hgboot/internal/logging"

	"go.uber.org/zap"
)

// ErrDownload wraps every failed chromosome size download.
var ErrDownload = errors.New("chromosome sizes download failed")

// UnknownBuild is what Galaxy reports for a dataset without a genome build.
const UnknownBuild = "?"

// BuildSet is an ordered, deduplicated set of genome build names.
type BuildSet []string

// BuildsFor collects the distinct genome builds of vector datasets, in
// first-seen order. Matrix and bedlike datasets carry their own coordinates
// and do not contribute, and neither do datasets with an unknown build.
func BuildsFor(descriptors []importer.Descriptor) BuildSet {
	seen := make(map[string]bool)
	var builds BuildSet
	for _, d := range descriptors {
		if d.DataType != importer.DataVector || d.Genome == "" || d.Genome == UnknownBuild || seen[d.Genome] {
			continue
		}
		seen[d.Genome] = true
		builds = append(builds, d.Genome)
	}
	return builds
}

// Fetcher downloads chromosome sizes into a local directory.
type Fetcher struct {
	baseURL string
	dir     string
	client  *http.Client
	logger  *zap.Logger
}

// NewFetcher creates a fetcher. baseURL must contain a {build} placeholder.
func NewFetcher(baseURL, dir string, client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		baseURL: baseURL,
		dir:     dir,
		client:  client,
		logger:  logger,
	}
}

// URL returns the download URL for build. The build is escaped as a single
// path segment.
func (f *Fetcher) URL(build string) string {
	return strings.ReplaceAll(f.baseURL, "{build}", url.PathEscape(build))
}

// Path returns the local chromosome sizes file for build. The file keeps the
// UCSC download name, <build>.chrom.sizes.
func (f *Fetcher) Path(build string) string {
	return filepath.Join(f.dir, build+".chrom.sizes")
}

// Exists reports whether the chromosome sizes file for build is present.
func (f *Fetcher) Exists(build string) bool {
	fi, err := os.Stat(f.Path(build))
	return err == nil && fi.Mode().IsRegular()
}

// FetchAll downloads every build, best effort. Failures are logged and
// returned joined; callers check Exists before depending on a build.
func (f *Fetcher) FetchAll(ctx context.Context, builds BuildSet) error {
	var errs []error
	for _, build := range builds {
		if err := f.Fetch(ctx, build); err != nil {
			f.logger.Warn("failed to fetch chromosome sizes", zap.String("genome", build), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fetch downloads the chromosome sizes for one build unless already present.
func (f *Fetcher) Fetch(ctx context.Context, build string) error {
	if strings.ContainsAny(build, `/\`) || build == "" || build == "." || build == ".." || build == UnknownBuild {
		return fmt.Errorf("%w: invalid genome build %q", ErrDownload, build)
	}
	if f.Exists(build) {
		f.logger.Debug("chromosome sizes already present", zap.String("genome", build))
		return nil
	}

	timer := logging.StartTimer(f.logger, "chromosome sizes download")
	defer timer.Stop()

	src := f.URL(build)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s returned status %d", ErrDownload, build, src, resp.StatusCode)
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+build+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}
	if err := os.Rename(tmp.Name(), f.Path(build)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s: %w", ErrDownload, build, err)
	}

	f.logger.Info("downloaded chromosome sizes",
		zap.String("genome", build),
		zap.String("path", f.Path(build)),
		zap.Int64("bytes", n))
	return nil
}
