// Package startup runs the container startup sequence: wait for the
// higlass-server database, pull the requested Galaxy datasets, register them
// as tilesets, write the initial view configuration and hand over to nginx.
package startup

import (
	"context"
	"net/http"

	"hgboot/internal/config"
	"hgboot/internal/galaxy"
	"hgboot/internal/genome"
	"hgboot/internal/importer"
	"hgboot/internal/logging"
	"hgboot/internal/netroute"
	"hgboot/internal/readiness"
	"hgboot/internal/registrar"
	"hgboot/internal/tactile"
	"hgboot/internal/tilesets"
	"hgboot/internal/viewconf"
	"hgboot/internal/webserver"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Connector produces the Galaxy API the datasets are read from.
type Connector interface {
	Connect(ctx context.Context, opts galaxy.ConnectOptions) (importer.Source, error)
}

type resolverConnector struct {
	resolver *galaxy.Resolver
}

func (c resolverConnector) Connect(ctx context.Context, opts galaxy.ConnectOptions) (importer.Source, error) {
	client, err := c.resolver.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewConnector returns the default connector: gateway discovery through
// executor and validation against the Galaxy API.
func NewConnector(cfg *config.Config, executor tactile.Executor, logger *zap.Logger) Connector {
	log := logging.Named(logger, logging.CategoryConnect)
	return resolverConnector{
		resolver: galaxy.NewResolver(
			netroute.NewDiscoverer(executor, log),
			&http.Client{Timeout: cfg.GetGalaxyTimeout()},
			log,
		),
	}
}

// Report summarizes one startup run.
type Report struct {
	RunID     string
	Ready     bool
	GalaxyURL string

	Descriptors []importer.Descriptor

	// Genomes were registered; MissingGenomes could not be downloaded.
	Genomes        []string
	MissingGenomes []string

	// Skipped lists vector datasets not registered for lack of a genome.
	Skipped []string

	Tiles int

	// Handles of every process launched and not yet awaited.
	Handles []*tactile.Handle
}

// Wait blocks until every launched process has exited.
func (r *Report) Wait(ctx context.Context) ([]*tactile.ExecutionResult, error) {
	return tactile.WaitAll(ctx, r.Handles...)
}

func (r *Report) track(h *tactile.Handle) {
	if h != nil {
		r.Handles = append(r.Handles, h)
	}
}

// Sequencer runs the startup sequence.
type Sequencer struct {
	cfg        *config.Config
	executor   tactile.Executor
	connector  Connector
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithConnector replaces the Galaxy connector.
func WithConnector(c Connector) Option {
	return func(s *Sequencer) { s.connector = c }
}

// WithHTTPClient sets the client used for genome downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sequencer) { s.httpClient = c }
}

// New creates a sequencer.
func New(cfg *config.Config, executor tactile.Executor, logger *zap.Logger, opts ...Option) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sequencer{
		cfg:      cfg,
		executor: executor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.connector == nil {
		s.connector = NewConnector(cfg, executor, logger)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.GetGenomeTimeout()}
	}
	return s
}

// Run executes the sequence. Only an unreachable Galaxy or a canceled
// context stops it; every other failure is logged and the run moves on.
// Launched processes are returned in the report without being awaited.
func (s *Sequencer) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	// Component loggers are siblings of the startup logger, all carrying run_id.
	run := s.logger.With(zap.String("run_id", report.RunID))
	log := logging.Named(run, logging.CategoryStartup)

	timer := logging.StartTimer(log, "startup")
	defer timer.StopWithInfo()

	report.Ready = s.waitReady(ctx, run)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	descriptors, err := s.importDatasets(ctx, run, report)
	if err != nil {
		log.Error("startup aborted", zap.Error(err))
		return report, err
	}
	report.Descriptors = descriptors

	fetcher := s.fetchGenomes(ctx, run, descriptors)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.register(ctx, run, report, fetcher)
	s.writeViewConfig(run, report)
	s.fixups(ctx, run, report)

	log.Info("startup complete",
		zap.Int("datasets", len(report.Descriptors)),
		zap.Int("tiles", report.Tiles),
		zap.Int("launched", len(report.Handles)),
		zap.Strings("skipped", report.Skipped))
	return report, nil
}

func (s *Sequencer) waitReady(ctx context.Context, run *zap.Logger) bool {
	log := logging.Named(run, logging.CategoryStartup)
	path := s.cfg.Paths.ReadinessFile
	ready := readiness.Wait(ctx, path, s.cfg.Readiness.Attempts, s.cfg.GetReadinessInterval(), log)
	if !ready {
		log.Info("database does not exist", zap.String("path", path))
		return false
	}
	log.Info("database exists", zap.String("path", path))

	storeLog := logging.Named(run, logging.CategoryStore)
	store, err := tilesets.Open(path)
	if err != nil {
		storeLog.Debug("tileset database unavailable", zap.Error(err))
		return true
	}
	defer store.Close()
	if n, err := store.Count(ctx); err != nil {
		storeLog.Debug("tileset table unavailable", zap.Error(err))
	} else {
		storeLog.Debug("tilesets already registered", zap.Int("count", n), zap.String("driver", tilesets.DriverType()))
	}
	return true
}

func (s *Sequencer) importDatasets(ctx context.Context, run *zap.Logger, report *Report) ([]importer.Descriptor, error) {
	log := logging.Named(run, logging.CategoryStartup)
	if !s.cfg.HasDatasets() {
		log.Info("no datasets requested")
		return nil, nil
	}

	g := s.cfg.Galaxy
	src, err := s.connector.Connect(ctx, galaxy.ConnectOptions{
		URLTemplate: g.URL,
		WebPort:     g.WebPort,
		APIKey:      g.APIKey,
		HistoryID:   g.HistoryID,
	})
	if err != nil {
		return nil, err
	}
	if b, ok := src.(interface{ BaseURL() string }); ok {
		report.GalaxyURL = b.BaseURL()
		log.Info("connected to Galaxy", zap.String("url", report.GalaxyURL))
	}

	im := importer.New(s.cfg.Paths.ImportDir, s.cfg.Paths.MediaDir, logging.Named(run, logging.CategoryImport))
	descriptors, err := im.Import(ctx, src, g.HistoryID, g.DatasetIDs)
	if err != nil {
		log.Error("failed to import datasets", zap.Error(err))
		return nil, nil
	}
	return descriptors, nil
}

func (s *Sequencer) fetchGenomes(ctx context.Context, run *zap.Logger, descriptors []importer.Descriptor) *genome.Fetcher {
	fetcher := genome.NewFetcher(s.cfg.Genome.BaseURL, s.cfg.Paths.GenomeDir, s.httpClient,
		logging.Named(run, logging.CategoryGenome))
	if builds := genome.BuildsFor(descriptors); len(builds) > 0 {
		// Failures are already logged per build; registration checks Exists.
		_ = fetcher.FetchAll(ctx, builds)
	}
	return fetcher
}

func (s *Sequencer) register(ctx context.Context, run *zap.Logger, report *Report, fetcher *genome.Fetcher) {
	regLog := logging.Named(run, logging.CategoryRegister)
	reg := registrar.New(s.executor, s.cfg.Registrar.Python, s.cfg.Paths.ManagePy, regLog)

	for _, build := range genome.BuildsFor(report.Descriptors) {
		if !fetcher.Exists(build) {
			report.MissingGenomes = append(report.MissingGenomes, build)
			continue
		}
		h, err := reg.RegisterGenome(ctx, build, fetcher.Path(build))
		if err != nil {
			regLog.Warn("failed to register genome", zap.String("genome", build), zap.Error(err))
			continue
		}
		report.Genomes = append(report.Genomes, build)
		report.track(h)
	}

	for _, d := range report.Descriptors {
		if d.DataType == importer.DataVector && !fetcher.Exists(d.Genome) {
			regLog.Warn("chromosome sizes missing, skipping dataset",
				zap.String("uid", d.UID), zap.String("genome", d.Genome))
			report.Skipped = append(report.Skipped, d.UID)
			continue
		}
		h, err := reg.RegisterDataset(ctx, d)
		if err != nil {
			regLog.Warn("failed to register dataset", zap.String("uid", d.UID), zap.Error(err))
			continue
		}
		report.track(h)
	}
}

func (s *Sequencer) writeViewConfig(run *zap.Logger, report *Report) {
	vcLog := logging.Named(run, logging.CategoryViewConf)
	vc := viewconf.Synthesize(report.Descriptors)
	report.Tiles = vc.TileCount()

	if err := vc.WriteFixture(s.cfg.Paths.FixtureFile, s.cfg.ProxyURL); err != nil {
		vcLog.Error("failed to write view config fixture", zap.Error(err))
	}
	if err := vc.WriteConfigJS(s.cfg.Paths.ConfigJSFile, s.cfg.ProxyURL, s.cfg.WebServer.ServerOverride); err != nil {
		vcLog.Error("failed to write front-end config", zap.Error(err))
	}
	vcLog.Debug("view config written",
		zap.Int("tiles", report.Tiles),
		zap.String("proxy_url", s.cfg.ProxyURL))
}

func (s *Sequencer) fixups(ctx context.Context, run *zap.Logger, report *Report) {
	wsLog := logging.Named(run, logging.CategoryWebServer)
	paths := s.cfg.Paths

	if paths.NginxConfigSrc != "" {
		if err := webserver.SwapConfig(paths.NginxConfigSrc, paths.NginxConfigDst); err != nil {
			wsLog.Warn("failed to install nginx config", zap.Error(err))
		}
	}

	if paths.IndexFile != "" {
		changed, err := webserver.InjectNoCache(paths.IndexFile)
		if err != nil {
			wsLog.Warn("failed to disable index page caching", zap.Error(err))
		} else {
			wsLog.Debug("index page checked", zap.Bool("rewritten", changed))
		}
	}

	h, err := webserver.Reload(ctx, s.executor, s.cfg.WebServer.ReloadCommand)
	if err != nil {
		wsLog.Warn("failed to reload web server", zap.Error(err))
		return
	}
	report.track(h)
}
