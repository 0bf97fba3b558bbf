package app

import (
	"context"
	"fmt"
	"sync"

	appconfig "github.com/doeshing/pmpilot/internal/application/config"
	"github.com/doeshing/pmpilot/internal/application/choreographer"
	"github.com/doeshing/pmpilot/internal/application/doctor"
	"github.com/doeshing/pmpilot/internal/application/history"
	"github.com/doeshing/pmpilot/internal/application/query"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/infrastructure/blobstore"
	"github.com/doeshing/pmpilot/internal/infrastructure/config"
	"github.com/doeshing/pmpilot/internal/infrastructure/metrics"
	"github.com/doeshing/pmpilot/internal/infrastructure/pipeline"
	"github.com/doeshing/pmpilot/internal/pkg/identity"
	"github.com/doeshing/pmpilot/internal/pkg/logger"
	"github.com/doeshing/pmpilot/internal/pkg/timing"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Options shape the container. They come from global flags and PMPILOT_DEBUG.
type Options struct {
	Verbose     bool
	ConfigPath  string
	MetricsAddr string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config        domain.Config
	ConfigLoader  *config.FileLoader
	Logger        *logger.ZapLogger
	Pipeline      *pipeline.Client
	Store         *blobstore.Opened
	History       *history.Cache
	Metrics       *metrics.Metrics
	DoctorService *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	log := logger.New(logger.Options{
		Verbose: opts.Verbose,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	client, err := pipeline.NewClient(cfg.GetPipelineURL(), cfg.GetPipelineTimeout(), log)
	if err != nil {
		return nil, err
	}

	settings := cfg.History
	settings.Backend = cfg.GetHistoryBackend()
	store, err := blobstore.Open(ctx, settings, config.BaseDir())
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	m := metrics.New()
	cache := history.NewCache(store.Store, cfg.GetHistoryKey(), log).WithObserver(m)

	metricsAddr := opts.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Listen
	}
	if metricsAddr != "" {
		if err := m.Serve(ctx, metricsAddr, log); err != nil {
			log.Warn("metrics endpoint disabled", map[string]interface{}{"addr": metricsAddr, "error": err.Error()})
		}
	}

	log.Debug("container ready", map[string]interface{}{
		"config":   cfgLoader.Path(),
		"pipeline": client.BaseURL(),
		"history":  store.Backend + " " + store.Location,
	})

	return &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		Pipeline:     client,
		Store:        store,
		History:      cache,
		Metrics:      m,
		DoctorService: &doctor.Service{
			ConfigProvider: cfgLoader,
			Health:         client,
			Documents:      client,
			Store:          store.Store,
			StoreName:      store.Backend + " " + store.Location,
		},
	}, nil
}

// Session is one interactive analysis surface: a controller and the stage
// choreographer it animates.
type Session struct {
	Controller *query.Controller
	Stages     *choreographer.Choreographer
}

// NewSession builds a controller wired to the container's pipeline and
// history. Stages advance on real time.
func (c *Container) NewSession() (*Session, error) {
	clk := timing.System()
	return c.newSession(clk, clk)
}

func (c *Container) newSession(sched ports.Scheduler, clock ports.Clock) (*Session, error) {
	schedule, err := c.Config.StageSchedule()
	if err != nil {
		return nil, err
	}
	stages, err := choreographer.New(c.Config.PipelineStages(), schedule, sched)
	if err != nil {
		return nil, err
	}
	stages.WithObserver(c.Metrics)

	ctrl := &query.Controller{
		Pipeline: c.Pipeline,
		History:  c.History,
		Progress: stages,
		Clock:    clock,
		IDs:      identity.UUIDGenerator{},
		Logger:   c.Logger,
		Observer: c.Metrics,
	}
	return &Session{Controller: ctrl, Stages: stages}, nil
}

// Close releases the history store and flushes the logger.
func (c *Container) Close() error {
	err := c.Store.Close()
	_ = c.Logger.Sync()
	return err
}

// Lazy builds the container on first use, after flags have been parsed.
type Lazy struct {
	Options Options

	once      sync.Once
	container *Container
	err       error
}

// Get returns the container, building it on the first call.
func (l *Lazy) Get(ctx context.Context) (*Container, error) {
	l.once.Do(func() {
		l.container, l.err = BuildContainer(ctx, l.Options)
	})
	return l.container, l.err
}

// Close closes the container if it was built.
func (l *Lazy) Close() error {
	if l.container == nil {
		return nil
	}
	return l.container.Close()
}
