// Package container wires the application together with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/billing"
	"github.com/garyjia/billing-master/internal/config"
	httpapi "github.com/garyjia/billing-master/internal/interfaces/http"
	"github.com/garyjia/billing-master/internal/mail"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/repository"
	"github.com/garyjia/billing-master/internal/storage"
	"github.com/garyjia/billing-master/internal/worker"
	"github.com/garyjia/billing-master/internal/workbook"
	"github.com/garyjia/billing-master/pkg/database"
)

// Container manages all application dependencies and lifecycle
type Container struct {
	config *config.Config
	logger *zap.Logger

	db      *database.DB
	runs    *repository.RunRepository
	runner  *billing.Runner
	manager *worker.Manager
	mailer  *mail.Composer
	workers *worker.Group

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewContainer creates a new container from configuration. It does not
// initialize components; call Start.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config:  cfg,
		logger:  logger,
		workers: worker.NewGroup(logger),
	}, nil
}

// Start initializes components in dependency order:
// database and repositories, storage, services.
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("container has been closed")
	}
	if c.started {
		return fmt.Errorf("container already started")
	}

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Debug("Database initialized")

	artifacts, err := c.initStorage()
	if err != nil {
		c.db.Close()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.initServices(artifacts)

	c.started = true
	c.logger.Debug("Container started")
	return nil
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db, c.logger); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.db = db
	c.runs = repository.NewRunRepository(db.DB, c.logger)
	return nil
}

func (c *Container) initStorage() (*storage.ArtifactStore, error) {
	ws := c.config.Workspace
	if err := storage.NewOutputDir(ws.OutputDir, c.logger).Ensure(); err != nil {
		return nil, err
	}
	return storage.NewArtifactStore(ws.TempDir, c.logger), nil
}

func (c *Container) initServices(artifacts *storage.ArtifactStore) {
	c.runner = billing.NewRunner(profile.Default(), workbook.NewExcelHost(c.logger), artifacts, c.logger)
	c.manager = worker.NewManager(c.logger, c.runs.Observer())

	m := c.config.Mail
	attempts := m.PollAttempts
	if m.SignaturePath == "" {
		// nothing will ever show up
		attempts = 1
	}
	var opener mail.Opener = mail.NopOpener{}
	if m.OpenDraft {
		opener = mail.SystemOpener{}
	}
	c.mailer = mail.NewComposer(mail.DefaultTemplates(), mail.Options{
		To:           m.To,
		CC:           m.CC,
		DraftsDir:    m.DraftsDir,
		PollAttempts: attempts,
		PollInterval: m.PollInterval,
		OpenDraft:    m.OpenDraft,
	}, mail.FileSignature{Path: m.SignaturePath}, opener, c.logger)
}

// Serve starts the background workers: the history pruner when a
// retention is configured, and the HTTP console. It returns the console so
// callers can wait on it.
func (c *Container) Serve(ctx context.Context) (*httpapi.Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.closed {
		return nil, fmt.Errorf("container not running")
	}

	if c.config.Database.Retention > 0 {
		c.workers.Register(worker.NewPruner(worker.PrunerConfig{
			Interval:  c.config.Database.PruneInterval,
			Retention: c.config.Database.Retention,
		}, c.runs, c.logger))
	}

	srv := c.config.Server
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         srv.Host,
		Port:         srv.Port,
		ReadTimeout:  srv.ReadTimeout,
		WriteTimeout: srv.WriteTimeout,
		OutputDir:    c.config.Workspace.OutputDir,
	}, c.runner, c.manager, c.mailer, c.runs, c.logger)
	c.workers.Register(server)

	if err := c.workers.StartAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to start workers: %w", err)
	}
	return server, nil
}

// Close stops workers, cancels and waits for the active run, then closes
// the database
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("container already closed")
	}
	c.closed = true

	c.workers.StopAll()

	if c.manager != nil {
		c.manager.Cancel()
		c.manager.Wait()
	}

	var errs []error
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Runner returns the billing runner
func (c *Container) Runner() *billing.Runner {
	return c.runner
}

// Manager returns the task manager
func (c *Container) Manager() *worker.Manager {
	return c.manager
}

// Mailer returns the mail composer
func (c *Container) Mailer() *mail.Composer {
	return c.mailer
}

// Runs returns the run history repository
func (c *Container) Runs() *repository.RunRepository {
	return c.runs
}

// Config returns the container's configuration
func (c *Container) Config() *config.Config {
	return c.config
}
