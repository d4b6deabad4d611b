package container

import (
	"context"
	"fmt"
	"log"

	"pvqc/adapters/excel"
	"pvqc/adapters/postgres"
	"pvqc/adapters/protocoldir"
	"pvqc/adapters/scoring"
	"pvqc/app"
	"pvqc/internal/config"
	"pvqc/internal/fitting"
	"pvqc/internal/registry"
	"pvqc/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	RunStore     ports.RunStore
	ProtocolRepo *postgres.ProtocolRepositoryImpl

	// Pipeline components
	Registry *registry.Registry
	Fitter   *fitting.Engine
	Scorer   ports.DefectScorer

	// Application services
	AnalysisService *app.AnalysisService
	RunService      *app.RunService
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	return c, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	// Initialize repositories
	if err := c.initRepositories(); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Initialize pipeline components
	if err := c.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	// Initialize application services
	c.initServices()

	log.Printf("Container initialized successfully with database connection")
	return nil
}

// initRepositories initializes data access repositories
func (c *Container) initRepositories() error {
	c.RunStore = postgres.NewRunRepository(c.DB)
	c.ProtocolRepo = postgres.NewProtocolRepository(c.DB)
	return nil
}

// initPipeline initializes the analysis pipeline. The registry is preloaded
// here so a structurally invalid protocol definition fails startup instead
// of the first run that touches it.
func (c *Container) initPipeline() error {
	var source ports.ProtocolSource = c.ProtocolRepo
	if c.Config.Protocols.Dir != "" {
		source = protocoldir.NewSource(c.Config.Protocols.Dir)
		log.Printf("Using protocol directory: %s", c.Config.Protocols.Dir)
	}
	c.Registry = registry.New(source)

	if err := c.Registry.Preload(context.Background()); err != nil {
		return fmt.Errorf("protocol preload failed: %w", err)
	}

	c.Fitter = fitting.NewEngine(c.Config.Analysis.FitWorkers, c.Config.Analysis.FitTimeout)

	if c.Config.Scoring.URL != "" {
		c.Scorer = scoring.NewClient(c.Config.Scoring.URL, c.Config.Scoring.APIKey, c.Config.Scoring.Timeout)
		log.Printf("Defect scoring enabled: %s", c.Config.Scoring.URL)
	}

	return nil
}

// initServices initializes application services
func (c *Container) initServices() {
	c.AnalysisService = app.NewAnalysisService(c.Registry, c.Fitter, c.Scorer)
	c.RunService = app.NewRunService(c.RunStore, c.AnalysisService, excel.NewExportReader())
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
