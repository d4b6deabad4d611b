package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pvqc/internal/config"
	"pvqc/internal/container"
	"pvqc/internal/errors"
	"pvqc/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase initializes the PostgreSQL database connection
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// Run migrations
	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Create dependency injection container
	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	// Initialize container with database
	if err := appContainer.InitWithDatabase(db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Stop on interrupt so the sweep in flight finishes its current run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A zero poll interval runs one sweep and exits, which is how cron-driven
	// deployments invoke the worker
	if appConfig.Worker.PollInterval <= 0 {
		runSweep(ctx, appContainer)
		return
	}

	log.Printf("🚀 Batch analysis worker started (poll interval %s)", appConfig.Worker.PollInterval)
	ticker := time.NewTicker(appConfig.Worker.PollInterval)
	defer ticker.Stop()

	runSweep(ctx, appContainer)
	for {
		select {
		case <-ctx.Done():
			log.Println("Worker shutting down")
			return
		case <-ticker.C:
			runSweep(ctx, appContainer)
		}
	}
}

// runSweep analyzes every run waiting in validated state
func runSweep(ctx context.Context, c *container.Container) {
	analyzed, failed, err := c.RunService.AnalyzeBatch(ctx)
	if err != nil {
		log.Printf("Batch analysis aborted: %v", err)
		return
	}
	log.Printf("Batch analysis complete: %d analyzed, %d failed", analyzed, failed)
}
