package main

import (
	"context"
	"log"
	"os"

	"pvqc/adapters/postgres"
	"pvqc/adapters/protocoldir"
	"pvqc/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [protocol_dir]")
	}

	databaseURL := os.Args[1]

	// Connect to database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Create schema
	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema migration complete (version %s)", migrator.Version())

	// Seed protocol definitions when a directory is given
	if len(os.Args) < 3 {
		return
	}
	seedProtocols(db, os.Args[2])
}

// seedProtocols loads every definition document from dir into the protocol
// repository. Invalid documents are skipped so one bad file cannot block the
// rest of the seed.
func seedProtocols(db *sqlx.DB, dir string) {
	ctx := context.Background()

	defs, err := protocoldir.NewSource(dir).List(ctx)
	if err != nil {
		log.Fatalf("Failed to read protocol directory: %v", err)
	}
	log.Printf("Found %d protocol definitions in %s", len(defs), dir)

	repo := postgres.NewProtocolRepository(db)
	stored := 0
	skipped := 0

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			log.Printf("Skipping %s: %v", def.Key(), err)
			skipped++
			continue
		}
		if err := repo.Store(ctx, def); err != nil {
			log.Printf("Failed to store %s: %v", def.Key(), err)
			skipped++
			continue
		}
		log.Printf("Stored protocol %s", def.Key())
		stored++
	}

	log.Printf("Protocol seed complete: %d stored, %d skipped", stored, skipped)
}
