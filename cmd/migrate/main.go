package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/ashmitsharp/tradebook/internal/config"
	"github.com/ashmitsharp/tradebook/internal/db"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var (
		direction = flag.String("dir", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to execute (0 = all)")
		source    = flag.String("source", cfg.Archive.MigrationsURL, "Migration source URL")
		force     = flag.Int("force", 0, "Force migration version (use with caution)")
		version   = flag.Bool("version", false, "Print current migration version")
	)
	flag.Parse()

	m, err := db.NewMigrator(cfg.Archive.ClickHouse, *source)
	if err != nil {
		log.Fatalf("Failed to setup migration: %v", err)
	}
	defer m.Close()

	if *force > 0 {
		if err := m.Force(*force); err != nil {
			log.Fatalf("Failed to force migration version: %v", err)
		}
		log.Printf("Forced migration version to %d", *force)
		return
	}

	if *version {
		v, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			fmt.Println("No migrations have been applied yet")
		case err != nil:
			log.Fatalf("Failed to get version: %v", err)
		default:
			fmt.Printf("Current version: %d (dirty: %v)\n", v, dirty)
		}
		return
	}

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatalf("Invalid direction: %s", *direction)
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("No migrations to apply")
	case err != nil:
		log.Fatalf("Migration failed: %v", err)
	default:
		log.Printf("Migration %s completed successfully", *direction)
	}
}
