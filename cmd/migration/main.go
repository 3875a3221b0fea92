package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/pkg/db/migrations"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	// Define command-line flags
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	// Create command options
	migrationsDir := createCmd.String("dir", "pkg/db/migrations/sql", "Directory to store migrations")

	// Migrate command options
	dbPath := migrateCmd.String("db", "data/pagebot.db", "Path to SQLite database")
	migrateDir := migrateCmd.String("dir", "", "Directory containing migrations (defaults to the embedded set)")

	// Show usage if no arguments provided
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := logging.NewConsoleLogger(logging.INFO)

	// Parse command
	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		if createCmd.NArg() < 1 {
			fmt.Println("Error: Missing migration description")
			createCmd.Usage()
			os.Exit(1)
		}
		if err := createNewMigration(*migrationsDir, createCmd.Arg(0)); err != nil {
			logger.Error("Error creating migration: %v", err)
			os.Exit(1)
		}

	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		if err := applyMigrations(*dbPath, *migrateDir, logger); err != nil {
			logger.Error("Error applying migrations: %v", err)
			os.Exit(1)
		}

	case "help":
		printUsage()

	default:
		fmt.Printf("Error: Unknown command '%s'\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/migration create DESCRIPTION  - Create a new migration")
	fmt.Println("  go run ./cmd/migration migrate             - Apply pending migrations")
	fmt.Println("  go run ./cmd/migration help                - Show this help")
	fmt.Println("\nExamples:")
	fmt.Println("  go run ./cmd/migration create \"add inventory table\"")
	fmt.Println("  go run ./cmd/migration migrate -db data/pagebot.db")
}

func createNewMigration(dir, description string) error {
	filePath, err := migrations.CreateMigration(dir, description, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Created migration file: %s\n", filePath)
	fmt.Println("Edit this file to add your database schema changes.")
	return nil
}

func applyMigrations(dbPath, dir string, logger *logging.Logger) error {
	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	var source fs.FS = migrations.Embedded()
	if dir != "" {
		source = os.DirFS(dir)
	}

	count, err := migrations.NewMigrator(db, source, logger).MigrateUp(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d migration(s) successfully!\n", count)
	return nil
}
