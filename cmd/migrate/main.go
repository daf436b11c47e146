package main

import (
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"crashcasino/internal/database"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "migrate").Logger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	migrationsPath := getEnv("MIGRATIONS_PATH", "./migrations")

	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal().Msg("usage: migrate create <migration_name>")
		}
		createMigration(migrationsPath, os.Args[2])
		return
	}

	db, err := database.OpenDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	switch command {
	case "up":
		log.Info().Str("path", migrationsPath).Msg("running migrations")
		if err := database.RunMigrations(db, migrationsPath); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}

	case "down":
		log.Info().Msg("rolling back last migration")
		if err := database.RollbackMigration(db, migrationsPath); err != nil {
			log.Fatal().Err(err).Msg("rollback failed")
		}
		log.Info().Msg("rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db, migrationsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read version")
		}
		if dirty {
			log.Warn().Uint("version", version).Msg("database is dirty, needs manual intervention")
		} else {
			log.Info().Uint("version", version).Msg("current version")
		}

	default:
		log.Error().Str("command", command).Msg("unknown command")
		printUsage()
		os.Exit(1)
	}
}

func createMigration(dir, name string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to read migrations directory")
	}

	sqlFiles := 0
	for _, file := range files {
		if !file.IsDir() {
			sqlFiles++
		}
	}
	// Each migration has an up and a down file.
	nextVersion := sqlFiles/2 + 1

	upFile := fmt.Sprintf("%s/%06d_%s.up.sql", dir, nextVersion, name)
	downFile := fmt.Sprintf("%s/%06d_%s.down.sql", dir, nextVersion, name)

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.Fatal().Err(err).Msg("failed to create up migration")
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.Fatal().Err(err).Msg("failed to create down migration")
	}

	log.Info().Str("up", upFile).Str("down", downFile).Msg("created migration files")
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password")
	fmt.Println("  BLUEPRINT_DB_SCHEMA     Search path (default: public)")
	fmt.Println("  MIGRATIONS_PATH         Path to migrations (default: ./migrations)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
