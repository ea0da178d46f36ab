package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbURL := fs.String("db", "postgres://localhost:5432/pivota?sslmode=disable", "Database URL")
	schema := fs.String("schema", "internal/store/schema.sql", "Path to schema file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := store.NewStore(*dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(*schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Migrations executed successfully")
	return nil
}
