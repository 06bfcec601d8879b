package main

import (
	"context"
	"fmt"
	"os"

	dbfs "github.com/garnizeh/simplymeet/db"
	"github.com/garnizeh/simplymeet/internal/config"
	"github.com/garnizeh/simplymeet/internal/db"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	applied, err := db.Applied(ctx, database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration listing error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database initialized successfully (%d migrations applied).\n", len(applied))
}
