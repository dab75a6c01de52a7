package main

import (
	"log"
	"os"

	"github.com/safar/go-checkout/internal/config"
	"github.com/safar/go-checkout/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	dir := cfg.Database.MigrationsPath
	log.Printf("Running migrations %s from %s", direction, dir)

	if direction == "up" {
		err = database.MigrateUp(db, dir)
	} else {
		err = database.MigrateDown(db, dir)
	}
	if err != nil {
		log.Fatalf("Migrate %s: %v", direction, err)
	}

	log.Printf("Migrations %s complete", direction)
}
