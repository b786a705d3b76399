package main

import (
	"flag"
	"log"

	"kiranakart-be/internal/config"
	"kiranakart-be/internal/db"
	"kiranakart-be/internal/migrate"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	flag.Parse()

	cfg := config.LoadConfig()
	database := db.InitDB(cfg)
	defer database.Close()

	switch *mode {
	case "up":
		if err := migrate.Apply(database); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := migrate.Rollback(database); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("rollback complete")
	default:
		log.Fatalf("unknown mode %q (use 'up' or 'down')", *mode)
	}
}
