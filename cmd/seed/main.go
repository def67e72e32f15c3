// Command main runs the development database seeder for CNOM.
package main

import (
	"flag"
	"log"

	"cnom/internal/config"
	"cnom/internal/database"
	"cnom/internal/seed"
)

func main() {
	practitioners := flag.Int("practitioners", 25, "Number of practitioners to create")
	staff := flag.Bool("staff", true, "Create one profile per stored staff role")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible data (0 uses the clock)")
	flag.Parse()

	log.Printf("Target: %d practitioners, staff=%v, clean=%v", *practitioners, *staff, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.Options{Practitioners: *practitioners, Staff: *staff, Seed: *seedValue}
	s := seed.NewSeeder(db, opts)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	for _, tx := range res.PendingTransactions {
		log.Printf("pending transaction %s", tx)
	}
	log.Println("Done. Replay a pending transaction against POST /api/webhooks/airtel-money to settle it.")
}
