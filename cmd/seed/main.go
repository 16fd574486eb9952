// seed applies a baseline stock manifest to the ledger. Re-running the same
// manifest is safe: keys whose stock record already has a history are skipped.
//
// Usage: go run ./cmd/seed -manifest seed.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"cylinder-ledger/internal/app"
	"cylinder-ledger/internal/core"
	"cylinder-ledger/internal/db"
)

func main() {
	_ = godotenv.Load()

	manifestPath := flag.String("manifest", "seed.json", "path to the seed manifest")
	actor := flag.String("actor", "seed", "actor recorded on seeded adjustments")
	flag.Parse()

	data, err := os.ReadFile(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}
	var entries []core.SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("Failed to parse manifest: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	svc := app.NewServices(pool)
	result, err := svc.Seeder.Apply(ctx, *actor, entries)
	if err != nil {
		log.Fatalf("Seeding failed after %d applied: %v", result.Applied, err)
	}
	log.Printf("Seeding done: %d applied, %d skipped.", result.Applied, result.Skipped)
}
