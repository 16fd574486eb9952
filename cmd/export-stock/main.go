// export-stock writes the current stock ledger as CSV to stdout or a file.
//
// Usage: go run ./cmd/export-stock [-out stock.csv]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"cylinder-ledger/internal/app"
	"cylinder-ledger/internal/db"
)

func main() {
	_ = godotenv.Load()

	outPath := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	svc := app.NewServices(pool)
	if err := svc.Query.ExportCSV(ctx, out); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}
