//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"stock_etl_project/config"
	"stock_etl_project/models"
	"stock_etl_project/services/loader"
)

// Standalone CSV loader: connects to the database with a retry loop,
// runs migrations and ingests every CSV in the data directory.
//
// Usage: go run scripts/load_csv_data.go [data_dir]
func main() {
	if _, err := config.LoadConfig(); err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	dataDir := config.AppConfig.DataDir
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	const maxRetries = 10
	const retryDelay = 5 * time.Second

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if _, err = config.InitDB(); err == nil {
			break
		}
		log.Printf("Attempt %d/%d: database not reachable: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		log.Fatalf("Max retries reached, giving up: %v", err)
	}

	if err := models.MigrateMarketModels(config.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	rows, err := loader.NewLoader(config.DB).LoadDir(dataDir)
	if err != nil {
		log.Fatalf("Loading failed after %d rows: %v", rows, err)
	}

	fmt.Printf("Data loading complete: %d rows upserted from %s\n", rows, dataDir)
}
