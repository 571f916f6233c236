package main

import (
	"context"
	"flag"
	"log"
	"os"

	"creator-checkout/internal/config"
	"creator-checkout/internal/db"
	"creator-checkout/internal/importer"
	productrepo "creator-checkout/internal/repository/product"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to catalog JSON export")
	flag.Parse()

	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open export: %v", err)
	}
	defer f.Close()

	repo := productrepo.NewPostgres(pool, logger)
	count, err := importer.NewJSONImporter(f, repo).Run(ctx)
	if err != nil {
		logger.Fatalf("import: %v", err)
	}
	logger.Printf("imported %d products", count)
}
