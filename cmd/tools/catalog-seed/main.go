// cmd/tools/catalog-seed/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/storage"
)

const productListSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "brand", "category", "price", "finalPrice"],
		"properties": {
			"id":          {"type": "string"},
			"name":        {"type": "string", "minLength": 1},
			"brand":       {"type": "string", "minLength": 1},
			"category":    {"type": "string", "minLength": 1},
			"price":       {"type": "number", "minimum": 0},
			"finalPrice":  {"type": "number", "minimum": 0},
			"discount":    {"type": "number", "minimum": 0, "maximum": 100},
			"stock":       {"type": "integer", "minimum": 0},
			"rating":      {"type": "number", "minimum": 0, "maximum": 5},
			"description": {"type": "string"},
			"tags":        {"type": "array", "items": {"type": "string"}}
		}
	}
}`

func main() {
	loadCmd := flag.NewFlagSet("load", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Load command flags
	loadFile := loadCmd.String("file", "configs/products.json", "Path to the product JSON file")
	configFile := loadCmd.String("config", "", "Config file (default: configs/config.yaml lookup)")
	backend := loadCmd.String("backend", "", "Override catalog.backend (mongo, postgres, elasticsearch, redis)")

	// Validate command flags
	validateFile := validateCmd.String("file", "configs/products.json", "Path to the product JSON file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "load":
		loadCmd.Parse(os.Args[2:])
		if err := validateProducts(*loadFile); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		count, err := load(*loadFile, *configFile, *backend)
		if err != nil {
			fmt.Printf("Error loading products: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d products from %s\n", count, *loadFile)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateProducts(*validateFile); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Product file is valid.")

	default:
		help()
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: catalog-seed <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  load       Validate a product file and load it into the configured catalog backend")
	fmt.Println("  validate   Check a product file against the product schema")
}

func validateProducts(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", path, err)
	}
	result := validation.MustCompile(productListSchema).Validate(doc)
	if !result.Valid {
		for _, msg := range result.GetErrorMessages() {
			fmt.Printf("  - %s\n", msg)
		}
		return fmt.Errorf("%s failed validation with %d errors", path, len(result.Errors))
	}
	return nil
}

func load(path, configFile, backend string) (int, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return 0, err
	}
	if backend != "" {
		cfg.Catalog.Backend = backend
	}
	if cfg.Catalog.Backend == config.BackendMemory {
		return 0, fmt.Errorf("the memory backend is seeded from catalog.seed_file at startup")
	}

	log := logger.NewStructured("info", "console")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, closeStore, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer closeStore(ctx)

	if err := storage.Prepare(ctx, store); err != nil {
		return 0, err
	}

	products, err := storage.ReadProducts(path)
	if err != nil {
		return 0, err
	}
	return store.Load(ctx, products)
}
