package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/warehouse/duckdb"
)

// askdb-seed loads one or more CSV files into the warehouse file, one table
// per file, named after the file. Existing tables of the same name are
// replaced.
func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.csv [file.csv ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	table := flag.String("table", "", "table name to load into; only valid with a single file")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *table != "" && len(files) != 1 {
		fmt.Fprintln(os.Stderr, "-table requires exactly one file")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("askdb-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Warehouse.Path == "" {
		fmt.Fprintln(os.Stderr, "ASKDB_WAREHOUSE_PATH is required")
		os.Exit(1)
	}

	store, err := duckdb.Open(duckdb.Config{Path: cfg.Warehouse.Path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warehouse open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, file := range files {
		name := *table
		if name == "" {
			name = tableNameFromFile(file)
		}
		if name == "" {
			fmt.Fprintf(os.Stderr, "cannot derive table name from %q; use -table\n", file)
			os.Exit(1)
		}
		if err := store.LoadCSV(ctx, name, file); err != nil {
			fmt.Fprintf(os.Stderr, "load %q failed: %v\n", file, err)
			os.Exit(1)
		}
		fmt.Printf("loaded %s into table %s\n", file, name)
	}
}

func tableNameFromFile(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	name = strings.ReplaceAll(name, "-", "_")
	for _, r := range name {
		valid := r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !valid {
			return ""
		}
	}
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return ""
	}
	return name
}
