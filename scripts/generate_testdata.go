//go:build ignore

// generate_testdata.go creates item datasets for trying wt on large trees.
// Usage: go run scripts/generate_testdata.go [outdir]
//
// Creates, in outdir (default testdata/items):
//
//	small.jsonl   (1000 items)
//	medium.jsonl  (10000 items)
//	large.jsonl   (100000 items)
//	huge.jsonl    (500000 items)
//
// plus a .db SQLite copy of each, for paging through the database source.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/wintree/internal/datasource"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
	nest int // percent of items given a parent
}

var datasets = []datasetSpec{
	{"small", 1000, 70},
	{"medium", 10000, 80},
	{"large", 100000, 85},
	{"huge", 500000, 90},
}

var titles = []string{
	"Implement authentication flow",
	"Fix memory leak in cache",
	"Add API rate limiting",
	"Refactor database queries",
	"Update documentation",
	"Add unit tests for parser",
	"Optimize graph traversal",
	"Fix race condition in worker",
	"Add metrics dashboard",
	"Implement retry logic",
}

var statuses = []model.Status{model.StatusOpen, model.StatusInProgress, model.StatusBlocked, model.StatusClosed}

func main() {
	outputDir := "testdata/items"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d items)...\n", ds.name, ds.size)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size) // Reproducible per-size
		cfg.IDPrefix = ds.name[:2]
		items := testutil.New(cfg).Random(ds.size, ds.nest)
		addRealisticContent(items)

		jsonl := testutil.ToJSONL(items)
		jsonlPath := filepath.Join(outputDir, ds.name+".jsonl")
		if err := os.WriteFile(jsonlPath, []byte(jsonl), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", jsonlPath, err)
			os.Exit(1)
		}

		dbPath := filepath.Join(outputDir, ds.name+".db")
		_ = os.Remove(dbPath)
		if err := datasource.WriteSQLite(ctx, dbPath, items); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dbPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes) and %s\n", jsonlPath, len(jsonl), dbPath)
	}

	fmt.Println("\nDone! Datasets created in", outputDir)
}

func addRealisticContent(items []model.Item) {
	for i := range items {
		items[i].Title = fmt.Sprintf("%s #%d", titles[i%len(titles)], i)
		items[i].Status = statuses[i%len(statuses)]
		if i%7 == 0 {
			items[i].Labels = []string{"backend"}
		}
	}
}
