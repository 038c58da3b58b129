package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/tunegraph/internal/app"
	"github.com/yungbote/tunegraph/internal/platform/shutdown"
)

func main() {
	var (
		path        string
		dryRun      bool
		materialize bool
	)
	flag.StringVar(&path, "file", "", "catalog file (YAML or JSON)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the catalog and print counts without writing")
	flag.BoolVar(&materialize, "materialize", false, "derive SIMILAR_TO edges from indexed embeddings")
	flag.Parse()

	if path == "" {
		fmt.Println("-file is required")
		os.Exit(2)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("open catalog: %v\n", err)
		os.Exit(1)
	}
	catalog, err := decodeCatalog(f)
	_ = f.Close()
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	if dryRun {
		sum, _ := Load(context.Background(), nil, nil, catalog, Options{DryRun: true})
		fmt.Printf("[dry-run] %s\n", sum)
		return
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	sum, err := Load(ctx, a.Log, a.Services.Engine, catalog, Options{Materialize: materialize})
	if err != nil {
		a.Log.Error("ingest aborted", "error", err, "summary", sum.String())
		a.Close()
		os.Exit(1)
	}
	fmt.Printf("done; %s\n", sum)
}
