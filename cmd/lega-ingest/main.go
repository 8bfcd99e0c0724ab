// Command lega-ingest runs a single ingestion batch and prints the result
// as JSON. It exits non-zero when the batch could not run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nitesh/lega/internal/app"
	"github.com/nitesh/lega/internal/config"
	"github.com/nitesh/lega/internal/logger"
	"github.com/nitesh/lega/internal/service"
	"github.com/nitesh/lega/pkg/models"
)

func main() {
	query := flag.String("q", "", "search query (defaults to openstates.query)")
	sector := flag.String("sector", "", "reader sector: healthcare, education, service or corporate")
	page := flag.Int("page", 0, "result page")
	perPage := flag.Int("per-page", 0, "bills per page")
	force := flag.Bool("force", false, "regenerate bills that are already stored")
	flag.Parse()

	if err := run(*query, *sector, *page, *perPage, *force); err != nil {
		fmt.Fprintln(os.Stderr, "lega-ingest:", err)
		os.Exit(1)
	}
}

func run(query, sector string, page, perPage int, force bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	req := service.IngestRequest{Query: query, Page: page, PerPage: perPage, Force: force}
	if sector != "" {
		if req.Sector, err = models.ParseSector(sector); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, ingestErr := a.Pipeline.Ingest(ctx, req)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	return ingestErr
}
