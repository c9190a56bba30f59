// Package main writes report files for stored simulations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"btc-scenario-lab/internal/config"
	"btc-scenario-lab/internal/reporting"
	"btc-scenario-lab/internal/storage"
	chstore "btc-scenario-lab/internal/storage/clickhouse"
	pgstore "btc-scenario-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "Path to config file (optional)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides postgres.dsn)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides clickhouse.dsn)")
	ids := flag.String("simulations", "", "Comma-separated simulation IDs to report")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Flags alone are enough for this tool.
		cfg = &config.Config{}
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickHouse.DSN = *clickhouseDSN
	}
	if cfg.Postgres.DSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn (or postgres.dsn) is required")
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var summaryStore storage.RunSummaryStore
	if cfg.ClickHouse.DSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		summaryStore = chstore.NewRunSummaryStore(conn)
	}

	gen := reporting.NewGenerator(
		pgstore.NewSimulationStore(pool),
		pgstore.NewSimulationResultStore(pool),
		summaryStore,
	)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	written := 0
	for _, id := range strings.Split(*ids, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		report, err := gen.Generate(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report for %s: %v\n", id, err)
			os.Exit(1)
		}
		if err := writeFile(*outputDir, id+".md", reporting.RenderMarkdown(report)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := writeFile(*outputDir, id+".csv", reporting.RenderResultsCSV(report.Results)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		written++
	}

	if summaryStore != nil {
		agg, err := gen.GenerateAggregate(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating aggregate report: %v\n", err)
			os.Exit(1)
		}
		if err := writeFile(*outputDir, "AGGREGATES.md", reporting.RenderAggregateMarkdown(agg)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := writeFile(*outputDir, "aggregates.csv", reporting.RenderAggregatesCSV(agg.Aggregates)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if written == 0 && summaryStore == nil {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass --simulations and/or a ClickHouse DSN")
		os.Exit(1)
	}

	fmt.Printf("Reports written to %s/\n", *outputDir)
}

func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
