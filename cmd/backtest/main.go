// Package main runs simulations in process and prints their metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/logging"
	"btc-scenario-lab/internal/orchestrator"
	"btc-scenario-lab/internal/reporting"
	"btc-scenario-lab/internal/simulation"
	"btc-scenario-lab/internal/storage/memory"
)

func main() {
	kind := flag.String("kind", string(domain.AutomationTrailingStop), "Automation kind (margin_guard, take_profit, trailing_stop, auto_entry)")
	regime := flag.String("regime", string(domain.RegimeSideways), "Price regime (bull, bear, sideways, volatile)")
	price := flag.Float64("price", 50000, "Initial price")
	duration := flag.Int("duration", 60, "Simulated duration in seconds (10-3600)")
	seed := flag.Int64("seed", 1, "Seed of the first run")
	runs := flag.Int("runs", 1, "Number of runs; run i uses seed+i")
	outputDir := flag.String("output-dir", "", "Write markdown and CSV reports to this directory")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *runs < 1 {
		fmt.Fprintln(os.Stderr, "Error: --runs must be >= 1")
		os.Exit(1)
	}

	ctx := context.Background()

	simStore := memory.NewSimulationStore()
	resultStore := memory.NewSimulationResultStore()
	summaryStore := memory.NewRunSummaryStore()

	executor := simulation.NewExecutor(simulation.ExecutorOptions{
		Simulations: simStore,
		Results:     resultStore,
		Summaries:   summaryStore,
		Logger:      logger.Named("executor"),
	})
	orch := orchestrator.New(orchestrator.Options{
		Simulations: simStore,
		Results:     resultStore,
		Summaries:   summaryStore,
		Logger:      logger.Named("orchestrator"),
	})
	gen := reporting.NewGenerator(simStore, resultStore, summaryStore)

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("%-6s %-12s %-10s %8s %8s %12s %12s %14s\n",
		"run", "seed", "status", "samples", "actions", "total_pnl", "max_dd", "final_balance")

	for i := 0; i < *runs; i++ {
		runSeed := *seed + int64(i)
		sim, err := orch.Create(ctx, orchestrator.CreateParams{
			UserID:          "backtest",
			Name:            fmt.Sprintf("%s-%s-%d", *kind, *regime, runSeed),
			AutomationKind:  domain.AutomationKind(*kind),
			PriceRegime:     domain.PriceRegime(*regime),
			InitialPrice:    *price,
			DurationSeconds: *duration,
			Environment:     "backtest",
			Seed:            &runSeed,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating simulation: %v\n", err)
			os.Exit(1)
		}

		start := time.Now()
		report, err := executor.Run(ctx, sim.ID)
		if err != nil {
			logger.Warn("run failed", zap.String("simulation_id", sim.ID), zap.Error(err))
		}
		if report == nil {
			fmt.Fprintf(os.Stderr, "Error running simulation %s: %v\n", sim.ID, err)
			os.Exit(1)
		}

		s := report.Summary
		fmt.Printf("%-6d %-12d %-10s %8d %8d %12.2f %12.2f %14.2f\n",
			i+1, runSeed, report.Status, report.Samples, len(report.Actions), s.TotalPnL, s.MaxDrawdown, s.FinalBalance)
		logger.Debug("run finished", zap.String("simulation_id", sim.ID), zap.Duration("elapsed", time.Since(start)))

		if *outputDir != "" {
			if err := writeReport(ctx, gen, *outputDir, sim.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
				os.Exit(1)
			}
		}
	}

	aggReport, err := gen.GenerateAggregate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error aggregating runs: %v\n", err)
		os.Exit(1)
	}
	if *runs > 1 {
		fmt.Println()
		fmt.Print(reporting.RenderAggregateMarkdown(aggReport))
	}
	if *outputDir != "" {
		path := filepath.Join(*outputDir, "aggregates.csv")
		if err := os.WriteFile(path, []byte(reporting.RenderAggregatesCSV(aggReport.Aggregates)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

// writeReport writes <id>.md and <id>.csv for one simulation.
func writeReport(ctx context.Context, gen *reporting.Generator, dir, simulationID string) error {
	report, err := gen.Generate(ctx, simulationID)
	if err != nil {
		return err
	}
	md := filepath.Join(dir, simulationID+".md")
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", md, err)
	}
	csv := filepath.Join(dir, simulationID+".csv")
	if err := os.WriteFile(csv, []byte(reporting.RenderResultsCSV(report.Results)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", csv, err)
	}
	return nil
}
