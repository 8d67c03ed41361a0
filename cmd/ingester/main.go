package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"sala-situacao/internal/aggregation"
	"sala-situacao/internal/config"
	"sala-situacao/internal/repository"
	"sala-situacao/internal/services"
	"sala-situacao/pkg/database"
	"sala-situacao/pkg/logging"
	"sala-situacao/pkg/metrics"
)

const (
	version        = "1.0.0"
	maxErrorsShown = 10
)

func main() {
	series := flag.String("series", "", "Target series: "+strings.Join(aggregation.SeriesNames, ", "))
	dataDir := flag.String("data-dir", "", "Directory containing CSV exports")
	file := flag.String("file", "", "Single CSV export (overrides -data-dir)")
	batchSize := flag.Int("batch-size", 1000, "Number of records per COPY batch")
	dryRun := flag.Bool("dry-run", false, "Parse and aggregate the file in memory without touching the database")
	flag.Parse()

	if _, ok := repository.TableFor(*series); !ok {
		fmt.Fprintf(os.Stderr, "Unknown or missing -series %q, expected one of: %s\n", *series, strings.Join(aggregation.SeriesNames, ", "))
		os.Exit(2)
	}
	if *file == "" && *dataDir == "" {
		fmt.Fprintln(os.Stderr, "One of -file or -data-dir is required")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("sala-situacao-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("sala_situacao_ingester", prometheus.NewRegistry())
	normalizer := aggregation.NewNormalizer(cfg.Location())

	ctx := logging.WithSeries(context.Background(), *series)
	logger.Info(ctx, "[INGESTER_START] Starting field data ingestion", logging.Fields{
		"version":    version,
		"data_dir":   *dataDir,
		"file":       *file,
		"batch_size": *batchSize,
		"dry_run":    *dryRun,
	})

	if *dryRun {
		if *file == "" {
			fmt.Fprintln(os.Stderr, "-dry-run requires -file")
			os.Exit(2)
		}
		ingestionService := services.NewIngestionService(nil, normalizer, logger, metricsCollector)
		preview, err := ingestionService.PreviewFile(*series, *file)
		if err != nil {
			logger.Fatal(ctx, "[PREVIEW_ERROR] Preview failed", logging.Fields{"file": *file}, err)
		}
		printPreview(preview)
		return
	}

	db, err := database.NewPostgresDB(&database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	seriesRepo := repository.NewSeriesRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(seriesRepo, normalizer, logger, metricsCollector)

	if *file != "" {
		fileResult, err := ingestionService.IngestFile(ctx, *series, *file, *batchSize)
		if err != nil {
			db.Close()
			logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{"file": *file}, err)
		}
		if fileResult.SuccessfulRecords > 0 {
			if err := ingestionService.RefreshStatistics(ctx, *series); err != nil {
				logger.Warn(ctx, "[INGESTER_ANALYZE_ERROR] Failed to refresh table statistics", logging.Fields{"error": err.Error()})
			}
		}
		printFile(fileResult)
		return
	}

	result, err := ingestionService.IngestDirectory(ctx, *series, *dataDir, *batchSize)
	if err != nil {
		db.Close()
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{"data_dir": *dataDir}, err)
	}

	rule := strings.Repeat("=", 80)
	fmt.Println(rule)
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(rule)
	fmt.Printf("Series:             %s\n", *series)
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	for _, f := range result.Files {
		printRejected(f)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i == maxErrorsShown {
				fmt.Printf("  ... and %d more errors\n", len(result.Errors)-maxErrorsShown)
				break
			}
			fmt.Printf("  - %s\n", errMsg)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}

func printFile(r *services.FileIngestionResult) {
	fmt.Printf("%s: %d records, %d imported, %d rejected\n", r.File, r.TotalRecords, r.SuccessfulRecords, r.FailedRecords)
	printRejected(r)
}

func printRejected(r *services.FileIngestionResult) {
	if len(r.Rejected) == 0 {
		return
	}
	fmt.Printf("\nRejected rows in %s:\n", r.File)
	for i, verr := range r.Rejected {
		if i == maxErrorsShown {
			fmt.Printf("  ... and %d more\n", r.FailedRecords-maxErrorsShown)
			break
		}
		fmt.Printf("  - %s\n", verr.Error())
	}
}

func printPreview(p *services.PreviewResult) {
	rule := strings.Repeat("=", 80)
	fmt.Println(rule)
	fmt.Printf("DRY RUN: %s\n", p.Output.Series)
	fmt.Println(rule)
	printFile(p.File)
	fmt.Printf("Folded: %d, missing timestamp: %d, unknown category: %d\n\n",
		p.Output.Folded, p.Output.SkippedTimestamp, p.Output.UnmatchedCategory)

	layout, _ := aggregation.LayoutOf(p.Output.Series)
	keys := layout.Keys()

	years := make([]int, 0, len(p.Output.Years))
	for y := range p.Output.Years {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		fmt.Printf("%d\n", y)
		fmt.Printf("  %-4s", "mes")
		for _, k := range keys {
			fmt.Printf(" %14s", k)
		}
		fmt.Println()

		for m, month := range p.Output.Years[y] {
			fmt.Printf("  %-4d", m+1)
			for _, k := range keys {
				if v, ok := month.Value(k); ok {
					fmt.Printf(" %14.2f", v)
				} else {
					fmt.Printf(" %14s", "-")
				}
			}
			fmt.Println()
		}
	}
}
