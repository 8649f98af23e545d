package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dicfield/internal/models"
	"dicfield/pkg/analysis"
	"dicfield/pkg/config"
	"dicfield/pkg/correlation"
	"dicfield/pkg/logging"
)

func main() {
	// Parse command line arguments
	refPath := flag.String("ref", "", "Reference (undeformed) image")
	defPath := flag.String("def", "", "Deformed image")
	testName := flag.String("name", "", "Test ID (default: timestamp based)")
	configPath := flag.String("config", "dicfield.yaml", "Configuration file")
	resultsDir := flag.String("results", "", "Results directory (overrides config)")
	subsetSize := flag.Int("subset", 0, "Subset size in pixels, odd, 21-31 (default: 27)")
	step := flag.Int("step", 0, "Grid step in pixels (default: 13)")
	maxIter := flag.Int("iter", 0, "Optimizer iterations per point (default: 40)")
	minCorr := flag.Float64("min-corr", 0, "Minimum ZNCC for a reliable point (default: 0.4)")
	workers := flag.Int("workers", 0, "Number of parallel workers (default: config or all cores)")
	logFile := flag.String("log-file", "", "Write logs to a rotating file instead of stderr")
	listTests := flag.Bool("list", false, "List stored analyses and exit")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *resultsDir != "" {
		cfg.Output.ResultsDir = *resultsDir
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	logger := logging.New(cfg.LoggingConfig())

	processor := &analysis.Processor{
		ResultsDir: cfg.Output.ResultsDir,
		SaveImages: cfg.Output.SaveImages,
		SavePDF:    cfg.Output.SavePDF,
		Logger:     logger,
	}

	if *listTests {
		printTests(processor)
		return
	}

	// Validate inputs
	if *refPath == "" || *defPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	params := fileParams(cfg, *configPath)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "subset":
			params.SubsetSize = *subsetSize
		case "step":
			params.Step = *step
		case "iter":
			params.MaxIter = *maxIter
		case "min-corr":
			params.MinCorrelation = *minCorr
		case "workers":
			params.Workers = *workers
		}
	})
	params = params.Normalize()

	testID := *testName
	if testID == "" {
		testID = analysis.NewTestID(time.Now())
	}

	fmt.Println("================================")
	fmt.Println("DIGITAL IMAGE CORRELATION: DISPLACEMENT FIELD")
	fmt.Println("================================")
	fmt.Printf("Reference: %s\n", *refPath)
	fmt.Printf("Deformed:  %s\n", *defPath)
	fmt.Printf("Subset %d px, step %d px, %d iterations, min correlation %.2f, %d workers\n\n",
		params.SubsetSize, params.Step, params.MaxIter, params.MinCorrelation, params.Workers)

	if cfg.Output.Verbose {
		processor.Progress = newProgressBar(os.Stdout).Update
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	record := processor.ProcessFiles(ctx, testID, *refPath, *defPath, params)
	if record.Failed() {
		fmt.Printf("\nAnalysis %s ended with status %s: %s\n", record.TestID, record.Status, record.Error)
		stop()
		os.Exit(1)
	}

	printRecord(record)
}

// fileParams returns the parameters for image files: the high resolution
// defaults, or the config file's correlation section when one exists.
func fileParams(cfg *config.Config, configPath string) correlation.Params {
	if _, err := os.Stat(configPath); err == nil {
		return cfg.CorrelationParams()
	}
	params := correlation.FileParams()
	params.Workers = cfg.Processing.NumWorkers
	return params
}

func printRecord(record *models.Analysis) {
	stats := record.Statistics

	fmt.Printf("\nAnalysis %s completed in %.2f seconds\n\n", record.TestID, stats.ProcessingTimeSeconds)
	fmt.Printf("Displacement statistics (pixels):\n")
	fmt.Printf("=================================\n")
	fmt.Printf("Mean:   %.4f\n", stats.MeanDisplacement)
	fmt.Printf("Max:    %.4f\n", stats.MaxDisplacement)
	fmt.Printf("Median: %.4f\n", stats.MedianDisplacement)
	fmt.Printf("Std:    %.4f\n", stats.StdDisplacement)
	fmt.Printf("\nCorrelation quality: %.3f\n", stats.CorrelationQuality)
	fmt.Printf("Reliable points (C > %.1f): %.1f%%\n", correlation.ReliableThreshold, stats.ReliablePointsPercentage)
	fmt.Printf("Valid points after filtering: %d of %d\n", stats.ValidPoints, stats.AnalysisPoints)
	fmt.Printf("Image size: %dx%d\n", stats.ImageShape[1], stats.ImageShape[0])

	if stats.ValidPoints == 0 {
		fmt.Println("\nWarning: no point passed the correlation threshold")
	}

	if paths := record.ImagePaths; paths != nil {
		fmt.Println("\nSaved images:")
		for _, path := range []string{paths.Original, paths.Deformed, paths.Displacement, paths.DisplacementPDF} {
			if path != "" {
				fmt.Printf("- %s\n", path)
			}
		}
	}
	fmt.Printf("\nResults saved to: %s\n", record.ResultsJSONPath)
}

func printTests(processor *analysis.Processor) {
	tests, err := processor.ListTests()
	if err != nil {
		log.Fatalf("Failed to list tests: %v", err)
	}
	if len(tests) == 0 {
		fmt.Printf("No analyses found in %s\n", processor.ResultsDir)
		return
	}

	fmt.Printf("%-28s %-11s %-20s %s\n", "TEST", "STATUS", "TIMESTAMP", "MEAN (px)")
	for _, t := range tests {
		ts := "-"
		if !t.Timestamp.IsZero() {
			ts = t.Timestamp.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-28s %-11s %-20s %.4f\n", t.TestID, t.Status, ts, t.MeanDisplacement)
	}
}
