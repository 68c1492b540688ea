package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ctstackto3d/pkg/batch"
	"ctstackto3d/pkg/config"
	"ctstackto3d/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing 2D cross-section images")
	outputDir := flag.String("output", "output", "Directory for STL models, previews and the summary CSV")
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration file")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (0 = value from config)")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to the -config path and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}

	fmt.Println("================================")
	fmt.Println("3D SURFACE MODEL GENERATION FROM 2D CROSS-SECTION IMAGE STACKS")
	fmt.Println("Isosurface extraction and mesh decimation parameter sweep")
	fmt.Println("================================")

	spacing := volume.Spacing{
		X: cfg.Processing.SpacingX,
		Y: cfg.Processing.SpacingY,
		Z: cfg.Processing.SpacingZ,
	}

	fmt.Printf("Loading image stack from: %s\n", *inputDir)
	grid, err := volume.LoadFromDir(*inputDir, spacing)
	if err != nil {
		log.Fatalf("Failed to load image stack: %v", err)
	}

	lo, hi := grid.Range()
	fmt.Printf("Loaded volume: %dx%dx%d voxels, value range [%g, %g]\n",
		grid.Width, grid.Height, grid.Depth, lo, hi)

	// Run the parameter sweep
	orchestrator := batch.New(cfg, grid, *outputDir)
	combos := orchestrator.Combinations()
	fmt.Printf("Sweeping %d parameter combinations...\n", len(combos))

	startTime := time.Now()
	results, err := orchestrator.Run()
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nSweep completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Produced %d models out of %d combinations\n", len(results), len(combos))
	fmt.Printf("Output models saved to: %s\n", *outputDir)

	summaryPath := filepath.Join(*outputDir, cfg.Output.SummaryFile)
	switch err := batch.WriteSummary(summaryPath, results); err {
	case nil:
		fmt.Printf("Comparison summary saved to: %s\n", summaryPath)
	case batch.ErrNoResults:
		fmt.Println("No combination produced a surface; no summary written.")
	default:
		log.Fatalf("Failed to write summary: %v", err)
	}
}
