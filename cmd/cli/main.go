// Command cli runs the mapping pipeline over a point catalog file and
// prints the summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yourorg/enos-mapper/internal/app"
	"github.com/yourorg/enos-mapper/internal/catalog"
	"github.com/yourorg/enos-mapper/internal/config"
)

func main() {
	_ = godotenv.Load()

	var (
		inputPath = flag.String("input", "", "point catalog file (.xlsx or .csv), or a Google Sheets URL")
		sheet     = flag.String("sheet", "", "sheet name for .xlsx inputs (default: first sheet)")
		apiKey    = flag.String("gsheet-api-key", os.Getenv("GSHEET_API_KEY"), "API key for Google Sheets inputs")
		outPath   = flag.String("out", "", "write the summary JSON here instead of stdout")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: cli -input points.xlsx")
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	application, err := app.Build(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	res, err := loadCatalog(ctx, *inputPath, *sheet, *apiKey)
	if err != nil {
		slog.Error("failed to load catalog", "input", *inputPath, "err", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "points", len(res.Points), "skipped", res.Skipped)

	id := application.Orchestrator.Run(ctx, res.Points, "map_points")
	summary, _ := application.Orchestrator.Summary(id)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		slog.Error("failed to encode summary", "err", err)
		os.Exit(1)
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, out, 0o644); err != nil {
			slog.Error("failed to write summary", "path", *outPath, "err", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(string(out))
}

func loadCatalog(ctx context.Context, input, sheet, apiKey string) (*catalog.Result, error) {
	if sheetID, ok := catalog.ParseGoogleSheetURL(input); ok {
		if apiKey == "" {
			return nil, fmt.Errorf("google sheets input requires -gsheet-api-key")
		}
		return catalog.LoadGoogleSheet(ctx, apiKey, sheetID, "")
	}

	switch strings.ToLower(filepath.Ext(input)) {
	case ".xlsx", ".xlsm":
		return catalog.LoadXLSXFile(input, sheet)
	case ".csv":
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return catalog.LoadCSV(f)
	}
	return nil, fmt.Errorf("unsupported input %q: use .xlsx, .csv, or a Google Sheets URL", input)
}
