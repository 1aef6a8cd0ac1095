// Package main provides a batch comparison runner: it aligns two survey
// CSVs, runs one grid estimator, and writes the result grids plus optional
// charts to an output directory. A done.flag file marks a completed run so
// watchers can poll the directory.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tellurium-labs/assay.report/internal/align"
	"github.com/tellurium-labs/assay.report/internal/compare"
	"github.com/tellurium-labs/assay.report/internal/grid"
	"github.com/tellurium-labs/assay.report/internal/report"
	"github.com/tellurium-labs/assay.report/internal/tabular"
)

// Config holds configuration for one comparison run.
type Config struct {
	OrigFile   string
	CandFile   string
	OutputDir  string
	Method     string
	XCol       string
	YCol       string
	ValueCol   string
	Rounding   int
	CellSize   float64
	Nx         int
	Ny         int
	Q          float64
	Threshold  float64
	BinsRule   string
	MaxBins    int
	WritePairs bool
	Heatmap    bool
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.OrigFile, "orig", "", "Path to the original (reference) CSV")
	flag.StringVar(&cfg.CandFile, "cand", "", "Path to the candidate CSV")
	flag.StringVar(&cfg.OutputDir, "out", "", "Output directory for result grids")
	flag.StringVar(&cfg.Method, "method", "max", "Comparison method: "+strings.Join(compare.Methods(), ", "))
	flag.StringVar(&cfg.XCol, "x", "X", "X coordinate column")
	flag.StringVar(&cfg.YCol, "y", "Y", "Y coordinate column")
	flag.StringVar(&cfg.ValueCol, "value", "", "Value column present in both files")
	flag.IntVar(&cfg.Rounding, "rounding", align.DefaultRounding, "Coordinate rounding in decimal places for pair export")
	flag.Float64Var(&cfg.CellSize, "cell-size", 0, "Grid cell size in coordinate units (overrides -nx/-ny)")
	flag.IntVar(&cfg.Nx, "nx", 50, "Grid columns when -cell-size is not set")
	flag.IntVar(&cfg.Ny, "ny", 50, "Grid rows when -cell-size is not set")
	flag.Float64Var(&cfg.Q, "q", 0.9, "Quantile for the p90 method")
	flag.Float64Var(&cfg.Threshold, "threshold", 1.0, "Anomaly threshold for the tail_ratio method")
	flag.StringVar(&cfg.BinsRule, "bins-rule", "fd", "Histogram bin rule for chi2: fd, scott, sturges")
	flag.IntVar(&cfg.MaxBins, "max-bins", 20, "Histogram bin cap for chi2")
	flag.BoolVar(&cfg.WritePairs, "pairs", false, "Also export aligned pairs as pairs.csv")
	flag.BoolVar(&cfg.Heatmap, "heatmap", false, "Also render heatmap.html of the comparison grid")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.OrigFile == "" || cfg.CandFile == "" || cfg.OutputDir == "" || cfg.ValueCol == "" {
		flag.Usage()
		log.Fatal("-orig, -cand, -out and -value are required")
	}

	if err := run(cfg); err != nil {
		log.Fatalf("comparison run failed: %v", err)
	}
}

func run(cfg Config) error {
	orig, err := loadCSV("original", cfg.OrigFile)
	if err != nil {
		return err
	}
	cand, err := loadCSV("candidate", cfg.CandFile)
	if err != nil {
		return err
	}
	log.Printf("loaded %d original rows, %d candidate rows", orig.Len(), cand.Len())

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	cols := compare.ColumnSpec{X: cfg.XCol, Y: cfg.YCol, Value: cfg.ValueCol}
	if err := orig.RequireColumns(cols.X, cols.Y, cols.Value); err != nil {
		return err
	}
	if err := cand.RequireColumns(cols.X, cols.Y, cols.Value); err != nil {
		return err
	}

	spec, err := gridSpec(cfg, orig, cand, cols)
	if err != nil {
		return err
	}
	log.Printf("grid: %dx%d cells over x=[%g,%g] y=[%g,%g]",
		spec.Nx, spec.Ny, spec.Bounds.MinX, spec.Bounds.MaxX, spec.Bounds.MinY, spec.Bounds.MaxY)

	params := compare.DefaultParams()
	params.Q = cfg.Q
	params.Threshold = cfg.Threshold
	params.BinsRule = cfg.BinsRule
	params.MaxBins = cfg.MaxBins

	g, err := compare.Run(cfg.Method, cand, orig, cols, cols, spec, params)
	if err != nil {
		return err
	}

	grids := map[string][][]float64{
		"orig_stat.csv": g.OrigStat,
		"cand_stat.csv": g.CandStat,
		"cmp_stat.csv":  g.CmpStat,
	}
	for name, m := range grids {
		if err := writeMatrixFile(filepath.Join(cfg.OutputDir, name), m); err != nil {
			return err
		}
	}

	if cfg.WritePairs {
		if err := writePairsFile(cfg, orig, cand); err != nil {
			return err
		}
	}

	if cfg.Heatmap {
		if err := writeHeatmapFile(cfg, g); err != nil {
			return err
		}
	}

	// done.flag marks the run as complete for directory watchers
	flagPath := filepath.Join(cfg.OutputDir, "done.flag")
	if err := os.WriteFile(flagPath, []byte(cfg.Method+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write done flag: %w", err)
	}

	log.Printf("wrote %s grids to %s", cfg.Method, cfg.OutputDir)
	return nil
}

func loadCSV(label, path string) (*tabular.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", label, err)
	}
	defer f.Close()
	ds, err := tabular.FromCSV(label, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s file: %w", label, err)
	}
	return ds, nil
}

func gridSpec(cfg Config, orig, cand *tabular.Dataset, cols compare.ColumnSpec) (grid.Spec, error) {
	bounds := grid.BoundsOf(orig.Coerce(cols.X), orig.Coerce(cols.Y)).
		Union(grid.BoundsOf(cand.Coerce(cols.X), cand.Coerce(cols.Y)))
	if bounds.IsZero() {
		return grid.Spec{}, fmt.Errorf("no finite coordinates in either input")
	}

	if cfg.CellSize > 0 {
		return grid.SpecFromCellSize(bounds, cfg.CellSize)
	}
	spec := grid.Spec{Nx: cfg.Nx, Ny: cfg.Ny, Bounds: bounds}
	if err := spec.Validate(); err != nil {
		return grid.Spec{}, err
	}
	return spec, nil
}

func writeMatrixFile(path string, m [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := report.WriteMatrix(w, m); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writePairsFile(cfg Config, orig, cand *tabular.Dataset) error {
	res, err := align.Align(orig, cand, align.Options{
		OrigX: cfg.XCol, OrigY: cfg.YCol, OrigValue: cfg.ValueCol,
		CandX: cfg.XCol, CandY: cfg.YCol, CandValue: cfg.ValueCol,
		Rounding: cfg.Rounding,
	})
	if err != nil {
		return err
	}
	log.Printf("aligned %d pairs at rounding %d", res.Len(), cfg.Rounding)

	path := filepath.Join(cfg.OutputDir, "pairs.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return report.WritePairs(csv.NewWriter(f), res)
}

func writeHeatmapFile(cfg Config, g compare.Grid) error {
	path := filepath.Join(cfg.OutputDir, "heatmap.html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return report.RenderHeatmap(f, g, report.HeatmapOptions{
		Title:    fmt.Sprintf("Grid comparison (%s)", cfg.Method),
		Subtitle: filepath.Base(cfg.OrigFile) + " vs " + filepath.Base(cfg.CandFile),
	})
}
