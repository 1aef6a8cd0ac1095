// Package config loads server and comparison defaults from a JSON file.
// Fields omitted from the file keep their defaults, so partial configs are
// safe; the same struct shape round-trips through the /api/config endpoint.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tellurium-labs/assay.report/internal/compare"
)

// Config is the root configuration. All fields are pointers so a JSON file
// can distinguish "absent" from "zero".
type Config struct {
	// Server params
	Listen         *string `json:"listen,omitempty"`
	DBPath         *string `json:"db_path,omitempty"`
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`
	SessionTTL     *string `json:"session_ttl,omitempty"` // duration string like "24h"

	// Alignment params
	DefaultRounding *int    `json:"default_rounding,omitempty"`
	IDColumn        *string `json:"id_column,omitempty"`
	SpuriousColumn  *string `json:"spurious_column,omitempty"`

	// Grid comparison params
	DefaultMethod *string  `json:"default_method,omitempty"`
	MaxGridCells  *int     `json:"max_grid_cells,omitempty"`
	Quantile      *float64 `json:"quantile,omitempty"`
	TailThreshold *float64 `json:"tail_threshold,omitempty"`
	BinsRule      *string  `json:"bins_rule,omitempty"`
	MaxBins       *int     `json:"max_bins,omitempty"`
	MinExpected   *float64 `json:"min_expected,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// Default returns the canonical defaults with every field set.
func Default() *Config {
	p := compare.DefaultParams()
	return &Config{
		Listen:          ptrString(":8080"),
		DBPath:          ptrString("assay_sessions.db"),
		MaxUploadBytes:  ptrInt64(64 << 20), // 64MB across both CSVs
		SessionTTL:      ptrString("24h"),
		DefaultRounding: ptrInt(6),
		IDColumn:        ptrString("SAMPLEID"),
		SpuriousColumn:  ptrString("SPURIOUS"),
		DefaultMethod:   ptrString("max"),
		MaxGridCells:    ptrInt(1 << 20),
		Quantile:        ptrFloat64(p.Q),
		TailThreshold:   ptrFloat64(p.Threshold),
		BinsRule:        ptrString(p.BinsRule),
		MaxBins:         ptrInt(p.MaxBins),
		MinExpected:     ptrFloat64(p.MinExpected),
	}
}

// Load reads a JSON config file and overlays it on the defaults. The file
// must have a .json extension and stay under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var over Config
	if err := json.Unmarshal(data, &over); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Default()
	cfg.Merge(&over)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge overlays every non-nil field of over onto c.
func (c *Config) Merge(over *Config) {
	if over.Listen != nil {
		c.Listen = over.Listen
	}
	if over.DBPath != nil {
		c.DBPath = over.DBPath
	}
	if over.MaxUploadBytes != nil {
		c.MaxUploadBytes = over.MaxUploadBytes
	}
	if over.SessionTTL != nil {
		c.SessionTTL = over.SessionTTL
	}
	if over.DefaultRounding != nil {
		c.DefaultRounding = over.DefaultRounding
	}
	if over.IDColumn != nil {
		c.IDColumn = over.IDColumn
	}
	if over.SpuriousColumn != nil {
		c.SpuriousColumn = over.SpuriousColumn
	}
	if over.DefaultMethod != nil {
		c.DefaultMethod = over.DefaultMethod
	}
	if over.MaxGridCells != nil {
		c.MaxGridCells = over.MaxGridCells
	}
	if over.Quantile != nil {
		c.Quantile = over.Quantile
	}
	if over.TailThreshold != nil {
		c.TailThreshold = over.TailThreshold
	}
	if over.BinsRule != nil {
		c.BinsRule = over.BinsRule
	}
	if over.MaxBins != nil {
		c.MaxBins = over.MaxBins
	}
	if over.MinExpected != nil {
		c.MinExpected = over.MinExpected
	}
}

// Validate checks cross-field constraints that JSON decoding cannot.
func (c *Config) Validate() error {
	if c.DefaultMethod != nil {
		if _, err := compare.Lookup(*c.DefaultMethod); err != nil {
			return fmt.Errorf("invalid default_method: %w", err)
		}
	}
	if c.SessionTTL != nil {
		if _, err := time.ParseDuration(*c.SessionTTL); err != nil {
			return fmt.Errorf("invalid session_ttl: %w", err)
		}
	}
	if c.Quantile != nil && (*c.Quantile < 0 || *c.Quantile > 1) {
		return fmt.Errorf("quantile must be in [0,1], got %v", *c.Quantile)
	}
	return nil
}

// SessionTTLDuration parses the session TTL. Call Validate first; this
// falls back to 24h when the field is unset.
func (c *Config) SessionTTLDuration() time.Duration {
	if c.SessionTTL == nil {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(*c.SessionTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// CompareParams assembles the estimator parameters from the config.
func (c *Config) CompareParams() compare.Params {
	p := compare.DefaultParams()
	if c.Quantile != nil {
		p.Q = *c.Quantile
	}
	if c.TailThreshold != nil {
		p.Threshold = *c.TailThreshold
	}
	if c.BinsRule != nil {
		p.BinsRule = *c.BinsRule
	}
	if c.MaxBins != nil {
		p.MaxBins = *c.MaxBins
	}
	if c.MinExpected != nil {
		p.MinExpected = *c.MinExpected
	}
	return p
}
