package cfg

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	if Version != "" {
		return Version
	}
	return "unknown"
}

type rawCfg struct {
	// Storage layout
	DataDir          string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Working directory root for per-producer downloads"`
	FinalDir         string `long:"final-dir" env:"FINAL_DIR" description:"Final directory root for finished media (empty disables relocation)"`
	MoveAfterCombine bool   `long:"move-after-combine" env:"MOVE_AFTER_COMBINE" description:"Relocate finished media into the final directory"`
	HistoryDB        string `long:"history-db" env:"HISTORY_DB" default:"./bupcache.db" description:"SQLite database file for sync run history"`

	// Producer configuration
	ProducersDir string `long:"producers-dir" env:"PRODUCERS_DIR" default:"./producers" description:"Directory containing producer configuration files"`
	SessionFile  string `long:"session-file" env:"SESSION_FILE" default:"./session.yml" description:"Session file holding API cookies"`

	// Sync pacing
	IntervalSec     int `long:"interval" env:"INTERVAL_SEC" default:"300" description:"Seconds between sync cycles"`
	ProducerSpacing int `long:"producer-spacing" env:"PRODUCER_SPACING" default:"5" description:"Seconds between producers within a cycle"`
	PageSpacing     int `long:"page-spacing" env:"PAGE_SPACING" default:"5" description:"Seconds between feed pages of one producer"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// External tooling
	FFmpegPath string `long:"ffmpeg" env:"FFMPEG_PATH" default:"ffmpeg" description:"Path to the ffmpeg binary used for stream muxing"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:          raw.DataDir,
		FinalDir:         raw.FinalDir,
		MoveAfterCombine: raw.MoveAfterCombine,
		HistoryDB:        raw.HistoryDB,
		ProducersDir:     raw.ProducersDir,
		SessionFile:      raw.SessionFile,
		IntervalSec:      raw.IntervalSec,
		ProducerSpacing:  raw.ProducerSpacing,
		PageSpacing:      raw.PageSpacing,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		FFmpegPath:       raw.FFmpegPath,
		UserAgent:        raw.UserAgent,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
