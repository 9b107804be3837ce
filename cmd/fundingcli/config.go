package main

import (
	"time"

	"github.com/jessevdk/go-flags"
)

// fileConfig holds the static settings a real deployment would load from an
// ini file underneath its per-invocation CLI flags, the way a long-running
// daemon layers flags.IniParse beneath its command-line parser.
type fileConfig struct {
	DefaultFeeRateSatPerKW uint64        `long:"feerate" description:"default target feerate in sat/kw, used when a command omits -sat_per_kw"`
	MaxPublishRetryDelay   time.Duration `long:"maxretrydelay" description:"maximum jitter delay between fee-bump checks"`
}

func defaultFileConfig() *fileConfig {
	return &fileConfig{
		DefaultFeeRateSatPerKW: 1000,
		MaxPublishRetryDelay:   30 * time.Second,
	}
}

// loadFileConfig returns the default configuration if path is empty,
// otherwise overlays path's ini contents onto it.
func loadFileConfig(path string) (*fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	parser := flags.NewParser(cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return nil, err
	}

	return cfg, nil
}
