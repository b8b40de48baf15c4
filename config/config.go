// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and validates the wallet engine configuration.
//
// Configuration lives in a plain "key = value" file at {datadir}/config.
// Lines starting with '#' and blank lines are ignored; unknown keys are
// ignored so older binaries tolerate config written by newer ones.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all wallet engine configuration values.
type Config struct {
	DataDir  string // base directory for the store and log files
	Network  string // "mainnet" or "testnet"
	LogLevel string // "debug", "info", "warn", "error"
	LogFile  string // empty = stderr

	WOCURL   string  // WhatsOnChain API base URL
	ArcURL   string  // ARC transaction processor base URL
	ArcToken string  // optional ARC Authorization bearer token
	MapiURL  string  // mAPI base URL (broadcast fallback + fee quotes)
	FeeRate  float64 // user fee-rate override in sat/byte, 0 = none
}

// DefaultDataDir returns the default data directory (~/.bsvwallet).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bsvwallet"
	}
	return filepath.Join(home, ".bsvwallet")
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Network:  "mainnet",
		LogLevel: "info",
		LogFile:  "",
		WOCURL:   "https://api.whatsonchain.com/v1/bsv/main",
		ArcURL:   "https://arc.taal.com",
		MapiURL:  "https://mapi.taal.com",
		FeeRate:  0,
	}
}

// ConfigPath returns the config file path within a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads a config file. Missing fields keep their defaults.
// Returns ErrConfigNotFound if the file does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}

		switch key {
		case "datadir":
			cfg.DataDir = value
		case "network":
			cfg.Network = value
		case "loglevel":
			cfg.LogLevel = value
		case "logfile":
			cfg.LogFile = value
		case "woc_url":
			cfg.WOCURL = value
		case "arc_url":
			cfg.ArcURL = value
		case "arc_token":
			cfg.ArcToken = value
		case "mapi_url":
			cfg.MapiURL = value
		case "fee_rate":
			rate, parseErr := strconv.ParseFloat(value, 64)
			if parseErr != nil {
				return cfg, fmt.Errorf("%w: line %d: fee_rate %q", ErrInvalidConfigLine, lineNo, value)
			}
			cfg.FeeRate = rate
		default:
			// Unknown keys are ignored for forward compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	return cfg, nil
}

// parseKeyValue splits a "key = value" line on the first '='.
// Whitespace around key and value is trimmed; the value may contain '='.
func parseKeyValue(line string) (string, string, error) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", fmt.Errorf("no '=' separator")
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", fmt.Errorf("empty key")
	}
	return key, value, nil
}

// SaveConfig writes the config to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}

	var b strings.Builder
	b.WriteString("# Wallet Engine Configuration\n")
	b.WriteString("# Generated file; edit values as needed.\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "woc_url = %s\n", cfg.WOCURL)
	fmt.Fprintf(&b, "arc_url = %s\n", cfg.ArcURL)
	fmt.Fprintf(&b, "arc_token = %s\n", cfg.ArcToken)
	fmt.Fprintf(&b, "mapi_url = %s\n", cfg.MapiURL)
	fmt.Fprintf(&b, "fee_rate = %s\n", strconv.FormatFloat(cfg.FeeRate, 'f', -1, 64))

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
