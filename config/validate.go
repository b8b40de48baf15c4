// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// MaxFeeRate is the highest accepted fee_rate override in sat/byte.
const MaxFeeRate = 5.0

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	for name, u := range map[string]string{
		"woc_url":  cfg.WOCURL,
		"arc_url":  cfg.ArcURL,
		"mapi_url": cfg.MapiURL,
	} {
		if err := validateURL(u); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEndpointURL, name, err)
		}
	}

	if cfg.FeeRate < 0 || cfg.FeeRate > MaxFeeRate {
		return ErrInvalidFeeRate
	}

	return nil
}

// validateURL checks that u is an absolute http or https URL.
func validateURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme %q not http(s)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
