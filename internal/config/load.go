package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/qjebbs/go-jsons"
)

// Environment variables overriding the loaded policy.
const (
	envMaxTokens           = "WINNOW_MAX_TOKENS"
	envWarningThreshold    = "WINNOW_WARNING_THRESHOLD"
	envCompactionThreshold = "WINNOW_COMPACTION_THRESHOLD"
)

// Load layers the given policy files over the defaults, with later files
// winning field by field, then applies environment overrides and
// validates. Missing files are skipped so callers can pass the global and
// project paths unconditionally.
func Load(paths ...string) (*Policy, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "err", err)
	}

	data := make([][]byte, 0, len(paths))
	for _, path := range paths {
		bts, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading policy file %s: %w", path, err)
		}
		data = append(data, bts)
	}

	policy, err := loadFromBytes(data)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(policy); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}
	return policy, nil
}

// loadFromBytes merges raw policy documents and decodes the result over
// the default policy, so fields absent from every document keep their
// defaults.
func loadFromBytes(data [][]byte) (*Policy, error) {
	policy := Default()
	if len(data) == 0 {
		return &policy, nil
	}

	inputs := make([]any, 0, len(data))
	for _, d := range data {
		inputs = append(inputs, d)
	}
	merged, err := jsons.Merge(inputs...)
	if err != nil {
		return nil, fmt.Errorf("merging policy documents: %w", err)
	}
	if err := json.Unmarshal(merged, &policy); err != nil {
		return nil, fmt.Errorf("decoding merged policy: %w", err)
	}
	return &policy, nil
}

// applyEnv overrides scalar budget fields from the environment.
func applyEnv(p *Policy) error {
	if v := os.Getenv(envMaxTokens); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", envMaxTokens, err)
		}
		p.MaxTokens = n
	}
	if v := os.Getenv(envWarningThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", envWarningThreshold, err)
		}
		p.WarningThreshold = f
	}
	if v := os.Getenv(envCompactionThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", envCompactionThreshold, err)
		}
		p.CompactionThreshold = f
	}
	return nil
}
