// Package config loads application configuration from environment variables and
// the optional team file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration loaded from environment variables.
// Command-line flags override the fields after Load.
type Config struct {
	GitHubToken  string
	Org          string
	LookbackDays int
	CacheDir     string
	CacheMaxAge  time.Duration
	DBPath       string
	TeamsFile    string
}

// Load reads configuration from environment variables.
// Variables and defaults: GITHUB_TOKEN, GITHUB_ORG, METRICS_LOOKBACK_DAYS (90),
// METRICS_CACHE_DIR (tmp/cache), METRICS_CACHE_MAX_AGE (24h), METRICS_DB_PATH and
// METRICS_TEAMS_FILE (both unset by default).
func Load() (*Config, error) {
	lookback := 90
	if v, ok := os.LookupEnv("METRICS_LOOKBACK_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("METRICS_LOOKBACK_DAYS has invalid value %q: %w", v, err)
		}
		lookback = parsed
	}

	maxAge := 24 * time.Hour
	if v, ok := os.LookupEnv("METRICS_CACHE_MAX_AGE"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("METRICS_CACHE_MAX_AGE has invalid duration %q: %w", v, err)
		}
		maxAge = parsed
	}

	cacheDir := "tmp/cache"
	if v, ok := os.LookupEnv("METRICS_CACHE_DIR"); ok && v != "" {
		cacheDir = v
	}

	return &Config{
		GitHubToken:  os.Getenv("GITHUB_TOKEN"),
		Org:          os.Getenv("GITHUB_ORG"),
		LookbackDays: lookback,
		CacheDir:     cacheDir,
		CacheMaxAge:  maxAge,
		DBPath:       os.Getenv("METRICS_DB_PATH"),
		TeamsFile:    os.Getenv("METRICS_TEAMS_FILE"),
	}, nil
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN environment variable is not set")
	}
	if c.Org == "" {
		return errors.New("organization is not set (use --org or GITHUB_ORG)")
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("lookback must be at least 1 day, got %d", c.LookbackDays)
	}
	if c.CacheMaxAge <= 0 {
		return fmt.Errorf("cache max age must be positive, got %s", c.CacheMaxAge)
	}
	return nil
}

// teamFile is the on-disk layout of the team file.
type teamFile struct {
	Teams map[string][]string `yaml:"teams"`
}

// LoadTeams reads a YAML team file mapping team names to member logins:
//
//	teams:
//	  core: [alice, bob]
//
// An empty path yields no teams.
func LoadTeams(path string) (map[string][]string, error) {
	if path == "" {
		return map[string][]string{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file %s: %w", path, err)
	}

	var f teamFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse team file %s: %w", path, err)
	}

	teams := make(map[string][]string, len(f.Teams))
	for name, members := range f.Teams {
		if name == "" {
			return nil, fmt.Errorf("team file %s has a team without a name", path)
		}
		if members == nil {
			members = []string{}
		}
		teams[name] = members
	}
	return teams, nil
}
