package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".hmfcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := validateSite(cf.Defaults); err != nil {
		return nil, fmt.Errorf("%s: defaults: %w", path, err)
	}
	for host, sc := range cf.Sites {
		if err := validateSite(sc); err != nil {
			return nil, fmt.Errorf("%s: site %s: %w", path, host, err)
		}
	}

	return &cf, nil
}

// validateSite checks the values a site entry overrides. An unset maxPages
// is 0 and keeps the global value.
func validateSite(sc SiteConfig) error {
	if sc.Depth != nil && *sc.Depth < 0 {
		return fmt.Errorf("%w: depth %d", ErrInvalidMaxDepth, *sc.Depth)
	}
	if sc.MaxPages < 0 {
		return fmt.Errorf("%w: maxPages %d", ErrInvalidMaxPages, sc.MaxPages)
	}
	for _, sel := range []string{sc.HeaderSelector, sc.FooterSelector} {
		if err := validateSelector(sel); err != nil {
			return err
		}
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, if specified
//  2. .hmfcrawl in the current directory
//  3. .hmfcrawl in the user's home directory
//  4. config.yaml in the XDG config directory (~/.config/hmfcrawl)
//
// It returns an empty string if no file is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
