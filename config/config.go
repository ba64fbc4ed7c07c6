// Package config holds the settings for the extraction tools. Defaults can
// be overridden by a YAML file and then by flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/miku/dblpkit"
	"github.com/miku/dblpkit/schema/dblp"
	"gopkg.in/yaml.v3"
)

// ProfileConfig declares an additional entity profile in the config file.
type ProfileConfig struct {
	Name     string   `yaml:"name"`
	Types    []string `yaml:"types"`
	Features []string `yaml:"features"`
	Authors  bool     `yaml:"authors"`
}

// Profile converts the declaration.
func (pc ProfileConfig) Profile() (dblp.Profile, error) {
	p := dblp.Profile{Name: pc.Name, Authors: pc.Authors}
	for _, t := range pc.Types {
		p.Types = append(p.Types, dblp.RecordType(t))
	}
	for _, f := range pc.Features {
		p.Features = append(p.Features, dblp.Feature(f))
	}
	return p, p.Validate()
}

// Config for dblp-extract.
type Config struct {
	// DataDir holds downloads, defaults to the user data directory.
	DataDir string `yaml:"data_dir"`
	// DatasetDir receives one output file per entity.
	DatasetDir string `yaml:"dataset_dir"`
	// Input is the dump to process, defaults to the downloaded dump.
	Input string `yaml:"input"`
	// Format is one of csv, json, xlsx or sqlite.
	Format string `yaml:"format"`
	// Compression is empty, gz or zst.
	Compression string `yaml:"compression"`
	Workers     int    `yaml:"workers"`
	IncludeKey  bool   `yaml:"include_key"`
	UUID        bool   `yaml:"uuid"`
	// Since is a date or a relative offset like 30d.
	Since     string `yaml:"since"`
	Limit     int    `yaml:"limit"`
	Normalize bool   `yaml:"normalize"`
	Strict    bool   `yaml:"strict"`
	// MaxRetries and Timeout apply to downloads.
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
	BaseURL    string        `yaml:"base_url"`
	// Profiles are added to the built-in profiles; a profile with the name
	// of a built-in one replaces it.
	Profiles []ProfileConfig `yaml:"profiles"`
}

// Default returns the default configuration.
func Default() Config {
	dataDir := filepath.Join(xdg.DataHome, dblpkit.AppName)
	return Config{
		DataDir:    dataDir,
		DatasetDir: filepath.Join(dataDir, "dataset"),
		Format:     "csv",
		Workers:    1,
		MaxRetries: 5,
		Timeout:    30 * time.Minute,
		BaseURL:    "https://dblp.org/xml/",
	}
}

// LoadFile overlays the settings of a YAML file. Keys missing from the
// file keep their current value.
func (c *Config) LoadFile(filename string) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Workers > 4*runtime.NumCPU() {
		return fmt.Errorf("too many workers: %d", c.Workers)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if c.DatasetDir == "" {
		return fmt.Errorf("dataset dir required")
	}
	_, err := c.EntityProfiles()
	return err
}

// EntityProfiles returns the built-in profiles merged with the profiles
// from the config file.
func (c Config) EntityProfiles() ([]dblp.Profile, error) {
	profiles := make([]dblp.Profile, len(dblp.Profiles))
	copy(profiles, dblp.Profiles)
	for _, pc := range c.Profiles {
		p, err := pc.Profile()
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range profiles {
			if profiles[i].Name == p.Name {
				profiles[i] = p
				replaced = true
			}
		}
		if !replaced {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// InputPath returns the configured input or the default dump location.
func (c Config) InputPath(dumpName string) string {
	if c.Input != "" {
		return c.Input
	}
	return filepath.Join(c.DataDir, dumpName)
}
