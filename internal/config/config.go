// Package config assembles runtime settings for the mediakeeper binaries
// from defaults, an optional JSON file and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
)

const (
	CatalogFS     = "fs"
	CatalogS3     = "s3"
	CatalogMemory = "memory"

	ConsentPrompt = "prompt"
	ConsentAuto   = "auto"
	ConsentDeny   = "deny"
)

// Config holds runtime settings shared by the server and the CLI.
//
// DatabaseDSN selects the store: a postgres:// DSN uses pgx, anything else
// is opened with the embedded SQLite driver. CatalogKind picks the catalog
// backend; CatalogRoot is only used by fs and the S3 fields only by s3.
type Config struct {
	DatabaseDSN string

	CatalogKind    string
	CatalogRoot    string
	CatalogTimeout time.Duration
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	RetentionWindow time.Duration
	SyncInterval    time.Duration
	AutoPurge       bool
	WatchCatalog    bool
	WatchDebounce   time.Duration
	// Timezone names the calendar used for day grouping; empty means local.
	Timezone string

	ConsentMode    string
	ConsentTimeout time.Duration

	HTTPAddr       string
	GRPCHealthAddr string
	SecretKey      string
	TokenValidity  time.Duration

	LogLevel string
	LogFile  string
	LogJSON  bool
}

// LoadDefaults populates c with development defaults.
// NOTE: SecretKey must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "file:mediakeeper.db"
	c.CatalogKind = CatalogFS
	c.CatalogRoot = "./media"
	c.CatalogTimeout = 30 * time.Second
	c.S3Region = "us-east-1"
	c.RetentionWindow = 720 * time.Hour
	c.SyncInterval = 15 * time.Minute
	c.AutoPurge = false
	c.WatchCatalog = true
	c.WatchDebounce = 2 * time.Second
	c.ConsentMode = ConsentPrompt
	c.ConsentTimeout = 60 * time.Second
	c.HTTPAddr = ":8080"
	c.GRPCHealthAddr = ":50051"
	c.SecretKey = "secretKey"
	c.TokenValidity = 24 * time.Hour
	c.LogLevel = "info"
	c.LogJSON = true
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", common.ErrInvalidArgument, c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects settings no component could run with.
func (c *Config) Validate() error {
	switch c.CatalogKind {
	case CatalogFS, CatalogMemory:
	case CatalogS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3 catalog requires a bucket", common.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown catalog kind %q", common.ErrInvalidArgument, c.CatalogKind)
	}

	switch c.ConsentMode {
	case ConsentPrompt, ConsentAuto, ConsentDeny:
	default:
		return fmt.Errorf("%w: unknown consent mode %q", common.ErrInvalidArgument, c.ConsentMode)
	}

	if c.RetentionWindow <= 0 {
		return fmt.Errorf("%w: retention window must be positive", common.ErrInvalidArgument)
	}
	for name, d := range map[string]time.Duration{
		"catalog timeout": c.CatalogTimeout,
		"sync interval":   c.SyncInterval,
		"watch debounce":  c.WatchDebounce,
		"consent timeout": c.ConsentTimeout,
		"token validity":  c.TokenValidity,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", common.ErrInvalidArgument, name)
		}
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("%w: database DSN is empty", common.ErrInvalidArgument)
	}
	_, err := c.Location()
	return err
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
