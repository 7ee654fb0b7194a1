package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/flagx"
	"github.com/dmitrijs2005/mediakeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "30s" or
// integer nanoseconds. Pointer fields distinguish "absent" from a zero
// value so a file only overrides what it names.
type JsonConfig struct {
	DatabaseDSN string `json:"database_dsn"`

	CatalogKind    string          `json:"catalog_kind"`
	CatalogRoot    string          `json:"catalog_root"`
	CatalogTimeout *timex.Duration `json:"catalog_timeout"`
	S3Bucket       string          `json:"s3_bucket"`
	S3Prefix       string          `json:"s3_prefix"`
	S3Region       string          `json:"s3_region"`
	S3BaseEndpoint string          `json:"s3_base_endpoint"`
	S3AccessKey    string          `json:"s3_access_key"`
	S3SecretKey    string          `json:"s3_secret_key"`

	RetentionWindow *timex.Duration `json:"retention_window"`
	SyncInterval    *timex.Duration `json:"sync_interval"`
	AutoPurge       *bool           `json:"auto_purge"`
	WatchCatalog    *bool           `json:"watch_catalog"`
	WatchDebounce   *timex.Duration `json:"watch_debounce"`
	Timezone        string          `json:"timezone"`

	ConsentMode    string          `json:"consent_mode"`
	ConsentTimeout *timex.Duration `json:"consent_timeout"`

	HTTPAddr       string          `json:"http_addr"`
	GRPCHealthAddr string          `json:"grpc_health_addr"`
	SecretKey      string          `json:"secret_key"`
	TokenValidity  *timex.Duration `json:"token_validity"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
	LogJSON  *bool  `json:"log_json"`
}

// parseJson overlays cfg with the file named by -c or -config. Without
// either flag it does nothing.
func parseJson(cfg *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.CatalogKind, jc.CatalogKind)
	setString(&cfg.CatalogRoot, jc.CatalogRoot)
	setDuration(&cfg.CatalogTimeout, jc.CatalogTimeout)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Prefix, jc.S3Prefix)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)

	setDuration(&cfg.RetentionWindow, jc.RetentionWindow)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	setBool(&cfg.AutoPurge, jc.AutoPurge)
	setBool(&cfg.WatchCatalog, jc.WatchCatalog)
	setDuration(&cfg.WatchDebounce, jc.WatchDebounce)
	setString(&cfg.Timezone, jc.Timezone)

	setString(&cfg.ConsentMode, jc.ConsentMode)
	setDuration(&cfg.ConsentTimeout, jc.ConsentTimeout)

	setString(&cfg.HTTPAddr, jc.HTTPAddr)
	setString(&cfg.GRPCHealthAddr, jc.GRPCHealthAddr)
	setString(&cfg.SecretKey, jc.SecretKey)
	setDuration(&cfg.TokenValidity, jc.TokenValidity)

	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)
	setBool(&cfg.LogJSON, jc.LogJSON)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
