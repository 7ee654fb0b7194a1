package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/mediakeeper/internal/flagx"
)

var flagSpec = flagx.Spec{
	Valued: []string{
		"-d", "-k", "-m", "-o", "-b", "-x", "-g", "-e", "-u", "-p",
		"-r", "-i", "-q", "-z", "-n", "-y", "-a", "-l", "-s", "-t", "-v", "-f",
	},
	Switches: []string{"-w", "-purge", "-j"},
}

// parseFlags overlays cfg with command-line flags.
//
//	-d string    database DSN (file:... for SQLite, postgres://... for Postgres)
//	-k string    catalog kind: fs, s3 or memory
//	-m string    media root for the fs catalog
//	-o duration  catalog scan timeout
//	-b -x -g -e  S3 bucket, key prefix, region and endpoint
//	-u -p        S3 access key and secret
//	-r duration  recycle bin retention window
//	-i duration  periodic sync interval, 0 disables
//	-w           watch the fs catalog for changes
//	-q duration  watch debounce
//	-purge       purge expired items after each periodic sync
//	-z string    timezone for day grouping
//	-n string    consent mode: prompt, auto or deny
//	-y duration  consent prompt timeout
//	-a string    HTTP listen address
//	-l string    gRPC health listen address
//	-s string    token signing key
//	-t duration  token validity
//	-v string    log level
//	-f string    log file
//	-j           JSON logs
//
// Only these flags are considered so other components can share the
// command line.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.CatalogKind, "k", cfg.CatalogKind, "catalog kind (fs, s3, memory)")
	fs.StringVar(&cfg.CatalogRoot, "m", cfg.CatalogRoot, "media root for the fs catalog")
	fs.DurationVar(&cfg.CatalogTimeout, "o", cfg.CatalogTimeout, "catalog scan timeout")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "x", cfg.S3Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")

	fs.DurationVar(&cfg.RetentionWindow, "r", cfg.RetentionWindow, "recycle bin retention")
	fs.DurationVar(&cfg.SyncInterval, "i", cfg.SyncInterval, "periodic sync interval")
	fs.BoolVar(&cfg.WatchCatalog, "w", cfg.WatchCatalog, "watch the catalog for changes")
	fs.DurationVar(&cfg.WatchDebounce, "q", cfg.WatchDebounce, "watch debounce")
	fs.BoolVar(&cfg.AutoPurge, "purge", cfg.AutoPurge, "purge expired items periodically")
	fs.StringVar(&cfg.Timezone, "z", cfg.Timezone, "timezone for day grouping")

	fs.StringVar(&cfg.ConsentMode, "n", cfg.ConsentMode, "consent mode (prompt, auto, deny)")
	fs.DurationVar(&cfg.ConsentTimeout, "y", cfg.ConsentTimeout, "consent prompt timeout")

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCHealthAddr, "l", cfg.GRPCHealthAddr, "gRPC health listen address")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "token signing key")
	fs.DurationVar(&cfg.TokenValidity, "t", cfg.TokenValidity, "token validity")

	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file")
	fs.BoolVar(&cfg.LogJSON, "j", cfg.LogJSON, "JSON logs")

	if err := fs.Parse(flagx.FilterArgs(args, flagSpec)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
