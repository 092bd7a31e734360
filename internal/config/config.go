// Package config resolves runtime settings from built-in defaults, an optional
// YAML file, ECOD_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Log     Log     `yaml:"log"`
	Tracing Tracing `yaml:"tracing"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// PublicURL is the externally reachable base URL, used to build report links.
	PublicURL string `yaml:"public_url"`
}

// Storage selects the cluster source.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// FixturePath seeds the memory driver (and an empty sqlite database) from a JSON snapshot.
	FixturePath string `yaml:"fixture_path"`
}

// Blob selects the report store.
type Blob struct {
	Driver    string `yaml:"driver"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Log configures the zap logger.
type Log struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// Tracing selects the span exporter: none, json (JSON lines) or stdout (OpenTelemetry).
type Tracing struct {
	Exporter string `yaml:"exporter"`
	Path     string `yaml:"path"`
}

// Storage and blob driver names.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"

	TraceNone   = "none"
	TraceJSON   = "json"
	TraceStdout = "stdout"
)

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Storage: Storage{Driver: StorageSQLite, SQLitePath: "ecod-clusters.db"},
		Blob:    Blob{Driver: BlobFilesystem, Root: "./reports", Region: "us-east-1"},
		Log:     Log{Mode: "development", Level: "info"},
		Tracing: Tracing{Exporter: TraceNone},
	}
}

// Load resolves defaults, then the YAML file at path (skipped when empty),
// then environment variables read through getenv (os.Getenv when nil).
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(&c.Server.Addr, "ECOD_ADDR")
	str(&c.Server.PublicURL, "ECOD_PUBLIC_URL")
	str(&c.Storage.Driver, "ECOD_STORAGE_DRIVER")
	str(&c.Storage.SQLitePath, "ECOD_SQLITE_PATH")
	str(&c.Storage.PostgresDSN, "ECOD_POSTGRES_DSN")
	str(&c.Storage.FixturePath, "ECOD_FIXTURE_PATH")
	str(&c.Blob.Driver, "ECOD_BLOB_DRIVER")
	str(&c.Blob.Root, "ECOD_BLOB_FS_ROOT")
	str(&c.Blob.Bucket, "ECOD_BLOB_S3_BUCKET")
	str(&c.Blob.Region, "ECOD_BLOB_S3_REGION")
	str(&c.Blob.Endpoint, "ECOD_BLOB_S3_ENDPOINT")
	str(&c.Blob.AccessKey, "ECOD_BLOB_S3_ACCESS_KEY")
	str(&c.Blob.SecretKey, "ECOD_BLOB_S3_SECRET_KEY")
	str(&c.Log.Mode, "ECOD_LOG_MODE")
	str(&c.Log.Level, "ECOD_LOG_LEVEL")
	str(&c.Tracing.Exporter, "ECOD_TRACE_EXPORTER")
	str(&c.Tracing.Path, "ECOD_TRACE_PATH")

	if v := strings.TrimSpace(getenv("ECOD_SHUTDOWN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ECOD_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.Server.ShutdownTimeout = d
	}
	if v := strings.TrimSpace(getenv("ECOD_BLOB_S3_PATH_STYLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ECOD_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.PathStyle = b
	}
	return nil
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob: s3 driver requires bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob: unknown driver %q", c.Blob.Driver))
	}
	switch c.Tracing.Exporter {
	case "", TraceNone, TraceJSON, TraceStdout:
	default:
		errs = append(errs, fmt.Errorf("tracing: unknown exporter %q", c.Tracing.Exporter))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server: shutdown_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

// Flags holds command-line overrides. Empty values leave the resolved
// configuration untouched.
type Flags struct {
	ConfigPath  string
	Addr        string
	Storage     string
	SQLitePath  string
	PostgresDSN string
	FixturePath string
	BlobDriver  string
	BlobRoot    string
	LogMode     string
	LogLevel    string
	Trace       string
}

// RegisterFlags declares the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file (env ECOD_CONFIG)")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address")
	fs.StringVar(&f.Storage, "storage", "", "cluster source driver: memory|sqlite|postgres")
	fs.StringVar(&f.SQLitePath, "sqlite", "", "sqlite database path")
	fs.StringVar(&f.PostgresDSN, "dsn", "", "postgres DSN")
	fs.StringVar(&f.FixturePath, "fixture", "", "JSON fixture snapshot to seed the source")
	fs.StringVar(&f.BlobDriver, "blob", "", "report store driver: fs|s3|memory")
	fs.StringVar(&f.BlobRoot, "blob-root", "", "report directory for the fs driver")
	fs.StringVar(&f.LogMode, "log-mode", "", "log mode: development|production")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	fs.StringVar(&f.Trace, "trace", "", "trace exporter: none|json|stdout")
	return f
}

// Resolve loads the configuration named by the flags (or ECOD_CONFIG) and
// applies the flag overrides on top.
func (f *Flags) Resolve(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	path := f.ConfigPath
	if path == "" {
		path = getenv("ECOD_CONFIG")
	}
	cfg, err := Load(path, getenv)
	if err != nil {
		return Config{}, err
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Addr, f.Addr)
	set(&cfg.Storage.Driver, f.Storage)
	set(&cfg.Storage.SQLitePath, f.SQLitePath)
	set(&cfg.Storage.PostgresDSN, f.PostgresDSN)
	set(&cfg.Storage.FixturePath, f.FixturePath)
	set(&cfg.Blob.Driver, f.BlobDriver)
	set(&cfg.Blob.Root, f.BlobRoot)
	set(&cfg.Log.Mode, f.LogMode)
	set(&cfg.Log.Level, f.LogLevel)
	set(&cfg.Tracing.Exporter, f.Trace)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
