// Package config loads metastore server configuration from TOML files
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nainya/metastore/pkg/metadata"
)

// Duration is a time.Duration that decodes from TOML strings such as "5s"
type Duration time.Duration

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete server configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Log      LogConfig      `toml:"log"`
	Metadata MetadataConfig `toml:"metadata"`
}

// ServerConfig controls the gRPC and observability listeners
type ServerConfig struct {
	Port            int      `toml:"port"`
	MetricsPort     int      `toml:"metrics-port"`
	MaxMessageBytes int      `toml:"max-message-bytes"`
	ShutdownTimeout Duration `toml:"shutdown-timeout"`
}

// StorageConfig controls the bbolt data file
type StorageConfig struct {
	Path        string   `toml:"path"`
	Bucket      string   `toml:"bucket"`
	LockTimeout Duration `toml:"lock-timeout"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// MetadataConfig controls row key layout
type MetadataConfig struct {
	VersionedEntities []string `toml:"versioned-entities"`
	DefaultVersion    string   `toml:"default-version"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	ks := metadata.DefaultKeySchemeConfig()
	return &Config{
		Server: ServerConfig{
			Port:            50051,
			MetricsPort:     9090,
			MaxMessageBytes: 16 * 1024 * 1024,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Path:        "metastore.db",
			Bucket:      "metadata",
			LockTimeout: Duration(time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
		Metadata: MetadataConfig{
			VersionedEntities: ks.VersionedTypes,
			DefaultVersion:    ks.DefaultVersion,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("server.metrics-port %d out of range", c.Server.MetricsPort))
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		errs = append(errs, errors.New("server.metrics-port must differ from server.port"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.Metadata.DefaultVersion == "" {
		errs = append(errs, errors.New("metadata.default-version is required"))
	}
	for _, t := range c.Metadata.VersionedEntities {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, errors.New("metadata.versioned-entities contains an empty type"))
			break
		}
	}
	return errors.Join(errs...)
}

// KeyScheme returns the row key configuration
func (c *Config) KeyScheme() metadata.KeySchemeConfig {
	return metadata.KeySchemeConfig{
		VersionedTypes: append([]string(nil), c.Metadata.VersionedEntities...),
		DefaultVersion: c.Metadata.DefaultVersion,
	}
}
