// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package config loads the server configuration.
//
// Configuration comes from a single file named by:
//   - the TARMOUNT_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There is no automatic discovery. Files ending in .json or .jsonc are read
// as JSON with comments and trailing commas; anything else is YAML.
// Unknown fields are an error in both.
//
// The file may contain environment-specific sections (development, staging,
// production) that override base values when the environment matches.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/elliotnunn/tarmount/internal/etag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable consulted by Load.
const EnvVar = "TARMOUNT_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the whole server configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment" json:"environment"`

	// Listen is the TCP address to serve on.
	// Default: :8080
	Listen string `yaml:"listen" json:"listen"`

	// RelativeTo is the directory against which relative archive paths
	// are resolved. Default: the working directory.
	RelativeTo string `yaml:"relative_to" json:"relative_to"`

	Log       LogConfig   `yaml:"log" json:"log"`
	ETagCache CacheConfig `yaml:"etag_cache" json:"etag_cache"`

	// Routes mount archives under URL prefixes.
	Routes []Route `yaml:"routes" json:"routes"`

	Development *Overrides `yaml:"development,omitempty" json:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty" json:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
// Routes, when present, replace the base routes entirely.
type Overrides struct {
	Listen     string       `yaml:"listen,omitempty" json:"listen,omitempty"`
	RelativeTo string       `yaml:"relative_to,omitempty" json:"relative_to,omitempty"`
	Log        *LogConfig   `yaml:"log,omitempty" json:"log,omitempty"`
	ETagCache  *CacheConfig `yaml:"etag_cache,omitempty" json:"etag_cache,omitempty"`
	Routes     []Route      `yaml:"routes,omitempty" json:"routes,omitempty"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level" json:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format" json:"format"`
}

// CacheConfig sizes the digest cache used by the hash ETag method.
type CacheConfig struct {
	// Entries is how many digests to hold in memory. Default: 4096
	Entries int `yaml:"entries" json:"entries"`

	// Dir, if set, holds a database of digests that survives restarts.
	Dir string `yaml:"dir" json:"dir"`
}

// Route serves members of a list of archives under one URL prefix.
type Route struct {
	// Prefix is the URL path under which members appear, such as /docs/.
	Prefix string `yaml:"prefix" json:"prefix"`

	// Archives are tried in order. Each may be a doublestar pattern,
	// whose matches are tried in lexical order.
	Archives []string `yaml:"archives" json:"archives"`

	// ShowHidden serves members with a path segment starting with a dot.
	ShowHidden bool `yaml:"show_hidden" json:"show_hidden"`

	// Hide lists extra doublestar patterns of member paths never to serve.
	Hide []string `yaml:"hide" json:"hide"`

	// ETag is hash, simple or none. Default: hash
	ETag string `yaml:"etag" json:"etag"`

	// Compress enables gzip responses for clients that accept them.
	Compress bool `yaml:"compress" json:"compress"`

	// CompressMinSize is the smallest response worth compressing, in bytes.
	// Zero means the compressor's own default.
	CompressMinSize int `yaml:"compress_min_size" json:"compress_min_size"`
}

// ETagMethod returns the parsed ETag method. Validate has already
// rejected unknown names.
// MountPattern is the subtree the route serves, such as /docs/
// for either /docs or /docs/.
func (r *Route) MountPattern() string {
	return strings.TrimSuffix(r.Prefix, "/") + "/"
}

func (r *Route) ETagMethod() etag.Method {
	m, _ := etag.ParseMethod(r.ETag)
	return m
}

// Default returns the configuration that a file is merged over.
func Default() *Config {
	return &Config{
		Environment: Development,
		Listen:      ":8080",
		Log:         LogConfig{Level: "info", Format: "text"},
		ETagCache:   CacheConfig{Entries: 4096},
	}
}

// Load loads configuration from the file named by TARMOUNT_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path,
// applies the environment overrides and expands ${VAR} references in paths.
// It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		return dec.Decode(c)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Listen != "" {
		c.Listen = overrides.Listen
	}
	if overrides.RelativeTo != "" {
		c.RelativeTo = overrides.RelativeTo
	}
	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
	if overrides.ETagCache != nil {
		if overrides.ETagCache.Entries != 0 {
			c.ETagCache.Entries = overrides.ETagCache.Entries
		}
		if overrides.ETagCache.Dir != "" {
			c.ETagCache.Dir = overrides.ETagCache.Dir
		}
	}
	if overrides.Routes != nil {
		c.Routes = overrides.Routes
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.RelativeTo = expandVars(c.RelativeTo, vars)
	c.ETagCache.Dir = expandVars(c.ETagCache.Dir, vars)
	for i := range c.Routes {
		for j, a := range c.Routes[i].Archives {
			c.Routes[i].Archives[j] = expandVars(a, vars)
		}
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.ETagCache.Entries < 0 {
		errs = append(errs, errors.New("etag_cache.entries must not be negative"))
	}
	if len(c.Routes) == 0 {
		errs = append(errs, errors.New("at least one route is required"))
	}

	prefixes := make(map[string]string)
	for i, r := range c.Routes {
		where := fmt.Sprintf("routes[%d]", i)
		if !strings.HasPrefix(r.Prefix, "/") {
			errs = append(errs, fmt.Errorf("%s.prefix must start with /, got %q", where, r.Prefix))
		}
		if other, ok := prefixes[r.MountPattern()]; ok {
			errs = append(errs, fmt.Errorf("%s.prefix %q mounts at the same path as %q", where, r.Prefix, other))
		} else {
			prefixes[r.MountPattern()] = r.Prefix
		}

		if len(r.Archives) == 0 {
			errs = append(errs, fmt.Errorf("%s.archives is required", where))
		}
		for _, a := range r.Archives {
			if !doublestar.ValidatePattern(filepath.ToSlash(a)) {
				errs = append(errs, fmt.Errorf("%s.archives: bad pattern %q", where, a))
			}
		}
		for _, h := range r.Hide {
			if !doublestar.ValidatePattern(h) {
				errs = append(errs, fmt.Errorf("%s.hide: bad pattern %q", where, h))
			}
		}
		if _, err := etag.ParseMethod(r.ETag); err != nil {
			errs = append(errs, fmt.Errorf("%s.etag: %w", where, err))
		}
		if r.CompressMinSize < 0 {
			errs = append(errs, fmt.Errorf("%s.compress_min_size must not be negative", where))
		}
	}

	return errors.Join(errs...)
}
