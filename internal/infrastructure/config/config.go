// Package config loads the specsync configuration from .specsync/config.yaml,
// a .env file and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/coverage"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/reconcile"
	"github.com/felixgeelhaar/specsync/pkg/storage"
	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvProjectRoot = "PROJECT_ROOT"
	EnvSpecDir     = "SPEC_DIR"
	EnvStrict      = "SPECSYNC_STRICT"
	EnvThreshold   = "SPECSYNC_THRESHOLD"
	EnvTimeout     = "SPECSYNC_TIMEOUT"
	EnvAudit       = "SPECSYNC_AUDIT"
)

// DefaultTimeout bounds a single operation call.
const DefaultTimeout = 2 * time.Minute

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// ErrInvalidConfig indicates the config file or an override is invalid.
var ErrInvalidConfig = errors.New("invalid configuration")

type Documents struct {
	Requirements string `yaml:"requirements"`
	Design       string `yaml:"design"`
	API          string `yaml:"api"`
	Tasks        string `yaml:"tasks"`
}

// ByKind maps each entity kind to its document name.
func (d Documents) ByKind() reconcile.Documents {
	return reconcile.Documents{
		artifact.KindRequirement:   d.Requirements,
		artifact.KindDesignElement: d.Design,
		artifact.KindAPIContract:   d.API,
		artifact.KindTask:          d.Tasks,
	}
}

type Scan struct {
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	Concurrency int      `yaml:"concurrency"`
}

type Consistency struct {
	Strict bool `yaml:"strict"`
}

type Coverage struct {
	Threshold float64 `yaml:"threshold"`
}

type Audit struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the resolved configuration of one project.
type Config struct {
	// ProjectRoot is the absolute project directory. It is never read from the file.
	ProjectRoot string           `yaml:"-"`
	SpecDir     string           `yaml:"spec_dir"`
	Documents   Documents        `yaml:"documents"`
	Scan        Scan             `yaml:"scan"`
	Drift       drift.Policy     `yaml:"drift"`
	Sync        reconcile.Policy `yaml:"sync"`
	Consistency Consistency      `yaml:"consistency"`
	Coverage    Coverage         `yaml:"coverage"`
	Audit       Audit            `yaml:"audit"`
	Timeout     time.Duration    `yaml:"-"`
	RawTimeout  string           `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default(root string) *Config {
	docs := reconcile.DefaultDocuments()
	return &Config{
		ProjectRoot: root,
		SpecDir:     "specs",
		Documents: Documents{
			Requirements: docs[artifact.KindRequirement],
			Design:       docs[artifact.KindDesignElement],
			API:          docs[artifact.KindAPIContract],
			Tasks:        docs[artifact.KindTask],
		},
		Drift:    drift.DefaultPolicy(),
		Coverage: Coverage{Threshold: coverage.DefaultThreshold},
		Timeout:  DefaultTimeout,
	}
}

// Path returns the config file location under root.
func Path(root string) string {
	return filepath.Join(root, storage.StateDir, storage.ConfigFile)
}

// Load resolves the configuration for root. Values from a .env file in root
// apply only to this call and never reach the process environment; a
// non-empty process variable wins over the file. PROJECT_ROOT replaces root
// when present. A missing config file yields the defaults.
func Load(root string) (*Config, error) {
	env, err := readEnv(root)
	if err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(env.get(EnvProjectRoot)); v != "" {
		root = v
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", root, err)
	}

	cfg := Default(abs)
	data, err := os.ReadFile(Path(abs))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse validates a YAML document against the config schema and decodes it
// over cfg.
func Parse(data []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if doc == nil {
		return nil
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.RawTimeout != "" {
		d, err := time.ParseDuration(cfg.RawTimeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// environ is the .env file of one project root layered under the process
// environment.
type environ map[string]string

func readEnv(root string) (environ, error) {
	values, err := godotenv.Read(filepath.Join(root, ".env"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return environ{}, nil
	case err != nil:
		return nil, fmt.Errorf("%w: .env: %v", ErrInvalidConfig, err)
	}
	return environ(values), nil
}

func (e environ) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e[key]
}

func (c *Config) applyEnv(env environ) error {
	if v := strings.TrimSpace(env.get(EnvSpecDir)); v != "" {
		c.SpecDir = v
	}
	if v := env.get(EnvStrict); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvStrict, err)
		}
		c.Consistency.Strict = b
	}
	if v := env.get(EnvThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			err = coverage.ValidateThreshold(f)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvThreshold, err)
		}
		c.Coverage.Threshold = f
	}
	if v := env.get(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := env.get(EnvAudit); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvAudit, err)
		}
		c.Audit.Enabled = b
	}
	return nil
}

// Save writes cfg to the config file under its project root.
func Save(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Timeout > 0 {
		cfg.RawTimeout = cfg.Timeout.String()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return storage.WriteFileAtomic(Path(cfg.ProjectRoot), data, 0o600)
}
