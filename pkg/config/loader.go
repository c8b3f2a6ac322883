package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CrawlerYAMLConfig represents the complete crawler.yaml file structure.
type CrawlerYAMLConfig struct {
	LogLevel string          `yaml:"log_level"`
	Fetch    *FetchConfig    `yaml:"fetch"`
	Site     *SiteConfig     `yaml:"site"`
	Planning *PlanningConfig `yaml:"planning"`
	Session  *SessionConfig  `yaml:"session"`
	Retry    *RetryConfig    `yaml:"retry"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load crawler.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults with user-defined overrides
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"log_level", cfg.LogLevel,
		"batch_size", cfg.Planning.BatchSize,
		"max_concurrent_sessions", cfg.Session.MaxConcurrentSessions)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	user, err := loader.loadCrawlerYAML()
	if err != nil {
		return nil, NewLoadError("crawler.yaml", err)
	}

	fetch := DefaultFetchConfig()
	if user.Fetch != nil {
		if err := mergo.Merge(fetch, user.Fetch, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge fetch config: %w", err)
		}
	}

	site := DefaultSiteConfig()
	if user.Site != nil {
		if err := mergo.Merge(site, user.Site, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge site config: %w", err)
		}
	}

	planning := DefaultPlanningConfig()
	if user.Planning != nil {
		if err := mergo.Merge(planning, user.Planning, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge planning config: %w", err)
		}
	}

	session := DefaultSessionConfig()
	if user.Session != nil {
		if err := mergo.Merge(session, user.Session, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge session config: %w", err)
		}
	}

	retry := DefaultRetryConfig()
	if user.Retry != nil {
		if err := mergo.Merge(retry, user.Retry, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retry config: %w", err)
		}
	}

	logLevel := user.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		configDir: configDir,
		LogLevel:  logLevel,
		Fetch:     fetch,
		Site:      site,
		Planning:  planning,
		Session:   session,
		Retry:     retry,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through the original bytes unchanged on parse or
	// execution errors, letting the YAML parser report against the
	// literal content instead.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCrawlerYAML() (*CrawlerYAMLConfig, error) {
	var cfg CrawlerYAMLConfig
	if err := l.loadYAML("crawler.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
