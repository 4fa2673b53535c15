package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix        = "APP_"
	defaultConfigDir = "configs"
)

// profilePattern keeps profile names usable as file names under the config
// directory.
var profilePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	configDir string
	overrides map[string]any
}

// WithConfigDir reads the YAML files from dir instead of ./configs.
func WithConfigDir(dir string) Option {
	return func(o *loadOptions) {
		o.configDir = dir
	}
}

// WithOverrides applies values by dotted key (e.g. "store.backend") after
// every other layer, so command-line flags win over files and environment.
// The merged result is validated as a whole.
func WithOverrides(values map[string]any) Option {
	return func(o *loadOptions) {
		o.overrides = values
	}
}

// Load builds the Config for profile from these layers, later ones winning:
//
//  1. compiled defaults
//  2. {configDir}/base.yaml
//  3. {configDir}/{profile}.yaml
//  4. APP_-prefixed environment variables
//  5. WithOverrides values
//
// An environment variable maps onto the longest known key it spells, so
// underscores inside a key survive:
//
//	APP_STORE_DSN                 -> store.dsn
//	APP_STORE_FEED_BUFFER         -> store.feed_buffer
//	APP_TRACKER_MAX_CONCURRENCY   -> tracker.max_concurrency
//	APP_CLIENT_RETRY_MAX_ATTEMPTS -> client.retry.max_attempts
//
// app.env defaults to the profile name.
func Load(profile string, opts ...Option) (*Config, error) {
	if !profilePattern.MatchString(profile) {
		return nil, fmt.Errorf("invalid profile %q: want lower-case letters, digits, '-' or '_'", profile)
	}

	o := &loadOptions{configDir: defaultConfigDir}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")
	layers := []struct {
		name string
		load func() error
	}{
		{"defaults", func() error { return setAll(k, defaults()) }},
		{"base config", loadYAML(k, filepath.Join(o.configDir, "base.yaml"))},
		{"profile config", loadYAML(k, filepath.Join(o.configDir, profile+".yaml"))},
		{"environment", func() error { return loadEnv(k) }},
		{"overrides", func() error { return setAll(k, o.overrides) }},
	}
	for _, l := range layers {
		if err := l.load(); err != nil {
			return nil, fmt.Errorf("loading %s: %w", l.name, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = profile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile, err)
	}
	return &cfg, nil
}

func setAll(k *koanf.Koanf, values map[string]any) error {
	for key, val := range values {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}

func loadYAML(k *koanf.Koanf, path string) func() error {
	return func() error {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}
}

// loadEnv resolves APP_ variables against the keys loaded so far. A
// variable that matches no known key falls back to replacing every
// underscore with a dot.
func loadEnv(k *koanf.Koanf) error {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(name, value string) (string, any) {
			name = strings.ToLower(strings.TrimPrefix(name, envPrefix))
			if key, ok := known[name]; ok {
				return key, value
			}
			return strings.ReplaceAll(name, "_", "."), value
		},
	}), nil)
}
