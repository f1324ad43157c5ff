// Package config loads i18nlens settings.
//
// Settings come, in increasing priority, from built-in defaults, an
// optional .i18nlens.yaml in the project root, I18NLENS_* environment
// variables, and command-line flags bound through BindFlags.
//
// Example .i18nlens.yaml:
//
//	locales: [ko, en]
//	view_locale: en
//	key_regex: 'getMessage\("([^"]+)"\)'
//	resource_root: src/main/resources
//	discovery_order: [resources, project, basenames]
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/minios-linux/i18nlens/engine"
	"github.com/minios-linux/i18nlens/keymatch"
)

// FileName is the project config file name.
const FileName = ".i18nlens.yaml"

// EnvPrefix prefixes environment overrides, e.g. I18NLENS_VIEW_LOCALE.
const EnvPrefix = "I18NLENS"

// DefaultLocale is the bucket for translation files without a locale suffix.
const DefaultLocale = engine.DefaultLocale

// Config holds the resolved settings.
type Config struct {
	// Locales is the ordered list of locales to display and fall back through.
	Locales []string `mapstructure:"locales"`
	// ViewLocale overrides the first entry of Locales for display.
	ViewLocale string `mapstructure:"view_locale"`
	// KeyRegex finds keys in source text.
	KeyRegex string `mapstructure:"key_regex"`
	// ResourceRoot is where translation files live, relative to the project.
	ResourceRoot string `mapstructure:"resource_root"`
	// DiscoveryOrder lists discovery strategies by priority.
	DiscoveryOrder []string `mapstructure:"discovery_order"`
	// SkipDirs are directory names never scanned.
	SkipDirs []string `mapstructure:"skip_dirs"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Locales:        []string{"ko", "en"},
		KeyRegex:       keymatch.DefaultPattern,
		ResourceRoot:   "src/main/resources",
		DiscoveryOrder: slices.Clone(engine.DefaultDiscoveryOrder),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"locale":        "view_locale",
	"key-regex":     "key_regex",
	"resource-root": "resource_root",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-file":      "log.file",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("locales", d.Locales)
	v.SetDefault("view_locale", d.ViewLocale)
	v.SetDefault("key_regex", d.KeyRegex)
	v.SetDefault("resource_root", d.ResourceRoot)
	v.SetDefault("discovery_order", d.DiscoveryOrder)
	v.SetDefault("skip_dirs", d.SkipDirs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	return v
}

// Load reads settings for the project at rootDir. cfgFile, when non-empty,
// replaces <rootDir>/.i18nlens.yaml and must exist. flags may be nil.
func Load(rootDir, cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	path := cfgFile
	if path == "" {
		path = filepath.Join(rootDir, FileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := BindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return &cfg, nil
}

// BindFlags binds the known flags present in flags to their config keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the settings for obvious mistakes.
func (c *Config) Validate() error {
	if len(c.Locales) == 0 {
		return fmt.Errorf("locales must not be empty")
	}
	for _, l := range c.Locales {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("locales contains an empty entry")
		}
	}
	if filepath.IsAbs(c.ResourceRoot) || strings.HasPrefix(filepath.Clean(c.ResourceRoot), "..") {
		return fmt.Errorf("resource_root %q must be relative to the project", c.ResourceRoot)
	}
	return nil
}

// DisplayLocale returns the locale translations are shown in.
func (c *Config) DisplayLocale() string {
	if c.ViewLocale != "" {
		return c.ViewLocale
	}
	return c.Locales[0]
}

// FallbackChain returns the display locale, then the remaining configured
// locales, then DefaultLocale, without duplicates.
func (c *Config) FallbackChain() []string {
	seen := make(map[string]bool)
	var chain []string
	for _, l := range append(append([]string{c.DisplayLocale()}, c.Locales...), DefaultLocale) {
		if !seen[l] {
			seen[l] = true
			chain = append(chain, l)
		}
	}
	return chain
}
