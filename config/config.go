// Package config handles surfer-translate.toml configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/wave-translate/builtin"
	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/registry"
	"github.com/wippyai/wave-translate/sandbox"
	"github.com/wippyai/wave-translate/scheduler"
	"github.com/wippyai/wave-translate/script"
	"github.com/wippyai/wave-translate/theme"
)

// FileName is the configuration file looked up in the search paths.
const FileName = "surfer-translate.toml"

// Config is the engine configuration.
type Config struct {
	Theme             map[string]string `toml:"theme"`
	DefaultTranslator string            `toml:"default_translator"`
	SearchPaths       []string          `toml:"search_paths"`
	Sandbox           Sandbox           `toml:"sandbox"`
	Script            Script            `toml:"script"`
	Cache             Cache             `toml:"cache"`
	Workers           int               `toml:"workers"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

// Sandbox configures plugin limits.
type Sandbox struct {
	CallTimeout      Duration `toml:"call_timeout"`
	MemoryLimitPages uint32   `toml:"memory_limit_pages"`
	MaxRestarts      int      `toml:"max_restarts"`
	Instances        int      `toml:"instances"`
}

// Script configures the interpreter.
type Script struct {
	Enabled     *bool    `toml:"enabled"`
	CallTimeout Duration `toml:"call_timeout"`
}

// Cache configures the result cache.
type Cache struct {
	MaxEntriesPerVariable *int `toml:"max_entries_per_variable"`
}

// Duration is a time.Duration written as "2s", "500ms" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// DefaultSearchPaths returns the project-local directory followed by the
// user-global one.
func DefaultSearchPaths() []string {
	paths := []string{".surfer"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "surfer"))
	}
	return paths
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if len(c.SearchPaths) == 0 {
		c.SearchPaths = DefaultSearchPaths()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.DefaultTranslator == "" {
		c.DefaultTranslator = builtin.DefaultTranslator
	}

	sb := sandbox.DefaultConfig()
	if c.Sandbox.CallTimeout <= 0 {
		c.Sandbox.CallTimeout = Duration(sb.CallTimeout)
	}
	if c.Sandbox.MemoryLimitPages == 0 {
		c.Sandbox.MemoryLimitPages = sb.MemoryLimitPages
	}
	if c.Sandbox.MaxRestarts <= 0 {
		c.Sandbox.MaxRestarts = sb.MaxRestarts
	}
	if c.Sandbox.Instances <= 0 {
		c.Sandbox.Instances = sb.Instances
	}

	if c.Script.Enabled == nil {
		enabled := true
		c.Script.Enabled = &enabled
	}
	if c.Script.CallTimeout <= 0 {
		c.Script.CallTimeout = Duration(script.DefaultConfig().CallTimeout)
	}
	if c.Cache.MaxEntriesPerVariable == nil {
		n := 4096
		c.Cache.MaxEntriesPerVariable = &n
	}
}

// Load parses a configuration file and fills unset values with defaults.
// Relative search paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.LoadFailure(path, err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(path).
			Detail("unknown key %q", undecoded[0].String()).
			Build()
	}
	if c.Workers < 0 {
		return nil, errors.InvalidData(errors.PhaseConfig, []string{path, "workers"}, "must not be negative")
	}
	if c.Cache.MaxEntriesPerVariable != nil && *c.Cache.MaxEntriesPerVariable < 0 {
		return nil, errors.InvalidData(errors.PhaseConfig, []string{path, "cache", "max_entries_per_variable"}, "must not be negative")
	}
	if _, err := theme.Default().WithOverrides(c.Theme); err != nil {
		return nil, err
	}

	c.Path = path
	dir := filepath.Dir(path)
	for i, p := range c.SearchPaths {
		if !filepath.IsAbs(p) {
			c.SearchPaths[i] = filepath.Join(dir, p)
		}
	}
	c.applyDefaults()
	return &c, nil
}

// Find loads the first FileName present in the default search paths,
// relative to dir. It returns the defaults when there is none.
func Find(dir string) (*Config, error) {
	for _, p := range DefaultSearchPaths() {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		path := filepath.Join(p, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	c := Default()
	for i, p := range c.SearchPaths {
		if !filepath.IsAbs(p) {
			c.SearchPaths[i] = filepath.Join(dir, p)
		}
	}
	return c, nil
}

// Registry returns the registry settings.
func (c *Config) Registry() registry.Config {
	return registry.Config{
		SearchPaths:       c.SearchPaths,
		DefaultTranslator: c.DefaultTranslator,
		Sandbox: sandbox.Config{
			CallTimeout:      time.Duration(c.Sandbox.CallTimeout),
			MemoryLimitPages: c.Sandbox.MemoryLimitPages,
			MaxRestarts:      c.Sandbox.MaxRestarts,
			Instances:        c.Sandbox.Instances,
		},
		Script:         script.Config{CallTimeout: time.Duration(c.Script.CallTimeout)},
		DisableScripts: c.Script.Enabled != nil && !*c.Script.Enabled,
	}
}

// Scheduler returns the scheduler settings.
func (c *Config) Scheduler() scheduler.Config {
	cfg := scheduler.Config{Workers: c.Workers}
	if c.Cache.MaxEntriesPerVariable != nil {
		cfg.CacheEntries = *c.Cache.MaxEntriesPerVariable
	}
	return cfg
}

// ThemeColors returns the default theme with the configured overrides.
func (c *Config) ThemeColors() (theme.Theme, error) {
	return theme.Default().WithOverrides(c.Theme)
}
