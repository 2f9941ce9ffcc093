// Package config handles loading and saving wt configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/wt/config.yaml
//
// Every tunable has a default; a missing file yields DefaultConfig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/wintree/pkg/loader"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/order"
	"github.com/vanderheijden86/wintree/pkg/scroll"
	"github.com/vanderheijden86/wintree/pkg/viewport"
)

const appName = "wt"

// ViewportConfig holds window geometry tunables.
type ViewportConfig struct {
	RowHeight         float64       `yaml:"row_height,omitempty"`          // Pixels (or terminal lines) per row
	BufferSize        int           `yaml:"buffer_size,omitempty"`         // Rows rendered beyond each edge
	ChangeThreshold   int           `yaml:"change_threshold,omitempty"`    // Minimum index movement reported
	HeightResyncDelta float64       `yaml:"height_resync_delta,omitempty"` // Growth applied without lag
	HeightMaxLag      time.Duration `yaml:"height_max_lag,omitempty"`      // Longest the height may trail
}

// LoadingConfig holds incremental loading tunables.
type LoadingConfig struct {
	BatchSize       int           `yaml:"batch_size,omitempty"`
	TriggerFraction float64       `yaml:"trigger_fraction,omitempty"` // 0-1, share of loaded rows
	Cooldown        time.Duration `yaml:"cooldown,omitempty"`
}

// ScrollConfig holds frame coalescing tunables.
type ScrollConfig struct {
	FrameInterval   time.Duration `yaml:"frame_interval,omitempty"`
	VelocityFloor   float64       `yaml:"velocity_floor,omitempty"`
	VelocityDivisor float64       `yaml:"velocity_divisor,omitempty"`
	MaxExtraBuffer  int           `yaml:"max_extra_buffer,omitempty"`
}

// SortConfig holds the initial sort, e.g. "priority:desc,updated:desc".
type SortConfig struct {
	Criteria string `yaml:"criteria,omitempty"`
}

// WatchConfig controls reloading when the source file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// UIConfig holds terminal renderer preferences.
type UIConfig struct {
	ExpandLevel int  `yaml:"expand_level,omitempty"` // Levels expanded on first load
	ShowStatus  bool `yaml:"show_status"`            // Footer with load state
}

// Config is the top-level configuration for wt.
type Config struct {
	Source   string         `yaml:"source,omitempty"` // Default items file
	Viewport ViewportConfig `yaml:"viewport,omitempty"`
	Loading  LoadingConfig  `yaml:"loading,omitempty"`
	Scroll   ScrollConfig   `yaml:"scroll,omitempty"`
	Sort     SortConfig     `yaml:"sort,omitempty"`
	Watch    WatchConfig    `yaml:"watch,omitempty"`
	UI       UIConfig       `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Viewport: ViewportConfig{
			RowHeight:         1,
			BufferSize:        10,
			ChangeThreshold:   viewport.DefaultChangeThreshold,
			HeightResyncDelta: viewport.DefaultResyncDelta,
			HeightMaxLag:      viewport.DefaultMaxLag,
		},
		Loading: LoadingConfig{
			BatchSize:       200,
			TriggerFraction: loader.DefaultTriggerFraction,
			Cooldown:        loader.DefaultCooldown,
		},
		Scroll: ScrollConfig{
			FrameInterval:   scroll.DefaultFrameInterval,
			VelocityFloor:   scroll.DefaultVelocityFloor,
			VelocityDivisor: scroll.DefaultVelocityDivisor,
			MaxExtraBuffer:  scroll.DefaultMaxExtraBuffer,
		},
		Sort: SortConfig{
			Criteria: order.FormatCriteria(order.DefaultCriteria),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		UI: UIConfig{
			ExpandLevel: 1,
			ShowStatus:  true,
		},
	}
}

// Validate resets out-of-range tunables to their defaults and returns one
// message per corrected field.
func (c *Config) Validate() []string {
	def := DefaultConfig()
	var fixed []string
	fix := func(name string, bad bool, reset func()) {
		if bad {
			reset()
			fixed = append(fixed, name+" out of range, using default")
		}
	}

	fix("viewport.row_height", !(c.Viewport.RowHeight > 0), func() { c.Viewport.RowHeight = def.Viewport.RowHeight })
	fix("viewport.buffer_size", c.Viewport.BufferSize < 0, func() { c.Viewport.BufferSize = def.Viewport.BufferSize })
	fix("viewport.change_threshold", c.Viewport.ChangeThreshold < 1, func() { c.Viewport.ChangeThreshold = def.Viewport.ChangeThreshold })
	fix("viewport.height_resync_delta", !(c.Viewport.HeightResyncDelta > 0), func() { c.Viewport.HeightResyncDelta = def.Viewport.HeightResyncDelta })
	fix("viewport.height_max_lag", c.Viewport.HeightMaxLag <= 0, func() { c.Viewport.HeightMaxLag = def.Viewport.HeightMaxLag })

	fix("loading.batch_size", c.Loading.BatchSize < 1, func() { c.Loading.BatchSize = def.Loading.BatchSize })
	fix("loading.trigger_fraction", !(c.Loading.TriggerFraction > 0 && c.Loading.TriggerFraction <= 1), func() { c.Loading.TriggerFraction = def.Loading.TriggerFraction })
	fix("loading.cooldown", c.Loading.Cooldown <= 0, func() { c.Loading.Cooldown = def.Loading.Cooldown })

	fix("scroll.frame_interval", c.Scroll.FrameInterval <= 0, func() { c.Scroll.FrameInterval = def.Scroll.FrameInterval })
	fix("scroll.velocity_floor", !(c.Scroll.VelocityFloor > 0), func() { c.Scroll.VelocityFloor = def.Scroll.VelocityFloor })
	fix("scroll.velocity_divisor", !(c.Scroll.VelocityDivisor > 0), func() { c.Scroll.VelocityDivisor = def.Scroll.VelocityDivisor })
	fix("scroll.max_extra_buffer", c.Scroll.MaxExtraBuffer < 1, func() { c.Scroll.MaxExtraBuffer = def.Scroll.MaxExtraBuffer })

	if _, err := order.ParseCriteria(c.Sort.Criteria); err != nil {
		c.Sort.Criteria = def.Sort.Criteria
		fixed = append(fixed, fmt.Sprintf("sort.criteria: %v, using default", err))
	}
	fix("watch.debounce", c.Watch.Debounce <= 0, func() { c.Watch.Debounce = def.Watch.Debounce })
	fix("ui.expand_level", c.UI.ExpandLevel < 0, func() { c.UI.ExpandLevel = def.UI.ExpandLevel })

	return fixed
}

// SortCriteria parses Sort.Criteria. An empty string yields nil, which
// selects the default ordering.
func (c Config) SortCriteria() ([]model.SortCriterion, error) {
	return order.ParseCriteria(c.Sort.Criteria)
}

// LoaderOptions converts the loading section.
func (c Config) LoaderOptions() loader.Options {
	return loader.Options{
		TriggerFraction: c.Loading.TriggerFraction,
		Cooldown:        c.Loading.Cooldown,
	}
}

// ScrollOptions converts the scroll section.
func (c Config) ScrollOptions() scroll.Options {
	return scroll.Options{
		VelocityFloor:   c.Scroll.VelocityFloor,
		VelocityDivisor: c.Scroll.VelocityDivisor,
		MaxExtraBuffer:  c.Scroll.MaxExtraBuffer,
	}
}

// ConfigDir returns the XDG config directory for wt.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Keys absent from the file
// keep their defaults. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Source = expandHome(cfg.Source)
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
