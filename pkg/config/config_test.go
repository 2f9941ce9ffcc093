package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/wintree/pkg/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Viewport.BufferSize != 10 {
		t.Errorf("expected buffer size 10, got %d", cfg.Viewport.BufferSize)
	}
	if cfg.Loading.TriggerFraction != 0.85 {
		t.Errorf("expected trigger fraction 0.85, got %f", cfg.Loading.TriggerFraction)
	}
	if cfg.Loading.Cooldown != 500*time.Millisecond {
		t.Errorf("expected cooldown 500ms, got %v", cfg.Loading.Cooldown)
	}
	if cfg.Scroll.MaxExtraBuffer != 8 || cfg.Scroll.VelocityDivisor != 1.5 {
		t.Errorf("unexpected scroll defaults: %+v", cfg.Scroll)
	}
	if cfg.Sort.Criteria != "priority:desc,updated:desc" {
		t.Errorf("expected default sort spec, got %q", cfg.Sort.Criteria)
	}
	if fixed := cfg.Validate(); len(fixed) != 0 {
		t.Errorf("expected defaults to validate cleanly, got %v", fixed)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Loading.BatchSize != 200 {
		t.Errorf("expected default config, got batch size %d", cfg.Loading.BatchSize)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
source: ~/data/items.jsonl
viewport:
  buffer_size: 4
loading:
  batch_size: 50
  cooldown: 1s
scroll:
  frame_interval: 8ms
sort:
  criteria: title,priority:asc
ui:
  show_status: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "data/items.jsonl"); cfg.Source != want {
		t.Errorf("expected expanded source %q, got %q", want, cfg.Source)
	}
	if cfg.Viewport.BufferSize != 4 {
		t.Errorf("expected buffer size 4, got %d", cfg.Viewport.BufferSize)
	}
	if cfg.Viewport.RowHeight != 1 {
		t.Errorf("expected unset row height to keep default, got %v", cfg.Viewport.RowHeight)
	}
	if cfg.Loading.BatchSize != 50 || cfg.Loading.Cooldown != time.Second {
		t.Errorf("unexpected loading section: %+v", cfg.Loading)
	}
	if cfg.Scroll.FrameInterval != 8*time.Millisecond {
		t.Errorf("expected 8ms frame interval, got %v", cfg.Scroll.FrameInterval)
	}
	if cfg.UI.ShowStatus {
		t.Error("expected show_status false")
	}

	criteria, err := cfg.SortCriteria()
	if err != nil {
		t.Fatalf("SortCriteria failed: %v", err)
	}
	if len(criteria) != 2 || criteria[0].Field != model.FieldTitle || criteria[1].Direction != model.Ascending {
		t.Errorf("unexpected criteria %v", criteria)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Loading.Cooldown = 750 * time.Millisecond
	cfg.Sort.Criteria = "attr:rank:asc"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load after save failed: %v", err)
	}
	if loaded.Loading.Cooldown != 750*time.Millisecond {
		t.Errorf("expected cooldown 750ms, got %v", loaded.Loading.Cooldown)
	}
	if loaded.Sort.Criteria != "attr:rank:asc" {
		t.Errorf("expected criteria preserved, got %q", loaded.Sort.Criteria)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Viewport.RowHeight = 0
	cfg.Viewport.BufferSize = -3
	cfg.Loading.TriggerFraction = 1.5
	cfg.Loading.BatchSize = 0
	cfg.Scroll.VelocityDivisor = -1
	cfg.Sort.Criteria = "priority:sideways"

	fixed := cfg.Validate()
	if len(fixed) != 6 {
		t.Errorf("expected 6 corrections, got %d: %v", len(fixed), fixed)
	}
	def := DefaultConfig()
	if cfg.Viewport.RowHeight != def.Viewport.RowHeight || cfg.Viewport.BufferSize != def.Viewport.BufferSize {
		t.Errorf("expected viewport defaults restored, got %+v", cfg.Viewport)
	}
	if cfg.Loading.TriggerFraction != def.Loading.TriggerFraction || cfg.Loading.BatchSize != def.Loading.BatchSize {
		t.Errorf("expected loading defaults restored, got %+v", cfg.Loading)
	}
	if cfg.Sort.Criteria != def.Sort.Criteria {
		t.Errorf("expected default criteria, got %q", cfg.Sort.Criteria)
	}
}

func TestOptionsConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loading.TriggerFraction = 0.5
	cfg.Scroll.MaxExtraBuffer = 3

	if got := cfg.LoaderOptions().TriggerFraction; got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := cfg.ScrollOptions().MaxExtraBuffer; got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"/absolute", "/absolute"},
		{"relative", "relative"},
		{"", ""},
	}

	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.expected {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestConfigDir_XDGOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got, expected := ConfigDir(), filepath.Join(dir, "wt"); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
	if got, expected := ConfigPath(), filepath.Join(dir, "wt", "config.yaml"); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}
