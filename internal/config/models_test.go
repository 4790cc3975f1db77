package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.FPS != 60 {
		t.Errorf("FPS = %d, want 60", cfg.FPS)
	}
	if cfg.Output.DeviceNumber != AutoDevice {
		t.Errorf("DeviceNumber = %d, want auto", cfg.Output.DeviceNumber)
	}
	if !cfg.Convert.Enabled {
		t.Error("conversion should be enabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"negative fps", func(c *Config) { c.FPS = -1 }, "fps"},
		{"zero fps allowed", func(c *Config) { c.FPS = 0 }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "TRACE" }, "log level"},
		{"lowercase log level", func(c *Config) { c.LogLevel = "debug" }, ""},
		{"bad pixel format", func(c *Config) { c.Convert.PixelFormat = "nv12" }, "pixel format"},
		{"replay without path", func(c *Config) { c.Camera.Backend = BackendReplay }, "replay_path"},
		{"unknown backend", func(c *Config) { c.Camera.Backend = "ptp" }, "backend"},
		{"file sink without path", func(c *Config) { c.Output.Sink = SinkFile }, "file_path"},
		{"file sink stdout", func(c *Config) { c.Output.Sink = SinkFile; c.Output.FilePath = StdoutPath }, ""},
		{"unknown sink", func(c *Config) { c.Output.Sink = "http" }, "sink"},
		{"bad device number", func(c *Config) { c.Output.DeviceNumber = -2 }, "device number"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.errSub == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errSub) {
				t.Fatalf("err = %v, want mention of %q", err, tc.errSub)
			}
		})
	}
}

func TestNewManager_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if m.GetConfigPath() != path {
		t.Errorf("GetConfigPath() = %q", m.GetConfigPath())
	}
	if m.Get().FPS != 60 {
		t.Errorf("FPS = %d", m.Get().FPS)
	}
}

func TestNewManager_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "fps: 24\nlog_level: debug\ncamera:\n  name: Nikon DSC D750\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.FPS != 24 || cfg.Camera.Name != "Nikon DSC D750" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
	if cfg.Camera.Backend != BackendGphoto2 || cfg.Output.ModprobePath != "modprobe" {
		t.Errorf("defaults lost for absent keys: %+v", cfg)
	}
}

func TestManager_UpdateRejectsInvalid(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	cfg.FPS = -5
	if err := m.Update(cfg); err == nil {
		t.Fatal("expected validation error")
	}
	if m.Get().FPS != 60 {
		t.Error("invalid update was stored")
	}

	cfg.FPS = 15
	if err := m.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, err := NewManager(m.GetConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Get().FPS != 15 {
		t.Errorf("saved FPS = %d, want 15", reloaded.Get().FPS)
	}
}

func TestNewManager_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("fps: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path); err == nil {
		t.Fatal("expected parse error")
	}
}
