package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gamergamma/internal/testutil"
)

func isolateConfigDirs(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv("LOCALAPPDATA", "")
	t.Setenv("APPDATA", "")
	return base
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultPathPrefersXDGConfigHome(t *testing.T) {
	base := isolateConfigDirs(t)
	want := filepath.Join(base, "gamergamma", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDefaultPathFallsBackToLocalAppData(t *testing.T) {
	local := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("LOCALAPPDATA", local)
	t.Setenv("APPDATA", "")
	want := filepath.Join(local, "gamergamma", "config.yaml")
	if got := DefaultPath(); got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDefaultPathRecordsWarningOnTempDirFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("LOCALAPPDATA", "")
	t.Setenv("APPDATA", "")
	orig := userHomeDirFn
	t.Cleanup(func() { userHomeDirFn = orig })
	userHomeDirFn = func() (string, error) { return "", errors.New("no home") }
	ConsumeDefaultPathWarnings()

	buf := testutil.CaptureLogBuffer(t, slog.LevelWarn)
	got := DefaultPath()
	if !strings.HasPrefix(got, os.TempDir()) {
		t.Fatalf("DefaultPath() = %q, want temp dir prefix", got)
	}
	if !strings.Contains(buf.String(), "[WARN-CONFIG]") {
		t.Fatalf("missing warning log: %q", buf.String())
	}
	warnings := ConsumeDefaultPathWarnings()
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one", warnings)
	}
	if again := ConsumeDefaultPathWarnings(); again != nil {
		t.Fatalf("second consume = %v, want nil", again)
	}
}

func TestLoad(t *testing.T) {
	isolateConfigDirs(t)
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "empty file yields defaults",
			content: "",
			check: func(t *testing.T, cfg Config) {
				if cfg != DefaultConfig() {
					t.Fatalf("cfg = %+v, want defaults", cfg)
				}
			},
		},
		{
			name:    "explicit values kept",
			content: "document_path: /tmp/presets.json\nvendor_slots: 13\nnotify: false\nlog_level: DEBUG\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.DocumentPath != "/tmp/presets.json" || cfg.VendorSlots != 13 || cfg.Notify || cfg.LogLevel != "debug" {
					t.Fatalf("cfg = %+v", cfg)
				}
				if !cfg.WatchDocument {
					t.Fatal("missing watch_document should keep default true")
				}
			},
		},
		{
			name:    "out of range slots fall back",
			content: "vendor_slots: -2\nvibrance_default_max: 0\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.VendorSlots != 7 || cfg.VibranceDefaultMax != 100 {
					t.Fatalf("cfg = %+v", cfg)
				}
			},
		},
		{
			name:    "non-loopback control addr reset",
			content: "control_addr: 0.0.0.0:7411\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.ControlAddr != DefaultControlAddr {
					t.Fatalf("ControlAddr = %q", cfg.ControlAddr)
				}
			},
		},
		{
			name:    "empty control addr disables api",
			content: "control_addr: \"\"\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.ControlAddr != "" {
					t.Fatalf("ControlAddr = %q, want empty", cfg.ControlAddr)
				}
			},
		},
		{
			name:    "ipv6 loopback accepted",
			content: "control_addr: \"[::1]:9000\"\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.ControlAddr != "[::1]:9000" {
					t.Fatalf("ControlAddr = %q", cfg.ControlAddr)
				}
			},
		},
		{
			name:    "unknown log level",
			content: "log_level: chatty\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.LogLevel != "info" || cfg.SlogLevel() != slog.LevelInfo {
					t.Fatalf("LogLevel = %q", cfg.LogLevel)
				}
			},
		},
		{
			name:    "unknown fields ignored",
			content: "shell: pwsh.exe\nprotocol_tool: /opt/ddcutil\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.ProtocolTool != "/opt/ddcutil" {
					t.Fatalf("ProtocolTool = %q", cfg.ProtocolTool)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	isolateConfigDirs(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadReturnsDefaultsOnParseError(t *testing.T) {
	isolateConfigDirs(t)
	cfg, err := Load(writeConfig(t, "vendor_slots: [unterminated\n"))
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadRejectsNullByteTool(t *testing.T) {
	isolateConfigDirs(t)
	cfg, err := Load(writeConfig(t, "vendor_tool: \"nvib\\0rant\"\n"))
	if err == nil {
		t.Fatal("Load() error = nil, want null byte error")
	}
	if cfg.VendorTool != "nvibrant" {
		t.Fatalf("VendorTool = %q, want default", cfg.VendorTool)
	}
}

func TestReadLimitedFileRejectsTooLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	if err := os.WriteFile(path, make([]byte, 11), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readLimitedFile(path, 10); err == nil {
		t.Fatal("readLimitedFile() error = nil, want size error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	base := isolateConfigDirs(t)
	path := filepath.Join(base, "gamergamma", "config.yaml")

	in := DefaultConfig()
	in.VendorSlots = 9
	in.BeepOnApply = true
	in.LogLevel = " WARN "
	saved, err := Save(path, in)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.LogLevel != "warn" {
		t.Fatalf("saved LogLevel = %q, want normalized warn", saved.LogLevel)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != saved {
		t.Fatalf("loaded = %+v, want %+v", loaded, saved)
	}
}

func TestSaveZeroConfigWritesDefaults(t *testing.T) {
	isolateConfigDirs(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	saved, err := Save(path, Config{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != DefaultConfig() {
		t.Fatalf("saved = %+v, want defaults", saved)
	}
}

func TestSaveRequiresPath(t *testing.T) {
	if _, err := Save("  ", DefaultConfig()); err == nil {
		t.Fatal("Save() error = nil, want path error")
	}
}

func TestEnsureFileCreatesConfigFile(t *testing.T) {
	isolateConfigDirs(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if _, err := EnsureFile(path); err != nil {
		t.Fatalf("EnsureFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	orig := userHomeDirFn
	t.Cleanup(func() { userHomeDirFn = orig })
	userHomeDirFn = func() (string, error) { return "/home/gg", nil }

	if got := expandHome("~/presets.json"); got != filepath.Join("/home/gg", "presets.json") {
		t.Fatalf("expandHome() = %q", got)
	}
	if got := expandHome("relative.json"); got != "relative.json" {
		t.Fatalf("expandHome() = %q", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "warn", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
