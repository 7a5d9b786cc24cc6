package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"gamergamma/internal/atomicfile"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	// maxValidPort is the highest TCP port number (2^16 - 1).
	maxValidPort = 65535
	// maxVendorSlots bounds the positional argument list handed to the
	// vendor tool. nvibrant reports at most a few dozen connectors.
	maxVendorSlots = 64

	DefaultDocumentPath = "gg_presets.json"
	DefaultControlAddr  = "127.0.0.1:7411"
	appDirName          = "gamergamma"
)

var userHomeDirFn = os.UserHomeDir

var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Config is gamergamma runtime configuration. The preset document itself
// lives in DocumentPath and is owned by the preset package.
type Config struct {
	DocumentPath string `yaml:"document_path" json:"document_path"`
	ProtocolTool string `yaml:"protocol_tool" json:"protocol_tool"`
	VendorTool   string `yaml:"vendor_tool" json:"vendor_tool"`
	// VendorSlots is the number of positional arguments the vendor tool
	// expects after its name. Display d writes slot 2*d.
	VendorSlots int `yaml:"vendor_slots" json:"vendor_slots"`
	// VibranceDefaultMax bounds monitor-protocol vibrance when no baseline
	// recorded the monitor's own maximum.
	VibranceDefaultMax int `yaml:"vibrance_default_max" json:"vibrance_default_max"`
	// ControlAddr is the loopback listen address of the control API.
	// Empty disables the API.
	ControlAddr string `yaml:"control_addr" json:"control_addr"`
	// HistoryPath is the SQLite apply journal. Empty disables the journal.
	HistoryPath   string `yaml:"history_path" json:"history_path"`
	Notify        bool   `yaml:"notify" json:"notify"`
	BeepOnApply   bool   `yaml:"beep_on_apply" json:"beep_on_apply"`
	WatchDocument bool   `yaml:"watch_document" json:"watch_document"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns default values.
func DefaultConfig() Config {
	return Config{
		DocumentPath:       DefaultDocumentPath,
		ProtocolTool:       "ddcutil",
		VendorTool:         "nvibrant",
		VendorSlots:        7,
		VibranceDefaultMax: 100,
		ControlAddr:        DefaultControlAddr,
		HistoryPath:        filepath.Join(filepath.Dir(DefaultPath()), "history.db"),
		Notify:             true,
		BeepOnApply:        false,
		WatchDocument:      true,
		LogLevel:           "info",
	}
}

// DefaultPath resolves the config file path. XDG_CONFIG_HOME wins, then
// LOCALAPPDATA and APPDATA, then ~/.config, and finally os.TempDir() if the
// home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	}
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve the home directory. Using temp directory; settings persistence may be limited.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, "config.yaml")
}

// Load reads the config file. A missing or empty file yields defaults.
// Parse errors return defaults together with the error; the caller decides
// whether to continue.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Clone returns a copy of cfg. Config holds only value fields today; Clone
// keeps callers independent of that.
func Clone(src Config) Config {
	return src
}

// Save validates cfg, fills defaults, and atomically writes to path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return cfg, errors.New("config path required")
	}
	if err := applyDefaultsAndValidate(&cfg); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicfile.Write(trimmedPath, raw, 0o600); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", trimmedPath)
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// applyDefaultsAndValidate fills missing defaults and validates cfg in-place.
// MUTATES: cfg is directly modified.
// Used by Load, Save and ApplyEnvOverrides to keep normalization consistent.
func applyDefaultsAndValidate(cfg *Config) error {
	defaults := DefaultConfig()
	if isZeroConfig(*cfg) {
		*cfg = defaults
		return nil
	}

	cfg.DocumentPath = strings.TrimSpace(cfg.DocumentPath)
	if cfg.DocumentPath == "" {
		cfg.DocumentPath = defaults.DocumentPath
	}
	cfg.DocumentPath = expandHome(cfg.DocumentPath)

	var errs []error
	for _, tool := range []struct {
		field string
		value *string
		def   string
	}{
		{field: "protocol_tool", value: &cfg.ProtocolTool, def: defaults.ProtocolTool},
		{field: "vendor_tool", value: &cfg.VendorTool, def: defaults.VendorTool},
	} {
		*tool.value = strings.TrimSpace(*tool.value)
		if *tool.value == "" {
			*tool.value = tool.def
		}
		if strings.ContainsRune(*tool.value, 0) {
			errs = append(errs, fmt.Errorf("%s contains null byte", tool.field))
			*tool.value = tool.def
		}
	}

	if cfg.VendorSlots <= 0 || cfg.VendorSlots > maxVendorSlots {
		slog.Warn("[WARN-CONFIG] vendor_slots out of range, using default",
			"configured", cfg.VendorSlots, "max", maxVendorSlots, "default", defaults.VendorSlots)
		cfg.VendorSlots = defaults.VendorSlots
	}
	if cfg.VibranceDefaultMax <= 0 {
		slog.Warn("[WARN-CONFIG] vibrance_default_max must be positive, using default",
			"configured", cfg.VibranceDefaultMax, "default", defaults.VibranceDefaultMax)
		cfg.VibranceDefaultMax = defaults.VibranceDefaultMax
	}

	validateControlAddr(cfg)

	cfg.HistoryPath = expandHome(strings.TrimSpace(cfg.HistoryPath))

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("[WARN-CONFIG] unknown log_level, using default", "configured", cfg.LogLevel, "default", defaults.LogLevel)
		cfg.LogLevel = defaults.LogLevel
	}

	return errors.Join(errs...)
}

// validateControlAddr keeps the control API on loopback. A non-loopback or
// malformed address is reset to the default instead of failing startup.
func validateControlAddr(cfg *Config) {
	addr := strings.TrimSpace(cfg.ControlAddr)
	cfg.ControlAddr = addr
	if addr == "" {
		return
	}
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		slog.Warn("[WARN-CONFIG] control_addr malformed, using default", "configured", addr, "error", err)
		cfg.ControlAddr = DefaultControlAddr
		return
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > maxValidPort {
		slog.Warn("[WARN-CONFIG] control_addr port out of valid range (0-65535), using default", "configured", addr)
		cfg.ControlAddr = DefaultControlAddr
		return
	}
	if !isLoopbackHost(host) {
		slog.Warn("[WARN-CONFIG] control_addr must be loopback, using default", "configured", addr)
		cfg.ControlAddr = DefaultControlAddr
	}
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := userHomeDirFn()
	if err != nil {
		slog.Warn("[WARN-CONFIG] failed to expand ~, keeping path as-is", "path", path, "error", err)
		return path
	}
	return filepath.Join(home, path[1:])
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	// reflect.DeepEqual guards against field-addition drift that manual checks miss.
	return reflect.DeepEqual(cfg, Config{})
}
