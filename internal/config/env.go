package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "GAMERGAMMA_"

// lookupEnvFn is a test seam.
var lookupEnvFn = os.LookupEnv

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables that are already set win. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Debug("[DEBUG-CONFIG] env file loaded", "path", path)
	return nil
}

// ApplyEnvOverrides copies GAMERGAMMA_* variables over cfg and normalizes
// the result. Unparseable numbers and booleans are logged and ignored.
func ApplyEnvOverrides(cfg *Config) error {
	stringFields := map[string]*string{
		"DOCUMENT":      &cfg.DocumentPath,
		"PROTOCOL_TOOL": &cfg.ProtocolTool,
		"VENDOR_TOOL":   &cfg.VendorTool,
		"CONTROL_ADDR":  &cfg.ControlAddr,
		"HISTORY":       &cfg.HistoryPath,
		"LOG_LEVEL":     &cfg.LogLevel,
	}
	for suffix, field := range stringFields {
		if value, ok := lookupEnvFn(envPrefix + suffix); ok {
			*field = value
		}
	}

	intFields := map[string]*int{
		"VENDOR_SLOTS":         &cfg.VendorSlots,
		"VIBRANCE_DEFAULT_MAX": &cfg.VibranceDefaultMax,
	}
	for suffix, field := range intFields {
		value, ok := lookupEnvFn(envPrefix + suffix)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			slog.Warn("[WARN-CONFIG] ignoring non-integer env override", "name", envPrefix+suffix, "value", value)
			continue
		}
		*field = parsed
	}

	boolFields := map[string]*bool{
		"NOTIFY":         &cfg.Notify,
		"BEEP_ON_APPLY":  &cfg.BeepOnApply,
		"WATCH_DOCUMENT": &cfg.WatchDocument,
	}
	for suffix, field := range boolFields {
		value, ok := lookupEnvFn(envPrefix + suffix)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			slog.Warn("[WARN-CONFIG] ignoring non-boolean env override", "name", envPrefix+suffix, "value", value)
			continue
		}
		*field = parsed
	}

	return applyDefaultsAndValidate(cfg)
}
