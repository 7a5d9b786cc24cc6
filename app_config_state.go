package main

import "gamergamma/internal/config"

// getConfigSnapshot returns a copy of the config protected by cfgMu.
// All read access to App.cfg should go through this helper.
func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return config.Clone(a.cfg)
}

// setConfigSnapshot stores a copy of cfg protected by cfgMu.
// All write access to App.cfg should go through this helper.
func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = config.Clone(cfg)
	a.cfgMu.Unlock()
}

// loadConfig resolves the config file, the .env file beside it and the
// GAMERGAMMA_* overrides. Failures are non-fatal: defaults are kept and a
// startup warning is recorded.
func (a *App) loadConfig(documentOverride string) config.Config {
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	for _, message := range config.ConsumeDefaultPathWarnings() {
		a.addStartupWarning(message)
	}

	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
		a.addStartupWarning("Failed to load config file. Running with defaults. Error: " + err.Error())
	}
	if err := config.LoadEnvFile(".env"); err != nil {
		a.addStartupWarning(err.Error())
	}
	if err := config.ApplyEnvOverrides(&cfg); err != nil {
		a.addStartupWarning("Invalid environment override: " + err.Error())
	}
	if documentOverride != "" {
		cfg.DocumentPath = documentOverride
	}
	a.setConfigSnapshot(cfg)
	return cfg
}
