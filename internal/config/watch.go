package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the configuration like Load and then keeps watching the config
// file. onChange receives every successfully re-validated configuration;
// invalid edits are logged and ignored so a typo never takes the service down.
// Without a config file there is nothing to watch and onChange is never called.
func Watch(configPath string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Warn("ignoring invalid configuration change", "file", e.Name, "error", err)
			return
		}
		slog.Info("configuration reloaded", "file", e.Name)
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}
