package config

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Store holds the current settings and tells watchers when the config file
// changes. It is safe for concurrent use.
type Store struct {
	v   *viper.Viper
	env Env

	mu       sync.RWMutex
	current  Settings
	watchers []func(Settings)
	watching bool
}

// NewStore loads settings from v. An API key missing from v is taken from
// env.
func NewStore(v *viper.Viper, env Env) (*Store, error) {
	s := &Store{v: v, env: env}
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

func (s *Store) load() (Settings, error) {
	cfg, err := Load(s.v)
	if err != nil {
		return cfg, err
	}
	if cfg.AuthKey == "" {
		cfg.AuthKey = s.env.Key()
	}
	return cfg, nil
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads settings from viper. Invalid settings are rejected and the
// current ones kept; otherwise every watcher is called with the new value.
func (s *Store) Reload() error {
	cfg, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	watchers := slices.Clone(s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(cfg)
	}
	return nil
}

// Watch registers fn to be called after the settings change. The first call
// starts watching the config file viper loaded, if any.
func (s *Store) Watch(fn func(Settings)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	start := !s.watching && s.v.ConfigFileUsed() != ""
	s.watching = s.watching || start
	s.mu.Unlock()

	if !start {
		return
	}

	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Debug("Configuration changed", "path", e.Name)
		if err := s.Reload(); err != nil {
			log.Warn("Ignoring configuration change", "error", err)
		}
	})
	s.v.WatchConfig()
}
