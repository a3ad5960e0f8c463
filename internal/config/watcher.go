package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Holder publishes the current configuration to concurrent readers.
type Holder struct {
	v atomic.Pointer[Config]
}

// NewHolder returns a Holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.Store(cfg)
	return h
}

// Load returns the current configuration.
func (h *Holder) Load() *Config {
	if h == nil {
		return Default()
	}
	if cfg := h.v.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

// Store replaces the current configuration.
func (h *Holder) Store(cfg *Config) {
	if h == nil || cfg == nil {
		return
	}
	h.v.Store(cfg)
}

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes every valid
// configuration to onChange, with environment overrides applied by the
// caller-supplied lookup. It blocks until ctx is done.
func Watch(ctx context.Context, path string, lookup func(string) (string, bool), onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so atomic renames by editors are observed.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err = watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, errLoad := LoadConfig(abs)
			if errLoad != nil {
				log.Warnf("config reload failed: %v", errLoad)
				continue
			}
			if errEnv := cfg.ApplyEnv(lookup); errEnv != nil {
				log.Warnf("config reload: %v", errEnv)
			}
			if _, errValidate := ValidateConfig(cfg); errValidate != nil {
				log.Warnf("config reload rejected: %v", errValidate)
				continue
			}
			log.Infof("configuration reloaded from %s", abs)
			onChange(cfg)
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watcher error: %v", errWatch)
		}
	}
}
