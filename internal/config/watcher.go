package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HotConfig wraps Config with hot-reload support
type HotConfig struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
	subs []func(old, cur *Config)
}

func NewHotConfig(path string) (*HotConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &HotConfig{cfg: cfg, path: path}, nil
}

func (hc *HotConfig) Get() *Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.cfg
}

// OnReload registers a callback for config changes
func (hc *HotConfig) OnReload(fn func(old, cur *Config)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.subs = append(hc.subs, fn)
}

// Reload re-reads the file. A broken file keeps the previous config.
func (hc *HotConfig) Reload() error {
	cfg, err := Load(hc.path)
	if err != nil {
		slog.Error("config reload failed", "path", hc.path, "err", err)
		return err
	}

	hc.mu.Lock()
	old := hc.cfg
	hc.cfg = cfg
	subs := append([]func(old, cur *Config){}, hc.subs...)
	hc.mu.Unlock()

	slog.Info("🔄 config reloaded", "path", hc.path)
	for _, fn := range subs {
		fn(old, cfg)
	}
	return nil
}

// Watch reloads the config when its file changes, until ctx is cancelled.
// The parent directory is watched so editors that replace the file by
// rename are picked up too.
func (hc *HotConfig) Watch(ctx context.Context) {
	if hc.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("config watcher failed", "err", err)
		return
	}

	target := filepath.Clean(hc.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		slog.Error("watch config file failed", "path", hc.path, "err", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()

		const settle = 200 * time.Millisecond
		timer := time.NewTimer(settle)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					timer.Reset(settle)
				}
			case <-timer.C:
				hc.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher error", "err", err)
			}
		}
	}()
}
