package configs

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ReloadFunc receives every successfully parsed version of the watched file.
type ReloadFunc func(cfg *GuardConfig) error

// Watcher polls a config file's mtime and hands re-validated configs to onReload.
// An invalid file is logged and skipped; the previous config stays in force.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc
	log      logrus.FieldLogger
	lastMod  time.Time
}

func NewWatcher(path string, interval time.Duration, onReload ReloadFunc, log logrus.FieldLogger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	w := &Watcher{
		path:     path,
		interval: interval,
		onReload: onReload,
		log:      log.WithField("config_path", path),
	}
	// 启动时已加载过的版本不再重复推送
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

// Watch blocks until ctx is done.
func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll checks the file once and reports whether a new config was applied.
func (w *Watcher) Poll() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.WithError(err).Warn("config stat failed")
		return false
	}
	if !info.ModTime().After(w.lastMod) {
		return false
	}
	w.lastMod = info.ModTime()

	cfg, err := ReadGuardConfig(w.path)
	if err != nil {
		w.log.WithError(err).Error("config reload failed")
		return false
	}
	if err := w.onReload(cfg); err != nil {
		w.log.WithError(err).Error("config reload rejected")
		return false
	}
	w.log.WithField("environment", cfg.Environment).Info("config reloaded")
	return true
}
