package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/chipp-ai/dispatch-sub015/internal/logging"
)

// Watch reloads the config file on change and invokes onReload with the new
// config. It returns a stop function. A missing or unwatchable file disables
// watching without error; runtime-tunable settings (buffer capacities, log
// level) pick up the new values, everything else applies to new sessions only.
func Watch(path string, onReload func(*Config)) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	log := logging.Get(logging.CategoryConfig)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		log.Warnw("config watch disabled", "dir", dir, "error", err)
		return func() {}, nil
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					log.Warnw("config reload failed", "path", path, "error", err)
					continue
				}
				log.Infow("config reloaded", "path", path)
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("config watcher error", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
