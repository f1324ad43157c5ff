// Package watch reloads the translation index when translation files
// change on disk.
//
// Events are debounced. A reload runs only when the MD5 fingerprint of at
// least one touched file changed.
package watch

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/minios-linux/i18nlens/discover"
	"github.com/minios-linux/i18nlens/logging"
	"github.com/minios-linux/i18nlens/store"
)

// DefaultDebounce is the quiet period before a burst of events is handled.
const DefaultDebounce = 300 * time.Millisecond

// Reloader rebuilds an index.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Options configures a Watcher.
type Options struct {
	// Fs is used for directory walks and fingerprints (default: OS).
	Fs afero.Fs
	// Root is the project directory watched recursively.
	Root string
	// SkipDirs are directory names never watched (default:
	// discover.DefaultSkipDirs).
	SkipDirs []string
	// Debounce is the quiet period before reloading (default: DefaultDebounce).
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher triggers reloads on translation file changes.
type Watcher struct {
	fs       afero.Fs
	root     string
	skip     map[string]bool
	debounce time.Duration
	reloader Reloader
	log      *log.Logger

	prints  map[string]string
	pending map[string]bool
}

// New returns a Watcher for opts.Root that calls r.Reload.
func New(opts Options, r Reloader) *Watcher {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if len(opts.SkipDirs) == 0 {
		opts.SkipDirs = discover.DefaultSkipDirs
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}
	return &Watcher{
		fs:       opts.Fs,
		root:     filepath.Clean(opts.Root),
		skip:     skip,
		debounce: opts.Debounce,
		reloader: r,
		log:      opts.Logger,
		prints:   make(map[string]string),
		pending:  make(map[string]bool),
	}
}

// Run watches until ctx is cancelled. Reload failures are logged and do
// not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	dirs, err := w.Scan()
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			w.log.Warn("cannot watch directory", "dir", d, "err", err)
		}
	}
	w.log.Info("watching for translation changes", "root", w.root, "dirs", len(dirs))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			relevant := w.Observe(ev.Name)
			if ev.Has(fsnotify.Create) && w.isDir(ev.Name) && w.addTree(fw, ev.Name) {
				relevant = true
			}
			if relevant {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "err", err)

		case <-timer.C:
			if changed := w.Flush(); len(changed) > 0 {
				w.log.Info("translation files changed, reloading", "files", changed)
				if err := w.reloader.Reload(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.log.Error("reload failed", "err", err)
				}
			}
		}
	}
}

// Scan fingerprints every translation file under the root and returns the
// directories to watch.
func (w *Watcher) Scan() ([]string, error) {
	var dirs []string
	err := afero.Walk(w.fs, w.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == w.root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			if p != w.root && w.skip[info.Name()] {
				return filepath.SkipDir
			}
			dirs = append(dirs, p)
			return nil
		}
		if _, ok := store.FormatForPath(p); ok {
			if sum, ok := w.fingerprint(p); ok {
				w.prints[p] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", w.root, err)
	}
	return dirs, nil
}

// Observe records an event for path and reports whether it is relevant.
func (w *Watcher) Observe(path string) bool {
	if _, ok := store.FormatForPath(path); !ok {
		return false
	}
	if w.skipped(path) {
		return false
	}
	w.pending[filepath.Clean(path)] = true
	return true
}

// Flush compares the pending paths with their last fingerprints and returns
// the ones whose content changed, appeared or disappeared.
func (w *Watcher) Flush() []string {
	var changed []string
	for p := range w.pending {
		sum, exists := w.fingerprint(p)
		old, known := w.prints[p]
		switch {
		case exists && (!known || old != sum):
			w.prints[p] = sum
			changed = append(changed, p)
		case !exists && known:
			delete(w.prints, p)
			changed = append(changed, p)
		}
	}
	clear(w.pending)
	sort.Strings(changed)
	return changed
}

func (w *Watcher) fingerprint(path string) (string, bool) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Debug("cannot fingerprint", "path", path, "err", err)
		}
		return "", false
	}
	return Hash(data), true
}

// skipped reports whether path lies below a skipped directory.
func (w *Watcher) skipped(path string) bool {
	rel, err := filepath.Rel(w.root, filepath.Dir(path))
	if err != nil {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	for dir := rel; dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.skip[filepath.Base(dir)] {
			return true
		}
	}
	return false
}

func (w *Watcher) isDir(path string) bool {
	info, err := w.fs.Stat(path)
	return err == nil && info.IsDir()
}

// addTree watches a new directory tree and reports whether it already
// holds translation files.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) bool {
	if w.skip[filepath.Base(dir)] {
		return false
	}
	found := false
	_ = afero.Walk(w.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if p != dir && w.skip[info.Name()] {
				return filepath.SkipDir
			}
			if err := fw.Add(p); err != nil {
				w.log.Warn("cannot watch directory", "dir", p, "err", err)
			}
			return nil
		}
		// Files created together with the directory produce no events of
		// their own.
		if w.Observe(p) {
			found = true
		}
		return nil
	})
	return found
}

// Hash returns the MD5 hex digest of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}
