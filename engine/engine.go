// Package engine resolves translation keys against the translation files
// of a project.
//
// An Engine discovers .properties and YAML files, groups them by the locale
// in their file name, and builds one store per locale. The resulting index
// is an immutable snapshot: Reload builds a fresh one and swaps it in only
// when complete, so queries never see a partial index.
//
// Within a locale, the first file to define a key owns it. Discovery order
// therefore decides which file wins; it is configurable through
// Options.DiscoveryOrder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/i18nlens/discover"
	"github.com/minios-linux/i18nlens/logging"
	"github.com/minios-linux/i18nlens/notify"
	"github.com/minios-linux/i18nlens/store"
	"github.com/minios-linux/i18nlens/writeback"
)

// ErrInvalidKey is returned for keys that are not dot-joined identifiers.
var ErrInvalidKey = errors.New("invalid translation key")

// Options configures an Engine.
type Options struct {
	// Fs is the file system to work on (default: the OS file system).
	Fs afero.Fs
	// Root is the absolute project root.
	Root string
	// ResourceRoot is the project-relative resource directory.
	ResourceRoot string
	// DiscoveryOrder lists strategies by priority (default: resources,
	// project, basenames).
	DiscoveryOrder []string
	// SkipDirs are directory names discovery never enters.
	SkipDirs []string
	// Fallback is the locale chain used by Resolve when none is given.
	Fallback []string
	// Prompter drives interactive file creation; nil disables it.
	Prompter writeback.Prompter
	// Logger receives diagnostics (default: discard).
	Logger *log.Logger
	// Parallelism bounds concurrent file parsing (default: GOMAXPROCS).
	Parallelism int
}

// Index is one immutable snapshot of all locale stores.
type Index struct {
	stores map[string]store.Store
	keys   []string
}

// Store returns the store for locale.
func (ix *Index) Store(locale string) (store.Store, bool) {
	s, ok := ix.stores[locale]
	return s, ok
}

// Locales returns the sorted locales present in the snapshot.
func (ix *Index) Locales() []string {
	out := make([]string, 0, len(ix.stores))
	for l := range ix.stores {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Engine is the translation resolution engine. It is safe for concurrent
// use; concurrent edits to the same file are not coordinated.
type Engine struct {
	fs           afero.Fs
	root         string
	resourceRoot string
	order        []string
	fallback     []string
	parallelism  int
	walker       *discover.Walker
	writer       *writeback.Writer
	log          *log.Logger

	index atomic.Pointer[Index]
	gen   atomic.Uint64

	publishMu sync.Mutex
	published uint64

	changed notify.Signal
}

// New creates an Engine with an empty index. Call Reload to populate it.
func New(opts Options) (*Engine, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("engine: project root is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if len(opts.DiscoveryOrder) == 0 {
		opts.DiscoveryOrder = DefaultDiscoveryOrder
	}
	for _, s := range opts.DiscoveryOrder {
		if !validStrategy(s) {
			return nil, fmt.Errorf("engine: unknown discovery strategy %q (valid: %s, %s, %s)",
				s, StrategyResources, StrategyProject, StrategyBasenames)
		}
	}
	if len(opts.Fallback) == 0 {
		opts.Fallback = []string{DefaultLocale}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	var skip []string
	if len(opts.SkipDirs) > 0 {
		skip = opts.SkipDirs
	}

	e := &Engine{
		fs:           opts.Fs,
		root:         opts.Root,
		resourceRoot: opts.ResourceRoot,
		order:        opts.DiscoveryOrder,
		fallback:     opts.Fallback,
		parallelism:  opts.Parallelism,
		walker:       discover.New(opts.Fs, opts.Root, skip),
		writer:       writeback.New(opts.Fs, opts.Root, opts.ResourceRoot, opts.Prompter, opts.Logger),
		log:          opts.Logger,
	}
	e.index.Store(&Index{stores: map[string]store.Store{}})
	return e, nil
}

// Snapshot returns the current index.
func (e *Engine) Snapshot() *Index {
	return e.index.Load()
}

// Translation returns the value of key in locale.
func (e *Engine) Translation(key, locale string) (string, bool) {
	s, ok := e.Snapshot().stores[locale]
	if !ok {
		return "", false
	}
	return s.Lookup(key)
}

// SourceFile returns the file that owns key in locale.
func (e *Engine) SourceFile(key, locale string) (string, bool) {
	s, ok := e.Snapshot().stores[locale]
	if !ok {
		return "", false
	}
	return s.SourceOf(key)
}

// AllKeys returns every key present in at least one locale, sorted and
// without duplicates.
func (e *Engine) AllKeys() []string {
	return append([]string(nil), e.Snapshot().keys...)
}

// Locales returns the locales of the current index.
func (e *Engine) Locales() []string {
	return e.Snapshot().Locales()
}

// Resolve looks key up along a locale chain and returns the first hit and
// the locale it came from. Without explicit locales the configured fallback
// chain is used.
func (e *Engine) Resolve(key string, locales ...string) (value, locale string, ok bool) {
	if len(locales) == 0 {
		locales = e.fallback
	}
	ix := e.Snapshot()
	for _, l := range locales {
		s, found := ix.stores[l]
		if !found {
			continue
		}
		if v, found := s.Lookup(key); found {
			return v, l, true
		}
	}
	return "", "", false
}

// OnChange subscribes fn to completed reloads.
func (e *Engine) OnChange(fn func()) (cancel func()) {
	return e.changed.Subscribe(fn)
}

// publish swaps in ix unless a newer reload already did.
func (e *Engine) publish(gen uint64, ix *Index) bool {
	e.publishMu.Lock()
	if gen < e.published {
		e.publishMu.Unlock()
		e.log.Debug("discarding stale reload", "generation", gen, "published", e.published)
		return false
	}
	e.published = gen
	e.index.Store(ix)
	e.publishMu.Unlock()

	e.changed.Fire()
	return true
}

// parallel runs fn for every item with bounded concurrency and joins the
// returned errors.
func parallel[T any](ctx context.Context, limit int, items []T, fn func(context.Context, int, T) error) error {
	errs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, it := range items {
		g.Go(func() error {
			errs[i] = fn(gctx, i, it)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
