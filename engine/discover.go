package engine

import (
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/minios-linux/i18nlens/propfile"
	"github.com/minios-linux/i18nlens/store"
	"github.com/minios-linux/i18nlens/yamlfile"
)

// Discovery strategies.
const (
	StrategyResources = "resources"
	StrategyProject   = "project"
	StrategyBasenames = "basenames"
)

// DefaultDiscoveryOrder puts resource-root files first, then project-wide
// matches, then files named by Spring configuration.
var DefaultDiscoveryOrder = []string{StrategyResources, StrategyProject, StrategyBasenames}

// basenameKey is the Spring property listing message bundle basenames.
const basenameKey = "spring.messages.basename"

var translationExts = []string{".properties", ".yml", ".yaml"}

func validStrategy(s string) bool {
	switch s {
	case StrategyResources, StrategyProject, StrategyBasenames:
		return true
	}
	return false
}

// source is one discovered translation file.
type source struct {
	path   string
	locale string
	format store.Format
}

// discoverFiles runs every strategy concurrently and concatenates their
// results in strategy order. A file found by several strategies keeps its
// first position.
func (e *Engine) discoverFiles(ctx context.Context) []source {
	found := make([][]string, len(e.order))
	_ = parallel(ctx, len(e.order), e.order, func(ctx context.Context, i int, strategy string) error {
		files, err := e.runStrategy(ctx, strategy)
		if err != nil {
			e.log.Warn("discovery failed", "strategy", strategy, "err", err)
			return nil
		}
		found[i] = files
		return nil
	})

	var out []source
	seen := make(map[string]bool)
	for _, files := range found {
		for _, f := range files {
			abs := absPath(f)
			if seen[abs] {
				continue
			}
			seen[abs] = true

			locale, format, ok := LocaleOf(abs)
			if !ok {
				continue
			}
			out = append(out, source{path: abs, locale: locale, format: format})
		}
	}
	return out
}

func (e *Engine) runStrategy(ctx context.Context, strategy string) ([]string, error) {
	switch strategy {
	case StrategyResources:
		return e.walker.Glob(ctx, e.resourcePatterns()...)
	case StrategyProject:
		var patterns []string
		for _, ext := range translationExts {
			patterns = append(patterns, "**/message_*"+ext, "**/messages*"+ext)
		}
		return e.walker.Glob(ctx, patterns...)
	case StrategyBasenames:
		return e.basenameFiles(ctx)
	}
	return nil, nil
}

// resourcePatterns lists the resource-root bundle at the top level first,
// then anywhere below it.
func (e *Engine) resourcePatterns() []string {
	var top, nested []string
	for _, ext := range translationExts {
		top = append(top, e.resourcePath("messages*"+ext))
		nested = append(nested, e.resourcePath("**/messages*"+ext))
	}
	return append(top, nested...)
}

func (e *Engine) resourcePath(p string) string {
	return path.Join(filepath.ToSlash(e.resourceRoot), p)
}

// basenameFiles reads the bundle basenames declared in Spring application
// config files and returns the matching files under the resource root.
func (e *Engine) basenameFiles(ctx context.Context) ([]string, error) {
	var patterns []string
	for _, ext := range translationExts {
		patterns = append(patterns, "**/application*"+ext)
	}
	configs, err := e.walker.Glob(ctx, patterns...)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, cfg := range configs {
		for _, b := range e.declaredBasenames(cfg) {
			if !slices.Contains(names, b) {
				names = append(names, b)
			}
		}
	}

	var files []string
	for _, b := range names {
		var patterns []string
		for _, ext := range translationExts {
			patterns = append(patterns, e.resourcePath(b+ext), e.resourcePath(b+"_*"+ext))
		}
		matches, err := e.walker.Glob(ctx, patterns...)
		if err != nil {
			e.log.Warn("invalid basename", "basename", b, "err", err)
			continue
		}
		want := path.Base(b)
		for _, m := range matches {
			if bundleName(m) == want {
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// declaredBasenames returns the spring.messages.basename entries of one
// config file, with any classpath: prefix removed.
func (e *Engine) declaredBasenames(cfg string) []string {
	data, err := afero.ReadFile(e.fs, cfg)
	if err != nil {
		e.log.Warn("skipping config file", "path", cfg, "err", err)
		return nil
	}

	var raw string
	var ok bool
	switch format, _ := store.FormatForPath(cfg); format {
	case store.FormatFlat:
		f, err := propfile.Parse(data)
		if err != nil {
			e.log.Warn("skipping config file", "path", cfg, "err", err)
			return nil
		}
		raw, ok = f.Get(basenameKey)
	case store.FormatTree:
		t, err := yamlfile.Parse(data)
		if err != nil {
			e.log.Warn("skipping config file", "path", cfg, "err", err)
			return nil
		}
		raw, ok = t.Lookup(basenameKey)
	}
	if !ok {
		return nil
	}

	var out []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		b = strings.TrimPrefix(b, "classpath*:")
		b = strings.TrimPrefix(b, "classpath:")
		b = strings.Trim(b, "/")
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
