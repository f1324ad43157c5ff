package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/minios-linux/i18nlens/propfile"
	"github.com/minios-linux/i18nlens/store"
	"github.com/minios-linux/i18nlens/yamlfile"
)

// parsed is the content of one translation file; exactly one of flat and
// tree is set.
type parsed struct {
	flat map[string]string
	tree yamlfile.Tree
}

// Reload rediscovers and reparses every translation file and publishes the
// new index. Unreadable or malformed files are logged and skipped; only a
// cancelled context makes Reload fail, in which case the previous index
// stays live.
func (e *Engine) Reload(ctx context.Context) error {
	gen := e.gen.Add(1)
	start := time.Now()

	sources := e.discoverFiles(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	contents := make([]*parsed, len(sources))
	_ = parallel(ctx, e.parallelism, sources, func(ctx context.Context, i int, src source) error {
		if ctx.Err() != nil {
			return nil
		}
		p, err := e.parse(src)
		if err != nil {
			e.log.Warn("skipping translation file", "path", src.path, "err", err)
			return nil
		}
		contents[i] = p
		return nil
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	ix := e.buildIndex(sources, contents)
	if e.publish(gen, ix) {
		e.log.Debug("index reloaded",
			"files", len(sources),
			"locales", len(ix.stores),
			"keys", len(ix.keys),
			"took", time.Since(start))
	}
	return nil
}

func (e *Engine) parse(src source) (*parsed, error) {
	data, err := afero.ReadFile(e.fs, src.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.path, err)
	}
	switch src.format {
	case store.FormatFlat:
		f, err := propfile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", src.path, err)
		}
		return &parsed{flat: f.Values()}, nil
	case store.FormatTree:
		t, err := yamlfile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", src.path, err)
		}
		return &parsed{tree: t}, nil
	}
	return nil, fmt.Errorf("%s: unsupported format %v", src.path, src.format)
}

// buildIndex merges parsed files into per-locale stores in discovery order.
// The first file of a locale fixes the locale's format; files of the other
// format are skipped.
func (e *Engine) buildIndex(sources []source, contents []*parsed) *Index {
	stores := make(map[string]store.Store)
	for i, src := range sources {
		p := contents[i]
		if p == nil {
			continue
		}

		s, ok := stores[src.locale]
		if !ok {
			if src.format == store.FormatTree {
				s = store.NewTreeStore()
			} else {
				s = store.NewFlatStore()
			}
			stores[src.locale] = s
		}
		if s.Format() != src.format {
			e.log.Warn("skipping file of mixed format",
				"path", src.path,
				"locale", src.locale,
				"format", src.format,
				"locale_format", s.Format())
			continue
		}

		switch s := s.(type) {
		case *store.FlatStore:
			s.Append(src.path, p.flat)
		case *store.TreeStore:
			s.Merge(src.path, p.tree)
		}
	}

	seen := make(map[string]bool)
	var keys []string
	for _, s := range stores {
		for _, k := range s.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	return &Index{stores: stores, keys: keys}
}
