package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/minios-linux/i18nlens/store"
	"github.com/minios-linux/i18nlens/writeback"
)

// ErrKeyNotFound is returned by DeleteKey when no locale defines the key.
var ErrKeyNotFound = errors.New("translation key not found")

// WriteTranslation sets key to value in locale and reloads.
//
// The value goes to the file that owns the key. A key new to the locale is
// added to the locale's first file; a locale without files gets one through
// the interactive creation flow, and declining it makes the call a no-op.
func (e *Engine) WriteTranslation(ctx context.Context, key, locale, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if locale == "" {
		locale = DefaultLocale
	}

	path, format, err := e.targetFile(ctx, key, locale)
	if errors.Is(err, writeback.ErrDeclined) {
		e.log.Info("write skipped", "key", key, "locale", locale)
		return nil
	}
	if err != nil {
		return err
	}

	if got, _, ok := LocaleOf(path); ok && got != locale {
		e.log.Warn("file name does not carry the target locale", "path", path, "locale", locale, "file_locale", got)
	}
	if err := e.writer.Write(path, format, key, value); err != nil {
		return err
	}
	return e.Reload(ctx)
}

func (e *Engine) targetFile(ctx context.Context, key, locale string) (string, store.Format, error) {
	if s, ok := e.Snapshot().Store(locale); ok {
		if src, ok := s.SourceOf(key); ok {
			return src, s.Format(), nil
		}
		if files := s.Files(); len(files) > 0 {
			return files[0], s.Format(), nil
		}
	}
	return e.writer.Create(ctx, locale)
}

// DeleteKey removes key from its owning file in every locale, concurrently,
// and reloads. Failures of individual files are joined into the result.
func (e *Engine) DeleteKey(ctx context.Context, key string) error {
	type target struct {
		locale string
		path   string
		format store.Format
	}

	ix := e.Snapshot()
	var targets []target
	for locale, s := range ix.stores {
		if src, ok := s.SourceOf(key); ok {
			targets = append(targets, target{locale, src, s.Format()})
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].locale < targets[j].locale })

	err := parallel(ctx, e.parallelism, targets, func(_ context.Context, _ int, t target) error {
		if err := e.writer.Delete(t.path, t.format, key); err != nil {
			return fmt.Errorf("locale %s: %w", t.locale, err)
		}
		return nil
	})

	if rerr := e.Reload(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}
