// Package writeback applies single-key edits to translation files.
//
// Flat (.properties) edits are textual and touch only the key's own
// region, preserving comments, line endings and encoding. Tree (YAML)
// deletions are line-based; tree writes re-encode the document.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/minios-linux/i18nlens/i18n"
	"github.com/minios-linux/i18nlens/propfile"
	"github.com/minios-linux/i18nlens/store"
	"github.com/minios-linux/i18nlens/yamlfile"
)

// ErrDeclined is returned by Create when the user does not want a file.
var ErrDeclined = errors.New("file creation declined")

// ErrNotInFile is returned by Delete when the file has no entry for the key.
var ErrNotInFile = errors.New("key not defined in file")

// Prompter asks the user questions during interactive flows.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, title, description string) (bool, error)
	// Select asks for one of options.
	Select(ctx context.Context, title string, options []string) (string, error)
	// Input asks for free text, pre-filled with value.
	Input(ctx context.Context, title, value string) (string, error)
}

// Writer edits translation files under a project root.
type Writer struct {
	fs           afero.Fs
	root         string
	resourceRoot string
	prompt       Prompter
	log          *log.Logger
}

// New returns a Writer. prompt may be nil, in which case Create always
// declines.
func New(fsys afero.Fs, root, resourceRoot string, prompt Prompter, logger *log.Logger) *Writer {
	return &Writer{
		fs:           fsys,
		root:         root,
		resourceRoot: resourceRoot,
		prompt:       prompt,
		log:          logger,
	}
}

// Write sets key to value in the file at path.
func (w *Writer) Write(path string, format store.Format, key, value string) error {
	data, mode, err := w.read(path)
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case store.FormatFlat:
		text, enc := propfile.Decode(data)
		out = propfile.Encode(propfile.SetValue(text, key, value), enc)
	case store.FormatTree:
		out, err = yamlfile.SetValue(data, key, value)
		if err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%s: unsupported format %v", path, format)
	}

	w.log.Debug("writing translation", "path", path, "key", key)
	return w.save(path, out, mode)
}

// Delete removes key from the file at path. A key missing from the file
// leaves it untouched and yields ErrNotInFile.
func (w *Writer) Delete(path string, format store.Format, key string) error {
	data, mode, err := w.read(path)
	if err != nil {
		return err
	}

	var (
		out   []byte
		found bool
	)
	switch format {
	case store.FormatFlat:
		text, enc := propfile.Decode(data)
		var edited string
		edited, found = propfile.DeleteKey(text, key)
		out = propfile.Encode(edited, enc)
	case store.FormatTree:
		var edited string
		edited, found = yamlfile.DeleteKey(string(data), key)
		out = []byte(edited)
	default:
		return fmt.Errorf("%s: unsupported format %v", path, format)
	}

	if !found {
		return fmt.Errorf("%s: %q: %w", path, key, ErrNotInFile)
	}
	w.log.Debug("deleting translation", "path", path, "key", key)
	return w.save(path, out, mode)
}

// Create asks the user for a format and a project-relative path, then
// creates an empty translation file for locale. It returns ErrDeclined when
// the user backs out at any step.
func (w *Writer) Create(ctx context.Context, locale string) (string, store.Format, error) {
	if w.prompt == nil {
		w.log.Warn("no translation file for locale and no way to ask for one", "locale", locale)
		return "", 0, ErrDeclined
	}

	ok, err := w.prompt.Confirm(ctx,
		i18n.Tf("No translation file for locale %q. Create one?", locale),
		i18n.T("An empty file is created and the translation is written to it."))
	if err != nil {
		return "", 0, fmt.Errorf("prompt: %w", err)
	}
	if !ok {
		return "", 0, ErrDeclined
	}

	choice, err := w.prompt.Select(ctx, i18n.T("File format"), []string{store.FormatFlat.String(), store.FormatTree.String()})
	if err != nil {
		return "", 0, fmt.Errorf("prompt: %w", err)
	}
	format, ok := store.ParseFormat(choice)
	if !ok {
		return "", 0, ErrDeclined
	}

	rel, err := w.prompt.Input(ctx, i18n.T("File path (relative to the project)"), w.DefaultPath(locale, format))
	if err != nil {
		return "", 0, fmt.Errorf("prompt: %w", err)
	}
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", 0, ErrDeclined
	}

	path, err := w.resolve(rel)
	if err != nil {
		return "", 0, err
	}
	if got, ok := store.FormatForPath(path); !ok || got != format {
		return "", 0, fmt.Errorf("%s: extension does not match format %s", rel, format)
	}

	if err := w.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", 0, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	exists, err := afero.Exists(w.fs, path)
	if err != nil {
		return "", 0, fmt.Errorf("checking %s: %w", path, err)
	}
	if !exists {
		if err := afero.WriteFile(w.fs, path, nil, 0644); err != nil {
			return "", 0, fmt.Errorf("creating %s: %w", path, err)
		}
		w.log.Info("created translation file", "path", path, "locale", locale)
	}
	return path, format, nil
}

// DefaultPath returns the suggested project-relative path for a new file.
func (w *Writer) DefaultPath(locale string, format store.Format) string {
	name := "messages_" + locale
	if locale == "" || locale == "default" {
		name = "messages"
	}
	return filepath.ToSlash(filepath.Join(w.resourceRoot, name+format.Ext()))
}

func (w *Writer) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: path must be relative to the project", rel)
	}
	path := filepath.Join(w.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(w.root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: path escapes the project", rel)
	}
	return path, nil
}

func (w *Writer) read(path string) ([]byte, os.FileMode, error) {
	info, err := w.fs.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, info.Mode().Perm(), nil
}

func (w *Writer) save(path string, data []byte, mode os.FileMode) error {
	if err := afero.WriteFile(w.fs, path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
