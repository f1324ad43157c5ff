// Package discover finds files under a project root by glob pattern.
//
// Patterns are slash-separated and relative to the root. A "**" segment
// matches zero or more directories; every other segment is matched with
// path.Match. Directories listed as skip dirs (VCS metadata, build output,
// dependency caches) are never descended into.
package discover

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultSkipDirs contains directory names skipped during scanning.
var DefaultSkipDirs = []string{
	".git",
	".hg",
	".svn",
	".idea",
	".gradle",
	".vscode",
	"node_modules",
	"target",
	"build",
	"out",
	"bin",
	"dist",
}

// Walker resolves glob patterns against a project tree.
type Walker struct {
	fs   afero.Fs
	root string
	skip map[string]bool
}

// New returns a Walker rooted at root. A nil skipDirs selects
// DefaultSkipDirs.
func New(fsys afero.Fs, root string, skipDirs []string) *Walker {
	if skipDirs == nil {
		skipDirs = DefaultSkipDirs
	}
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}
	return &Walker{fs: fsys, root: filepath.Clean(root), skip: skip}
}

// Root returns the directory patterns are resolved against.
func (w *Walker) Root() string {
	return w.root
}

// Glob returns the files matching any of patterns, as paths joined to the
// root. Results are grouped by pattern in argument order, sorted within a
// pattern, and deduplicated. Unreadable entries are skipped.
func (w *Walker) Glob(ctx context.Context, patterns ...string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := w.glob(ctx, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func (w *Walker) glob(ctx context.Context, pattern string) ([]string, error) {
	segs := strings.Split(path.Clean(strings.TrimPrefix(pattern, "/")), "/")
	for _, s := range segs {
		if _, err := path.Match(s, ""); err != nil {
			return nil, err
		}
	}

	// Walk only below the literal prefix of the pattern.
	base := 0
	for base < len(segs)-1 && !hasMeta(segs[base]) {
		base++
	}
	start := filepath.Join(w.root, filepath.FromSlash(strings.Join(segs[:base], "/")))

	var files []string
	err := afero.Walk(w.fs, start, func(p string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if p != start && w.skip[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return nil
		}
		if Match(segs, strings.Split(filepath.ToSlash(rel), "/")) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func hasMeta(seg string) bool {
	return strings.ContainsAny(seg, `*?[\`)
}

// Match reports whether the path segments match the pattern segments.
func Match(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(name); i++ {
			if Match(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if ok, _ := path.Match(pattern[0], name[0]); !ok {
		return false
	}
	return Match(pattern[1:], name[1:])
}
