// Package store holds the per-locale translation stores that make up an
// index snapshot.
//
// A store has one of two formats: flat (.properties files appended one
// after another) or tree (YAML documents deep-merged into one mapping).
// Both track, for every key they resolve, the file that introduced it. The
// first file to define a key owns it; files merged later never take over.
package store

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/i18nlens/yamlfile"
)

// Format is the backing format of a translation file.
type Format int

const (
	FormatFlat Format = iota + 1 // .properties
	FormatTree                   // .yml / .yaml
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatFlat:
		return "properties"
	case FormatTree:
		return "yaml"
	default:
		return "unknown"
	}
}

// Ext returns the file extension used when creating a file of this format.
func (f Format) Ext() string {
	if f == FormatTree {
		return ".yml"
	}
	return ".properties"
}

// FormatForPath derives the format from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties":
		return FormatFlat, true
	case ".yml", ".yaml":
		return FormatTree, true
	default:
		return 0, false
	}
}

// ParseFormat parses a format name as accepted on the command line.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(s) {
	case "properties", "flat":
		return FormatFlat, true
	case "yaml", "yml", "tree":
		return FormatTree, true
	default:
		return 0, false
	}
}

// Store is the read side shared by both store formats.
type Store interface {
	Format() Format
	// Lookup returns the value of key.
	Lookup(key string) (string, bool)
	// SourceOf returns the file that owns key.
	SourceOf(key string) (string, bool)
	// Keys returns the sorted keys the store resolves.
	Keys() []string
	// Files returns the merged files in load order.
	Files() []string
}

// ---------------------------------------------------------------------------
// Flat
// ---------------------------------------------------------------------------

// FlatStore merges .properties files by appending their entries.
type FlatStore struct {
	entries   map[string]string
	keySource map[string]string
	files     []string
}

// NewFlatStore returns an empty flat store.
func NewFlatStore() *FlatStore {
	return &FlatStore{
		entries:   make(map[string]string),
		keySource: make(map[string]string),
	}
}

// Append adds the entries of one file. Keys already present keep their
// value and owner; empty values are not indexed.
func (s *FlatStore) Append(path string, values map[string]string) {
	s.files = append(s.files, path)
	for k, v := range values {
		if v == "" {
			continue
		}
		if _, exists := s.entries[k]; exists {
			continue
		}
		s.entries[k] = v
		s.keySource[k] = path
	}
}

func (s *FlatStore) Format() Format { return FormatFlat }

func (s *FlatStore) Lookup(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

func (s *FlatStore) SourceOf(key string) (string, bool) {
	p, ok := s.keySource[key]
	return p, ok
}

func (s *FlatStore) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FlatStore) Files() []string {
	return append([]string(nil), s.files...)
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// TreeStore merges YAML documents into one nested mapping.
type TreeStore struct {
	root      yamlfile.Tree
	keySource map[string]string
	files     []string
}

// NewTreeStore returns an empty tree store.
func NewTreeStore() *TreeStore {
	return &TreeStore{
		root:      yamlfile.Tree{},
		keySource: make(map[string]string),
	}
}

// Merge deep-merges one parsed document and attributes the leaves it
// contributed. A key resolves to the value of the file it is attributed to:
// parsed trees hold each path once, and paths already present are never
// replaced.
func (s *TreeStore) Merge(path string, tree yamlfile.Tree) {
	s.files = append(s.files, path)
	s.root.Merge(tree)
	for k := range tree.Flatten() {
		if _, owned := s.keySource[k]; owned {
			continue
		}
		if _, ok := s.root.Lookup(k); ok {
			s.keySource[k] = path
		}
	}
}

func (s *TreeStore) Format() Format { return FormatTree }

func (s *TreeStore) Lookup(key string) (string, bool) {
	return s.root.Lookup(key)
}

func (s *TreeStore) SourceOf(key string) (string, bool) {
	p, ok := s.keySource[key]
	return p, ok
}

// Keys enumerates the merged tree rather than the attribution map.
func (s *TreeStore) Keys() []string {
	return s.root.Keys()
}

func (s *TreeStore) Files() []string {
	return append([]string(nil), s.files...)
}
