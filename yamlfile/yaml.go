// Package yamlfile implements reading and writing of YAML translation files.
//
// The expected file format is a nested YAML map with scalar leaf values:
//
//	greeting: Hello
//	user:
//	  login:
//	    title: Sign in
//
// Lookups address leaves by dotted path ("user.login.title"). Only string
// and number leaves resolve; booleans, nulls, sequences and empty strings
// are treated as absent.
//
// Keys that contain dots ("user.login: Sign in") are expanded into nested
// mappings on parse, so a path has at most one value. When a document
// defines the same path twice (once dotted, once nested), the definition
// that comes first in the document wins, and a leaf blocks any later
// definition below it.
package yamlfile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Tree is a decoded YAML mapping with string keys at every level. Keys never
// contain dots.
type Tree map[string]any

// Parse parses YAML data into a Tree. An empty document yields an empty
// tree; any other non-mapping root is an error.
func Parse(data []byte) (Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return Tree{}, nil
	}
	root := resolveAlias(doc.Content[0])
	switch {
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
		return Tree{}, nil
	case root.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("YAML root must be a mapping, got %s", root.Tag)
	}
	return fromMapping(root)
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// fromMapping builds a Tree from a mapping node in document order.
func fromMapping(m *yaml.Node) (Tree, error) {
	t := make(Tree)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := resolveAlias(m.Content[i])
		val := resolveAlias(m.Content[i+1])
		if key.Tag == "!!merge" {
			continue
		}

		var v any
		if val.Kind == yaml.MappingNode {
			sub, err := fromMapping(val)
			if err != nil {
				return nil, err
			}
			v = sub
		} else if err := val.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", val.Line, err)
		}
		t.insert(strings.Split(key.Value, "."), v)
	}
	return t, nil
}

// insert places v at the path segs unless something already occupies it.
// A leaf met on the way blocks the insert.
func (t Tree) insert(segs []string, v any) {
	node := t
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg]
		if !ok {
			sub := make(Tree)
			node[seg] = sub
			node = sub
			continue
		}
		sub, ok := next.(Tree)
		if !ok {
			return
		}
		node = sub
	}
	last := segs[len(segs)-1]
	existing, ok := node[last]
	if !ok {
		node[last] = v
		return
	}
	dst, dstTree := existing.(Tree)
	src, srcTree := v.(Tree)
	if dstTree && srcTree {
		dst.Merge(src)
	}
}

// ---------------------------------------------------------------------------
// Querying
// ---------------------------------------------------------------------------

// scalarText coerces string and number leaves to text.
func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Lookup descends the tree along the dot segments of key and returns the
// leaf text.
func (t Tree) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	node := t
	segs := strings.Split(key, ".")
	for _, seg := range segs[:len(segs)-1] {
		sub, ok := node[seg].(Tree)
		if !ok {
			return "", false
		}
		node = sub
	}
	return scalarText(node[segs[len(segs)-1]])
}

// Flatten returns every resolvable leaf as dotted path → text.
func (t Tree) Flatten() map[string]string {
	out := make(map[string]string)
	flatten(t, "", out)
	return out
}

func flatten(t Tree, prefix string, out map[string]string) {
	for k, v := range t {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(Tree); ok {
			flatten(sub, path, out)
			continue
		}
		if s, ok := scalarText(v); ok {
			out[path] = s
		}
	}
}

// Keys returns the sorted dotted paths of all resolvable leaves.
func (t Tree) Keys() []string {
	flat := t.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge deep-merges src into t. Nested mappings combine key-wise; a path
// already present in t is never replaced, so the first tree merged owns
// every leaf it defines.
func (t Tree) Merge(src Tree) {
	for k, v := range src {
		existing, ok := t[k]
		if !ok {
			t[k] = clone(v)
			continue
		}
		dst, dstTree := existing.(Tree)
		from, srcTree := v.(Tree)
		if dstTree && srcTree {
			dst.Merge(from)
		}
	}
}

func clone(v any) any {
	sub, ok := v.(Tree)
	if !ok {
		return v
	}
	out := make(Tree, len(sub))
	for k, val := range sub {
		out[k] = clone(val)
	}
	return out
}
