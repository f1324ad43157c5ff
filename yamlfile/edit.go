package yamlfile

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndentWidth is the indentation used when re-encoding a file after SetValue.
const IndentWidth = 2

// ---------------------------------------------------------------------------
// Line scanner
// ---------------------------------------------------------------------------

// The scanner locates a key without building a document model. It walks
// the lines once, keeping a stack of the enclosing keys and their indents,
// so every key line gets its full dotted path. A dotted key ("a.b: x")
// contributes all of its segments. It assumes space indentation; tab-indented
// files are not supported.

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func isContent(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "#")
}

// splitKey splits a "key: rest" line. Quoted keys are unquoted. Lines that
// are not mapping entries, such as sequence items, report false.
func splitKey(line string) (key, rest string, ok bool) {
	t := strings.TrimSpace(line)
	if t == "" || t[0] == '-' || t[0] == '#' {
		return "", "", false
	}
	if q := t[0]; q == '"' || q == '\'' {
		end := strings.IndexByte(t[1:], q)
		if end < 0 || !strings.HasPrefix(t[end+2:], ":") {
			return "", "", false
		}
		return t[1 : end+1], strings.TrimSpace(t[end+3:]), true
	}
	for i := 0; i < len(t); i++ {
		if t[i] == ':' && (i+1 == len(t) || t[i+1] == ' ') {
			return strings.TrimSpace(t[:i]), strings.TrimSpace(t[i+1:]), true
		}
	}
	return "", "", false
}

// isBlockScalar reports whether rest opens a literal or folded scalar whose
// body is on the following, deeper lines.
func isBlockScalar(rest string) bool {
	return strings.HasPrefix(rest, "|") || strings.HasPrefix(rest, ">")
}

// definition is one key line and whether its value is a mapping.
type definition struct {
	line    int
	mapping bool
}

// definitions returns, in document order, every line whose full path is
// key.
func definitions(lines []string, key string) []definition {
	type frame struct {
		indent int
		path   string
	}
	var (
		stack []frame
		defs  []definition
	)
	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		if !isContent(ln) {
			continue
		}
		ind := indentOf(ln)
		for len(stack) > 0 && stack[len(stack)-1].indent >= ind {
			stack = stack[:len(stack)-1]
		}
		k, rest, ok := splitKey(ln)
		if !ok {
			continue
		}
		path := k
		if len(stack) > 0 {
			path = stack[len(stack)-1].path + "." + k
		}

		child := -1
		for _, next := range lines[i+1:] {
			if isContent(next) {
				child = indentOf(next)
				break
			}
		}
		at := i
		nested := child > ind
		mapping := nested && !isBlockScalar(rest) &&
			(rest == "" || strings.ContainsRune("#&!", rune(rest[0])))
		if nested && !mapping {
			// Skip a scalar body so its lines are not read as keys.
			for i+1 < len(lines) && (!isContent(lines[i+1]) || indentOf(lines[i+1]) > ind) {
				i++
			}
		}

		if path == key {
			defs = append(defs, definition{line: at, mapping: mapping})
		}
		if mapping {
			stack = append(stack, frame{indent: ind, path: path})
		}
	}
	return defs
}

// FindKeyLine returns the index of the line that defines key. A leaf
// definition is preferred over a mapping one; among several, the first in
// the document wins, matching Parse.
func FindKeyLine(lines []string, key string) (int, bool) {
	defs := definitions(lines, key)
	for _, d := range defs {
		if !d.mapping {
			return d.line, true
		}
	}
	if len(defs) > 0 {
		return defs[0].line, true
	}
	return -1, false
}

// blockEnd returns the index of the last line that belongs to the entry on
// line i: the entry itself and every following line indented deeper.
// Trailing blank lines are not included.
func blockEnd(lines []string, i int) int {
	ind := indentOf(lines[i])
	last := i
	for j := i + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentOf(lines[j]) <= ind {
			break
		}
		last = j
	}
	return last
}

// DeleteKey removes every definition of key together with its descendant
// block: every following line indented deeper than the key line. Leaf
// definitions are removed when there are any, otherwise mapping ones.
// Blank lines trailing a block are kept. It reports whether the key was
// found.
func DeleteKey(text, key string) (string, bool) {
	lines := strings.SplitAfter(text, "\n")
	defs := definitions(lines, key)
	if len(defs) == 0 {
		return text, false
	}

	var targets []int
	for _, d := range defs {
		if !d.mapping {
			targets = append(targets, d.line)
		}
	}
	if len(targets) == 0 {
		for _, d := range defs {
			targets = append(targets, d.line)
		}
	}

	// Definitions of one path never nest, so removing from the bottom up
	// keeps the earlier indexes valid.
	for j := len(targets) - 1; j >= 0; j-- {
		i := targets[j]
		lines = append(lines[:i:i], lines[blockEnd(lines, i)+1:]...)
	}
	return strings.Join(lines, ""), true
}

// ---------------------------------------------------------------------------
// Structural write
// ---------------------------------------------------------------------------

// SetValue sets key to value and re-encodes the document with IndentWidth
// spaces. The first leaf whose full path is key is edited; without one,
// intermediate mappings are created as needed. yaml.v3 keeps key order
// and most comments, but formatting outside the edited path may change.
func SetValue(data []byte, key, value string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{newMapping()}}
	}

	root := doc.Content[0]
	switch {
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
		*root = *newMapping()
	case root.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("YAML root must be a mapping")
	}

	if leaf := findLeaf(root, "", key); leaf != nil {
		setScalar(leaf, value)
	} else {
		segs := strings.Split(key, ".")
		node := root
		for _, seg := range segs[:len(segs)-1] {
			child := mappingValue(node, seg)
			switch {
			case child == nil:
				child = newMapping()
				node.Content = append(node.Content, newKey(seg), child)
			case child.Kind != yaml.MappingNode:
				*child = *newMapping()
			}
			node = child
		}
		leaf = &yaml.Node{}
		node.Content = append(node.Content, newKey(segs[len(segs)-1]), leaf)
		setScalar(leaf, value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(IndentWidth)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	out := buf.Bytes()

	// An earlier leaf on the path (a.b: x before a: {b: {c: ...}}) hides
	// the new entry.
	if value != "" {
		tree, err := Parse(out)
		if err != nil {
			return nil, err
		}
		if got, ok := tree.Lookup(key); !ok || got != value {
			return nil, fmt.Errorf("%q is shadowed by another definition in the file", key)
		}
	}
	return out, nil
}

// findLeaf returns the first non-mapping value node, in document order,
// whose full dotted path is key.
func findLeaf(m *yaml.Node, prefix, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		path := m.Content[i].Value
		if prefix != "" {
			path = prefix + "." + path
		}
		v := m.Content[i+1]
		if v.Kind != yaml.MappingNode {
			if path == key {
				return v
			}
			continue
		}
		if strings.HasPrefix(key, path+".") {
			if n := findLeaf(v, path, key); n != nil {
				return n
			}
		}
	}
	return nil
}

func setScalar(leaf *yaml.Node, value string) {
	comment := leaf.LineComment
	*leaf = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, LineComment: comment}
	if value == "" {
		leaf.Style = yaml.DoubleQuotedStyle
	}
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func newKey(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
