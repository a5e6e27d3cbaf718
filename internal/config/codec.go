// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
	"gopkg.in/yaml.v3"
)

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Format is a layer file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks a codec from the file extension. Unknown extensions are TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Decode parses layer file contents into a layer, preserving document order.
func Decode(name string, kind Kind, format Format, data []byte) (*Layer, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(name, kind, data)
	default:
		return decodeTOML(name, kind, data)
	}
}

func decodeTOML(name string, kind Kind, data []byte) (*Layer, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	order, err := tomlKeyOrder(data)
	if err != nil {
		return nil, err
	}

	flat := make(map[string]any)
	if err := flatten("", doc, flat); err != nil {
		return nil, err
	}

	layer := NewLayer(name, kind)
	for _, key := range order {
		v, ok := flat[key]
		if !ok {
			continue
		}
		if err := layer.Set(key, v); err != nil {
			return nil, err
		}
		delete(flat, key)
	}

	rest := make([]string, 0, len(flat))
	for key := range flat {
		rest = append(rest, key)
	}
	slices.Sort(rest)
	for _, key := range rest {
		if err := layer.Set(key, flat[key]); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

// tomlKeyOrder walks the document with the go-toml parser and returns the
// fully qualified leaf keys in the order they appear.
func tomlKeyOrder(data []byte) ([]string, error) {
	var (
		p      unstable.Parser
		order  []string
		prefix []string
	)
	p.Reset(data)

	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table:
			prefix = keyParts(expr)
		case unstable.ArrayTable:
			return nil, fmt.Errorf("arrays of tables are not supported (at [[%s]])", strings.Join(keyParts(expr), "."))
		case unstable.KeyValue:
			order = appendKeyValue(order, prefix, expr)
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return order, nil
}

func appendKeyValue(order, prefix []string, kv *unstable.Node) []string {
	full := slices.Concat(prefix, keyParts(kv))
	value := kv.Value()
	if value.Kind != unstable.InlineTable {
		return append(order, strings.Join(full, "."))
	}
	children := value.Children()
	for children.Next() {
		child := children.Node()
		if child.Kind == unstable.KeyValue {
			order = appendKeyValue(order, full, child)
		}
	}
	return order
}

func keyParts(n *unstable.Node) []string {
	var parts []string
	it := n.Key()
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func flatten(prefix string, m map[string]any, out map[string]any) error {
	for k, v := range m {
		if strings.Contains(k, ".") {
			return fmt.Errorf("key segment %q contains '.'", k)
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			if err := flatten(key, sub, out); err != nil {
				return err
			}
			continue
		}
		out[key] = v
	}
	return nil
}

func decodeYAML(name string, kind Kind, data []byte) (*Layer, error) {
	layer := NewLayer(name, kind)

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return layer, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}
	if err := walkYAML(layer, "", root); err != nil {
		return nil, err
	}
	return layer, nil
}

func walkYAML(layer *Layer, prefix string, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		keyNode, valNode := m.Content[i], m.Content[i+1]
		if strings.Contains(keyNode.Value, ".") {
			return fmt.Errorf("line %d: key segment %q contains '.'", keyNode.Line, keyNode.Value)
		}
		key := keyNode.Value
		if prefix != "" {
			key = prefix + "." + key
		}

		if valNode.Kind == yaml.AliasNode {
			valNode = valNode.Alias
		}
		switch valNode.Kind {
		case yaml.MappingNode:
			if err := walkYAML(layer, key, valNode); err != nil {
				return err
			}
			continue
		case yaml.SequenceNode:
			var items []any
			if err := valNode.Decode(&items); err != nil {
				return fmt.Errorf("line %d: %w", valNode.Line, err)
			}
			if items == nil {
				items = []any{}
			}
			if err := layer.Set(key, items); err != nil {
				return fmt.Errorf("line %d: %w", valNode.Line, err)
			}
		default:
			var v any
			if err := valNode.Decode(&v); err != nil {
				return fmt.Errorf("line %d: %w", valNode.Line, err)
			}
			if err := layer.Set(key, v); err != nil {
				return fmt.Errorf("line %d: %w", valNode.Line, err)
			}
		}
	}
	return nil
}

// Encode serializes a layer as TOML: one `dotted.key = value` line per key
// in insertion order, under a short header comment.
func Encode(layer *Layer, header string) ([]byte, error) {
	var buf bytes.Buffer
	for _, line := range strings.Split(strings.TrimSpace(header), "\n") {
		if line != "" {
			fmt.Fprintf(&buf, "# %s\n", line)
		}
	}
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}

	for _, key := range layer.keys {
		k, err := encodeKey(key)
		if err != nil {
			return nil, err
		}
		v, err := encodeValue(layer.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		fmt.Fprintf(&buf, "%s = %s\n", k, v)
	}
	return buf.Bytes(), nil
}

func encodeKey(key string) (string, error) {
	segs := strings.Split(key, ".")
	for i, seg := range segs {
		if bareKey.MatchString(seg) {
			continue
		}
		quoted, err := encodeValue(seg)
		if err != nil {
			return "", err
		}
		segs[i] = quoted
	}
	return strings.Join(segs, "."), nil
}

// encodeValue renders one value with the go-toml encoder.
func encodeValue(v any) (string, error) {
	b, err := toml.Marshal(map[string]any{"v": v})
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(b))
	rendered, ok := strings.CutPrefix(line, "v = ")
	if !ok {
		return "", fmt.Errorf("unexpected encoding %q", line)
	}
	return rendered, nil
}

// FormatValue renders v the way Encode writes it.
func FormatValue(v any) (string, error) { return encodeValue(v) }

// ParseValue reads a value typed on the command line. Anything that is not
// a single valid TOML value is taken as a bare string, so `true`, `3` and
// `["a", "b"]` keep their types while `~/dots` stays a string.
func ParseValue(s string) any {
	layer, err := decodeTOML("arg", KindFile, []byte("v = "+s))
	if err != nil || layer.Len() != 1 {
		return s
	}
	v, ok := layer.Get("v")
	if !ok {
		return s
	}
	return v
}
