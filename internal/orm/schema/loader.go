package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a schema document (YAML, or JSON which YAML accepts) mapping
// resource names to definitions. Field declaration order is preserved.
func Parse(data []byte) (map[string]*Resource, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return map[string]*Resource{}, nil
	}

	raw, err := nodeValue(doc.Content[0])
	if err != nil {
		return nil, err
	}
	entries, ok := raw.(Ordered)
	if !ok {
		return nil, fmt.Errorf("schema document must be a mapping of resource names, got %T", raw)
	}

	builder := NewBuilder()
	out := make(map[string]*Resource, len(entries))
	for _, p := range entries {
		res, err := builder.BuildResource(p.Key, p.Value)
		if err != nil {
			return nil, err
		}
		out[p.Key] = res
	}
	return out, nil
}

// LoadFile reads and parses a schema file
func LoadFile(path string) (map[string]*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	schemas, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schemas, nil
}

// LoadRegistry reads a schema file into a new, fully validated registry
func LoadRegistry(path string) (*Registry, error) {
	schemas, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	if err := reg.Replace(schemas); err != nil {
		return nil, err
	}
	return reg, nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		out := make(Ordered, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			val, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, Pair{Key: key, Value: val})
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported schema node", n.Line)
	}
}
