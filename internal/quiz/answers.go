package quiz

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadAnswers decodes a YAML or JSON mapping of question id to answer. Values
// keep their decoded type so the engine can reject mismatches; a sequence
// becomes []string only when every element is a string.
func LoadAnswers(r io.Reader) (map[int]any, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[int]any{}, nil
		}
		return nil, fmt.Errorf("decoding answers: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("answers: expected a mapping of question id to answer")
	}

	out := make(map[int]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		id, err := strconv.Atoi(strings.TrimSpace(key.Value))
		if err != nil {
			return nil, fmt.Errorf("answers: key %q is not a question id", key.Value)
		}
		v, err := decodeAnswer(val)
		if err != nil {
			return nil, fmt.Errorf("answers: question %d: %w", id, err)
		}
		out[id] = v
	}
	return out, nil
}

func decodeAnswer(n *yaml.Node) (any, error) {
	if n.Kind != yaml.SequenceNode {
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	strs := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			var raw []any
			if err := n.Decode(&raw); err != nil {
				return nil, err
			}
			return raw, nil
		}
		strs = append(strs, item.Value)
	}
	return strs, nil
}
