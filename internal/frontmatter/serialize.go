package frontmatter

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Field is one key/value pair of a metadata block. Serialization keeps the
// order fields are given in, so generated documents read naturally
// (title first, then date, then layout).
type Field struct {
	Key   string
	Value any
}

// Compose renders a full document: delimiter, YAML block, delimiter, body.
func Compose(fields []Field, body []byte) ([]byte, error) {
	block, err := SerializeYAML(fields)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	buf.Write(block)
	buf.WriteString(Delimiter + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// SerializeYAML serializes fields into YAML bytes (without delimiters).
// If fields is empty, SerializeYAML returns an empty slice.
func SerializeYAML(fields []Field) ([]byte, error) {
	if len(fields) == 0 {
		return []byte{}, nil
	}

	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		valNode, err := nodeFromAny(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}, valNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nodeFromAny(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		// Double-quoted so titles containing ':' or '#' survive a round trip.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: vv, Style: yaml.DoubleQuotedStyle}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(vv)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(vv)}, nil
	case time.Time:
		// Plain "YYYY-MM-DD HH:MM" is what authors type by hand.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: vv.Format("2006-01-02 15:04")}, nil
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, item := range vv {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item})
		}
		return seq, nil
	default:
		var node yaml.Node
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return &node, nil
	}
}
