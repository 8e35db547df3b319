package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// Delimiter is the line that opens and closes a metadata block.
const Delimiter = "---"

var (
	// ErrMissingOpeningDelimiter indicates the first non-blank line is not the delimiter.
	ErrMissingOpeningDelimiter = errors.New("document must start with '---' (only blank lines may precede it)")

	// ErrMissingClosingDelimiter indicates the input ended before a closing delimiter line.
	ErrMissingClosingDelimiter = errors.New("metadata start delimiter found but closing delimiter '---' is missing")

	// ErrNotMapping indicates the metadata block decoded to something other than a key/value mapping.
	ErrNotMapping = errors.New("metadata block is not a key/value mapping")
)

// Extract splits a document into its metadata block and body.
//
// Leading blank lines are skipped. The first remaining line must be exactly
// "---"; the block ends at the next line that is exactly "---". The returned
// block and body exclude both delimiter lines and are otherwise byte-identical
// to the input. A trailing '\r' on a delimiter line is tolerated.
func Extract(content []byte) (meta []byte, body []byte, err error) {
	lines := bytes.Split(content, []byte("\n"))

	start := 0
	for start < len(lines) && len(bytes.TrimSpace(lines[start])) == 0 {
		start++
	}
	if start == len(lines) || !isDelimiter(lines[start]) {
		return nil, nil, ErrMissingOpeningDelimiter
	}

	for i := start + 1; i < len(lines); i++ {
		if !isDelimiter(lines[i]) {
			continue
		}
		meta = bytes.Join(lines[start+1:i], []byte("\n"))
		body = bytes.Join(lines[i+1:], []byte("\n"))
		return meta, body, nil
	}
	return nil, nil, ErrMissingClosingDelimiter
}

func isDelimiter(line []byte) bool {
	return string(bytes.TrimSuffix(line, []byte("\r"))) == Delimiter
}

// ParseYAML parses a raw YAML metadata block (without delimiters) into a map.
//
// An empty block yields an empty map. A block that is valid YAML but not a
// mapping (a bare scalar or a list) returns ErrNotMapping.
func ParseYAML(block []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(block)) == 0 {
		return map[string]any{}, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(block, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return map[string]any{}, nil
	}
	if node.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	fields := map[string]any{}
	if err := node.Content[0].Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
