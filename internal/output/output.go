package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FORMAT_JSON Format = "json"
	FORMAT_YAML Format = "yaml"
)

// ParseFormat returns the output format named s. An empty name selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", string(FORMAT_JSON):
		return FORMAT_JSON, nil
	case string(FORMAT_YAML), "yml":
		return FORMAT_YAML, nil
	}

	return "", fmt.Errorf("invalid output format: %s", s)
}

// Document builds a resource document keyed by node name. Each node is a
// flat attribute map; standard fields take precedence over custom
// attributes of the same name.
func Document(entries []inventory.NodeEntry) map[string]map[string]string {
	doc := make(map[string]map[string]string, len(entries))

	for _, e := range entries {
		attrs := make(map[string]string, len(e.Attributes)+9)

		for k, v := range e.Attributes {
			attrs[k] = v
		}

		for k, v := range e.StandardAttributes() {
			attrs[k] = v
		}

		delete(attrs, "tags")
		if len(e.Tags) > 0 {
			attrs["tags"] = strings.Join(e.Tags, ",")
		}

		doc[e.Name()] = attrs
	}

	return doc
}

// Write encodes entries as a resource document in the given format.
func Write(w io.Writer, format Format, entries []inventory.NodeEntry) error {
	doc := Document(entries)

	switch format {
	case FORMAT_JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	case FORMAT_YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	return fmt.Errorf("invalid output format: %s", format)
}
