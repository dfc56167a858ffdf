package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadError reports an invalid mapping document.
type LoadError struct {
	Line    int
	Field   string
	Message string
}

func (e *LoadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("mapping line %d: field %q: %s", e.Line, e.Field, e.Message)
	}

	return fmt.Sprintf("mapping line %d: %s", e.Line, e.Message)
}

func loadErrorf(node *yaml.Node, field string, format string, args ...interface{}) *LoadError {
	return &LoadError{
		Line:    node.Line,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// LoadFile reads and parses the mapping document at path.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping file %s: %w", path, err)
	}

	return m, nil
}

// Parse decodes a YAML or JSON mapping document. Rules are compiled once
// here so resolution never re-interprets the document.
func Parse(data []byte) (*Mapping, error) {
	var doc yaml.Node

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &LoadError{Line: 1, Message: "empty mapping document"}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, loadErrorf(root, "", "expected an object of target fields")
	}

	var fields []Field
	seen := map[string]int{}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, ruleNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value

		if name == "" {
			return nil, loadErrorf(keyNode, "", "empty target field name")
		}

		if line, ok := seen[name]; ok {
			return nil, loadErrorf(
				keyNode,
				name,
				"duplicate target field, first defined on line %d",
				line,
			)
		}
		seen[name] = keyNode.Line

		rule, err := parseRule(name, ruleNode)
		if err != nil {
			return nil, err
		}

		fields = append(fields, Field{Name: name, Rule: rule})
	}

	return NewMapping(fields...)
}

func parseRule(field string, node *yaml.Node) (Rule, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return parseRule(field, node.Alias)

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, loadErrorf(node, field, "rule is null")
		}
		return NewLiteral(node.Value), nil

	case yaml.SequenceNode:
		return parseLiteralList(field, node)

	case yaml.MappingNode:
		return parseRuleObject(field, node)
	}

	return nil, loadErrorf(node, field, "unsupported rule")
}

func parseLiteralList(field string, node *yaml.Node) (*Literal, error) {
	values := make([]string, 0, len(node.Content))

	for _, item := range node.Content {
		if item.Kind == yaml.AliasNode {
			item = item.Alias
		}

		if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
			return nil, loadErrorf(
				item,
				field,
				"list values must be scalars, use firstOf to combine rules",
			)
		}

		values = append(values, item.Value)
	}

	return NewLiteralList(values), nil
}

func parseLiteralValue(field string, node *yaml.Node) (*Literal, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, loadErrorf(node, field, "value is null")
		}
		return NewLiteral(node.Value), nil

	case yaml.SequenceNode:
		return parseLiteralList(field, node)
	}

	return nil, loadErrorf(node, field, "value must be a scalar or a list of scalars")
}

func parseRuleObject(field string, node *yaml.Node) (Rule, error) {
	keys := map[string]*yaml.Node{}

	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]

		switch k.Value {
		case "value", "path", "default", "firstOf":
		default:
			return nil, loadErrorf(k, field, "unknown rule key %q", k.Value)
		}

		if _, ok := keys[k.Value]; ok {
			return nil, loadErrorf(k, field, "duplicate rule key %q", k.Value)
		}

		keys[k.Value] = v
	}

	kinds := 0
	for _, k := range []string{"value", "path", "firstOf"} {
		if _, ok := keys[k]; ok {
			kinds++
		}
	}

	if kinds != 1 {
		return nil, loadErrorf(
			node,
			field,
			"rule needs exactly one of value, path or firstOf",
		)
	}

	if _, ok := keys["default"]; ok {
		if _, isPath := keys["path"]; !isPath {
			return nil, loadErrorf(node, field, "default is only allowed with path")
		}
	}

	if v, ok := keys["value"]; ok {
		return parseLiteralValue(field, v)
	}

	if v, ok := keys["path"]; ok {
		return parseSelector(field, v, keys["default"])
	}

	return parseFirstOf(field, keys["firstOf"])
}

func parseSelector(field string, pathNode, defNode *yaml.Node) (*Selector, error) {
	if pathNode.Kind != yaml.ScalarNode || pathNode.Tag == "!!null" {
		return nil, loadErrorf(pathNode, field, "path must be a string")
	}

	var def *Literal

	if defNode != nil {
		var err error

		def, err = parseLiteralValue(field, defNode)
		if err != nil {
			return nil, err
		}
	}

	s, err := NewSelector(pathNode.Value, def)
	if err != nil {
		return nil, loadErrorf(pathNode, field, "%s", err)
	}

	return s, nil
}

func parseFirstOf(field string, node *yaml.Node) (*FirstOf, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, loadErrorf(node, field, "firstOf must be a list of rules")
	}

	rules := make([]Rule, 0, len(node.Content))

	for _, item := range node.Content {
		r, err := parseRule(field, item)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	f, err := NewFirstOf(rules...)
	if err != nil {
		return nil, loadErrorf(node, field, "%s", err)
	}

	return f, nil
}
