package mapper

import "fmt"

// Target fields with a dedicated place in a node entry. Any other field
// name in a mapping is a custom attribute.
const (
	FieldHostname    = "hostname"
	FieldUsername    = "username"
	FieldDescription = "description"
	FieldNodename    = "nodename"
	FieldOsArch      = "osArch"
	FieldOsFamily    = "osFamily"
	FieldOsName      = "osName"
	FieldOsVersion   = "osVersion"
	FieldTags        = "tags"
)

// Field associates a target field name with the rule that derives it.
type Field struct {
	Name string
	Rule Rule
}

// Mapping is an ordered, read-only set of field rules.
type Mapping struct {
	fields []Field
	index  map[string]int
}

// NewMapping builds a mapping from fields, keeping their order. Field names
// must be unique and non-empty.
func NewMapping(fields ...Field) (*Mapping, error) {
	m := &Mapping{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("empty target field name")
		}

		if f.Rule == nil {
			return nil, fmt.Errorf("missing rule for target field %q", f.Name)
		}

		if _, ok := m.index[f.Name]; ok {
			return nil, fmt.Errorf("duplicate target field %q", f.Name)
		}

		m.index[f.Name] = len(m.fields)
		m.fields = append(m.fields, f)
	}

	return m, nil
}

// Rule returns the rule configured for name.
func (m *Mapping) Rule(name string) (Rule, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}

	return m.fields[i].Rule, true
}

// Fields returns the configured fields in document order.
func (m *Mapping) Fields() []Field {
	return append([]Field{}, m.fields...)
}

// Len returns the number of configured fields.
func (m *Mapping) Len() int {
	return len(m.fields)
}
