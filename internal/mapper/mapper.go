package mapper

import (
	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
)

// Mapper converts inventory records into node entries. A Mapper holds no
// mutable state and may be shared between goroutines.
type Mapper struct {
	defaultUsername string
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithDefaultUsername sets the username used when the mapping does not
// resolve one.
func WithDefaultUsername(username string) Option {
	return func(m *Mapper) {
		m.defaultUsername = username
	}
}

// New creates a mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply converts record using mapping. It returns false when the record has
// no usable hostname; in that case no entry is produced at all.
func (m *Mapper) Apply(
	record *inventory.Record,
	mapping *Mapping,
) (*inventory.NodeEntry, bool) {
	if mapping == nil {
		mapping = &Mapping{}
	}

	hostname, ok := m.hostname(record, mapping)
	if !ok {
		return nil, false
	}

	entry := &inventory.NodeEntry{
		Hostname:   hostname,
		Attributes: map[string]string{},
		Tags:       []string{},
	}

	standard := map[string]*string{
		FieldUsername:    &entry.Username,
		FieldDescription: &entry.Description,
		FieldNodename:    &entry.Nodename,
		FieldOsArch:      &entry.OsArch,
		FieldOsFamily:    &entry.OsFamily,
		FieldOsName:      &entry.OsName,
		FieldOsVersion:   &entry.OsVersion,
	}

	for _, f := range mapping.fields {
		switch f.Name {
		case FieldHostname:
			continue

		case FieldTags:
			entry.Tags = stringSet(Resolve(f.Rule, record).Strings())
			continue
		}

		v, ok := Resolve(f.Rule, record).Text()

		if dst, isStandard := standard[f.Name]; isStandard {
			if ok {
				*dst = v
			}
			continue
		}

		if ok {
			entry.Attributes[f.Name] = v
		}
	}

	if entry.Username == "" && m.defaultUsername != "" {
		entry.Username = m.defaultUsername
	}

	return entry, true
}

func (m *Mapper) hostname(
	record *inventory.Record,
	mapping *Mapping,
) (string, bool) {
	rule, ok := mapping.Rule(FieldHostname)
	if !ok {
		return coerceScalar(record.Certname)
	}

	return Resolve(rule, record).Text()
}
