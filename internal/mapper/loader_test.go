package mapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	yaml := `
hostname:
  path: networking.ip
username:
  path: identity.user
  default: rundeck
osName:
  firstOf:
    - path: os.name
    - path: operatingsystem
    - unknown
tags: [puppet, managed]
extraTags:
  value: [a, b]
role: production
cpus: 8
environment:
  path: $.environment
`

	m, err := Parse([]byte(yaml))
	require.NoError(t, err)
	require.Equal(t, 8, m.Len())

	names := []string{}
	for _, f := range m.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"hostname", "username", "osName", "tags", "extraTags", "role", "cpus", "environment",
	}, names)

	r, ok := m.Rule("hostname")
	require.True(t, ok)
	require.IsType(t, &Selector{}, r)
	assert.Equal(t, "networking.ip", r.(*Selector).Path())
	assert.Nil(t, r.(*Selector).Default())

	r, _ = m.Rule("username")
	require.IsType(t, &Selector{}, r)
	require.NotNil(t, r.(*Selector).Default())
	assert.Equal(t, "rundeck", r.(*Selector).Default().Value())

	r, _ = m.Rule("osName")
	require.IsType(t, &FirstOf{}, r)
	sub := r.(*FirstOf).Rules()
	require.Len(t, sub, 3)
	assert.IsType(t, &Selector{}, sub[0])
	assert.IsType(t, &Selector{}, sub[1])
	assert.Equal(t, `literal("unknown")`, sub[2].String())

	r, _ = m.Rule("tags")
	require.IsType(t, &Literal{}, r)
	assert.Equal(t, []interface{}{"puppet", "managed"}, r.(*Literal).Value())

	r, _ = m.Rule("extraTags")
	require.IsType(t, &Literal{}, r)
	assert.Equal(t, []interface{}{"a", "b"}, r.(*Literal).Value())

	r, _ = m.Rule("cpus")
	assert.Equal(t, "8", r.(*Literal).Value())

	r, _ = m.Rule("environment")
	assert.Equal(t, "$.environment", r.(*Selector).Path())

	_, ok = m.Rule("missing")
	assert.False(t, ok)
}

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(`{"hostname": {"path": "networking.ip"}, "tags": {"path": "class"}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		line int
	}{
		{
			name: "duplicate field",
			yaml: "hostname: a\nusername: b\nhostname: c\n",
			line: 3,
		},
		{
			name: "empty path",
			yaml: "hostname:\n  path: \"\"\n",
			line: 2,
		},
		{
			name: "empty segment",
			yaml: "hostname: x\nshell:\n  path: identity..shell\n",
			line: 3,
		},
		{
			name: "bad jsonpath",
			yaml: "shell:\n  path: \"$.a[\"\n",
			line: 2,
		},
		{
			name: "unknown key",
			yaml: "shell:\n  selector: a.b\n",
			line: 2,
		},
		{
			name: "two kinds",
			yaml: "shell:\n  path: a.b\n  value: c\n",
			line: 2,
		},
		{
			name: "no kind",
			yaml: "shell:\n  default: c\n",
			line: 2,
		},
		{
			name: "default without path",
			yaml: "shell:\n  value: a\n  default: c\n",
			line: 2,
		},
		{
			name: "null rule",
			yaml: "shell: ~\n",
			line: 1,
		},
		{
			name: "nested list",
			yaml: "tags:\n  - a\n  - path: b\n",
			line: 3,
		},
		{
			name: "empty firstOf",
			yaml: "shell:\n  firstOf: []\n",
			line: 2,
		},
		{
			name: "firstOf not a list",
			yaml: "shell:\n  firstOf: a\n",
			line: 2,
		},
		{
			name: "object default",
			yaml: "shell:\n  path: a\n  default:\n    x: y\n",
			line: 4,
		},
		{
			name: "not an object",
			yaml: "- a\n- b\n",
			line: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, tt.line, loadErr.Line)
		})
	}
}

func TestParseInvalidDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.Error(t, err)

	_, err = Parse([]byte("hostname: [unterminated"))
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yml")
	assert.Error(t, err)
}
