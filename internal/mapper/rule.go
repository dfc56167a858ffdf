package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Rule describes how a target field value is derived from a record. The set
// of rules is closed: *Literal, *Selector and *FirstOf.
type Rule interface {
	fmt.Stringer
	isRule()
}

// Literal is a fixed value, either a single string or a list of strings.
type Literal struct {
	value  string
	values []string
	list   bool
}

// NewLiteral returns a literal holding a single string.
func NewLiteral(value string) *Literal {
	return &Literal{value: value}
}

// NewLiteralList returns a literal holding a list of strings.
func NewLiteralList(values []string) *Literal {
	return &Literal{values: append([]string{}, values...), list: true}
}

// Value returns the literal as a string or a []interface{} of strings.
func (l *Literal) Value() interface{} {
	if !l.list {
		return l.value
	}

	values := make([]interface{}, len(l.values))
	for i, v := range l.values {
		values[i] = v
	}

	return values
}

func (l *Literal) String() string {
	if l.list {
		return fmt.Sprintf("literal%q", l.values)
	}

	return fmt.Sprintf("literal(%q)", l.value)
}

func (*Literal) isRule() {}

type selectorKind int

const (
	selectFacts selectorKind = iota
	selectIdentity
	selectClasses
	selectJSONPath
)

// Selector looks up a value in the record by path. The pseudo paths name and
// certname select the record identity and class selects the class set.
type Selector struct {
	path     string
	def      *Literal
	kind     selectorKind
	segments []string
	expr     jp.Expr
}

// NewSelector compiles path into a selector. def may be nil, in which case a
// path that resolves to nothing stays missing.
func NewSelector(path string, def *Literal) (*Selector, error) {
	s := &Selector{path: path, def: def}

	switch {
	case path == "":
		return nil, fmt.Errorf("empty selector path")

	case path == "name" || path == "certname":
		s.kind = selectIdentity

	case path == "class":
		s.kind = selectClasses

	case strings.HasPrefix(path, "$"):
		x, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
		}
		s.kind = selectJSONPath
		s.expr = x

	default:
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		s.kind = selectFacts
		s.segments = segments
	}

	return s, nil
}

// MustSelector is like NewSelector but panics on an invalid path.
func MustSelector(path string, def *Literal) *Selector {
	s, err := NewSelector(path, def)
	if err != nil {
		panic(err)
	}

	return s
}

// Path returns the selector path as written.
func (s *Selector) Path() string {
	return s.path
}

// Default returns the fallback literal, or nil.
func (s *Selector) Default() *Literal {
	return s.def
}

func (s *Selector) String() string {
	if s.def != nil {
		return fmt.Sprintf("selector(%q, default=%s)", s.path, s.def)
	}

	return fmt.Sprintf("selector(%q)", s.path)
}

func (*Selector) isRule() {}

// splitPath splits a fact path on '/' when present, otherwise on '.'.
func splitPath(path string) ([]string, error) {
	sep := "."
	if strings.Contains(path, "/") {
		sep = "/"
	}

	segments := strings.Split(path, sep)
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf(
				"invalid selector path '%s': empty segment at position %d",
				path,
				i,
			)
		}
	}

	return segments, nil
}

// sequenceIndex reports whether seg is usable as an index into a sequence.
func sequenceIndex(seg string) (int, bool) {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// FirstOf resolves to the first of its rules that is present.
type FirstOf struct {
	rules []Rule
}

// NewFirstOf returns a FirstOf over rules, evaluated in the given order.
func NewFirstOf(rules ...Rule) (*FirstOf, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("firstOf requires at least one rule")
	}

	for i, r := range rules {
		if r == nil {
			return nil, fmt.Errorf("firstOf rule %d is nil", i)
		}
	}

	return &FirstOf{rules: append([]Rule{}, rules...)}, nil
}

// Rules returns the sub-rules in evaluation order.
func (f *FirstOf) Rules() []Rule {
	return append([]Rule{}, f.rules...)
}

func (f *FirstOf) String() string {
	parts := make([]string, len(f.rules))
	for i, r := range f.rules {
		parts[i] = r.String()
	}

	return "firstOf(" + strings.Join(parts, ", ") + ")"
}

func (*FirstOf) isRule() {}
