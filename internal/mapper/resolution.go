package mapper

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Resolution is the outcome of resolving a rule: either a present value or
// missing. The zero value is missing.
type Resolution struct {
	value   interface{}
	present bool
}

// Missing is the resolution of a rule that found nothing.
var Missing = Resolution{}

// Present wraps v. A nil value is missing.
func Present(v interface{}) Resolution {
	if v == nil {
		return Missing
	}

	return Resolution{value: v, present: true}
}

// IsMissing reports whether the resolution found nothing.
func (r Resolution) IsMissing() bool {
	return !r.present
}

// Value returns the resolved value in its native type.
func (r Resolution) Value() (interface{}, bool) {
	return r.value, r.present
}

// Text coerces the resolved value into a single non-empty string. Objects
// and sequences cannot be flattened into one value and report false.
func (r Resolution) Text() (string, bool) {
	if !r.present {
		return "", false
	}

	return coerceScalar(r.value)
}

// Strings flattens the resolved value into its non-empty string members.
// Nested sequences are flattened, objects are dropped.
func (r Resolution) Strings() []string {
	if !r.present {
		return nil
	}

	var out []string
	flatten(r.value, &out)

	return out
}

func coerceScalar(v interface{}) (string, bool) {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}, []string:
		return "", false
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	return s, true
}

func flatten(v interface{}, out *[]string) {
	switch u := v.(type) {
	case nil, map[string]interface{}:
		return

	case []interface{}:
		for _, e := range u {
			flatten(e, out)
		}

	case []string:
		for _, e := range u {
			flatten(e, out)
		}

	default:
		if s, ok := coerceScalar(u); ok {
			*out = append(*out, s)
		}
	}
}

// stringSet sorts values and removes duplicates.
func stringSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	set := make([]string, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		set = append(set, v)
	}

	sort.Strings(set)

	return set
}
