package mapper

import (
	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
)

// Resolve evaluates rule against record. Missing data is never an error; it
// is reported as Missing.
func Resolve(rule Rule, record *inventory.Record) Resolution {
	switch r := rule.(type) {
	case *Literal:
		return Present(r.Value())

	case *Selector:
		res := selectValue(r, record)
		if res.IsMissing() && r.def != nil {
			return Present(r.def.Value())
		}
		return res

	case *FirstOf:
		for _, sub := range r.rules {
			if res := Resolve(sub, record); !res.IsMissing() {
				return res
			}
		}
		return Missing
	}

	return Missing
}

func selectValue(s *Selector, record *inventory.Record) Resolution {
	switch s.kind {
	case selectIdentity:
		return Present(record.Certname)

	case selectClasses:
		classes := record.ClassSet()
		if len(classes) == 0 {
			return Missing
		}
		values := make([]interface{}, len(classes))
		for i, c := range classes {
			values[i] = c
		}
		return Present(values)

	case selectJSONPath:
		if record.Facts == nil {
			return Missing
		}
		return jsonPathValue(s, record.Facts)
	}

	return getNestedHelper(s.segments, record.Facts, 0)
}

func jsonPathValue(s *Selector, facts map[string]interface{}) Resolution {
	var matches []interface{}

	for _, v := range s.expr.Get(facts) {
		if v != nil {
			matches = append(matches, v)
		}
	}

	switch len(matches) {
	case 0:
		return Missing
	case 1:
		return Present(matches[0])
	}

	return Present(matches)
}

// getNestedHelper walks path starting at index. It stops with Missing as
// soon as a segment is absent or the value has the wrong shape.
func getNestedHelper(
	path []string,
	v interface{},
	index int,
) Resolution {
	if index >= len(path) {
		return Present(v)
	}

	switch u := v.(type) {
	case map[string]interface{}:
		next, ok := u[path[index]]
		if !ok {
			return Missing
		}
		return getNestedHelper(path, next, index+1)

	case []interface{}:
		n, ok := sequenceIndex(path[index])
		if !ok || n >= len(u) {
			return Missing
		}
		return getNestedHelper(path, u[n], index+1)
	}

	return Missing
}
