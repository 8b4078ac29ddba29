// Package binding implements the placeholder syntax embedded in data source
// configurations. A configuration value is plain JSON except for two marker
// objects: {"$var": name} which defers to a run input supplied at generation
// time, and {"$period": selector} which resolves against the report's fiscal
// anchor period. Everything else passes through untouched.
package binding

import (
	"sort"
	"strconv"
	"strings"
)

const (
	varKey     = "$var"
	defaultKey = "$default"
	periodKey  = "$period"
	countKey   = "$count"
)

// VariableBinding is a reference to a named run input. When the input is
// absent and Default is set, the default value is substituted instead.
type VariableBinding struct {
	Name       string
	Default    interface{}
	HasDefault bool
}

// PeriodBinding selects one or more fiscal periods relative to the anchor.
type PeriodBinding struct {
	Selector string
	Count    int
	HasCount bool
}

// AsVariable reports whether v is a variable binding object.
func AsVariable(v interface{}) (VariableBinding, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return VariableBinding{}, false
	}
	raw, ok := m[varKey]
	if !ok {
		return VariableBinding{}, false
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return VariableBinding{}, false
	}
	b := VariableBinding{Name: name}
	if d, ok := m[defaultKey]; ok {
		b.Default = d
		b.HasDefault = true
	}
	return b, true
}

// AsPeriod reports whether v is a period binding object. A malformed $count
// is normalized to -1 so validation and resolution both reject it.
func AsPeriod(v interface{}) (PeriodBinding, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return PeriodBinding{}, false
	}
	raw, ok := m[periodKey]
	if !ok {
		return PeriodBinding{}, false
	}
	sel, ok := raw.(string)
	if !ok || strings.TrimSpace(sel) == "" {
		return PeriodBinding{}, false
	}
	b := PeriodBinding{Selector: strings.TrimSpace(sel)}
	if c, ok := m[countKey]; ok {
		b.HasCount = true
		if n, ok := coerceInt(c); ok {
			b.Count = n
		} else {
			b.Count = -1
		}
	}
	return b, true
}

// IsBinding reports whether v is either binding form.
func IsBinding(v interface{}) bool {
	if _, ok := AsVariable(v); ok {
		return true
	}
	_, ok := AsPeriod(v)
	return ok
}

// Variables returns the distinct variable names bound anywhere inside value,
// in first-appearance order. Names with a $default are included: they are
// still inputs the caller may supply.
func Variables(value interface{}) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(v interface{})
	walk = func(v interface{}) {
		if vb, ok := AsVariable(v); ok {
			if !seen[vb.Name] {
				seen[vb.Name] = true
				names = append(names, vb.Name)
			}
			return
		}
		switch t := v.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(value)
	return names
}

// PeriodSelectors returns the distinct period selectors bound anywhere inside
// value, in first-appearance order.
func PeriodSelectors(value interface{}) []string {
	var selectors []string
	seen := map[string]bool{}
	var walk func(v interface{})
	walk = func(v interface{}) {
		if pb, ok := AsPeriod(v); ok {
			if !seen[pb.Selector] {
				seen[pb.Selector] = true
				selectors = append(selectors, pb.Selector)
			}
			return
		}
		switch t := v.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(value)
	return selectors
}

// coerceInt converts JSON-ish scalar representations of an integer. Floats
// are accepted only when they carry no fractional part, since JSON decoding
// turns every number into float64.
func coerceInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	case float32:
		if t == float32(int(t)) {
			return int(t), true
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil {
			return n, true
		}
	}
	return 0, false
}
