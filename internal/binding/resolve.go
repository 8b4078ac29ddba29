package binding

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution is the outcome of substituting bindings into a configuration
// value. Missing lists run input names that were referenced but not supplied;
// those are recoverable by prompting the caller. Every problem, recoverable
// or not, also appears in Errors in encounter order.
type Resolution struct {
	Value   interface{}
	Missing []string
	Errors  []string
}

// HasErrors reports whether any binding failed to resolve.
func (r Resolution) HasErrors() bool {
	return len(r.Errors) > 0
}

// MissingOnly reports whether every error is a recoverable missing run
// input, i.e. supplying more inputs would make resolution succeed.
func (r Resolution) MissingOnly() bool {
	if len(r.Errors) == 0 {
		return true
	}
	for _, e := range r.Errors {
		if !strings.HasPrefix(e, "Missing run input") {
			return false
		}
	}
	return true
}

type resolver struct {
	runInputs map[string]interface{}
	sectionID string

	anchor       Period
	anchorOK     bool
	anchorTried  bool
	anchorErrors []string

	missing map[string]bool
	errors  []string
	errSeen map[string]bool
}

// Resolve substitutes every variable and period binding in value using the
// supplied run inputs. Period bindings resolve against the anchor period,
// read from period_fiscal_year / period_fiscal_quarter or their
// section-scoped overrides when sectionID is non-empty.
func Resolve(value interface{}, runInputs map[string]interface{}, sectionID string) Resolution {
	r := &resolver{
		runInputs: runInputs,
		sectionID: sectionID,
		missing:   map[string]bool{},
		errSeen:   map[string]bool{},
	}
	out := r.walk(value)

	missing := make([]string, 0, len(r.missing))
	for name := range r.missing {
		missing = append(missing, name)
	}
	sort.Strings(missing)

	return Resolution{Value: out, Missing: missing, Errors: r.errors}
}

func (r *resolver) addError(msg string) {
	if r.errSeen[msg] {
		return
	}
	r.errSeen[msg] = true
	r.errors = append(r.errors, msg)
}

func (r *resolver) addMissing(name string) {
	r.missing[name] = true
	r.addError(fmt.Sprintf("Missing run input '%s'", name))
}

func (r *resolver) walk(v interface{}) interface{} {
	if vb, ok := AsVariable(v); ok {
		if supplied, ok := r.runInputs[vb.Name]; ok {
			return supplied
		}
		if vb.HasDefault {
			return vb.Default
		}
		// Left unresolved so callers can report exactly which inputs
		// are still needed.
		r.addMissing(vb.Name)
		return v
	}

	if pb, ok := AsPeriod(v); ok {
		if !r.resolveAnchor() {
			return v
		}
		resolved, err := resolveSelector(pb, r.anchor)
		if err != nil {
			r.addError(capitalize(err.Error()))
			return v
		}
		return resolved
	}

	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = r.walk(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = r.walk(item)
		}
		return out
	default:
		return v
	}
}

// resolveAnchor reads the anchor period from the run inputs once, preferring
// the section-scoped keys. Missing anchor keys are recoverable; a supplied
// but malformed anchor is a hard error.
func (r *resolver) resolveAnchor() bool {
	if r.anchorTried {
		for _, e := range r.anchorErrors {
			r.addError(e)
		}
		return r.anchorOK
	}
	r.anchorTried = true

	yearKey, rawYear, yearFound := r.anchorInput(AnchorYearKey, SectionAnchorYearKey)
	quarterKey, rawQuarter, quarterFound := r.anchorInput(AnchorQuarterKey, SectionAnchorQuarterKey)

	ok := true
	if !yearFound {
		r.addMissingAnchor(AnchorYearKey, SectionAnchorYearKey)
		ok = false
	} else if year, valid := NormalizeYear(rawYear); valid {
		r.anchor.FiscalYear = year
	} else {
		msg := fmt.Sprintf("Run input '%s' must be an integer", yearKey)
		r.anchorErrors = append(r.anchorErrors, msg)
		r.addError(msg)
		ok = false
	}

	if !quarterFound {
		r.addMissingAnchor(AnchorQuarterKey, SectionAnchorQuarterKey)
		ok = false
	} else if quarter, valid := NormalizeQuarter(rawQuarter); valid {
		r.anchor.FiscalQuarter = quarter
	} else {
		msg := fmt.Sprintf("Run input '%s' must be one of %s", quarterKey, strings.Join(FiscalQuarters, ", "))
		r.anchorErrors = append(r.anchorErrors, msg)
		r.addError(msg)
		ok = false
	}

	r.anchorOK = ok
	return ok
}

// addMissingAnchor records every candidate key for an absent anchor, so the
// caller can satisfy it either globally or per section.
func (r *resolver) addMissingAnchor(baseKey string, scoped func(string) string) {
	if r.sectionID != "" {
		r.addMissing(scoped(r.sectionID))
	}
	r.addMissing(baseKey)
}

func (r *resolver) anchorInput(baseKey string, scoped func(string) string) (key string, value interface{}, found bool) {
	if r.sectionID != "" {
		k := scoped(r.sectionID)
		if v, ok := r.runInputs[k]; ok {
			return k, v, true
		}
	}
	if v, ok := r.runInputs[baseKey]; ok {
		return baseKey, v, true
	}
	return baseKey, nil, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
