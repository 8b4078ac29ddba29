// Package validation checks data source configurations against the registry
// schemas of the methods they reference. Validation runs in two modes:
// pre-resolution (bindings permitted, used while collecting which run inputs
// a template still needs) and post-resolution (literals only, immediately
// before generation).
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alexwday/report-designer/internal/binding"
	"github.com/alexwday/report-designer/internal/registry"
)

var chartTypes = []string{"bar", "line"}

// Result is the outcome of a single validation pass. Normalized is always
// populated, even on failure, so callers can log what was actually checked.
type Result struct {
	Valid      bool
	Errors     []string
	Normalized map[string]interface{}
}

// Resolution is the outcome of resolving bindings and re-validating.
type Resolution struct {
	Valid         bool
	Errors        []string
	MissingInputs []string
	Resolved      map[string]interface{}
}

// Validator validates configurations against registry method schemas.
type Validator struct {
	registry registry.Registry
}

func New(reg registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// ValidateConfig checks cfg against the registry. With allowBindings true, a
// variable binding is accepted in any parameter slot without type-checking;
// a period binding is accepted only when its output shape is compatible with
// the declared parameter type.
func (v *Validator) ValidateConfig(ctx context.Context, cfg map[string]interface{}, allowBindings bool) Result {
	if cfg == nil {
		return Result{
			Errors:     []string{"Data source configuration must be an object"},
			Normalized: map[string]interface{}{},
		}
	}

	if errs := structuralErrors(cfg); len(errs) > 0 {
		return Result{Errors: errs, Normalized: cfg}
	}

	var errs []string
	normalized := map[string]interface{}{}

	rawInputs, _ := cfg["inputs"].([]interface{})
	if len(rawInputs) == 0 {
		errs = append(errs, "Data source configuration must include a non-empty 'inputs' array")
	}

	normalizedInputs := make([]interface{}, 0, len(rawInputs))
	for i, raw := range rawInputs {
		input, _ := raw.(map[string]interface{})
		prefix := fmt.Sprintf("inputs[%d]: ", i)
		normalizedInputs = append(normalizedInputs, v.validateInput(ctx, input, prefix, allowBindings, &errs))
	}
	normalized["inputs"] = normalizedInputs

	if deps, present := cfg["dependencies"]; present {
		normalized["dependencies"] = normalizeDependencies(deps, &errs)
	}
	if viz, present := cfg["visualization"]; present {
		normalized["visualization"] = normalizeVisualization(viz, &errs)
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Normalized: normalized}
}

func (v *Validator) validateInput(ctx context.Context, input map[string]interface{}, prefix string, allowBindings bool, errs *[]string) map[string]interface{} {
	sourceID, _ := input["source_id"].(string)
	methodID, _ := input["method_id"].(string)

	params, _ := input["parameters"].(map[string]interface{})
	normalized := map[string]interface{}{
		"source_id":  sourceID,
		"method_id":  methodID,
		"parameters": copyParams(params),
	}

	if sourceID == "" {
		*errs = append(*errs, prefix+"'source_id' is required")
		return normalized
	}
	if methodID == "" {
		*errs = append(*errs, prefix+"'method_id' is required")
		return normalized
	}

	_, method, err := v.registry.MethodDetails(ctx, sourceID, methodID)
	if err != nil {
		*errs = append(*errs, prefix+registryErrorReason(err))
		return normalized
	}

	declared := map[string]registry.ParameterDef{}
	for _, def := range method.Parameters {
		declared[def.Key] = def
	}

	for _, key := range sortedKeys(params) {
		if _, ok := declared[key]; !ok {
			*errs = append(*errs, fmt.Sprintf("%sUnknown parameter '%s' for method '%s'", prefix, key, methodID))
		}
	}

	outParams := normalized["parameters"].(map[string]interface{})
	for _, def := range method.Parameters {
		value, present := params[def.Key]
		if present && isEmptyValue(value) {
			present = false
		}

		if !present {
			if def.Default != nil {
				outParams[def.Key] = def.Default
			} else if def.Required {
				*errs = append(*errs, fmt.Sprintf("%sMissing required parameter '%s'", prefix, def.Key))
			}
			continue
		}

		v.checkParamValue(value, def, prefix, allowBindings, errs)
	}

	return normalized
}

func (v *Validator) checkParamValue(value interface{}, def registry.ParameterDef, prefix string, allowBindings bool, errs *[]string) {
	if allowBindings {
		if _, ok := binding.AsVariable(value); ok {
			return
		}
		if pb, ok := binding.AsPeriod(value); ok {
			if pb.HasCount && pb.Count < 1 {
				*errs = append(*errs, fmt.Sprintf("%sPeriod binding '$count' must be a positive integer", prefix))
				return
			}
			shape, known := binding.SelectorShape(pb.Selector)
			if !known {
				*errs = append(*errs, fmt.Sprintf("%sUnsupported period selector '%s' for parameter '%s'", prefix, pb.Selector, def.Key))
				return
			}
			if !shapeCompatible(shape, def.Type) {
				*errs = append(*errs, fmt.Sprintf("%sPeriod selector '%s' produces %s, but parameter '%s' expects %s", prefix, pb.Selector, shape, def.Key, def.Type))
			}
			return
		}
	} else if binding.IsBinding(value) {
		*errs = append(*errs, fmt.Sprintf("%sParameter '%s' contains an unresolved binding", prefix, def.Key))
		return
	}

	if msg := typeError(value, def); msg != "" {
		*errs = append(*errs, prefix+msg)
	}
}

// shapeCompatible maps a period selector's output shape onto the declared
// parameter types it may fill.
func shapeCompatible(shape, declared string) bool {
	switch shape {
	case "object":
		return declared == "object"
	case "integer":
		return declared == "integer" || declared == "number"
	case "string":
		return declared == "string" || declared == "enum"
	case "array":
		return declared == "array"
	}
	return false
}

func typeError(value interface{}, def registry.ParameterDef) string {
	switch def.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("Parameter '%s' must be a string", def.Key)
		}
	case "enum":
		s, ok := value.(string)
		if !ok || !contains(def.Options, s) {
			return fmt.Sprintf("Parameter '%s' must be one of %s", def.Key, strings.Join(def.Options, ", "))
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Sprintf("Parameter '%s' must be an integer", def.Key)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Sprintf("Parameter '%s' must be a number", def.Key)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("Parameter '%s' must be a boolean", def.Key)
		}
	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Sprintf("Parameter '%s' must be an object", def.Key)
		}
	case "array":
		items, ok := value.([]interface{})
		if !ok {
			return fmt.Sprintf("Parameter '%s' must be an array", def.Key)
		}
		if def.Items != nil {
			for _, item := range items {
				if msg := itemTypeError(item, def); msg != "" {
					return msg
				}
			}
		}
	}
	return ""
}

func itemTypeError(item interface{}, def registry.ParameterDef) string {
	switch def.Items.Type {
	case "enum":
		s, ok := item.(string)
		if !ok || !contains(def.Items.Options, s) {
			return fmt.Sprintf("Parameter '%s' items must be one of %s", def.Key, strings.Join(def.Items.Options, ", "))
		}
	case "string":
		if _, ok := item.(string); !ok {
			return fmt.Sprintf("Parameter '%s' items must be strings", def.Key)
		}
	case "integer":
		if !isInteger(item) {
			return fmt.Sprintf("Parameter '%s' items must be integers", def.Key)
		}
	case "object":
		if _, ok := item.(map[string]interface{}); !ok {
			return fmt.Sprintf("Parameter '%s' items must be objects", def.Key)
		}
	}
	return ""
}

func normalizeDependencies(raw interface{}, errs *[]string) map[string]interface{} {
	deps, ok := raw.(map[string]interface{})
	if !ok {
		*errs = append(*errs, "'dependencies' must be an object")
		return map[string]interface{}{}
	}

	out := map[string]interface{}{}
	for _, key := range []string{"section_ids", "subsection_ids"} {
		value, present := deps[key]
		if !present {
			continue
		}
		items, ok := value.([]interface{})
		if !ok {
			*errs = append(*errs, fmt.Sprintf("'dependencies.%s' must be an array of ids", key))
			continue
		}
		ids := make([]interface{}, 0, len(items))
		seen := map[string]bool{}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				*errs = append(*errs, fmt.Sprintf("'dependencies.%s' must contain string ids", key))
				continue
			}
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			ids = append(ids, s)
		}
		out[key] = ids
	}
	return out
}

func normalizeVisualization(raw interface{}, errs *[]string) map[string]interface{} {
	viz, ok := raw.(map[string]interface{})
	if !ok {
		*errs = append(*errs, "'visualization' must be an object")
		return map[string]interface{}{}
	}

	out := map[string]interface{}{}
	if ct, present := viz["chart_type"]; present {
		s, ok := ct.(string)
		if !ok || !contains(chartTypes, s) {
			*errs = append(*errs, fmt.Sprintf("'visualization.chart_type' must be one of %s", strings.Join(chartTypes, ", ")))
		} else {
			out["chart_type"] = s
		}
	}
	for _, key := range []string{"title", "x_key", "y_key", "series_key", "metric_id"} {
		value, present := viz[key]
		if !present {
			continue
		}
		s, ok := value.(string)
		if !ok {
			*errs = append(*errs, fmt.Sprintf("'visualization.%s' must be a string", key))
			continue
		}
		out[key] = s
	}
	return out
}

// ResolveConfig validates cfg with bindings permitted, substitutes every
// binding from runInputs, then re-validates the literal result. The missing
// input names are reported so callers can prompt for them and retry.
func (v *Validator) ResolveConfig(ctx context.Context, cfg map[string]interface{}, runInputs map[string]interface{}, sectionID string) Resolution {
	pre := v.ValidateConfig(ctx, cfg, true)
	if !pre.Valid {
		return Resolution{Errors: pre.Errors, Resolved: pre.Normalized}
	}

	res := binding.Resolve(pre.Normalized, runInputs, sectionID)
	resolved, _ := res.Value.(map[string]interface{})
	if resolved == nil {
		resolved = pre.Normalized
	}
	if res.HasErrors() {
		return Resolution{
			Errors:        res.Errors,
			MissingInputs: res.Missing,
			Resolved:      resolved,
		}
	}

	post := v.ValidateConfig(ctx, resolved, false)
	return Resolution{
		Valid:    post.Valid,
		Errors:   post.Errors,
		Resolved: post.Normalized,
	}
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, val := range params {
		out[k] = val
	}
	return out
}

// isEmptyValue treats empty strings, arrays, and objects as absent so that
// schema defaults and required checks apply to them.
func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

// registryErrorReason strips the StandardError code wrapper so the message
// reads naturally inside an inputs[N] prefix.
func registryErrorReason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "]: "); i >= 0 {
		return msg[i+3:]
	}
	return msg
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func isInteger(v interface{}) bool {
	switch t := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return t == float64(int64(t))
	case float32:
		return t == float32(int64(t))
	}
	return false
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
