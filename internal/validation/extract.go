package validation

// InputConfig is one entry of a configuration's inputs array, in typed form.
type InputConfig struct {
	SourceID   string
	MethodID   string
	Parameters map[string]interface{}
}

// Dependencies names the sections and subsections whose generated output a
// subsection wants to see in its prompt context.
type Dependencies struct {
	SectionIDs    []string
	SubsectionIDs []string
}

// IsEmpty reports whether no dependencies are declared.
func (d Dependencies) IsEmpty() bool {
	return len(d.SectionIDs) == 0 && len(d.SubsectionIDs) == 0
}

// Visualization carries the optional chart hints of a configuration.
type Visualization struct {
	ChartType string
	Title     string
	XKey      string
	YKey      string
	SeriesKey string
	MetricID  string
}

// ExtractInputs pulls the inputs array out of a (normalized or raw)
// configuration, skipping entries that are not well-formed objects.
func ExtractInputs(cfg map[string]interface{}) []InputConfig {
	raw, ok := cfg["inputs"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]InputConfig, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		in := InputConfig{
			SourceID:   stringField(m, "source_id"),
			MethodID:   stringField(m, "method_id"),
			Parameters: map[string]interface{}{},
		}
		if params, ok := m["parameters"].(map[string]interface{}); ok {
			in.Parameters = params
		}
		out = append(out, in)
	}
	return out
}

// ExtractDependencies pulls the dependency id lists, de-duplicated while
// preserving first-seen order.
func ExtractDependencies(cfg map[string]interface{}) Dependencies {
	deps, ok := cfg["dependencies"].(map[string]interface{})
	if !ok {
		return Dependencies{}
	}
	return Dependencies{
		SectionIDs:    stringList(deps["section_ids"]),
		SubsectionIDs: stringList(deps["subsection_ids"]),
	}
}

// ExtractVisualization pulls the chart hints, or nil when absent.
func ExtractVisualization(cfg map[string]interface{}) *Visualization {
	viz, ok := cfg["visualization"].(map[string]interface{})
	if !ok {
		return nil
	}
	return &Visualization{
		ChartType: stringField(viz, "chart_type"),
		Title:     stringField(viz, "title"),
		XKey:      stringField(viz, "x_key"),
		YKey:      stringField(viz, "y_key"),
		SeriesKey: stringField(viz, "series_key"),
		MetricID:  stringField(viz, "metric_id"),
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
