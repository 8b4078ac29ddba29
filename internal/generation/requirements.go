package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alexwday/report-designer/internal/binding"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/validation"
	"github.com/alexwday/report-designer/internal/workspace"
)

// InputUsage records one place a run input is consumed.
type InputUsage struct {
	SubsectionID    string `json:"subsection_id"`
	SectionTitle    string `json:"section_title"`
	SubsectionTitle string `json:"subsection_title"`
	ParameterKey    string `json:"parameter_key"`
}

// RequiredInput is one run input the template needs before generation,
// with every usage site attached.
type RequiredInput struct {
	Key     string       `json:"key"`
	Label   string       `json:"label"`
	Type    string       `json:"type"`
	Options []string     `json:"options,omitempty"`
	UsedBy  []InputUsage `json:"used_by"`
}

// Requirements is the result of scanning a template for generation
// readiness.
type Requirements struct {
	Ready                 bool                     `json:"ready"`
	RequiredInputs        []RequiredInput          `json:"required_inputs"`
	BlockingErrors        []errors.ValidationIssue `json:"blocking_errors"`
	SubsectionsConsidered int                      `json:"subsections_considered"`
	SavedRunInputs        map[string]interface{}   `json:"saved_run_inputs"`
}

// Requirements scans every eligible subsection of the template, resolving
// configurations against empty run inputs to discover which inputs the
// caller must supply. Recoverable missing-input errors become required
// inputs; everything else is a blocking error.
func (o *Orchestrator) Requirements(ctx context.Context, templateID string) (*Requirements, error) {
	savedInputs, err := o.store.GetGenerationPreset(ctx, templateID)
	if err != nil {
		o.log.WithError(err).Warn("failed to load generation preset", map[string]interface{}{"template_id": templateID})
		savedInputs = map[string]interface{}{}
	}

	sections, err := o.store.GetSections(ctx, templateID, true)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return &Requirements{
			BlockingErrors: []errors.ValidationIssue{{
				SectionTitle: "Template",
				Reason:       "No sections found in template",
			}},
			SavedRunInputs: savedInputs,
		}, nil
	}

	scan := &requirementsScan{inputs: make(map[string]*RequiredInput)}

	considered := 0
	var blocking []errors.ValidationIssue
	for _, section := range sections {
		sectionTitle := sectionDisplayTitle(section)
		for i := range section.Subsections {
			sub := &section.Subsections[i]
			if !sub.EligibleForGeneration() {
				continue
			}
			considered++

			resolution := o.validator.ResolveConfig(ctx, sub.DataSourceConfig, map[string]interface{}{}, section.ID)
			if reason, recoverable := resolutionFailure(resolution); reason != "" && !recoverable {
				blocking = append(blocking, validationIssue(sub, sectionTitle, reason))
				continue
			}

			// On a recoverable failure the raw config still carries every
			// binding, including defaulted ones the caller may override.
			config := sub.DataSourceConfig
			if resolution.Valid {
				config = resolution.Resolved
			}
			if failed := o.scanInputs(ctx, scan, config, sub, section.ID, sectionTitle, &blocking); failed {
				continue
			}
		}
	}

	if considered == 0 {
		return &Requirements{
			BlockingErrors: []errors.ValidationIssue{{
				SectionTitle: "Template",
				Reason:       "No eligible subsections found for generation",
			}},
			SavedRunInputs: savedInputs,
		}, nil
	}

	required := scan.sorted()
	return &Requirements{
		Ready:                 len(blocking) == 0 && len(required) == 0,
		RequiredInputs:        required,
		BlockingErrors:        blocking,
		SubsectionsConsidered: considered,
		SavedRunInputs:        savedInputs,
	}, nil
}

// scanInputs walks one subsection's configured inputs, collecting variable
// and period bindings from parameters the methods actually declare. Returns
// true when a registry lookup failed and the subsection should be skipped.
func (o *Orchestrator) scanInputs(ctx context.Context, scan *requirementsScan, config map[string]interface{}, sub *workspace.Subsection, sectionID, sectionTitle string, blocking *[]errors.ValidationIssue) bool {
	for _, input := range validation.ExtractInputs(config) {
		if input.SourceID == "" || input.MethodID == "" {
			continue
		}

		_, method, err := o.registry.MethodDetails(ctx, input.SourceID, input.MethodID)
		if err != nil {
			*blocking = append(*blocking, validationIssue(sub, sectionTitle, registryReason(err)))
			return true
		}

		for _, def := range method.Parameters {
			value, present := input.Parameters[def.Key]
			if !present {
				continue
			}

			for _, name := range binding.Variables(value) {
				label := def.Prompt
				if label == "" {
					label = name
				}
				scan.add(name, label, strings.ToLower(def.Type), def.Options, InputUsage{
					SubsectionID:    sub.ID,
					SectionTitle:    sectionTitle,
					SubsectionTitle: sub.Title,
					ParameterKey:    def.Key,
				})
			}

			if len(binding.PeriodSelectors(value)) == 0 {
				continue
			}
			yearKey, quarterKey := binding.AnchorYearKey, binding.AnchorQuarterKey
			if sectionID != "" {
				yearKey = binding.SectionAnchorYearKey(sectionID)
				quarterKey = binding.SectionAnchorQuarterKey(sectionID)
			}
			usage := InputUsage{
				SubsectionID:    sub.ID,
				SectionTitle:    sectionTitle,
				SubsectionTitle: sub.Title,
				ParameterKey:    def.Key,
			}
			scan.add(yearKey, sectionTitle+": Base fiscal year", "integer", nil, usage)
			scan.add(quarterKey, sectionTitle+": Base fiscal quarter", "enum", binding.FiscalQuarters, usage)
		}
	}
	return false
}

type requirementsScan struct {
	inputs map[string]*RequiredInput
}

func (s *requirementsScan) add(key, label, inputType string, options []string, usage InputUsage) {
	input, ok := s.inputs[key]
	if !ok {
		input = &RequiredInput{Key: key, Label: label, Type: inputType, Options: options}
		s.inputs[key] = input
	}
	input.UsedBy = append(input.UsedBy, usage)
}

func (s *requirementsScan) sorted() []RequiredInput {
	out := make([]RequiredInput, 0, len(s.inputs))
	for _, input := range s.inputs {
		out = append(out, *input)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sectionDisplayTitle(section workspace.Section) string {
	if section.Title != "" {
		return section.Title
	}
	return fmt.Sprintf("Section %d", section.Position)
}

func validationIssue(sub *workspace.Subsection, sectionTitle, reason string) errors.ValidationIssue {
	return errors.ValidationIssue{
		SubsectionID:    sub.ID,
		SubsectionTitle: sub.Title,
		SectionTitle:    sectionTitle,
		Reason:          reason,
	}
}

// resolutionFailure collapses a failed resolution into one reason string
// and reports whether the failure is recoverable by supplying run inputs.
func resolutionFailure(res validation.Resolution) (string, bool) {
	if res.Valid {
		return "", false
	}
	if len(res.Errors) == 0 {
		return "Invalid data source configuration", false
	}
	reason := strings.Join(res.Errors, "; ")
	return reason, missingOnly(res)
}

// missingOnly reports whether every resolution error just names an absent
// run input.
func missingOnly(res validation.Resolution) bool {
	if len(res.Errors) == 0 {
		return false
	}
	for _, err := range res.Errors {
		if !strings.HasPrefix(err, "Missing run input") {
			return false
		}
	}
	return true
}

func registryReason(err error) string {
	if se, ok := err.(*errors.StandardError); ok {
		return se.Message
	}
	return err.Error()
}
