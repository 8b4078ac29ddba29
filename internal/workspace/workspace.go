// Package workspace is the persistence boundary for report templates and
// their section/subsection tree. The generation pipeline only touches
// storage through the Store interface.
package workspace

import (
	"context"
	"strings"
)

// Template is a report template. FormattingProfile carries the free-form
// style settings (tone, audience, title casing) used to brief the LLM.
type Template struct {
	ID                string
	Name              string
	Description       string
	FormattingProfile map[string]interface{}
}

// Section is an ordered container of subsections. Position is 1-based and
// unique within the template.
type Section struct {
	ID          string
	TemplateID  string
	Title       string
	Position    int
	Subsections []Subsection
}

// Subsection is the unit of generation. Position is 1-based and unique
// within the section.
type Subsection struct {
	ID               string
	SectionID        string
	TemplateID       string
	Title            string
	Position         int
	SectionTitle     string
	SectionPosition  int
	WidgetType       string
	Instructions     string
	Notes            string
	ContentType      string
	Content          string
	DataSourceConfig map[string]interface{}
}

// EligibleForGeneration reports whether the subsection is a generation
// target: it needs instructions, unless it is a chart widget, which can be
// built from its data source configuration alone.
func (s *Subsection) EligibleForGeneration() bool {
	return strings.TrimSpace(s.Instructions) != "" || s.WidgetType == "chart"
}

// VersionInfo identifies a newly persisted subsection version.
type VersionInfo struct {
	VersionID     string
	VersionNumber int
}

// SaveVersionInput is the payload for persisting generated content.
type SaveVersionInput struct {
	SubsectionID      string
	Content           string
	ContentType       string
	GeneratedBy       string
	Title             string
	GenerationContext map[string]interface{}
}

// Store is the storage collaborator consumed by the orchestrator.
type Store interface {
	GetTemplate(ctx context.Context, templateID string) (*Template, error)
	GetSections(ctx context.Context, templateID string, includeContent bool) ([]Section, error)
	GetSection(ctx context.Context, sectionID string) (*Section, error)
	GetSubsection(ctx context.Context, subsectionID string) (*Subsection, error)
	SaveSubsectionVersion(ctx context.Context, in SaveVersionInput) (*VersionInfo, error)

	// Generation presets: the last-used run inputs per template, reused
	// across runs so callers only re-enter what changed.
	GetGenerationPreset(ctx context.Context, templateID string) (map[string]interface{}, error)
	SaveGenerationPreset(ctx context.Context, templateID string, runInputs map[string]interface{}) error
}
