package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PositionToLabel renders a 1-based position as its letter label (1 -> A).
func PositionToLabel(position int) string {
	if position < 1 {
		return "?"
	}
	return string(rune('A' + position - 1))
}

// contextEntry is one generated (or previously saved) subsection rendered
// for cross-subsection prompt context.
type contextEntry struct {
	SectionTitle    string
	SubsectionTitle string
	Summary         string
	SubsectionID    string
}

func newContextEntry(sectionTitle, subsectionTitle, content string, summaryLimit int, subsectionID string) contextEntry {
	summary := content
	if summaryLimit > 0 {
		summary = truncate(summary, summaryLimit)
	}
	return contextEntry{
		SectionTitle:    sectionTitle,
		SubsectionTitle: subsectionTitle,
		Summary:         summary,
		SubsectionID:    subsectionID,
	}
}

// buildPriorContext renders already-generated entries for the prompt. The
// window keeps the most recent maxItems entries, most recent first, so the
// content closest to the current subsection dominates. maxItems <= 0 keeps
// everything.
func buildPriorContext(entries []contextEntry, maxItems int) string {
	if len(entries) == 0 {
		return ""
	}

	lines := []string{"## Previously Generated Content (for coherence)"}
	count := len(entries)
	if maxItems > 0 && count > maxItems {
		count = maxItems
	}
	for i := 0; i < count; i++ {
		entry := entries[len(entries)-1-i]
		lines = append(lines, fmt.Sprintf("\n### %s - %s", entry.SectionTitle, entry.SubsectionTitle))
		lines = append(lines, entry.Summary)
	}
	return strings.Join(lines, "\n")
}

// summarizeContent keeps chart JSON out of prompt context by replacing it
// with a one-line description.
func summarizeContent(content, contentType string) string {
	if contentType != "json" {
		return content
	}
	var doc ChartDocument
	if err := json.Unmarshal([]byte(content), &doc); err != nil || doc.Kind != "chart" {
		return content
	}
	return summarizeChart(doc)
}

// applyTitleCase applies the template's configured title casing mode.
func applyTitleCase(value, mode string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	switch mode {
	case "upper":
		return strings.ToUpper(trimmed)
	case "sentence":
		return strings.ToUpper(trimmed[:1]) + trimmed[1:]
	case "title":
		return strings.Title(trimmed) //nolint:staticcheck // ASCII report titles only
	}
	return trimmed
}

// buildFormattingBrief turns the template formatting profile into concise
// style guidance for the model.
func buildFormattingBrief(profile map[string]interface{}) string {
	if len(profile) == 0 {
		return ""
	}
	return strings.Join([]string{
		"## Formatting Guidance",
		"- Keep writing style compatible with font family: " + profileString(profile, "font_family", "default sans-serif"),
		fmt.Sprintf("- Aim for readability with roughly line-height %v", profileValue(profile, "line_height", 1.6)),
		"- Section title case mode: " + profileString(profile, "section_title_case", "title"),
		"- Subsection title case mode: " + profileString(profile, "subsection_title_case", "title"),
		"- Accent color reference: " + profileString(profile, "accent_color", "#2563EB"),
		"- Body color reference: " + profileString(profile, "body_color", "#1F2937"),
	}, "\n")
}

func profileString(profile map[string]interface{}, key, fallback string) string {
	if s, ok := profile[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func profileValue(profile map[string]interface{}, key string, fallback interface{}) interface{} {
	if v, ok := profile[key]; ok && v != nil {
		return v
	}
	return fallback
}

// promptInput carries everything the prompt builder needs for one
// subsection.
type promptInput struct {
	TemplateName      string
	SectionTitle      string
	Label             string
	SubsectionTitle   string
	Instructions      string
	Notes             string
	PriorContext      string
	DataContext       string
	FormattingProfile map[string]interface{}
}

func buildSystemPrompt(in promptInput) string {
	titleContext := ""
	if in.SubsectionTitle != "" {
		titleContext = fmt.Sprintf(" (%s)", in.SubsectionTitle)
	}

	return fmt.Sprintf(`You are generating content for a financial report.

## Report: %s
## Section: %s
## Subsection: %s%s

%s

## Available Data
You can reference data from:
- Canadian Big 6 bank earnings call transcripts (RY, TD, BMO, BNS, CM, NA)
- Financial metrics (revenue, EPS, ROE, CET1 ratio, etc.)
- Stock price performance

%s

## Your Task
Generate the content based on the instructions provided. The content should be:
- Professional and suitable for a financial report
- Well-structured with appropriate markdown formatting
- Consistent with any previously generated content
- Focused and concise
- Use subsection titles that align with the configured casing guidance when possible
- Not include a top-level heading that duplicates the subsection title (the renderer already prints subsection titles)
- Use valid nested markdown lists when a numbered issue contains sub-points (do not flatten sub-points into the main numbering)
- For nested bullets under numbered items, indent bullet lines with 4 spaces

## Output Format
Return a JSON object with two fields:
1. "title": A short descriptive title for this subsection (3-8 words, or null if a title doesn't make sense)
2. "content": The content in markdown format

Example:
{"title": "Q4 2024 Revenue Analysis", "content": "## Revenue Performance\n\nThe bank reported..."}`,
		in.TemplateName, in.SectionTitle, in.Label, titleContext,
		in.PriorContext, buildFormattingBrief(in.FormattingProfile))
}

func buildUserPrompt(in promptInput) string {
	var b strings.Builder
	b.WriteString("## Instructions\n")
	b.WriteString(in.Instructions)

	if in.Notes != "" {
		b.WriteString("\n\n## Additional Notes\n")
		b.WriteString(in.Notes)
	}
	if in.DataContext != "" {
		b.WriteString("\n\n## Relevant Data\n")
		b.WriteString(in.DataContext)
	}
	return b.String()
}
