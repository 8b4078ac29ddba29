// Package generation orchestrates report content generation: it validates
// and resolves subsection data source configurations, orders work by
// declared dependencies, fetches retriever data, synthesizes content
// through the LLM, and persists the results as new subsection versions.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexwday/report-designer/internal/common/config"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/common/metrics"
	"github.com/alexwday/report-designer/internal/common/observability"
	"github.com/alexwday/report-designer/internal/depgraph"
	"github.com/alexwday/report-designer/internal/llm"
	"github.com/alexwday/report-designer/internal/registry"
	"github.com/alexwday/report-designer/internal/retrievers"
	"github.com/alexwday/report-designer/internal/validation"
	"github.com/alexwday/report-designer/internal/workspace"
)

// BatchListener observes finished batch jobs. Listener failures are logged
// and never affect the job outcome.
type BatchListener interface {
	BatchCompleted(ctx context.Context, snapshot JobSnapshot) error
}

// Orchestrator coordinates the full generation pipeline.
type Orchestrator struct {
	store      workspace.Store
	registry   registry.Registry
	validator  *validation.Validator
	retrievers retrievers.Service
	llm        llm.Completer
	jobs       JobStore
	obs        *observability.Observability
	cfg        config.GenerationConfig
	log        logger.Logger
	listener   BatchListener
}

// SetBatchListener registers a completion listener for batch jobs.
func (o *Orchestrator) SetBatchListener(l BatchListener) {
	o.listener = l
}

func NewOrchestrator(
	store workspace.Store,
	reg registry.Registry,
	ret retrievers.Service,
	completer llm.Completer,
	jobs JobStore,
	obs *observability.Observability,
	cfg config.GenerationConfig,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		registry:   reg,
		validator:  validation.New(reg),
		retrievers: ret,
		llm:        completer,
		jobs:       jobs,
		obs:        obs,
		cfg:        cfg,
		log:        log,
	}
}

// GenerateResult reports a persisted single-subsection generation.
type GenerateResult struct {
	SubsectionID  string `json:"subsection_id"`
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
}

// SectionResult reports a completed section-wide generation.
type SectionResult struct {
	SectionID string           `json:"section_id"`
	Generated []GenerateResult `json:"generated_subsections"`
}

// BatchStart identifies a launched batch job.
type BatchStart struct {
	JobID string `json:"job_id"`
	Total int    `json:"total_subsections"`
}

// GenerateSubsection generates and persists content for one subsection,
// resolving its configuration against the template's saved run inputs.
func (o *Orchestrator) GenerateSubsection(ctx context.Context, subsectionID string) (*GenerateResult, error) {
	ctx, span := o.startSpan(ctx, "generation.subsection")
	defer span()

	sub, err := o.store.GetSubsection(ctx, subsectionID)
	if err != nil {
		return nil, err
	}
	if !sub.EligibleForGeneration() {
		return nil, errors.NewValidationError([]errors.ValidationIssue{
			validationIssue(sub, sub.SectionTitle, "Subsection has no instructions. Add instructions before generating content."),
		})
	}

	runInputs, err := o.store.GetGenerationPreset(ctx, sub.TemplateID)
	if err != nil {
		o.log.WithError(err).Warn("failed to load generation preset", map[string]interface{}{"template_id": sub.TemplateID})
		runInputs = map[string]interface{}{}
	}

	resolution := o.validator.ResolveConfig(ctx, sub.DataSourceConfig, runInputs, sub.SectionID)
	if !resolution.Valid {
		return nil, errors.NewValidationError([]errors.ValidationIssue{
			validationIssue(sub, sub.SectionTitle, resolutionReason(resolution)),
		})
	}

	tpl, err := o.store.GetTemplate(ctx, sub.TemplateID)
	if err != nil {
		return nil, err
	}
	sections, err := o.store.GetSections(ctx, sub.TemplateID, true)
	if err != nil {
		return nil, err
	}
	index := depgraph.NewIndex(sections)
	dependencyIDs := index.ExpandDependencies(sub.ID, validation.ExtractDependencies(resolution.Resolved))

	cache := map[string]*contextEntry{}
	priorContext := o.dependencyContext(ctx, dependencyIDs, nil, cache)

	outcome, err := o.generateContent(ctx, tpl, sub, resolution.Resolved, priorContext)
	if err != nil {
		return nil, err
	}

	version, err := o.saveGenerated(ctx, sub, outcome, map[string]interface{}{
		"single_subsection_generate":  true,
		"resolved_data_source_config": resolution.Resolved,
		"dependency_subsection_ids":   dependencyIDs,
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		SubsectionID:  sub.ID,
		VersionID:     version.VersionID,
		VersionNumber: version.VersionNumber,
	}, nil
}

// GenerateSection generates every eligible subsection in one section,
// in dependency order, with all-or-nothing up-front validation.
func (o *Orchestrator) GenerateSection(ctx context.Context, sectionID string) (*SectionResult, error) {
	ctx, span := o.startSpan(ctx, "generation.section")
	defer span()

	section, err := o.store.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	sectionTitle := sectionDisplayTitle(*section)

	runInputs, err := o.store.GetGenerationPreset(ctx, section.TemplateID)
	if err != nil {
		o.log.WithError(err).Warn("failed to load generation preset", map[string]interface{}{"template_id": section.TemplateID})
		runInputs = map[string]interface{}{}
	}

	sections, err := o.store.GetSections(ctx, section.TemplateID, true)
	if err != nil {
		return nil, err
	}
	index := depgraph.NewIndex(sections)

	type target struct {
		sub            *workspace.Subsection
		resolvedConfig map[string]interface{}
		dependencyIDs  []string
	}

	var targets []*target
	var issues []errors.ValidationIssue
	for i := range section.Subsections {
		sub := &section.Subsections[i]
		if !sub.EligibleForGeneration() {
			continue
		}

		resolution := o.validator.ResolveConfig(ctx, sub.DataSourceConfig, runInputs, sectionID)
		if !resolution.Valid {
			issues = append(issues, validationIssue(sub, sectionTitle, resolutionReason(resolution)))
			continue
		}

		targets = append(targets, &target{
			sub:            sub,
			resolvedConfig: resolution.Resolved,
			dependencyIDs:  index.ExpandDependencies(sub.ID, validation.ExtractDependencies(resolution.Resolved)),
		})
	}

	if len(issues) > 0 {
		return nil, errors.NewValidationError(issues)
	}
	if len(targets) == 0 {
		return nil, errors.NewValidationError([]errors.ValidationIssue{{
			SectionTitle: sectionTitle,
			Reason:       "No eligible subsections found in this section",
		}})
	}

	ids := make([]string, len(targets))
	dependsOn := make(map[string][]string, len(targets))
	byID := make(map[string]*target, len(targets))
	for i, t := range targets {
		ids[i] = t.sub.ID
		dependsOn[t.sub.ID] = t.dependencyIDs
		byID[t.sub.ID] = t
	}
	ordered, err := index.TopologicalOrder(ids, dependsOn)
	if err != nil {
		return nil, err
	}

	tpl, err := o.store.GetTemplate(ctx, section.TemplateID)
	if err != nil {
		return nil, err
	}

	var (
		generated []GenerateResult
		entries   []contextEntry
		byEntry   = map[string]*contextEntry{}
		cache     = map[string]*contextEntry{}
	)
	for i, id := range ordered {
		t := byID[id]

		priorContext := o.dependencyContext(ctx, t.dependencyIDs, byEntry, cache)
		if priorContext == "" {
			priorContext = buildPriorContext(entries, o.contextWindow())
		}

		outcome, err := o.generateContent(ctx, tpl, t.sub, t.resolvedConfig, priorContext)
		if err != nil {
			return nil, err
		}

		version, err := o.saveGenerated(ctx, t.sub, outcome, map[string]interface{}{
			"section_generate":            true,
			"generation_index":            i,
			"resolved_data_source_config": t.resolvedConfig,
			"dependency_subsection_ids":   t.dependencyIDs,
		})
		if err != nil {
			return nil, err
		}

		entry := o.contextEntryFor(t.sub, sectionTitle, outcome)
		entries = append(entries, entry)
		byEntry[t.sub.ID] = &entries[len(entries)-1]
		generated = append(generated, GenerateResult{
			SubsectionID:  t.sub.ID,
			VersionID:     version.VersionID,
			VersionNumber: version.VersionNumber,
		})
	}

	return &SectionResult{SectionID: sectionID, Generated: generated}, nil
}

// StartBatch validates every eligible subsection of the template, merges
// the provided run inputs over the saved preset, orders the work, and
// launches a background job. Validation is all-or-nothing: any failing
// subsection aborts the launch.
func (o *Orchestrator) StartBatch(ctx context.Context, templateID string, runInputs map[string]interface{}) (*BatchStart, error) {
	sections, err := o.store.GetSections(ctx, templateID, true)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, errors.NewTemplateNotFoundError(templateID)
	}

	preset, err := o.store.GetGenerationPreset(ctx, templateID)
	if err != nil {
		o.log.WithError(err).Warn("failed to load generation preset", map[string]interface{}{"template_id": templateID})
		preset = map[string]interface{}{}
	}

	// Caller-provided inputs win over the saved preset.
	merged := make(map[string]interface{}, len(preset)+len(runInputs))
	for k, v := range preset {
		merged[k] = v
	}
	for k, v := range runInputs {
		merged[k] = v
	}

	index := depgraph.NewIndex(sections)
	job := &Job{
		ID:         uuid.New().String(),
		TemplateID: templateID,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
	}

	var issues []errors.ValidationIssue
	for _, section := range sections {
		sectionTitle := sectionDisplayTitle(section)
		for i := range section.Subsections {
			sub := &section.Subsections[i]
			if !sub.EligibleForGeneration() {
				continue
			}

			resolution := o.validator.ResolveConfig(ctx, sub.DataSourceConfig, merged, section.ID)
			if !resolution.Valid {
				issues = append(issues, validationIssue(sub, sectionTitle, resolutionReason(resolution)))
				continue
			}

			job.Items = append(job.Items, &ItemProgress{
				SubsectionID:   sub.ID,
				Title:          sub.Title,
				Position:       sub.Position,
				SectionTitle:   sectionTitle,
				WidgetType:     sub.WidgetType,
				Status:         StatusPending,
				resolvedConfig: resolution.Resolved,
				dependencyIDs:  index.ExpandDependencies(sub.ID, validation.ExtractDependencies(resolution.Resolved)),
			})
		}
	}

	if len(issues) > 0 {
		return nil, errors.NewValidationError(issues)
	}
	if len(job.Items) == 0 {
		return nil, errors.NewValidationError([]errors.ValidationIssue{{
			SectionTitle: "Template",
			Reason:       "No eligible subsections found",
		}})
	}

	ids := make([]string, len(job.Items))
	dependsOn := make(map[string][]string, len(job.Items))
	itemByID := make(map[string]*ItemProgress, len(job.Items))
	for i, item := range job.Items {
		ids[i] = item.SubsectionID
		dependsOn[item.SubsectionID] = item.dependencyIDs
		itemByID[item.SubsectionID] = item
	}
	ordered, err := index.TopologicalOrder(ids, dependsOn)
	if err != nil {
		return nil, err
	}
	orderedItems := make([]*ItemProgress, len(ordered))
	for i, id := range ordered {
		orderedItems[i] = itemByID[id]
	}
	job.Items = orderedItems

	// Persist the merged inputs for future runs. Best effort; a failed
	// save never blocks generation.
	if err := o.store.SaveGenerationPreset(ctx, templateID, merged); err != nil {
		o.log.WithError(err).Warn("failed to save generation preset", map[string]interface{}{"template_id": templateID})
	}

	o.jobs.Put(job)
	o.evictStaleJobs()
	go o.runBatch(context.WithoutCancel(ctx), job)

	return &BatchStart{JobID: job.ID, Total: len(job.Items)}, nil
}

// JobStatus returns a snapshot of a batch job.
func (o *Orchestrator) JobStatus(jobID string) (*JobSnapshot, error) {
	job, ok := o.jobs.Get(jobID)
	if !ok {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	snapshot := job.Snapshot()
	return &snapshot, nil
}

// runBatch executes the job sequentially. One failed item is recorded and
// skipped; the batch itself still completes.
func (o *Orchestrator) runBatch(ctx context.Context, job *Job) {
	ctx, span := o.startSpan(ctx, "generation.batch")
	defer span()

	metrics.BatchJobsActive.Inc()
	defer metrics.BatchJobsActive.Dec()

	job.markRunning()

	tpl, err := o.store.GetTemplate(ctx, job.TemplateID)
	if err != nil {
		job.finish(err)
		o.recordBatch(ctx, "failed")
		return
	}

	var (
		entries []contextEntry
		byEntry = map[string]*contextEntry{}
		cache   = map[string]*contextEntry{}
	)
	for i, item := range job.Items {
		job.startItem(i)

		err := func() (itemErr error) {
			defer func() {
				if r := recover(); r != nil {
					itemErr = fmt.Errorf("generation panicked: %v", r)
				}
			}()

			sub, err := o.store.GetSubsection(ctx, item.SubsectionID)
			if err != nil {
				return err
			}

			priorContext := o.dependencyContext(ctx, item.dependencyIDs, byEntry, cache)
			if priorContext == "" {
				priorContext = buildPriorContext(entries, o.contextWindow())
			}

			outcome, err := o.generateContent(ctx, tpl, sub, item.resolvedConfig, priorContext)
			if err != nil {
				return err
			}

			if _, err := o.saveGenerated(ctx, sub, outcome, map[string]interface{}{
				"batch_job_id":                job.ID,
				"generation_index":            i,
				"resolved_data_source_config": item.resolvedConfig,
				"dependency_subsection_ids":   item.dependencyIDs,
			}); err != nil {
				return err
			}

			entry := o.contextEntryFor(sub, item.SectionTitle, outcome)
			entries = append(entries, entry)
			byEntry[sub.ID] = &entries[len(entries)-1]
			return nil
		}()

		job.finishItem(i, err)
		if err != nil {
			o.log.WithError(err).Error("subsection generation failed", map[string]interface{}{
				"job_id":        job.ID,
				"subsection_id": item.SubsectionID,
			})
		}
	}

	job.finish(nil)
	o.recordBatch(ctx, "completed")

	if o.listener != nil {
		if err := o.listener.BatchCompleted(ctx, job.Snapshot()); err != nil {
			o.log.WithError(err).Warn("batch completion listener failed", map[string]interface{}{"job_id": job.ID})
		}
	}
}

// outcome is generated content before persistence.
type outcome struct {
	Content        string
	ContentType    string
	GeneratedTitle string
}

// generateContent produces content for one subsection: chart widgets are
// built from retriever data, everything else goes through the LLM.
func (o *Orchestrator) generateContent(ctx context.Context, tpl *workspace.Template, sub *workspace.Subsection, resolved map[string]interface{}, priorContext string) (*outcome, error) {
	start := time.Now()
	widget := sub.WidgetType
	if widget == "" {
		widget = "text"
	}

	out, err := o.generateContentInner(ctx, tpl, sub, resolved, priorContext)
	status := "completed"
	if err != nil {
		status = "failed"
		metrics.SubsectionsFailed.WithLabelValues(widget, string(errors.CodeOf(err))).Inc()
	} else {
		metrics.SubsectionsGenerated.WithLabelValues(widget).Inc()
	}
	metrics.SubsectionDuration.WithLabelValues(widget).Observe(time.Since(start).Seconds())
	if o.obs != nil {
		o.obs.RecordSubsection(ctx, status)
		o.obs.RecordSubsectionDuration(ctx, time.Since(start), status)
	}
	return out, err
}

func (o *Orchestrator) generateContentInner(ctx context.Context, tpl *workspace.Template, sub *workspace.Subsection, resolved map[string]interface{}, priorContext string) (*outcome, error) {
	if sub.WidgetType == "chart" {
		viz := validation.Visualization{}
		if v := validation.ExtractVisualization(resolved); v != nil {
			viz = *v
		}
		groups := o.fetchGroups(ctx, validation.ExtractInputs(resolved))
		content, title, err := BuildChartContent(groups, viz, sub.SectionTitle, sub.Title)
		if err != nil {
			return nil, err
		}
		return &outcome{Content: content, ContentType: "json", GeneratedTitle: title}, nil
	}

	dataContext := o.fetchDataContext(ctx, resolved)
	if dataContext == "" && needsFallbackData(sub.Instructions) {
		dataContext = o.keywordDataContext(ctx, sub.Instructions)
	}

	in := promptInput{
		TemplateName:      tpl.Name,
		SectionTitle:      sub.SectionTitle,
		Label:             PositionToLabel(sub.Position),
		SubsectionTitle:   sub.Title,
		Instructions:      sub.Instructions,
		Notes:             sub.Notes,
		PriorContext:      priorContext,
		DataContext:       dataContext,
		FormattingProfile: tpl.FormattingProfile,
	}

	env, err := o.llm.Complete(ctx, buildSystemPrompt(in), buildUserPrompt(in))
	if err != nil {
		return nil, err
	}

	title := env.Title
	if title != "" {
		title = applyTitleCase(title, profileString(tpl.FormattingProfile, "subsection_title_case", ""))
	}
	return &outcome{Content: env.Content, ContentType: "markdown", GeneratedTitle: title}, nil
}

// saveGenerated persists the outcome as a new version. The generated title
// only sticks when the subsection has none of its own.
func (o *Orchestrator) saveGenerated(ctx context.Context, sub *workspace.Subsection, out *outcome, genContext map[string]interface{}) (*workspace.VersionInfo, error) {
	title := ""
	if sub.Title == "" {
		title = out.GeneratedTitle
	}
	return o.store.SaveSubsectionVersion(ctx, workspace.SaveVersionInput{
		SubsectionID:      sub.ID,
		Content:           out.Content,
		ContentType:       out.ContentType,
		GeneratedBy:       "agent",
		Title:             title,
		GenerationContext: genContext,
	})
}

// contextEntryFor formats one generated outcome for prompt context.
func (o *Orchestrator) contextEntryFor(sub *workspace.Subsection, sectionTitle string, out *outcome) contextEntry {
	display := sub.Title
	if display == "" {
		display = out.GeneratedTitle
	}
	if display == "" {
		display = "Subsection " + PositionToLabel(sub.Position)
	}
	summary := summarizeContent(out.Content, out.ContentType)
	return newContextEntry(sectionTitle, display, summary, o.cfg.SummaryLimit, sub.ID)
}

// dependencyContext builds prompt context from explicitly declared
// dependencies. Fresh in-run output wins; otherwise the dependency's last
// saved content is loaded and cached. Returns "" when nothing is declared
// or resolvable, letting the caller fall back to the recency window.
func (o *Orchestrator) dependencyContext(ctx context.Context, dependencyIDs []string, fresh map[string]*contextEntry, cache map[string]*contextEntry) string {
	if len(dependencyIDs) == 0 {
		return ""
	}

	var deps []contextEntry
	for _, id := range dependencyIDs {
		if entry, ok := fresh[id]; ok && entry != nil {
			deps = append(deps, *entry)
			continue
		}
		entry, ok := cache[id]
		if !ok {
			entry = o.loadSavedContext(ctx, id)
			cache[id] = entry
		}
		if entry != nil {
			deps = append(deps, *entry)
		}
	}
	if len(deps) == 0 {
		return ""
	}
	return buildPriorContext(deps, len(deps))
}

// loadSavedContext loads a dependency subsection's persisted content as a
// context entry, or nil when it has none.
func (o *Orchestrator) loadSavedContext(ctx context.Context, subsectionID string) *contextEntry {
	sub, err := o.store.GetSubsection(ctx, subsectionID)
	if err != nil {
		return nil
	}
	if sub.Content == "" {
		return nil
	}

	summary := summarizeContent(sub.Content, sub.ContentType)
	title := sub.Title
	if title == "" {
		title = "Subsection " + PositionToLabel(sub.Position)
	}
	sectionTitle := sub.SectionTitle
	if sectionTitle == "" {
		sectionTitle = "Section"
	}
	entry := newContextEntry(sectionTitle, title, summary, o.cfg.SummaryLimit, sub.ID)
	return &entry
}

func (o *Orchestrator) contextWindow() int {
	if o.cfg.ContextWindow > 0 {
		return o.cfg.ContextWindow
	}
	return 5
}

func (o *Orchestrator) evictStaleJobs() {
	retention := time.Duration(o.cfg.JobRetentionMinutes) * time.Minute
	if retention <= 0 {
		return
	}
	if removed := o.jobs.EvictFinishedBefore(time.Now().UTC().Add(-retention)); removed > 0 {
		o.log.Debug("evicted finished generation jobs", map[string]interface{}{"count": removed})
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if o.obs == nil {
		return ctx, func() {}
	}
	ctx, span := o.obs.StartSpan(ctx, name)
	return ctx, func() { span.End() }
}

func (o *Orchestrator) recordBatch(ctx context.Context, status string) {
	if o.obs != nil {
		o.obs.RecordBatch(ctx, status)
	}
}

// resolutionReason collapses a failed resolution into the reason reported
// on a validation issue.
func resolutionReason(res validation.Resolution) string {
	if len(res.Errors) == 0 {
		return "Invalid data source configuration"
	}
	return strings.Join(res.Errors, "; ")
}
