package workspace

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
)

// PostgresStore implements Store on the report workspace schema. JSON
// columns (formatting_profile, data_source_config, run_inputs) are stored
// as JSONB.
type PostgresStore struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewPostgresStore(db *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (*Template, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), formatting_profile
		FROM report_templates
		WHERE id = $1`, templateID)

	var (
		tpl         Template
		profileJSON []byte
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &profileJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewTemplateNotFoundError(templateID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_templates", err)
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &tpl.FormattingProfile); err != nil {
			s.log.Warn("malformed formatting_profile, ignoring", map[string]interface{}{
				"template_id": templateID,
				"error":       err.Error(),
			})
		}
	}
	return &tpl, nil
}

func (s *PostgresStore) GetSections(ctx context.Context, templateID string, includeContent bool) ([]Section, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, template_id, title, position
		FROM report_sections
		WHERE template_id = $1
		ORDER BY position`, templateID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_sections", err)
	}
	defer rows.Close()

	var sections []Section
	index := map[string]int{}
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.TemplateID, &sec.Title, &sec.Position); err != nil {
			return nil, errors.NewQueryExecutionFailedError("report_sections", err)
		}
		index[sec.ID] = len(sections)
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_sections", err)
	}

	contentColumn := "''"
	if includeContent {
		contentColumn = "COALESCE(sub.content, '')"
	}

	subRows, err := s.db.Query(ctx, `
		SELECT sub.id, sub.section_id, sub.template_id, sub.title, sub.position,
		       sec.title, sec.position,
		       COALESCE(sub.widget_type, ''), COALESCE(sub.instructions, ''),
		       COALESCE(sub.notes, ''), COALESCE(sub.content_type, ''),
		       `+contentColumn+`,
		       sub.data_source_config
		FROM report_subsections sub
		JOIN report_sections sec ON sec.id = sub.section_id
		WHERE sub.template_id = $1
		ORDER BY sec.position, sub.position`, templateID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		sub, err := scanSubsection(subRows.Scan)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
		}
		if i, ok := index[sub.SectionID]; ok {
			sections[i].Subsections = append(sections[i].Subsections, *sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
	}

	return sections, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, sectionID string) (*Section, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, template_id, title, position
		FROM report_sections
		WHERE id = $1`, sectionID)

	var sec Section
	err := row.Scan(&sec.ID, &sec.TemplateID, &sec.Title, &sec.Position)
	if err == sql.ErrNoRows {
		return nil, errors.NewSectionNotFoundError(sectionID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_sections", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT sub.id, sub.section_id, sub.template_id, sub.title, sub.position,
		       sec.title, sec.position,
		       COALESCE(sub.widget_type, ''), COALESCE(sub.instructions, ''),
		       COALESCE(sub.notes, ''), COALESCE(sub.content_type, ''),
		       COALESCE(sub.content, ''),
		       sub.data_source_config
		FROM report_subsections sub
		JOIN report_sections sec ON sec.id = sub.section_id
		WHERE sub.section_id = $1
		ORDER BY sub.position`, sectionID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
	}
	defer rows.Close()

	for rows.Next() {
		sub, err := scanSubsection(rows.Scan)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
		}
		sec.Subsections = append(sec.Subsections, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
	}

	return &sec, nil
}

func (s *PostgresStore) GetSubsection(ctx context.Context, subsectionID string) (*Subsection, error) {
	row := s.db.QueryRow(ctx, `
		SELECT sub.id, sub.section_id, sub.template_id, sub.title, sub.position,
		       sec.title, sec.position,
		       COALESCE(sub.widget_type, ''), COALESCE(sub.instructions, ''),
		       COALESCE(sub.notes, ''), COALESCE(sub.content_type, ''),
		       COALESCE(sub.content, ''),
		       sub.data_source_config
		FROM report_subsections sub
		JOIN report_sections sec ON sec.id = sub.section_id
		WHERE sub.id = $1`, subsectionID)

	sub, err := scanSubsection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewSubsectionNotFoundError(subsectionID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("report_subsections", err)
	}
	return sub, nil
}

func scanSubsection(scan func(dest ...interface{}) error) (*Subsection, error) {
	var (
		sub        Subsection
		configJSON []byte
	)
	err := scan(
		&sub.ID, &sub.SectionID, &sub.TemplateID, &sub.Title, &sub.Position,
		&sub.SectionTitle, &sub.SectionPosition,
		&sub.WidgetType, &sub.Instructions, &sub.Notes, &sub.ContentType,
		&sub.Content, &configJSON,
	)
	if err != nil {
		return nil, err
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &sub.DataSourceConfig); err != nil {
			return nil, err
		}
	}
	return &sub, nil
}

// SaveSubsectionVersion appends an immutable version row and promotes the
// content onto the subsection as its current state.
func (s *PostgresStore) SaveSubsectionVersion(ctx context.Context, in SaveVersionInput) (*VersionInfo, error) {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	var versionNumber int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM subsection_versions
		WHERE subsection_id = $1`, in.SubsectionID).Scan(&versionNumber)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("subsection_versions", err)
	}

	var contextJSON []byte
	if in.GenerationContext != nil {
		contextJSON, _ = json.Marshal(in.GenerationContext)
	}

	versionID := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO subsection_versions
			(id, subsection_id, version_number, content, content_type, generated_by, title, generation_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		versionID, in.SubsectionID, versionNumber, in.Content, in.ContentType,
		in.GeneratedBy, in.Title, contextJSON, time.Now().UTC())
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE report_subsections
		SET content = $2, content_type = $3,
		    title = COALESCE(NULLIF($4, ''), title),
		    updated_at = $5
		WHERE id = $1`,
		in.SubsectionID, in.Content, in.ContentType, in.Title, time.Now().UTC())
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, errors.NewSubsectionNotFoundError(in.SubsectionID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	return &VersionInfo{VersionID: versionID, VersionNumber: versionNumber}, nil
}

func (s *PostgresStore) GetGenerationPreset(ctx context.Context, templateID string) (map[string]interface{}, error) {
	row := s.db.QueryRow(ctx, `
		SELECT run_inputs
		FROM template_generation_presets
		WHERE template_id = $1`, templateID)

	var inputsJSON []byte
	err := row.Scan(&inputsJSON)
	if err == sql.ErrNoRows {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("template_generation_presets", err)
	}

	inputs := map[string]interface{}{}
	if len(inputsJSON) > 0 {
		if err := json.Unmarshal(inputsJSON, &inputs); err != nil {
			s.log.Warn("malformed generation preset, ignoring", map[string]interface{}{
				"template_id": templateID,
				"error":       err.Error(),
			})
			return map[string]interface{}{}, nil
		}
	}
	return inputs, nil
}

func (s *PostgresStore) SaveGenerationPreset(ctx context.Context, templateID string, runInputs map[string]interface{}) error {
	inputsJSON, err := json.Marshal(runInputs)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO template_generation_presets (template_id, run_inputs, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (template_id)
		DO UPDATE SET run_inputs = EXCLUDED.run_inputs, updated_at = EXCLUDED.updated_at`,
		templateID, inputsJSON, time.Now().UTC())
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
