package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
)

// PostgresRegistry reads the data_source_registry table. Retrieval methods
// and suggested widgets are stored as JSONB.
type PostgresRegistry struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewPostgres(db *database.PostgresClient, log logger.Logger) *PostgresRegistry {
	return &PostgresRegistry{db: db, log: log}
}

const sourceColumns = `id, name, description, category, retrieval_methods, suggested_widgets, is_active`

func (r *PostgresRegistry) GetDataSource(ctx context.Context, sourceID string) (*DataSource, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM data_source_registry WHERE id = $1 AND is_active = true`, sourceColumns),
		sourceID,
	)

	source, err := scanDataSource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.NewDataSourceNotFoundError(sourceID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("data_source_registry", err)
	}
	return source, nil
}

func (r *PostgresRegistry) MethodDetails(ctx context.Context, sourceID, methodID string) (*DataSource, *RetrievalMethod, error) {
	return methodDetails(ctx, r, sourceID, methodID)
}

func (r *PostgresRegistry) ListDataSources(ctx context.Context) ([]DataSource, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM data_source_registry WHERE is_active = true ORDER BY id`, sourceColumns),
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("data_source_registry", err)
	}
	defer rows.Close()

	var sources []DataSource
	for rows.Next() {
		source, err := scanDataSource(rows.Scan)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("data_source_registry", err)
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("data_source_registry", err)
	}
	return sources, nil
}

func scanDataSource(scan func(dest ...interface{}) error) (*DataSource, error) {
	var (
		source      DataSource
		description sql.NullString
		category    sql.NullString
		methodsJSON []byte
		widgetsJSON []byte
	)
	if err := scan(&source.ID, &source.Name, &description, &category, &methodsJSON, &widgetsJSON, &source.IsActive); err != nil {
		return nil, err
	}
	source.Description = description.String
	source.Category = category.String

	if len(methodsJSON) > 0 {
		if err := json.Unmarshal(methodsJSON, &source.RetrievalMethods); err != nil {
			return nil, fmt.Errorf("malformed retrieval_methods for source %s: %w", source.ID, err)
		}
	}
	if len(widgetsJSON) > 0 {
		if err := json.Unmarshal(widgetsJSON, &source.SuggestedWidgets); err != nil {
			return nil, fmt.Errorf("malformed suggested_widgets for source %s: %w", source.ID, err)
		}
	}
	return &source, nil
}
