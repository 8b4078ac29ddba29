package registry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
)

func newMockRegistry(t *testing.T) (*PostgresRegistry, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	r := NewPostgres(&database.PostgresClient{DB: db}, logger.NewTestLogger(t))
	return r, mock, func() { db.Close() }
}

var sourceTestColumns = []string{
	"id", "name", "description", "category",
	"retrieval_methods", "suggested_widgets", "is_active",
}

const methodsJSON = `[
	{
		"method_id": "by_quarter",
		"name": "By Quarter",
		"parameters": [
			{"key": "bank", "type": "string", "required": true, "prompt": "Which bank?"},
			{"key": "fiscal_year", "type": "integer", "required": true},
			{"key": "fiscal_quarter", "type": "string", "required": true, "options": ["Q1", "Q2", "Q3", "Q4"]}
		]
	}
]`

func TestPostgresRegistryDecodesMethods(t *testing.T) {
	r, mock, done := newMockRegistry(t)
	defer done()

	rows := sqlmock.NewRows(sourceTestColumns).
		AddRow("financials", "Financial Metrics", "Reported quarterly metrics", "financial_data",
			[]byte(methodsJSON), []byte(`["table","chart"]`), true)
	mock.ExpectQuery(`FROM data_source_registry`).
		WithArgs("financials").
		WillReturnRows(rows)

	source, err := r.GetDataSource(context.Background(), "financials")

	require.NoError(t, err)
	assert.Equal(t, "Financial Metrics", source.Name)
	assert.Equal(t, []string{"table", "chart"}, source.SuggestedWidgets)

	method := source.Method("by_quarter")
	require.NotNil(t, method)
	require.Len(t, method.Parameters, 3)
	assert.Equal(t, "Which bank?", method.Parameters[0].Prompt)
	assert.Equal(t, []string{"Q1", "Q2", "Q3", "Q4"}, method.Parameters[2].Options)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistryUnknownSource(t *testing.T) {
	r, mock, done := newMockRegistry(t)
	defer done()

	mock.ExpectQuery(`FROM data_source_registry`).
		WithArgs("crypto").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetDataSource(context.Background(), "crypto")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDataSourceNotFound, errors.CodeOf(err))
}

func TestPostgresRegistryListActiveSources(t *testing.T) {
	r, mock, done := newMockRegistry(t)
	defer done()

	rows := sqlmock.NewRows(sourceTestColumns).
		AddRow("financials", "Financial Metrics", nil, nil, []byte(`[]`), nil, true).
		AddRow("transcripts", "Earnings Call Transcripts", nil, nil, []byte(`[]`), nil, true)
	mock.ExpectQuery(`FROM data_source_registry`).
		WillReturnRows(rows)

	sources, err := r.ListDataSources(context.Background())

	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "financials", sources[0].ID)
	assert.Equal(t, "transcripts", sources[1].ID)
	assert.Empty(t, sources[0].Description)
}

func TestPostgresRegistryMethodDetails(t *testing.T) {
	r, mock, done := newMockRegistry(t)
	defer done()

	rows := sqlmock.NewRows(sourceTestColumns).
		AddRow("financials", "Financial Metrics", nil, nil, []byte(methodsJSON), nil, true)
	mock.ExpectQuery(`FROM data_source_registry`).
		WithArgs("financials").
		WillReturnRows(rows)

	source, method, err := r.MethodDetails(context.Background(), "financials", "by_quarter")

	require.NoError(t, err)
	assert.Equal(t, "financials", source.ID)
	assert.Equal(t, "by_quarter", method.MethodID)
}

func TestPostgresRegistryUnknownMethod(t *testing.T) {
	r, mock, done := newMockRegistry(t)
	defer done()

	rows := sqlmock.NewRows(sourceTestColumns).
		AddRow("financials", "Financial Metrics", nil, nil, []byte(methodsJSON), nil, true)
	mock.ExpectQuery(`FROM data_source_registry`).
		WithArgs("financials").
		WillReturnRows(rows)

	_, _, err := r.MethodDetails(context.Background(), "financials", "time_travel")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRetrievalMethodNotFound, errors.CodeOf(err))
}
