package retrievers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type esHit struct {
	Source map[string]interface{} `json:"_source"`
}

func newTranscriptServer(t *testing.T, status int, hits []esHit, lastBody *map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastBody != nil && r.Body != nil {
			body := map[string]interface{}{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				*lastBody = body
			}
		}

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{"hits": hits},
		})
	}))
}

func newTranscriptSearch(t *testing.T, serverURL string) *TranscriptSearch {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{serverURL}})
	require.NoError(t, err)

	es := &database.ElasticsearchClient{Client: client}
	return NewTranscriptSearch(es, "transcripts", logger.NewTestLogger(t))
}

func transcriptHit(section, content, callDate string) esHit {
	return esHit{Source: map[string]interface{}{
		"bank_id":        "RY",
		"fiscal_year":    2024,
		"fiscal_quarter": "Q3",
		"section":        section,
		"content_text":   content,
		"call_date":      callDate,
	}}
}

// ==========================
// Transcript Search Tests
// ==========================

func TestSearchTranscriptsMergesBothSections(t *testing.T) {
	var body map[string]interface{}
	server := newTranscriptServer(t, http.StatusOK, []esHit{
		transcriptHit("management_discussion", "Revenue grew across all segments.", "2024-08-28"),
		transcriptHit("qa", "Analyst questions on margins.", "2024-08-28"),
	}, &body)
	defer server.Close()

	search := newTranscriptSearch(t, server.URL)

	results, err := search.SearchTranscripts(context.Background(),
		[]PeriodQuery{{BankID: "RY", FiscalYear: 2024, FiscalQuarter: "Q3"}}, "both")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "both", results[0].Section)
	assert.Equal(t, "Revenue grew across all segments.", results[0].ManagementDiscussion)
	assert.Equal(t, "Analyst questions on margins.", results[0].QA)
	assert.Equal(t, "2024-08-28", results[0].CallDate)
	assert.Empty(t, results[0].Content)

	// "both" must not add a section filter to the query.
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"section":"both"`)
}

func TestSearchTranscriptsSingleSectionFilter(t *testing.T) {
	var body map[string]interface{}
	server := newTranscriptServer(t, http.StatusOK, []esHit{
		transcriptHit("qa", "Analyst questions on margins.", "2024-08-28"),
	}, &body)
	defer server.Close()

	search := newTranscriptSearch(t, server.URL)

	results, err := search.SearchTranscripts(context.Background(),
		[]PeriodQuery{{BankID: "RY", FiscalYear: 2024, FiscalQuarter: "Q3"}}, "qa")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "qa", results[0].Section)
	assert.Equal(t, "Analyst questions on margins.", results[0].Content)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"section":"qa"`)
}

func TestSearchTranscriptsEmptySectionDefaultsToBoth(t *testing.T) {
	var body map[string]interface{}
	server := newTranscriptServer(t, http.StatusOK, nil, &body)
	defer server.Close()

	search := newTranscriptSearch(t, server.URL)

	results, err := search.SearchTranscripts(context.Background(),
		[]PeriodQuery{{BankID: "TD", FiscalYear: 2023, FiscalQuarter: "Q4"}}, "")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "No transcript found for this period", results[0].Err)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"term":{"section"`)
}

func TestSearchTranscriptsServerError(t *testing.T) {
	server := newTranscriptServer(t, http.StatusInternalServerError, nil, nil)
	defer server.Close()

	search := newTranscriptSearch(t, server.URL)

	_, err := search.SearchTranscripts(context.Background(),
		[]PeriodQuery{{BankID: "RY", FiscalYear: 2024, FiscalQuarter: "Q3"}}, "both")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, errors.CodeOf(err))
}
