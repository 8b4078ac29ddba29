package retrievers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/common/metrics"
)

// TranscriptSearch serves earnings call transcripts from an Elasticsearch
// index. One document per bank/period/section, with the section body in
// content_text.
type TranscriptSearch struct {
	es    *database.ElasticsearchClient
	index string
	log   logger.Logger
}

func NewTranscriptSearch(es *database.ElasticsearchClient, index string, log logger.Logger) *TranscriptSearch {
	return &TranscriptSearch{es: es, index: index, log: log}
}

type transcriptDoc struct {
	BankID        string `json:"bank_id"`
	FiscalYear    int    `json:"fiscal_year"`
	FiscalQuarter string `json:"fiscal_quarter"`
	Section       string `json:"section"`
	ContentText   string `json:"content_text"`
	CallDate      string `json:"call_date"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source transcriptDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (t *TranscriptSearch) SearchTranscripts(ctx context.Context, queries []PeriodQuery, section string) ([]TranscriptResult, error) {
	if section == "" {
		section = "both"
	}

	results := make([]TranscriptResult, 0, len(queries))
	for _, q := range queries {
		docs, err := t.search(ctx, q, section)
		if err != nil {
			metrics.RetrievalRequests.WithLabelValues("transcripts", "error").Inc()
			return nil, err
		}
		metrics.RetrievalRequests.WithLabelValues("transcripts", "ok").Inc()
		results = append(results, assembleTranscript(q, docs))
	}
	return results, nil
}

func (t *TranscriptSearch) search(ctx context.Context, q PeriodQuery, section string) ([]transcriptDoc, error) {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"bank_id": q.BankID}},
		{"term": map[string]interface{}{"fiscal_year": q.FiscalYear}},
		{"term": map[string]interface{}{"fiscal_quarter": q.FiscalQuarter}},
	}
	if section != "both" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"section": section},
		})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []map[string]interface{}{
			{"section": map[string]interface{}{"order": "asc"}},
		},
		"size": 2,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(t.index, err)
	}

	client := t.es.Client
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(t.index),
		client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(t.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(t.index, fmt.Errorf("elasticsearch: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(t.index, err)
	}

	docs := make([]transcriptDoc, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// assembleTranscript flattens the hit set into one result row, merging the
// two sections when the full transcript was requested.
func assembleTranscript(q PeriodQuery, docs []transcriptDoc) TranscriptResult {
	result := TranscriptResult{
		BankID:   q.BankID,
		BankName: BankName(q.BankID),
		Period:   q.Period(),
	}

	switch len(docs) {
	case 0:
		result.Err = "No transcript found for this period"
	case 1:
		result.CallDate = docs[0].CallDate
		result.Section = docs[0].Section
		result.Content = docs[0].ContentText
	default:
		result.Section = "both"
		for _, doc := range docs {
			if doc.CallDate != "" {
				result.CallDate = doc.CallDate
			}
			switch doc.Section {
			case "management_discussion":
				result.ManagementDiscussion = doc.ContentText
			case "qa":
				result.QA = doc.ContentText
			}
		}
	}
	return result
}
