package retrievers

import (
	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/logger"
)

// client bundles the warehouse and transcript backends into one Service.
type client struct {
	*PostgresRetriever
	*TranscriptSearch
}

// NewService wires the production retrieval stack: Postgres for financials
// and stock prices, Elasticsearch for transcripts.
func NewService(db *database.PostgresClient, es *database.ElasticsearchClient, transcriptIndex string, log logger.Logger) Service {
	return &client{
		PostgresRetriever: NewPostgresRetriever(db, log),
		TranscriptSearch:  NewTranscriptSearch(es, transcriptIndex, log),
	}
}
