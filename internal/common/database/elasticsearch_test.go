package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer/internal/common/config"
)

func newFakeCluster(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewElasticsearchFallsBackToLegacyURL(t *testing.T) {
	srv := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, client.Ping())
}

func TestIndexExists(t *testing.T) {
	var requested string
	srv := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		if r.URL.Path == "/earnings_transcripts" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	ok, err := client.IndexExists(context.Background(), "earnings_transcripts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/earnings_transcripts", requested)

	ok, err = client.IndexExists(context.Background(), "missing_index")
	require.NoError(t, err)
	assert.False(t, ok)
}
