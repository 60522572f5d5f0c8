package doclayer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchExtractions(t *testing.T) {
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"extractions": [
				{"type": "field", "key": "total", "content": "120.50", "confidence": 0.97, "page_number": 1, "source_text": "Total: 120.50"},
				{"type": "table", "key": "line_items", "content": [{"sku": "A1"}], "confidence": 0.82, "page_number": 2}
			]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	extractions, err := client.FetchExtractions(context.Background(), "doc_1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/documents/doc_1/extractions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)

	require.Len(t, extractions, 2)
	assert.Equal(t, "field", extractions[0].Type)
	assert.Equal(t, "total", extractions[0].Key)
	assert.Equal(t, 0.97, extractions[0].Confidence)
	assert.Equal(t, 1, extractions[0].PageNumber)
	assert.Equal(t, "Total: 120.50", extractions[0].SourceText)
	assert.JSONEq(t, `[{"sku":"A1"}]`, string(extractions[1].Content))
}

func TestFetchExtractions_Non2xxIsNotAnError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			extractions, err := newTestClient(srv.URL).FetchExtractions(context.Background(), "doc_1")
			require.NoError(t, err)
			assert.Empty(t, extractions)
		})
	}
}

func TestFetchExtractions_TransportErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestClient(srv.URL).FetchExtractions(context.Background(), "doc_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch extractions")
}

func TestFetchExtractions_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchExtractions(context.Background(), "doc_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode extractions response")
}
