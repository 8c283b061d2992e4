package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwell/law-search/internal/config"
	"github.com/redwell/law-search/internal/pipeline"
)

var statuteXML = `<?xml version="1.0" encoding="UTF-8"?>
<Law>
  <LawTitle>所得税法</LawTitle>
  <Article Num="1">
    <ArticleNum>第1条</ArticleNum>
    <ArticleCaption>この法律は、所得税について定める。</ArticleCaption>
  </Article>
</Law>`

func testServer(t *testing.T) *Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "test-model"}},
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vecs := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vecs[i] = []float32{float32(len(text)), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	})
	embedSrv := httptest.NewServer(mux)
	t.Cleanup(embedSrv.Close)

	cfg := config.Default()
	cfg.Collector.DataDir = t.TempDir()
	cfg.Embedding.Endpoint = embedSrv.URL
	cfg.Embedding.Model = "test-model"
	cfg.Embedding.Timeout = 5 * time.Second
	cfg.Embedding.CacheDir = ""
	cfg.Storage.Path = ""

	p, err := pipeline.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	path := filepath.Join(t.TempDir(), "M32HO089.xml")
	require.NoError(t, os.WriteFile(path, []byte(statuteXML), 0o644))
	require.True(t, p.ProcessSingle(context.Background(), "M32HO089", path).Success)

	return New(p, nil)
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	rec := doRequest(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSearchEndpoint(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, "/search?q=所得税&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Query   string `json:"query"`
		Count   int    `json:"count"`
		Results []struct {
			LawID string  `json:"law_id"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "所得税", resp.Query)
	require.NotZero(t, resp.Count)
	assert.Equal(t, "M32HO089", resp.Results[0].LawID)
}

func TestSearchEndpoint_BadRequest(t *testing.T) {
	s := testServer(t)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "/search").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, "/search?q=x&limit=-1").Code)
}

func TestLawEndpoint(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, "/laws/M32HO089")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		LawID     string `json:"law_id"`
		Fragments []struct {
			ArticleNumber string `json:"article_number"`
		} `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "M32HO089", resp.LawID)
	assert.Len(t, resp.Fragments, 2, "one article plus the summary")

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, "/laws/UNKNOWN1").Code)
}
