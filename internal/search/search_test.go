package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/online_store/internal/config"
	"github.com/Skotchmaster/online_store/internal/models"
)

type recorded struct {
	method string
	path   string
	body   string
}

func fakeES(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*Index, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet && r.URL.Path == "/" {
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0","build_flavor":"default"},"tagline":"You Know, for Search"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		handle(w, r)
	}))
	t.Cleanup(srv.Close)

	idx, err := New(config.ESConfig{URL: srv.URL, Index: "products"})
	require.NoError(t, err)
	require.NotNil(t, idx)
	return idx, &seen
}

func TestNew_DisabledWithoutURL(t *testing.T) {
	idx, err := New(config.ESConfig{})
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestSearch_BuildsMultiMatchQuery(t *testing.T) {
	idx, seen := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[
			{"_source":{"id":1,"name":"Desk lamp","price":19.5}},
			{"_source":{"id":7,"name":"Floor lamp","price":49}}]}}`)
	})

	total, prods, err := idx.Search(context.Background(), "lamp", 10, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, prods, 2)
	assert.Equal(t, "Desk lamp", prods[0].Name)
	assert.EqualValues(t, 7, prods[1].ID)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "/products/_search", req.path)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body), &body))
	assert.EqualValues(t, 10, body["from"])
	assert.EqualValues(t, 5, body["size"])
	mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "lamp", mm["query"])
	assert.Equal(t, "AUTO", mm["fuzziness"])
	assert.ElementsMatch(t, []any{"name^2", "description"}, mm["fields"])
}

func TestPing(t *testing.T) {
	idx, seen := fakeES(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, idx.Ping(context.Background()))
	assert.Empty(t, *seen)
}

func TestSearch_ErrorStatus(t *testing.T) {
	idx, _ := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})

	_, _, err := idx.Search(context.Background(), "lamp", 0, 10)
	require.ErrorIs(t, err, ErrSearchFailed)
}

func TestIndexAndDeleteProduct(t *testing.T) {
	idx, seen := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/404") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"result":"ok"}`)
	})
	ctx := context.Background()

	require.NoError(t, idx.IndexProduct(ctx, models.Product{ID: 3, Name: "Chair", Price: 80}))
	require.NoError(t, idx.DeleteProduct(ctx, 3))
	require.NoError(t, idx.DeleteProduct(ctx, 404))

	require.Len(t, *seen, 3)
	assert.Equal(t, http.MethodPut, (*seen)[0].method)
	assert.Equal(t, "/products/_doc/3", (*seen)[0].path)
	assert.Contains(t, (*seen)[0].body, `"name":"Chair"`)
	assert.Equal(t, http.MethodDelete, (*seen)[1].method)
	assert.Equal(t, "/products/_doc/3", (*seen)[1].path)
}
