package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taas-es-processor/internal/common/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

// fakeES answers with the given status/body and records what it received.
func fakeES(t *testing.T, status int, body string) (*ESEngine, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		requests = append(requests, rec)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewESEngine(client, ""), &requests
}

func TestESEngine_CreateConflict(t *testing.T) {
	engine, reqs := fakeES(t, http.StatusConflict, `{"error":{"type":"version_conflict_engine_exception"}}`)

	err := engine.Create(context.Background(), "job", "j1", Document{"id": "j1"})

	assert.True(t, apperrors.IsAlreadyExists(err))
	require.Len(t, *reqs, 1)
	assert.Equal(t, "/job/_create/j1", (*reqs)[0].Path)
	assert.Contains(t, (*reqs)[0].Query, "refresh=wait_for")
}

func TestESEngine_NotFoundMapping(t *testing.T) {
	ctx := context.Background()
	engine, _ := fakeES(t, http.StatusNotFound, `{"found":false}`)

	_, err := engine.Get(ctx, "job", "j1")
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(engine.Update(ctx, "job", "j1", Document{"status": "closed"})))
	assert.True(t, apperrors.IsNotFound(engine.UpdateScript(ctx, "job", "j1", Script{Source: "ctx._source.x = 1"})))
	assert.True(t, apperrors.IsNotFound(engine.Delete(ctx, "job", "j1")))

	hits, err := engine.Search(ctx, "missing_index", NestedQuery{Path: "workPeriods", Field: "id", Value: "w1"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestESEngine_ServerErrorIsTransient(t *testing.T) {
	engine, _ := fakeES(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`)

	err := engine.Update(context.Background(), "job", "j1", Document{"status": "closed"})

	assert.True(t, apperrors.IsTransient(err))
}

func TestESEngine_BadRequestIsNotTransient(t *testing.T) {
	engine, _ := fakeES(t, http.StatusBadRequest, `{"error":"mapper_parsing_exception"}`)

	err := engine.Create(context.Background(), "job", "j1", Document{"id": "j1"})

	require.Error(t, err)
	assert.False(t, apperrors.IsTransient(err))
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestESEngine_GetDecodesSource(t *testing.T) {
	engine, _ := fakeES(t, http.StatusOK, `{"_id":"j1","found":true,"_source":{"id":"j1","status":"sourcing"}}`)

	doc, err := engine.Get(context.Background(), "job", "j1")

	require.NoError(t, err)
	assert.Equal(t, "sourcing", doc["status"])
}

func TestESEngine_SearchBuildsNestedQuery(t *testing.T) {
	engine, reqs := fakeES(t, http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_id":"rb1","_source":{"id":"rb1"}}]}}`)

	hits, err := engine.Search(context.Background(), "resource_booking",
		NestedQuery{Path: "workPeriods.payments", Field: "id", Value: "p1"})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rb1", hits[0].ID)

	nested := (*reqs)[0].Body["query"].(map[string]interface{})["nested"].(map[string]interface{})
	assert.Equal(t, "workPeriods.payments", nested["path"])
	match := nested["query"].(map[string]interface{})["match"].(map[string]interface{})
	assert.Equal(t, "p1", match["workPeriods.payments.id"])
}

func TestESEngine_UpdateScriptAndByQueryBodies(t *testing.T) {
	ctx := context.Background()
	engine, reqs := fakeES(t, http.StatusOK, `{"result":"updated"}`)

	script := Script{Source: "  ctx._source.a = params.a  ", Params: map[string]interface{}{"a": 1}}
	require.NoError(t, engine.UpdateScript(ctx, "job_candidate", "c1", script))
	require.NoError(t, engine.UpdateByQuery(ctx, "job_candidate", []string{"c1", "c2"}, script))

	require.Len(t, *reqs, 2)
	first := (*reqs)[0]
	assert.Equal(t, "/job_candidate/_update/c1", first.Path)
	sc := first.Body["script"].(map[string]interface{})
	assert.Equal(t, "painless", sc["lang"])
	assert.Equal(t, "ctx._source.a = params.a", sc["source"])

	second := (*reqs)[1]
	assert.True(t, strings.HasSuffix(second.Path, "/_update_by_query"))
	assert.Contains(t, second.Query, "refresh=true")
	ids := second.Body["query"].(map[string]interface{})["ids"].(map[string]interface{})["values"]
	assert.Equal(t, []interface{}{"c1", "c2"}, ids)
}
