package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "taas-es-processor/internal/common/errors"
)

// ESEngine runs store calls against Elasticsearch.
type ESEngine struct {
	client  *elasticsearch.Client
	refresh string
}

// NewESEngine builds an engine issuing every write with the given refresh
// policy ("wait_for", "true" or "false").
func NewESEngine(client *elasticsearch.Client, refresh string) *ESEngine {
	if refresh == "" {
		refresh = "wait_for"
	}
	return &ESEngine{client: client, refresh: refresh}
}

func (e *ESEngine) Get(ctx context.Context, index, id string) (Document, error) {
	res, err := esapi.GetRequest{Index: index, DocumentID: id}.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewTransientError("get", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewNotFoundError(index, id)
	}
	if res.IsError() {
		return nil, responseError("get", res)
	}

	var body struct {
		Source Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	return body.Source, nil
}

func (e *ESEngine) Search(ctx context.Context, index string, q NestedQuery) ([]Hit, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"nested": map[string]interface{}{
				"path": q.Path,
				"query": map[string]interface{}{
					"match": map[string]interface{}{
						q.Path + "." + q.Field: q.Value,
					},
				},
			},
		},
	}
	body, err := encode(query)
	if err != nil {
		return nil, err
	}

	res, err := esapi.SearchRequest{Index: []string{index}, Body: body}.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewTransientError("search", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []Hit{}, nil
	}
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

func (e *ESEngine) Create(ctx context.Context, index, id string, body Document) error {
	reader, err := encode(body)
	if err != nil {
		return err
	}

	res, err := esapi.CreateRequest{
		Index:      index,
		DocumentID: id,
		Body:       reader,
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewTransientError("create", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return apperrors.NewAlreadyExistsError(index, id)
	}
	if res.IsError() {
		return responseError("create", res)
	}
	return nil
}

func (e *ESEngine) Update(ctx context.Context, index, id string, doc Document) error {
	return e.update(ctx, "update", index, id, map[string]interface{}{"doc": doc})
}

func (e *ESEngine) UpdateScript(ctx context.Context, index, id string, script Script) error {
	return e.update(ctx, "update_script", index, id, map[string]interface{}{"script": scriptBody(script)})
}

func (e *ESEngine) update(ctx context.Context, op, index, id string, payload map[string]interface{}) error {
	reader, err := encode(payload)
	if err != nil {
		return err
	}

	res, err := esapi.UpdateRequest{
		Index:      index,
		DocumentID: id,
		Body:       reader,
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewTransientError(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError(index, id)
	}
	if res.IsError() {
		return responseError(op, res)
	}
	return nil
}

func (e *ESEngine) UpdateByQuery(ctx context.Context, index string, ids []string, script Script) error {
	reader, err := encode(map[string]interface{}{
		"script": scriptBody(script),
		"query": map[string]interface{}{
			"ids": map[string]interface{}{"values": ids},
		},
	})
	if err != nil {
		return err
	}

	refresh := e.refresh != "false"
	res, err := esapi.UpdateByQueryRequest{
		Index:   []string{index},
		Body:    reader,
		Refresh: &refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewTransientError("update_by_query", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("update_by_query", res)
	}
	return nil
}

func (e *ESEngine) Delete(ctx context.Context, index, id string) error {
	res, err := esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return apperrors.NewTransientError("delete", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError(index, id)
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

func scriptBody(s Script) map[string]interface{} {
	body := map[string]interface{}{
		"lang":   "painless",
		"source": strings.TrimSpace(s.Source),
	}
	if len(s.Params) > 0 {
		body["params"] = s.Params
	}
	return body
}

func encode(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return &buf, nil
}

// responseError maps a failed response. Server-side failures are transient,
// everything else is reported as is.
func responseError(op string, res *esapi.Response) error {
	raw, _ := io.ReadAll(res.Body)
	err := fmt.Errorf("elasticsearch %s error: %s: %s", op, res.Status(), strings.TrimSpace(string(raw)))
	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
		return apperrors.NewTransientError(op, err)
	}
	return err
}
