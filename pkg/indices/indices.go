// Package indices holds the Elasticsearch index mappings and the admin
// operations used by the index tool.
package indices

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"taas-es-processor/internal/common/config"
	"taas-es-processor/internal/common/logger"
)

//go:embed mappings/*.json
var mappingFiles embed.FS

// Definition pairs a model name with its configured index and mapping body.
type Definition struct {
	Model string
	Index string
	Body  json.RawMessage
}

var mappingFile = map[string]string{
	"Job":             "job.json",
	"JobCandidate":    "job_candidate.json",
	"ResourceBooking": "resource_booking.json",
	"Role":            "role.json",
}

// Models returns the known model names, sorted.
func Models() []string {
	out := make([]string, 0, len(mappingFile))
	for m := range mappingFile {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Definitions returns one definition per model, named by cfg.
func Definitions(cfg config.IndicesConfig) ([]Definition, error) {
	names := map[string]string{
		"Job":             cfg.Job,
		"JobCandidate":    cfg.JobCandidate,
		"ResourceBooking": cfg.ResourceBooking,
		"Role":            cfg.Role,
	}
	defs := make([]Definition, 0, len(names))
	for _, model := range Models() {
		body, err := mappingFiles.ReadFile("mappings/" + mappingFile[model])
		if err != nil {
			return nil, fmt.Errorf("read mapping for %s: %w", model, err)
		}
		defs = append(defs, Definition{Model: model, Index: names[model], Body: body})
	}
	return defs, nil
}

// Lookup finds the definition for model.
func Lookup(defs []Definition, model string) (Definition, error) {
	for _, d := range defs {
		if d.Model == model {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("model name must be one of %s", strings.Join(Models(), ", "))
}

type Admin struct {
	es     *elasticsearch.Client
	logger logger.Logger
}

func NewAdmin(es *elasticsearch.Client, log logger.Logger) *Admin {
	return &Admin{es: es, logger: log.Named("indices")}
}

// Create creates every index. An index that already exists is left alone.
func (a *Admin) Create(ctx context.Context, defs []Definition) error {
	for _, d := range defs {
		res, err := a.es.Indices.Create(d.Index,
			a.es.Indices.Create.WithContext(ctx),
			a.es.Indices.Create.WithBody(bytes.NewReader(d.Body)),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", d.Index, err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()

		if res.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "resource_already_exists_exception") {
			a.logger.Warn("index already exists", map[string]interface{}{"index": d.Index})
			continue
		}
		if res.IsError() {
			return fmt.Errorf("create index %s: %s: %s", d.Index, res.Status(), body)
		}
		a.logger.Info("index created", map[string]interface{}{"index": d.Index, "model": d.Model})
	}
	return nil
}

// Delete drops every index. Missing indices are skipped.
func (a *Admin) Delete(ctx context.Context, defs []Definition) error {
	for _, d := range defs {
		res, err := a.es.Indices.Delete([]string{d.Index}, a.es.Indices.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("delete index %s: %w", d.Index, err)
		}
		status := res.Status()
		missing := res.StatusCode == http.StatusNotFound
		failed := res.IsError()
		res.Body.Close()

		if missing {
			a.logger.Warn("index not found", map[string]interface{}{"index": d.Index})
			continue
		}
		if failed {
			return fmt.Errorf("delete index %s: %s", d.Index, status)
		}
		a.logger.Info("index deleted", map[string]interface{}{"index": d.Index})
	}
	return nil
}

// Dump returns the sources of up to size documents in index.
func (a *Admin) Dump(ctx context.Context, index string, size int) ([]json.RawMessage, error) {
	res, err := esapi.SearchRequest{Index: []string{index}, Size: &size}.Do(ctx, a.es)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.Status())
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]json.RawMessage, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}
