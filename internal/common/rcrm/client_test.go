package rcrm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taas-es-processor/internal/common/config"
	commonhttp "taas-es-processor/internal/common/http"
)

func testConfig(base string) config.RCRMConfig {
	cfg := config.RCRMConfig{
		Switch:      "ON",
		APIBase:     base,
		APIKey:      "rcrm-key",
		CompanySlug: "topcoder",
		ContactSlug: "taas",
		TCDomain:    "topcoder-dev.com",
	}
	cfg.Fields.Duration = "f-duration"
	cfg.Fields.Skills = "f-skills"
	cfg.Fields.ConnectLink = "f-connect"
	return cfg
}

func TestCRMClient_CreateJob(t *testing.T) {
	var got map[string]interface{}
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewCRMClient(testConfig(srv.URL+"/"), commonhttp.NewClient(time.Second))
	err := c.CreateJob(context.Background(), map[string]interface{}{
		"title":        "Go Developer",
		"numPositions": float64(2),
		"description":  "Build projectors",
		"duration":     float64(12),
		"projectId":    float64(111),
		"skills":       []interface{}{map[string]interface{}{"name": "Go"}, "Elasticsearch"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/jobs", path)
	assert.Equal(t, "Bearer rcrm-key", auth)
	assert.Equal(t, "Go Developer", got["name"])
	assert.Equal(t, float64(2), got["number_of_openings"])
	assert.Equal(t, float64(currencyUSD), got["currency_id"])
	assert.Equal(t, float64(0), got["enable_job_application_form"])

	fields := got["custom_fields"].([]interface{})
	require.Len(t, fields, 3)
	assert.Equal(t, "Go,Elasticsearch", fields[1].(map[string]interface{})["value"])
	assert.Equal(t, "https://connect.topcoder-dev.com/projects/111", fields[2].(map[string]interface{})["value"])
}

func TestCRMClient_BuildCreateJobSkipsMissingFields(t *testing.T) {
	c := NewCRMClient(testConfig("http://unused"), commonhttp.NewClient(time.Second))

	req := c.BuildCreateJob(map[string]interface{}{"title": "QA", "numPositions": float64(1), "duration": nil})

	assert.Empty(t, req.CustomFields)
	assert.Equal(t, "topcoder", req.CompanySlug)
}

func TestCRMClient_CreateJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewCRMClient(testConfig(srv.URL), commonhttp.NewClient(time.Second))
	assert.Error(t, c.CreateJob(context.Background(), map[string]interface{}{"title": "QA"}))
}
