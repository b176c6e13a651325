package rcrm

import (
	"context"
	"fmt"
	"strings"

	"taas-es-processor/internal/common/config"
	commonhttp "taas-es-processor/internal/common/http"
)

// currencyUSD is the recruitment CRM currency id used for every job.
const currencyUSD = 2

type CustomField struct {
	FieldID string      `json:"field_id"`
	Value   interface{} `json:"value"`
}

type CreateJobRequest struct {
	Name                     string        `json:"name"`
	NumberOfOpenings         interface{}   `json:"number_of_openings"`
	CompanySlug              string        `json:"company_slug"`
	ContactSlug              string        `json:"contact_slug"`
	JobDescriptionText       interface{}   `json:"job_description_text"`
	CurrencyID               int           `json:"currency_id"`
	CustomFields             []CustomField `json:"custom_fields"`
	EnableJobApplicationForm int           `json:"enable_job_application_form"`
}

// CRMClient mirrors newly created jobs into the recruitment CRM.
type CRMClient struct {
	cfg        config.RCRMConfig
	httpClient *commonhttp.Client
}

func NewCRMClient(cfg config.RCRMConfig, httpClient *commonhttp.Client) *CRMClient {
	return &CRMClient{cfg: cfg, httpClient: httpClient}
}

// BuildCreateJob maps a job payload onto the CRM create request.
func (c *CRMClient) BuildCreateJob(job map[string]interface{}) CreateJobRequest {
	fields := []CustomField{}
	if v, ok := job["duration"]; ok && v != nil {
		fields = append(fields, CustomField{FieldID: c.cfg.Fields.Duration, Value: v})
	}
	if skills, ok := job["skills"].([]interface{}); ok {
		fields = append(fields, CustomField{FieldID: c.cfg.Fields.Skills, Value: skillNames(skills)})
	}
	if v, ok := job["projectId"]; ok && v != nil {
		fields = append(fields, CustomField{
			FieldID: c.cfg.Fields.ConnectLink,
			Value:   fmt.Sprintf("https://connect.%s/projects/%v", c.cfg.TCDomain, v),
		})
	}

	title, _ := job["title"].(string)
	return CreateJobRequest{
		Name:                     title,
		NumberOfOpenings:         job["numPositions"],
		CompanySlug:              c.cfg.CompanySlug,
		ContactSlug:              c.cfg.ContactSlug,
		JobDescriptionText:       job["description"],
		CurrencyID:               currencyUSD,
		CustomFields:             fields,
		EnableJobApplicationForm: 0,
	}
}

// CreateJob posts the job to the CRM.
func (c *CRMClient) CreateJob(ctx context.Context, job map[string]interface{}) error {
	url := fmt.Sprintf("%s/jobs", strings.TrimSuffix(c.cfg.APIBase, "/"))
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	if _, err := c.httpClient.PostJSON(ctx, url, headers, c.BuildCreateJob(job)); err != nil {
		return fmt.Errorf("failed to create job in rcrm: %w", err)
	}
	return nil
}

// skillNames joins skill names with commas. Skills arrive either as
// objects carrying a name or as plain strings.
func skillNames(skills []interface{}) string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		switch v := s.(type) {
		case string:
			names = append(names, v)
		case map[string]interface{}:
			if name, ok := v["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return strings.Join(names, ",")
}
