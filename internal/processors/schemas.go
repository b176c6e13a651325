package processors

import (
	"embed"
	"fmt"

	"taas-es-processor/internal/common/validation"
	"taas-es-processor/internal/events"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var payloadSchemas = map[events.Operation]string{
	events.JobCreate:               "job.json",
	events.JobUpdate:               "job.json",
	events.JobDelete:               "delete.json",
	events.JobCandidateCreate:      "jobcandidate.json",
	events.JobCandidateUpdate:      "jobcandidate.json",
	events.JobCandidateDelete:      "delete.json",
	events.ResourceBookingCreate:   "resourcebooking.json",
	events.ResourceBookingUpdate:   "resourcebooking.json",
	events.ResourceBookingDelete:   "delete.json",
	events.WorkPeriodCreate:        "workperiod.json",
	events.WorkPeriodUpdate:        "workperiod.json",
	events.WorkPeriodDelete:        "delete.json",
	events.WorkPeriodPaymentCreate: "workperiodpayment.json",
	events.WorkPeriodPaymentUpdate: "workperiodpayment.json",
	events.WorkPeriodPaymentDelete: "delete.json",
	events.InterviewRequest:        "interview.json",
	events.InterviewUpdate:         "interview.json",
	events.InterviewBulkUpdate:     "interview-bulkupdate.json",
	events.RoleCreate:              "role.json",
	events.RoleUpdate:              "role.json",
	events.RoleDelete:              "delete.json",
	events.ActionRetry:             "action-retry.json",
}

// registerSchemas registers the envelope schema of every operation under
// the operation name.
func registerSchemas(v *validation.SchemaValidator) error {
	for _, op := range events.Operations() {
		file, ok := payloadSchemas[op]
		if !ok {
			return fmt.Errorf("no payload schema for %s", op)
		}
		if v.Has(op.String()) {
			continue
		}
		raw, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", file, err)
		}
		if err := v.RegisterEnvelope(op.String(), raw); err != nil {
			return fmt.Errorf("register schema for %s: %w", op, err)
		}
	}
	return nil
}
