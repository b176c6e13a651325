// Package events names every inbound operation and routes configured
// topics to their handlers.
package events

import (
	"taas-es-processor/internal/common/config"
)

type Operation int

const (
	OpUnknown Operation = iota
	JobCreate
	JobUpdate
	JobDelete
	JobCandidateCreate
	JobCandidateUpdate
	JobCandidateDelete
	ResourceBookingCreate
	ResourceBookingUpdate
	ResourceBookingDelete
	WorkPeriodCreate
	WorkPeriodUpdate
	WorkPeriodDelete
	WorkPeriodPaymentCreate
	WorkPeriodPaymentUpdate
	WorkPeriodPaymentDelete
	InterviewRequest
	InterviewUpdate
	InterviewBulkUpdate
	RoleCreate
	RoleUpdate
	RoleDelete
	ActionRetry
)

var operationNames = map[Operation]string{
	JobCreate:               "job.create",
	JobUpdate:               "job.update",
	JobDelete:               "job.delete",
	JobCandidateCreate:      "jobcandidate.create",
	JobCandidateUpdate:      "jobcandidate.update",
	JobCandidateDelete:      "jobcandidate.delete",
	ResourceBookingCreate:   "resourcebooking.create",
	ResourceBookingUpdate:   "resourcebooking.update",
	ResourceBookingDelete:   "resourcebooking.delete",
	WorkPeriodCreate:        "workperiod.create",
	WorkPeriodUpdate:        "workperiod.update",
	WorkPeriodDelete:        "workperiod.delete",
	WorkPeriodPaymentCreate: "workperiodpayment.create",
	WorkPeriodPaymentUpdate: "workperiodpayment.update",
	WorkPeriodPaymentDelete: "workperiodpayment.delete",
	InterviewRequest:        "interview.request",
	InterviewUpdate:         "interview.update",
	InterviewBulkUpdate:     "interview.bulkupdate",
	RoleCreate:              "role.create",
	RoleUpdate:              "role.update",
	RoleDelete:              "role.delete",
	ActionRetry:             "action.retry",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// Operations lists every known operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(operationNames))
	for op := JobCreate; op <= ActionRetry; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Bindings maps each configured topic name to its operation.
func Bindings(t config.TopicsConfig) map[string]Operation {
	return map[string]Operation{
		t.JobCreate:               JobCreate,
		t.JobUpdate:               JobUpdate,
		t.JobDelete:               JobDelete,
		t.JobCandidateCreate:      JobCandidateCreate,
		t.JobCandidateUpdate:      JobCandidateUpdate,
		t.JobCandidateDelete:      JobCandidateDelete,
		t.ResourceBookingCreate:   ResourceBookingCreate,
		t.ResourceBookingUpdate:   ResourceBookingUpdate,
		t.ResourceBookingDelete:   ResourceBookingDelete,
		t.WorkPeriodCreate:        WorkPeriodCreate,
		t.WorkPeriodUpdate:        WorkPeriodUpdate,
		t.WorkPeriodDelete:        WorkPeriodDelete,
		t.WorkPeriodPaymentCreate: WorkPeriodPaymentCreate,
		t.WorkPeriodPaymentUpdate: WorkPeriodPaymentUpdate,
		t.WorkPeriodPaymentDelete: WorkPeriodPaymentDelete,
		t.InterviewRequest:        InterviewRequest,
		t.InterviewUpdate:         InterviewUpdate,
		t.InterviewBulkUpdate:     InterviewBulkUpdate,
		t.RoleCreate:              RoleCreate,
		t.RoleUpdate:              RoleUpdate,
		t.RoleDelete:              RoleDelete,
		t.ActionRetry:             ActionRetry,
	}
}
