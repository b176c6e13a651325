package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taas-es-processor/internal/common/config"
)

func defaultTopics() config.TopicsConfig {
	return config.TopicsConfig{
		JobCreate: "taas.job.create", JobUpdate: "taas.job.update", JobDelete: "taas.job.delete",
		JobCandidateCreate: "taas.jobcandidate.create", JobCandidateUpdate: "taas.jobcandidate.update", JobCandidateDelete: "taas.jobcandidate.delete",
		ResourceBookingCreate: "taas.resourcebooking.create", ResourceBookingUpdate: "taas.resourcebooking.update", ResourceBookingDelete: "taas.resourcebooking.delete",
		WorkPeriodCreate: "taas.workperiod.create", WorkPeriodUpdate: "taas.workperiod.update", WorkPeriodDelete: "taas.workperiod.delete",
		WorkPeriodPaymentCreate: "taas.workperiodpayment.create", WorkPeriodPaymentUpdate: "taas.workperiodpayment.update", WorkPeriodPaymentDelete: "taas.workperiodpayment.delete",
		InterviewRequest: "taas.interview.requested", InterviewUpdate: "taas.interview.update", InterviewBulkUpdate: "taas.interview.bulkUpdate",
		RoleCreate: "taas.role.requested", RoleUpdate: "taas.role.update", RoleDelete: "taas.role.delete",
		ActionRetry: "taas.action.retry",
	}
}

func allHandlers() map[Operation]HandlerFunc {
	h := make(map[Operation]HandlerFunc)
	for _, op := range Operations() {
		h[op] = func(context.Context, Request) error { return nil }
	}
	return h
}

func TestRouter_Lookup(t *testing.T) {
	r, err := NewRouter(Bindings(defaultTopics()), allHandlers())
	require.NoError(t, err)

	op, h, ok := r.Lookup("taas.workperiodpayment.update")
	assert.True(t, ok)
	assert.Equal(t, WorkPeriodPaymentUpdate, op)
	assert.NotNil(t, h)
	assert.Equal(t, "workperiodpayment.update", op.String())

	op, _, ok = r.Lookup("taas.nope")
	assert.False(t, ok)
	assert.Equal(t, OpUnknown, op)
	assert.Equal(t, "unknown", op.String())

	assert.Len(t, r.Topics(), len(Operations()))
	assert.Contains(t, r.Topics(), "taas.action.retry")
}

func TestRouter_FailsFast(t *testing.T) {
	t.Run("missing handler", func(t *testing.T) {
		h := allHandlers()
		delete(h, InterviewBulkUpdate)
		_, err := NewRouter(Bindings(defaultTopics()), h)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interview.bulkupdate")
	})

	t.Run("shared topic", func(t *testing.T) {
		topics := defaultTopics()
		topics.RoleUpdate = topics.RoleCreate
		_, err := NewRouter(Bindings(topics), allHandlers())
		assert.Error(t, err)
	})

	t.Run("blank topic", func(t *testing.T) {
		topics := defaultTopics()
		topics.JobDelete = ""
		_, err := NewRouter(Bindings(topics), allHandlers())
		assert.Error(t, err)
	})
}
