// Package processors applies inbound entity events to the search index.
// There is one file per entity; every handler validates the whole envelope
// before touching the store.
package processors

import (
	"context"
	"fmt"

	"taas-es-processor/internal/aggregate"
	"taas-es-processor/internal/common/auth"
	"taas-es-processor/internal/common/config"
	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/common/notifier"
	"taas-es-processor/internal/common/validation"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/retry"
	"taas-es-processor/internal/store"
)

// JobSyncer mirrors newly created jobs into an external system.
type JobSyncer interface {
	CreateJob(ctx context.Context, job map[string]interface{}) error
}

type Deps struct {
	Config     *config.Config
	Validator  *validation.SchemaValidator
	Maintainer *aggregate.Maintainer
	Scheduler  *retry.Scheduler
	Notifier   notifier.Notifier
	Tokens     auth.TokenProvider
	// CRM is nil when job sync is switched off.
	CRM    JobSyncer
	Logger logger.Logger
}

// Set holds the handler for every operation.
type Set struct {
	cfg        *config.Config
	validator  *validation.SchemaValidator
	maintainer *aggregate.Maintainer
	scheduler  *retry.Scheduler
	notifier   notifier.Notifier
	tokens     auth.TokenProvider
	crm        JobSyncer
	logger     logger.Logger

	bindings map[string]events.Operation
	handlers map[events.Operation]events.HandlerFunc
}

func NewSet(deps Deps) (*Set, error) {
	if deps.Config == nil || deps.Maintainer == nil || deps.Scheduler == nil {
		return nil, fmt.Errorf("processors need config, maintainer and scheduler")
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewSchemaValidator()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	if deps.Tokens == nil {
		deps.Tokens = auth.StaticToken("")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if err := registerSchemas(deps.Validator); err != nil {
		return nil, err
	}

	s := &Set{
		cfg:        deps.Config,
		validator:  deps.Validator,
		maintainer: deps.Maintainer,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		tokens:     deps.Tokens,
		crm:        deps.CRM,
		logger:     deps.Logger.Named("processors"),
		bindings:   events.Bindings(deps.Config.Topics),
	}
	s.handlers = map[events.Operation]events.HandlerFunc{
		events.JobCreate:               s.jobCreate,
		events.JobUpdate:               s.jobUpdate,
		events.JobDelete:               s.jobDelete,
		events.JobCandidateCreate:      s.jobCandidateCreate,
		events.JobCandidateUpdate:      s.jobCandidateUpdate,
		events.JobCandidateDelete:      s.jobCandidateDelete,
		events.ResourceBookingCreate:   s.resourceBookingCreate,
		events.ResourceBookingUpdate:   s.resourceBookingUpdate,
		events.ResourceBookingDelete:   s.resourceBookingDelete,
		events.WorkPeriodCreate:        s.workPeriodCreate,
		events.WorkPeriodUpdate:        s.workPeriodUpdate,
		events.WorkPeriodDelete:        s.workPeriodDelete,
		events.WorkPeriodPaymentCreate: s.paymentCreate,
		events.WorkPeriodPaymentUpdate: s.paymentUpdate,
		events.WorkPeriodPaymentDelete: s.paymentDelete,
		events.InterviewRequest:        s.interviewRequest,
		events.InterviewUpdate:         s.interviewUpdate,
		events.InterviewBulkUpdate:     s.interviewBulkUpdate,
		events.RoleCreate:              s.roleCreate,
		events.RoleUpdate:              s.roleUpdate,
		events.RoleDelete:              s.roleDelete,
		events.ActionRetry:             s.actionRetry,
	}
	return s, nil
}

// Handlers returns the handler table for events.NewRouter.
func (s *Set) Handlers() map[events.Operation]events.HandlerFunc {
	out := make(map[events.Operation]events.HandlerFunc, len(s.handlers))
	for op, h := range s.handlers {
		out[op] = h
	}
	return out
}

// payload validates req against the schema of op and decodes its payload.
func (s *Set) payload(op events.Operation, req events.Request) (store.Document, error) {
	result, err := s.validator.Validate(op.String(), req.Raw)
	if err != nil {
		return nil, apperrors.NewValidationFailedError(op.String(), []string{err.Error()})
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailedError(op.String(), result.Violations())
	}

	doc, err := store.DecodeDocument(req.Message.Payload)
	if err != nil {
		return nil, apperrors.NewDecodeError(err)
	}
	return doc, nil
}

// deferMissingParent hands a message whose parent is not indexed yet to the
// retry scheduler. Other errors pass through.
func (s *Set) deferMissingParent(ctx context.Context, req events.Request, err error) error {
	if !apperrors.IsNotFound(err) {
		return err
	}
	return s.scheduler.Defer(ctx, req.Topic, req.Message.Payload, req.Retry, err)
}

func (s *Set) log(req events.Request, entity, id string) logger.Logger {
	return s.logger.WithFields(map[string]interface{}{
		"transactionId": req.Token,
		"topic":         req.Topic,
		"entity":        entity,
		"id":            id,
		"retry":         req.Retry,
	})
}

func str(doc map[string]interface{}, key string) string {
	v, _ := doc[key].(string)
	return v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// without returns a copy of doc minus the given keys.
func without(doc store.Document, keys ...string) store.Document {
	out := doc.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
