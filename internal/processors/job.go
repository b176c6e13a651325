package processors

import (
	"context"

	"taas-es-processor/internal/events"
	"taas-es-processor/internal/store"
)

const (
	msgTypeJobCreate = "job:create"
	msgTypeJobUpdate = "job:update"
)

func (s *Set) jobCreate(ctx context.Context, req events.Request) error {
	job, err := s.payload(events.JobCreate, req)
	if err != nil {
		return err
	}
	id := str(job, "id")

	if err := req.Store.Create(ctx, s.cfg.Indices.Job, id, job); err != nil {
		return err
	}
	s.log(req, "Job", id).Debug("job indexed", nil)

	s.notifyJob(ctx, req, msgTypeJobCreate, job, nil)
	s.syncJob(ctx, req, job)
	return nil
}

func (s *Set) jobUpdate(ctx context.Context, req events.Request) error {
	job, err := s.payload(events.JobUpdate, req)
	if err != nil {
		return err
	}
	id := str(job, "id")

	// the previous status decides whether to notify
	store.Acquire(req.Store)
	previous, err := req.Store.Get(ctx, s.cfg.Indices.Job, id)
	if err != nil {
		return err
	}
	if err := req.Store.Update(ctx, s.cfg.Indices.Job, id, job); err != nil {
		return err
	}

	s.notifyJob(ctx, req, msgTypeJobUpdate, job, previous)
	return nil
}

func (s *Set) jobDelete(ctx context.Context, req events.Request) error {
	job, err := s.payload(events.JobDelete, req)
	if err != nil {
		return err
	}
	return req.Store.Delete(ctx, s.cfg.Indices.Job, str(job, "id"))
}

// notifyJob posts the job to the job channel when its status is one of the
// configured statuses and differs from previous. Failures are logged.
func (s *Set) notifyJob(ctx context.Context, req events.Request, msgType string, job, previous store.Document) {
	log := s.log(req, "Job", str(job, "id"))
	channel := s.cfg.Notifications.Job
	if !channel.Enabled() {
		log.Debug("job notifications switched off", nil)
		return
	}

	status := str(job, "status")
	if previous != nil && str(previous, "status") == status {
		log.Debug("job status unchanged, no notification", map[string]interface{}{"status": status})
		return
	}
	if !contains(channel.Statuses, status) {
		log.Debug("job status not notified", map[string]interface{}{"status": status})
		return
	}

	message := map[string]interface{}{
		"type":        msgType,
		"payload":     job,
		"companySlug": s.cfg.Notifications.CompanySlug,
		"contactSlug": s.cfg.Notifications.ContactSlug,
	}
	if msgType == msgTypeJobCreate {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			log.WithError(err).Error("failed to get m2m token for job notification", nil)
			return
		}
		message["authToken"] = token
		message["topcoderApiUrl"] = s.cfg.Notifications.APIURL
	}

	if err := s.notifier.PostMessage(ctx, channel.Destination, message); err != nil {
		log.WithError(err).Error("failed to post job notification", map[string]interface{}{"type": msgType})
		return
	}
	log.Debug("job notification posted", map[string]interface{}{"type": msgType, "status": status})
}

func (s *Set) syncJob(ctx context.Context, req events.Request, job store.Document) {
	if s.crm == nil {
		return
	}
	if err := s.crm.CreateJob(ctx, job); err != nil {
		s.log(req, "Job", str(job, "id")).WithError(err).Error("failed to sync job to rcrm", nil)
	}
}
