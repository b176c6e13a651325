package processors

import (
	"context"

	"taas-es-processor/internal/events"
	"taas-es-processor/internal/store"
)

const msgTypeJobCandidateUpdate = "jobcandidate:update"

func (s *Set) jobCandidateCreate(ctx context.Context, req events.Request) error {
	candidate, err := s.payload(events.JobCandidateCreate, req)
	if err != nil {
		return err
	}
	return req.Store.Create(ctx, s.cfg.Indices.JobCandidate, str(candidate, "id"), candidate)
}

func (s *Set) jobCandidateUpdate(ctx context.Context, req events.Request) error {
	candidate, err := s.payload(events.JobCandidateUpdate, req)
	if err != nil {
		return err
	}
	id := str(candidate, "id")

	store.Acquire(req.Store)
	previous, err := req.Store.Get(ctx, s.cfg.Indices.JobCandidate, id)
	if err != nil {
		return err
	}
	if err := req.Store.Update(ctx, s.cfg.Indices.JobCandidate, id, candidate); err != nil {
		return err
	}

	s.notifyJobCandidate(ctx, req, candidate, previous)
	return nil
}

func (s *Set) jobCandidateDelete(ctx context.Context, req events.Request) error {
	candidate, err := s.payload(events.JobCandidateDelete, req)
	if err != nil {
		return err
	}
	return req.Store.Delete(ctx, s.cfg.Indices.JobCandidate, str(candidate, "id"))
}

// notifyJobCandidate posts a status change when the new status is one of
// the configured statuses. The candidate must carry an externalId; the
// message references the job by its externalId too.
func (s *Set) notifyJobCandidate(ctx context.Context, req events.Request, data, previous store.Document) {
	id := str(data, "id")
	log := s.log(req, "JobCandidate", id)
	channel := s.cfg.Notifications.JobCandidate
	if !channel.Enabled() {
		log.Debug("job candidate notifications switched off", nil)
		return
	}

	status := str(data, "status")
	if status == str(previous, "status") || !contains(channel.Statuses, status) {
		log.Debug("job candidate status not notified", map[string]interface{}{
			"status":         status,
			"previousStatus": str(previous, "status"),
		})
		return
	}

	candidate, err := req.Store.Get(ctx, s.cfg.Indices.JobCandidate, id)
	if err != nil {
		log.WithError(err).Warn("failed to reload job candidate for notification", nil)
		return
	}
	if str(candidate, "externalId") == "" {
		log.Debug("job candidate has no externalId, no notification", nil)
		return
	}
	job, err := req.Store.Get(ctx, s.cfg.Indices.Job, str(candidate, "jobId"))
	if err != nil {
		log.WithError(err).Warn("failed to load job for notification", map[string]interface{}{"jobId": str(candidate, "jobId")})
		return
	}

	message := map[string]interface{}{
		"type":             msgTypeJobCandidateUpdate,
		"status":           str(candidate, "status"),
		"jobCandidateSlug": str(candidate, "externalId"),
		"jobSlug":          job["externalId"],
	}
	if err := s.notifier.PostMessage(ctx, channel.Destination, message); err != nil {
		log.WithError(err).Error("failed to post job candidate notification", nil)
		return
	}
	log.Debug("job candidate notification posted", map[string]interface{}{"status": status})
}
