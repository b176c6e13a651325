package processors

import (
	"context"

	"taas-es-processor/internal/aggregate"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/store"
)

const fieldWorkPeriods = "workPeriods"

func (s *Set) workPeriodsOf(rbID string) aggregate.Ref {
	return aggregate.Ref{Index: s.cfg.Indices.ResourceBooking, DocID: rbID, Field: fieldWorkPeriods}
}

// workPeriodCreate appends to the booking named by resourceBookingId. A
// booking that is not indexed yet sends the message to the retry queue.
func (s *Set) workPeriodCreate(ctx context.Context, req events.Request) error {
	wp, err := s.payload(events.WorkPeriodCreate, req)
	if err != nil {
		return err
	}

	err = s.maintainer.Append(ctx, req.Store, s.workPeriodsOf(str(wp, "resourceBookingId")), wp)
	return s.deferMissingParent(ctx, req, err)
}

// workPeriodUpdate merges in place, or moves the work period with its
// payments when resourceBookingId changed.
func (s *Set) workPeriodUpdate(ctx context.Context, req events.Request) error {
	wp, err := s.payload(events.WorkPeriodUpdate, req)
	if err != nil {
		return err
	}
	id := str(wp, "id")

	store.Acquire(req.Store)
	hit, err := s.maintainer.FindParent(ctx, req.Store, s.cfg.Indices.ResourceBooking, fieldWorkPeriods, "WorkPeriod", id)
	if err != nil {
		return err
	}

	target := str(wp, "resourceBookingId")
	if hit.ID == target {
		return s.maintainer.Merge(ctx, req.Store, s.workPeriodsOf(target), id, wp)
	}

	moved := map[string]interface{}{}
	if current, idx := aggregate.FindChild(aggregate.Children(hit.Source, fieldWorkPeriods), id); idx >= 0 {
		moved = store.Document(current).Clone()
	}
	store.Merge(moved, wp)

	s.log(req, "WorkPeriod", id).Debug("moving work period", map[string]interface{}{"from": hit.ID, "to": target})
	return s.maintainer.Reparent(ctx, req.Store, s.workPeriodsOf(hit.ID), s.workPeriodsOf(target), moved)
}

func (s *Set) workPeriodDelete(ctx context.Context, req events.Request) error {
	wp, err := s.payload(events.WorkPeriodDelete, req)
	if err != nil {
		return err
	}
	id := str(wp, "id")

	store.Acquire(req.Store)
	hit, err := s.maintainer.FindParent(ctx, req.Store, s.cfg.Indices.ResourceBooking, fieldWorkPeriods, "WorkPeriod", id)
	if err != nil {
		return err
	}
	return s.maintainer.Remove(ctx, req.Store, s.workPeriodsOf(hit.ID), id)
}
