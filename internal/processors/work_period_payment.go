package processors

import (
	"context"

	"taas-es-processor/internal/aggregate"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/store"
)

const (
	fieldPayments = "payments"
	pathPayments  = fieldWorkPeriods + "." + fieldPayments
)

func (s *Set) paymentsOf(rbID, wpID string) aggregate.Ref {
	return aggregate.Ref{
		Index:    s.cfg.Indices.ResourceBooking,
		DocID:    rbID,
		Field:    fieldWorkPeriods,
		ParentID: wpID,
		SubField: fieldPayments,
	}
}

// findWorkPeriod returns the booking holding work period wpID.
func (s *Set) findWorkPeriod(ctx context.Context, st store.Store, wpID string) (store.Hit, error) {
	return s.maintainer.FindParent(ctx, st, s.cfg.Indices.ResourceBooking, fieldWorkPeriods, "WorkPeriod", wpID)
}

// findPayment returns the booking holding the payment, the id of the work
// period it currently sits in and the stored payment.
func (s *Set) findPayment(ctx context.Context, st store.Store, id string) (store.Hit, string, map[string]interface{}, error) {
	hit, err := s.maintainer.FindParent(ctx, st, s.cfg.Indices.ResourceBooking, pathPayments, "WorkPeriodPayment", id)
	if err != nil {
		return store.Hit{}, "", nil, err
	}
	for _, item := range aggregate.Children(hit.Source, fieldWorkPeriods) {
		wp, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if payment, idx := aggregate.FindChild(aggregate.Children(wp, fieldPayments), id); idx >= 0 {
			return hit, str(wp, "id"), payment, nil
		}
	}
	return hit, "", nil, nil
}

func (s *Set) paymentCreate(ctx context.Context, req events.Request) error {
	payment, err := s.payload(events.WorkPeriodPaymentCreate, req)
	if err != nil {
		return err
	}
	wpID := str(payment, "workPeriodId")

	store.Acquire(req.Store)
	hit, err := s.findWorkPeriod(ctx, req.Store, wpID)
	if err != nil {
		return s.deferMissingParent(ctx, req, err)
	}
	return s.maintainer.Append(ctx, req.Store, s.paymentsOf(hit.ID, wpID), payment)
}

// paymentUpdate merges in place, or moves the payment when workPeriodId
// changed. The destination work period may live in another booking.
func (s *Set) paymentUpdate(ctx context.Context, req events.Request) error {
	payment, err := s.payload(events.WorkPeriodPaymentUpdate, req)
	if err != nil {
		return err
	}
	id := str(payment, "id")

	store.Acquire(req.Store)
	hit, currentWP, current, err := s.findPayment(ctx, req.Store, id)
	if err != nil {
		return err
	}

	targetWP := str(payment, "workPeriodId")
	if currentWP == targetWP {
		return s.maintainer.Merge(ctx, req.Store, s.paymentsOf(hit.ID, currentWP), id, payment)
	}

	target, err := s.findWorkPeriod(ctx, req.Store, targetWP)
	if err != nil {
		return err
	}
	moved := store.Document(current).Clone()
	if moved == nil {
		moved = store.Document{}
	}
	store.Merge(moved, payment)

	s.log(req, "WorkPeriodPayment", id).Debug("moving payment", map[string]interface{}{
		"fromWorkPeriod": currentWP,
		"toWorkPeriod":   targetWP,
	})
	return s.maintainer.Reparent(ctx, req.Store, s.paymentsOf(hit.ID, currentWP), s.paymentsOf(target.ID, targetWP), moved)
}

func (s *Set) paymentDelete(ctx context.Context, req events.Request) error {
	payment, err := s.payload(events.WorkPeriodPaymentDelete, req)
	if err != nil {
		return err
	}
	id := str(payment, "id")

	store.Acquire(req.Store)
	hit, wpID, _, err := s.findPayment(ctx, req.Store, id)
	if err != nil {
		return err
	}
	return s.maintainer.Remove(ctx, req.Store, s.paymentsOf(hit.ID, wpID), id)
}
