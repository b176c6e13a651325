package processors

import (
	"context"

	"taas-es-processor/internal/events"
)

// Resource bookings are stored without their id field; the document id
// carries it.

func (s *Set) resourceBookingCreate(ctx context.Context, req events.Request) error {
	rb, err := s.payload(events.ResourceBookingCreate, req)
	if err != nil {
		return err
	}
	return req.Store.Create(ctx, s.cfg.Indices.ResourceBooking, str(rb, "id"), without(rb, "id"))
}

func (s *Set) resourceBookingUpdate(ctx context.Context, req events.Request) error {
	rb, err := s.payload(events.ResourceBookingUpdate, req)
	if err != nil {
		return err
	}
	return req.Store.Update(ctx, s.cfg.Indices.ResourceBooking, str(rb, "id"), without(rb, "id"))
}

func (s *Set) resourceBookingDelete(ctx context.Context, req events.Request) error {
	rb, err := s.payload(events.ResourceBookingDelete, req)
	if err != nil {
		return err
	}
	return req.Store.Delete(ctx, s.cfg.Indices.ResourceBooking, str(rb, "id"))
}
