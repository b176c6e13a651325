package processors

import (
	"context"

	"taas-es-processor/internal/events"
)

func (s *Set) roleCreate(ctx context.Context, req events.Request) error {
	role, err := s.payload(events.RoleCreate, req)
	if err != nil {
		return err
	}
	return req.Store.Create(ctx, s.cfg.Indices.Role, str(role, "id"), role)
}

func (s *Set) roleUpdate(ctx context.Context, req events.Request) error {
	role, err := s.payload(events.RoleUpdate, req)
	if err != nil {
		return err
	}
	return req.Store.Update(ctx, s.cfg.Indices.Role, str(role, "id"), role)
}

func (s *Set) roleDelete(ctx context.Context, req events.Request) error {
	role, err := s.payload(events.RoleDelete, req)
	if err != nil {
		return err
	}
	return req.Store.Delete(ctx, s.cfg.Indices.Role, str(role, "id"))
}
