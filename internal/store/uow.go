package store

import (
	"context"
)

// UnitOfWork scopes the store calls made while handling one message.
//
// The first mutating call (or an explicit Acquire) takes the client lock;
// it is held until End. Reads issued before that run unlocked. A UnitOfWork
// is used by a single goroutine.
type UnitOfWork struct {
	client *Client
	token  string
	held   bool
	ended  bool
}

// Token returns the correlation token the unit of work was opened with.
func (u *UnitOfWork) Token() string {
	return u.token
}

// Held reports whether the unit of work currently holds the lock.
func (u *UnitOfWork) Held() bool {
	return u.held
}

// Acquire takes the lock now. Used before a read whose result feeds a
// later write.
func (u *UnitOfWork) Acquire() {
	if u.held || u.ended {
		return
	}
	u.client.mu.Lock()
	u.held = true
	u.client.logger.Debug("lock acquired", map[string]interface{}{"transactionId": u.token})
}

// End releases the lock if held. Safe to call more than once.
func (u *UnitOfWork) End() {
	if u.ended {
		return
	}
	u.ended = true
	if u.held {
		u.held = false
		u.client.mu.Unlock()
		u.client.logger.Debug("lock released", map[string]interface{}{"transactionId": u.token})
	}
}

func (u *UnitOfWork) Get(ctx context.Context, index, id string) (Document, error) {
	return u.client.engine.Get(ctx, index, id)
}

func (u *UnitOfWork) Search(ctx context.Context, index string, q NestedQuery) ([]Hit, error) {
	return u.client.engine.Search(ctx, index, q)
}

func (u *UnitOfWork) Create(ctx context.Context, index, id string, body Document) error {
	u.Acquire()
	return u.client.engine.Create(ctx, index, id, body)
}

func (u *UnitOfWork) Update(ctx context.Context, index, id string, doc Document) error {
	u.Acquire()
	return u.client.engine.Update(ctx, index, id, doc)
}

func (u *UnitOfWork) UpdateScript(ctx context.Context, index, id string, script Script) error {
	u.Acquire()
	return u.client.engine.UpdateScript(ctx, index, id, script)
}

func (u *UnitOfWork) UpdateByQuery(ctx context.Context, index string, ids []string, script Script) error {
	u.Acquire()
	return u.client.engine.UpdateByQuery(ctx, index, ids, script)
}

func (u *UnitOfWork) Delete(ctx context.Context, index, id string) error {
	u.Acquire()
	return u.client.engine.Delete(ctx, index, id)
}

// Acquirer is implemented by stores that can pin the lock ahead of a write.
type Acquirer interface {
	Acquire()
}

// Acquire pins the lock on st when it supports it. Plain engines and the
// Client are left untouched.
func Acquire(st Store) {
	if a, ok := st.(Acquirer); ok {
		a.Acquire()
	}
}
