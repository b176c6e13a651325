package store

import (
	"context"
	"sync"

	"taas-es-processor/internal/common/logger"
)

// Client owns the process-wide write lock. Calls made directly on the
// Client never lock for reads and hold the lock for one call on writes.
// Multi-call sequences go through a UnitOfWork.
type Client struct {
	engine Store
	mu     sync.Mutex
	logger logger.Logger
}

func NewClient(engine Store, log logger.Logger) *Client {
	return &Client{
		engine: engine,
		logger: log.Named("store"),
	}
}

// Begin opens a unit of work bound to token. Callers must End it.
func (c *Client) Begin(token string) *UnitOfWork {
	return &UnitOfWork{client: c, token: token}
}

func (c *Client) Get(ctx context.Context, index, id string) (Document, error) {
	return c.engine.Get(ctx, index, id)
}

func (c *Client) Search(ctx context.Context, index string, q NestedQuery) ([]Hit, error) {
	return c.engine.Search(ctx, index, q)
}

func (c *Client) Create(ctx context.Context, index, id string, body Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Create(ctx, index, id, body)
}

func (c *Client) Update(ctx context.Context, index, id string, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Update(ctx, index, id, doc)
}

func (c *Client) UpdateScript(ctx context.Context, index, id string, script Script) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.UpdateScript(ctx, index, id, script)
}

func (c *Client) UpdateByQuery(ctx context.Context, index string, ids []string, script Script) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.UpdateByQuery(ctx, index, ids, script)
}

func (c *Client) Delete(ctx context.Context, index, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Delete(ctx, index, id)
}
