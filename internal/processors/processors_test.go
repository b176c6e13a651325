package processors

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"taas-es-processor/internal/aggregate"
	"taas-es-processor/internal/bus"
	"taas-es-processor/internal/common/auth"
	"taas-es-processor/internal/common/config"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/retry"
	"taas-es-processor/internal/store"
)

const (
	source    = "taas-api"
	createdAt = "2021-05-01T10:00:00.000Z"
)

var userID = uuid.NewString()

type sentMessage struct {
	Destination string
	Message     map[string]interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingNotifier) PostMessage(_ context.Context, destination string, message map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{Destination: destination, Message: message})
	return r.err
}

func (r *recordingNotifier) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.sent...)
}

type fakeCRM struct {
	jobs []map[string]interface{}
	err  error
}

func (f *fakeCRM) CreateJob(_ context.Context, job map[string]interface{}) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

type harness struct {
	cfg      *config.Config
	set      *Set
	client   *store.Client
	queue    *retry.RedisQueue
	mr       *miniredis.Miniredis
	notifier *recordingNotifier
	crm      *fakeCRM
	topics   map[events.Operation]string
}

func newHarness(t *testing.T, configure ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.Retry.MaxRetry = 3
	cfg.Retry.BaseDelay = 10
	for _, fn := range configure {
		fn(cfg)
	}

	log := logger.NewTestLogger(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		cfg:      cfg,
		client:   store.NewClient(store.NewMemoryEngine(), log),
		queue:    retry.NewRedisQueue(rdb, cfg.Retry.QueueKey, log),
		mr:       mr,
		notifier: &recordingNotifier{},
		crm:      &fakeCRM{},
		topics:   map[events.Operation]string{},
	}
	for topic, op := range events.Bindings(cfg.Topics) {
		h.topics[op] = topic
	}

	set, err := NewSet(Deps{
		Config:     cfg,
		Maintainer: aggregate.NewMaintainer(aggregate.Strategy(cfg.Aggregate.Strategy), log),
		Scheduler:  retry.NewScheduler(h.queue, cfg.Retry.MaxRetry, config.GetDuration(cfg.Retry.BaseDelay), log),
		Notifier:   h.notifier,
		Tokens:     auth.StaticToken("m2m-token"),
		CRM:        h.crm,
		Logger:     log,
	})
	require.NoError(t, err)
	h.set = set
	return h
}

// handle runs op the way the dispatcher does: one unit of work per message.
func (h *harness) handle(t *testing.T, op events.Operation, payload interface{}) error {
	t.Helper()
	return h.handleFrom(t, op, source, payload)
}

func (h *harness) handleFrom(t *testing.T, op events.Operation, originator string, payload interface{}) error {
	t.Helper()
	topic := h.topics[op]
	msg, err := bus.NewMessage(topic, originator, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	uow := h.client.Begin("transaction_" + uuid.NewString())
	defer uow.End()
	return h.set.Handlers()[op](context.Background(), events.Request{
		Topic:   topic,
		Message: msg,
		Raw:     raw,
		Store:   uow,
		Token:   uow.Token(),
	})
}

// replay claims every queued retry and runs it through the retry handler.
func (h *harness) replay(t *testing.T) []error {
	t.Helper()
	envs, err := h.queue.Claim(context.Background(), time.Now().Add(time.Hour), 100)
	require.NoError(t, err)

	var errs []error
	for _, env := range envs {
		errs = append(errs, h.handleFrom(t, events.ActionRetry, h.cfg.App.Originator, env))
	}
	return errs
}

func (h *harness) queued(t *testing.T) int {
	t.Helper()
	if !h.mr.Exists(h.cfg.Retry.QueueKey) {
		return 0
	}
	members, err := h.mr.ZMembers(h.cfg.Retry.QueueKey)
	require.NoError(t, err)
	return len(members)
}

func (h *harness) get(t *testing.T, index, id string) store.Document {
	t.Helper()
	doc, err := h.client.Get(context.Background(), index, id)
	require.NoError(t, err)
	return doc
}

func (h *harness) workPeriods(t *testing.T, rbID string) []interface{} {
	t.Helper()
	return aggregate.Children(h.get(t, h.cfg.Indices.ResourceBooking, rbID), fieldWorkPeriods)
}

func childIDs(items []interface{}) []string {
	out := []string{}
	for _, item := range items {
		out = append(out, item.(map[string]interface{})["id"].(string))
	}
	return out
}

func audit(doc map[string]interface{}) map[string]interface{} {
	doc["createdAt"] = createdAt
	doc["createdBy"] = userID
	return doc
}

func jobPayload(id, status string) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":                      id,
		"projectId":               111,
		"externalId":              "job-slug-" + id[:8],
		"title":                   "Senior Go Engineer",
		"numPositions":            2,
		"skills":                  []string{uuid.NewString()},
		"status":                  status,
		"isApplicationPageActive": true,
	})
}

func candidatePayload(id, jobID, status, externalID string) map[string]interface{} {
	doc := audit(map[string]interface{}{
		"id":     id,
		"jobId":  jobID,
		"userId": userID,
		"status": status,
	})
	if externalID != "" {
		doc["externalId"] = externalID
	}
	return doc
}

func bookingPayload(id string) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":           id,
		"projectId":    111,
		"userId":       userID,
		"status":       "placed",
		"startDate":    "2021-05-01",
		"endDate":      "2021-08-01",
		"memberRate":   13.5,
		"customerRate": 20,
		"rateType":     "weekly",
	})
}

func workPeriodPayload(id, rbID string, daysWorked int) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":                id,
		"resourceBookingId": rbID,
		"userHandle":        "pshah",
		"projectId":         111,
		"startDate":         "2021-05-02",
		"endDate":           "2021-05-08",
		"daysWorked":        daysWorked,
		"paymentStatus":     "pending",
	})
}

func paymentPayload(id, wpID, status string) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":           id,
		"workPeriodId": wpID,
		"amount":       100,
		"status":       status,
	})
}

func interviewPayload(id, candidateID, status string) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":             id,
		"jobCandidateId": candidateID,
		"round":          1,
		"duration":       30,
		"hostName":       "Host",
		"hostEmail":      "host@example.com",
		"status":         status,
	})
}

func rolePayload(id, name string) map[string]interface{} {
	return audit(map[string]interface{}{
		"id":           id,
		"name":         name,
		"listOfSkills": []string{"Go", "Elasticsearch"},
		"rates":        []map[string]interface{}{{"global": 50, "inCountry": 60, "offShore": 40}},
	})
}

func idPayload(id string) map[string]interface{} {
	return map[string]interface{}{"id": id}
}
