package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

type subscription struct {
	opts   models.QueryOptions
	ch     chan models.GroupedResult
	closed bool
}

// hub re-runs every live subscription's query after mutations. Each
// subscriber channel holds one result; a slow reader only sees the latest.
type hub struct {
	query  *QueryService
	logger logging.Logger

	// pubMu keeps a subscription's initial result from racing a publish.
	pubMu sync.Mutex

	mu      sync.Mutex
	subs    map[*subscription]struct{}
	running bool
	dirty   bool
}

func newHub(q *QueryService, logger logging.Logger) *hub {
	return &hub{query: q, logger: logger, subs: make(map[*subscription]struct{})}
}

func (h *hub) subscribe(ctx context.Context, opts models.QueryOptions) (<-chan models.GroupedResult, error) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	initial, err := h.query.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	s := &subscription{opts: opts, ch: make(chan models.GroupedResult, 1)}
	s.ch <- initial

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, s)
		s.closed = true
		close(s.ch)
		h.mu.Unlock()
	}()
	return s.ch, nil
}

// notify schedules a publish. Notifications that arrive while one is running
// collapse into a single follow-up.
func (h *hub) notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	if h.running {
		h.dirty = true
		return
	}
	h.running = true
	go h.loop()
}

func (h *hub) loop() {
	for {
		h.publish(context.Background())

		h.mu.Lock()
		if !h.dirty {
			h.running = false
			h.mu.Unlock()
			return
		}
		h.dirty = false
		h.mu.Unlock()
	}
}

func (h *hub) publish(ctx context.Context) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		res, err := h.query.Query(ctx, s.opts)
		if err != nil {
			h.logger.Warn(ctx, "subscription refresh failed", "error", err)
			continue
		}
		h.mu.Lock()
		if !s.closed {
			replace(s.ch, res)
		}
		h.mu.Unlock()
	}
}

// replace puts res in a buffer-1 channel, dropping an unread older value.
// Callers hold h.mu, so they are the only sender.
func replace(ch chan models.GroupedResult, res models.GroupedResult) {
	select {
	case ch <- res:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- res
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
