// Package notifier implements the bounded merchant callback retry queue.
// Delivery attempts run on a shared worker pool; failures back off
// exponentially until the retry budget is spent. When the queue is full the
// oldest pending task is evicted, never the newest.
package notifier

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/vietpay-gateway/internal/domain/notification"
	"github.com/vietpay-gateway/internal/domain/order"
)

// Options configures the retry queue
type Options struct {
	Capacity   int
	BaseDelay  time.Duration
	MaxRetries int
	PoolSize   int
	Timeout    time.Duration
}

// Stats is a point-in-time snapshot of queue counters
type Stats struct {
	Pending   int    `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Retried   uint64 `json:"retried"`
	Dropped   uint64 `json:"dropped"`
	Evicted   uint64 `json:"evicted"`
}

type queued struct {
	task  *notification.Task
	elem  *list.Element
	timer *time.Timer
}

// Queue is the bounded retry queue
type Queue struct {
	logger      *slog.Logger
	sender      Sender
	pool        *ants.Pool
	opts        Options
	onDelivered func(orderID string)

	mu      sync.Mutex
	pending *list.List // *queued, oldest at front
	items   map[string]*queued
	closed  bool

	delivered uint64
	retried   uint64
	dropped   uint64
	evicted   uint64
}

// NewQueue creates the retry queue and its delivery pool. onDelivered is
// invoked once per task after a successful delivery; it may be nil.
func NewQueue(logger *slog.Logger, sender Sender, opts Options, onDelivered func(orderID string)) (*Queue, error) {
	pool, err := ants.NewPool(opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier pool: %w", err)
	}

	return &Queue{
		logger:      logger,
		sender:      sender,
		pool:        pool,
		opts:        opts,
		onDelivered: onDelivered,
		pending:     list.New(),
		items:       make(map[string]*queued),
	}, nil
}

// EnqueueOrderNotification builds and enqueues the callback for an order's
// current state.
func (q *Queue) EnqueueOrderNotification(o *order.Order) {
	task := notification.New(
		o.MerchantPublicID,
		o.CallbackURL,
		o.OrderID,
		string(o.Status),
		o.PaidAmount,
		"Order "+string(o.Status),
		fmt.Sprintf("Order %s is now %s", o.OrderID, o.Status),
	)
	q.Enqueue(task)
}

// Enqueue admits a task, evicting the oldest pending task when full
func (q *Queue) Enqueue(task *notification.Task) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	if q.pending.Len() >= q.opts.Capacity {
		oldest := q.pending.Front()
		if oldest != nil {
			item := oldest.Value.(*queued)
			q.removeLocked(item)
			q.evicted++
			q.logger.Warn("Notification queue full, evicted oldest task",
				"evicted_order_id", item.task.OrderID,
				"capacity", q.opts.Capacity)
		}
	}

	item := &queued{task: task}
	item.elem = q.pending.PushBack(item)
	q.items[task.TaskID.String()] = item
	q.mu.Unlock()

	q.submit(item)
}

// Stats returns a snapshot of the queue counters
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   q.pending.Len(),
		Delivered: q.delivered,
		Retried:   q.retried,
		Dropped:   q.dropped,
		Evicted:   q.evicted,
	}
}

// Close stops retries and releases the delivery pool. Pending tasks are
// discarded; callbacks are best effort by contract.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	for _, item := range q.items {
		if item.timer != nil {
			item.timer.Stop()
		}
	}
	q.items = make(map[string]*queued)
	q.pending.Init()
	q.mu.Unlock()

	q.pool.Release()
}

func (q *Queue) submit(item *queued) {
	if err := q.pool.Submit(func() { q.deliver(item) }); err != nil {
		q.logger.Error("Failed to submit notification delivery", "order_id", item.task.OrderID, "error", err)
	}
}

func (q *Queue) deliver(item *queued) {
	ctx, cancel := context.WithTimeout(context.Background(), q.opts.Timeout)
	defer cancel()

	err := q.sender.Send(ctx, item.task)

	q.mu.Lock()
	if _, live := q.items[item.task.TaskID.String()]; !live {
		// Evicted or closed while the attempt was in flight.
		q.mu.Unlock()
		return
	}

	if err == nil {
		q.removeLocked(item)
		q.delivered++
		q.mu.Unlock()

		q.logger.Info("Notification delivered", "order_id", item.task.OrderID, "attempts", item.task.RetryCount+1)
		if q.onDelivered != nil {
			q.onDelivered(item.task.OrderID)
		}
		return
	}

	item.task.RetryCount++
	if item.task.RetryCount >= q.opts.MaxRetries {
		q.removeLocked(item)
		q.dropped++
		q.mu.Unlock()

		q.logger.Error("Notification dropped after retry budget",
			"order_id", item.task.OrderID,
			"attempts", item.task.RetryCount,
			"error", err)
		return
	}

	q.retried++
	delay := q.opts.BaseDelay << uint(item.task.RetryCount-1)
	item.task.ScheduledAt = time.Now().Add(delay)
	item.timer = time.AfterFunc(delay, func() { q.submit(item) })
	q.mu.Unlock()

	q.logger.Warn("Notification delivery failed, retrying",
		"order_id", item.task.OrderID,
		"retry", item.task.RetryCount,
		"delay", delay,
		"error", err)
}

func (q *Queue) removeLocked(item *queued) {
	if item.timer != nil {
		item.timer.Stop()
	}
	q.pending.Remove(item.elem)
	delete(q.items, item.task.TaskID.String())
}
