// Package notify fans sync events out to connected subscribers.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

// DefaultBufferSize размер буфера подписчика по умолчанию
const DefaultBufferSize = 64

// Subscription одна подписка (обычно одно websocket соединение)
type Subscription struct {
	ch       chan api.Event
	done     chan struct{}
	ID       string
	DeviceID string
	Role     models.Role
	once     sync.Once
}

// C returns the channel for receiving events.
// The channel is closed when the subscription is dropped or unsubscribed.
func (s *Subscription) C() <-chan api.Event {
	return s.ch
}

// Done закрывается вместе с подпиской
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// Hub manages subscriptions and routes events to them.
type Hub struct {
	logger     *slog.Logger
	subs       map[string]*Subscription
	mu         sync.RWMutex
	nextID     uint64
	bufferSize int
}

// NewHub creates a new event hub
func NewHub(logger *slog.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		logger:     logger,
		subs:       make(map[string]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a subscriber for the device
func (h *Hub) Subscribe(deviceID string, role models.Role) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		ID:       fmt.Sprintf("sub-%d", h.nextID),
		DeviceID: deviceID,
		Role:     role,
		ch:       make(chan api.Event, h.bufferSize),
		done:     make(chan struct{}),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Count returns the number of active subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish routes the event to interested subscribers without blocking.
// A subscriber whose buffer is full is dropped. Events of unknown type are skipped.
func (h *Hub) Publish(ctx context.Context, event models.Event) {
	if !routable(event) {
		h.logger.WarnContext(ctx, "Skipping unknown event", "type", fmt.Sprintf("%T", event))
		return
	}
	msg := api.EventFromModel(event)

	var slow []string
	h.mu.RLock()
	for id, sub := range h.subs {
		if !interested(sub, event) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.WarnContext(ctx, "Dropping slow subscriber", "subscription", id, "event", msg.Type)
		h.Unsubscribe(id)
	}
}

// routable сообщает, знает ли хаб, кому доставлять событие
func routable(event models.Event) bool {
	switch event.(type) {
	case models.BatchProcessed, models.ConflictDetected, models.ConflictResolved:
		return true
	default:
		return false
	}
}

// interested решает, кому доставлять событие
func interested(sub *Subscription, event models.Event) bool {
	switch e := event.(type) {
	case models.BatchProcessed:
		return true
	case models.ConflictDetected:
		// конфликт видят операторы и устройство, чей батч его породил
		return sub.Role == models.RoleOperator || sub.DeviceID == e.DeviceID
	case models.ConflictResolved:
		return true
	default:
		return false
	}
}
