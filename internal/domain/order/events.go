package order

import (
	"context"
	"time"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
)

// EventType names an order domain event.
type EventType string

const (
	EventCreated      EventType = "order.created"
	EventUpdated      EventType = "order.updated"
	EventCancelled    EventType = "order.cancelled"
	EventPaymentAdded EventType = "order.payment_added"
	EventRecalculated EventType = "order.recalculated"
)

// Event is published in the transaction that produced it.
type Event struct {
	Type        EventType      `json:"type"`
	OrderID     id.ID          `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	ShopID      id.ID          `json:"shopId"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// EventPublisher stores events for later delivery. Implementations must write
// through the transaction in ctx so events commit or vanish with the order.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// AuditEntry is one recorded mutation of an order.
type AuditEntry struct {
	ID        id.ID          `json:"id"`
	OrderID   id.ID          `json:"orderId"`
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	Changes   map[string]any `json:"changes"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditTrail stores and reads the order history.
type AuditTrail interface {
	Record(ctx context.Context, entry AuditEntry) error
	History(ctx context.Context, orderID id.ID) ([]AuditEntry, error)
}

// Diff returns {field: {"old": .., "new": ..}} for fields that changed.
// A nil before means the record was created.
func Diff(before, after map[string]any) map[string]any {
	changes := make(map[string]any)
	for k, newV := range after {
		oldV, ok := before[k]
		if before != nil && ok && oldV == newV {
			continue
		}
		entry := map[string]any{"new": newV}
		if ok {
			entry["old"] = oldV
		}
		changes[k] = entry
	}
	for k, oldV := range before {
		if _, ok := after[k]; !ok {
			changes[k] = map[string]any{"old": oldV}
		}
	}
	return changes
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditEntry) error { return nil }

func (nopAudit) History(context.Context, id.ID) ([]AuditEntry, error) { return nil, nil }
