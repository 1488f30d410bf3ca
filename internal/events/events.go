// Package events defines the auth domain events published to the
// message broker. Publishing is best-effort: it never fails a request.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shoplite/apiserver/internal/mq"
)

// Event types emitted by the auth service.
const (
	TypeUserRegistered     = "user.registered"
	TypeUserProfileUpdated = "user.profile_updated"
)

// Event is the JSON payload placed on the auth events channel.
type Event struct {
	Type       string    `json:"type"`
	UserID     int       `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits auth events to a broker channel. A nil Publisher is
// valid and publishes nothing, so wiring a broker stays optional.
type Publisher struct {
	backend mq.Backend
	channel string
}

// NewPublisher binds a broker backend to the named channel.
// Returns nil when backend is nil.
func NewPublisher(backend mq.Backend, channel string) *Publisher {
	if backend == nil {
		return nil
	}
	return &Publisher{backend: backend, channel: channel}
}

// Publish sends the event. Broker failures are logged and swallowed:
// an unreachable broker must not turn a successful registration into
// an error for the caller.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal %s: %v", event.Type, err)
		return
	}
	attrs := map[string]string{"type": event.Type}
	if _, err := p.backend.Publish(ctx, p.channel, data, attrs); err != nil {
		log.Printf("events: publish %s: %v", event.Type, err)
	}
}
