// Package broadcast publishes document change events to live subscribers,
// over Redis pub/sub when available and through an in-process hub otherwise.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	DocumentUpdated   = "document.updated"
	DocumentSigned    = "document.signed"
	DocumentRejected  = "document.rejected"
	DocumentCompleted = "document.completed"
)

// Event is one change notification for a document.
type Event struct {
	Type       string     `json:"type"`
	DocumentID uuid.UUID  `json:"document_id"`
	Status     string     `json:"status"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	At         time.Time  `json:"at"`
}

// System publishes events and hands out per-document subscriptions.
// Cancel the returned func to end a subscription and close its channel.
type System interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, documentID uuid.UUID) (<-chan Event, func(), error)
}

// New returns a Redis-backed System when client is non-nil, otherwise a local hub.
func New(client *redis.Client, prefix string, logger *slog.Logger) System {
	logger = logger.With("system", "broadcast")
	if client == nil {
		return NewLocal()
	}
	return &redisBroadcaster{client: client, prefix: prefix, logger: logger}
}

type redisBroadcaster struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func (b *redisBroadcaster) channel(id uuid.UUID) string {
	return b.prefix + ":documents:" + id.String()
}

func (b *redisBroadcaster) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(e.DocumentID), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (b *redisBroadcaster) Subscribe(ctx context.Context, documentID uuid.UUID) (<-chan Event, func(), error) {
	ps := b.client.Subscribe(ctx, b.channel(documentID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Warn("discarding malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- e:
			default:
				b.logger.Warn("subscriber lagging, event dropped", "document_id", documentID, "type", e.Type)
			}
		}
	}()

	var once sync.Once
	return out, func() { once.Do(func() { ps.Close() }) }, nil
}

type local struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

// NewLocal returns an in-process hub. Events reach only subscribers in this process.
func NewLocal() System {
	return &local{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

func (l *local) Publish(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[e.DocumentID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (l *local) Subscribe(_ context.Context, documentID uuid.UUID) (<-chan Event, func(), error) {
	ch := make(chan Event, 16)

	l.mu.Lock()
	if l.subs[documentID] == nil {
		l.subs[documentID] = make(map[chan Event]struct{})
	}
	l.subs[documentID][ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs[documentID], ch)
			if len(l.subs[documentID]) == 0 {
				delete(l.subs, documentID)
			}
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
