package authevents

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Type is the kind of authentication transition.
type Type string

const (
	SignedIn  Type = "SIGNED_IN"
	SignedOut Type = "SIGNED_OUT"
)

// Event reports a sign-in or sign-out. Session fields are empty on sign-out.
type Event struct {
	Type        Type      `json:"type"`
	UserID      string    `json:"user_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	At          time.Time `json:"at"`
}

// Bus is the abstraction over different event backends.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe streams events published after the call until ctx is done.
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// InMemory fans events out to every subscriber of the process.
type InMemory struct {
	size int
	mu   sync.Mutex
	subs map[chan Event]<-chan struct{}
}

// NewInMemory creates a bus whose subscribers buffer up to size events.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 16
	}
	return &InMemory{size: size, subs: make(map[chan Event]<-chan struct{})}
}

// Publish delivers evt to all current subscribers, waiting on slow ones.
func (b *InMemory) Publish(ctx context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, done := range b.subs {
		select {
		case ch <- evt:
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *InMemory) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = ctx.Done()
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Redis publishes events on a Redis pub/sub channel so that several
// processes (API, portalctl watch) observe the same sign-ins.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis builds a bus on channel.
func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "portal:auth-events"
	}
	return &Redis{client: client, channel: channel}
}

// Publish sends evt as JSON.
func (b *Redis) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe streams decoded events; undecodable payloads are skipped.
func (b *Redis) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
