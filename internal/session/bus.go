package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"identity-gate/internal/identity"
	"identity-gate/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	eventChannelPrefix = "session-events:"
	subscribeTimeout   = 5 * time.Second
)

type eventType string

const (
	eventSignedIn  eventType = "signed_in"
	eventSignedOut eventType = "signed_out"
)

// event is the wire form of a session transition on the Pub/Sub channel.
type event struct {
	Type          eventType `json:"type"`
	Subject       string    `json:"subject,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Bus publishes session transitions over Redis Pub/Sub, one channel per
// session id, and hands out the matching per-session sources.
type Bus struct {
	client *redis.Client
	store  Store
}

func NewBus(client *redis.Client, store Store) *Bus {
	return &Bus{client: client, store: store}
}

func channel(sessionID string) string {
	return eventChannelPrefix + sessionID
}

func (b *Bus) PublishSignedIn(ctx context.Context, s Session) error {
	return b.publish(ctx, s.SessionID, event{
		Type:          eventSignedIn,
		Subject:       s.Subject,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
		ExpiresAt:     s.ExpiresAt,
	})
}

func (b *Bus) PublishSignedOut(ctx context.Context, sessionID string) error {
	return b.publish(ctx, sessionID, event{Type: eventSignedOut})
}

func (b *Bus) publish(ctx context.Context, sessionID string, ev event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("session: failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("session: publish %s: %w", ev.Type, err)
	}
	return nil
}

// SignOut deletes the session and tells every listener about it.
func (b *Bus) SignOut(ctx context.Context, sessionID string) error {
	if err := b.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return b.PublishSignedOut(ctx, sessionID)
}

// Source returns the session-change stream for one session id.
func (b *Bus) Source(sessionID string) identity.SessionSource {
	return &Source{bus: b, sessionID: sessionID}
}

// Source implements identity.SessionSource over the Bus.
type Source struct {
	bus       *Bus
	sessionID string
}

// OnSessionChange subscribes to the session's channel, then delivers the
// stored session as the first event followed by every published
// transition. Expiry is reported as a sign-out.
func (s *Source) OnSessionChange(handler func(*identity.Session)) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	ps := s.bus.client.Subscribe(ctx, channel(s.sessionID))

	// Confirm the subscription before reading the stored session so a
	// transition published in between is not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("session: subscribe: %w", err)
	}

	current, err := s.bus.store.Get(ctx, s.sessionID)
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("session: load current: %w", err)
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go s.relay(ps.Channel(), current, handler, done, finished)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
			<-finished
		})
	}, nil
}

func (s *Source) SignOut(ctx context.Context) error {
	return s.bus.SignOut(ctx, s.sessionID)
}

func (s *Source) relay(
	msgs <-chan *redis.Message,
	current *Session,
	handler func(*identity.Session),
	done <-chan struct{},
	finished chan<- struct{},
) {
	defer close(finished)

	expiry := time.NewTimer(time.Hour)
	expiry.Stop()
	defer expiry.Stop()

	deliver := func(sess *Session) {
		expiry.Stop()
		if sess == nil {
			handler(nil)
			return
		}
		if !sess.ExpiresAt.IsZero() {
			if sess.Expired(time.Now()) {
				handler(nil)
				return
			}
			expiry.Reset(time.Until(sess.ExpiresAt))
		}
		p := sess.Principal()
		handler(&p)
	}

	deliver(current)

	for {
		select {
		case <-done:
			return

		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("malformed session event", map[string]any{
					"channel": msg.Channel,
					"error":   err,
				})
				continue
			}

			switch ev.Type {
			case eventSignedIn:
				deliver(&Session{
					SessionID:     s.sessionID,
					Subject:       ev.Subject,
					Email:         ev.Email,
					EmailVerified: ev.EmailVerified,
					ExpiresAt:     ev.ExpiresAt,
				})
			case eventSignedOut:
				deliver(nil)
			default:
				logger.Warn("unknown session event", map[string]any{
					"type": string(ev.Type),
				})
			}

		case <-expiry.C:
			handler(nil)
		}
	}
}
