package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"identity-gate/internal/logger"
	"identity-gate/internal/metrics"
	"identity-gate/internal/profile"
)

var (
	ErrStopped        = errors.New("identity: resolver stopped")
	ErrAlreadyStarted = errors.New("identity: resolver already started")
)

type Option func(*Resolver)

// WithFetchTimeout bounds each profile fetch. A fetch that does not finish
// in time resolves as "no profile". Zero leaves fetches unbounded.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.fetchTimeout = d
	}
}

// Resolver maintains the authoritative identity snapshot for one
// session stream. It is the only writer of that snapshot; any number
// of goroutines may read or subscribe.
type Resolver struct {
	source       SessionSource
	profiles     ProfileStore
	fetchTimeout time.Duration

	// lock-free reads; written only under mu
	current atomic.Pointer[Snapshot]

	mu          sync.Mutex
	started     bool
	stopped     bool
	subject     string  // subject of the in-flight or resolved fetch
	session     Session // latest session seen for subject
	generation  uint64 // bumped on every transition; fetch results carry it
	version     uint64
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
	dispose     func()

	stopOnce sync.Once
}

func NewResolver(source SessionSource, profiles ProfileStore, opts ...Option) *Resolver {
	r := &Resolver{
		source:      source,
		profiles:    profiles,
		subscribers: make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(r)
	}

	initial := Loading()
	r.current.Store(&initial)
	return r
}

// Start registers with the session source. It may be called once.
// The returned stop function deregisters the listener; registration
// failures are returned as-is for the caller to treat as fatal.
func (r *Resolver) Start() (stop func(), err error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	dispose, err := r.source.OnSessionChange(r.handle)
	if err != nil {
		return nil, fmt.Errorf("identity: register session listener: %w", err)
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		dispose()
		return r.Stop, nil
	}
	r.dispose = dispose
	r.mu.Unlock()

	return r.Stop, nil
}

// Stop deregisters from the source and closes every subscription.
// Fetches still in flight finish but their results are dropped.
func (r *Resolver) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.generation++
		for id, ch := range r.subscribers {
			close(ch)
			delete(r.subscribers, id)
		}
		dispose := r.dispose
		r.dispose = nil
		r.mu.Unlock()

		if dispose != nil {
			dispose()
		}
	})
}

// Snapshot returns the current identity without blocking.
func (r *Resolver) Snapshot() Snapshot {
	return *r.current.Load()
}

// Subscribe returns a channel that first yields the current snapshot and
// then every later one. Delivery is latest-wins: a slow reader skips
// intermediate snapshots but never sees them out of order. The channel
// is closed by unsubscribe or when the resolver stops.
func (r *Resolver) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		close(ch)
		return ch, func() {}
	}

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch
	ch <- r.Snapshot()

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(c)
		}
	}
}

// Wait blocks until the snapshot leaves Loading.
func (r *Resolver) Wait(ctx context.Context) (Snapshot, error) {
	if s := r.Snapshot(); s.State() != StateLoading {
		return s, nil
	}

	updates, unsubscribe := r.Subscribe()
	defer unsubscribe()

	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return r.Snapshot(), ErrStopped
			}
			if s.State() != StateLoading {
				return s, nil
			}
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		}
	}
}

// SignOut asks the auth provider to end the session. The snapshot
// changes when the provider reports the transition.
func (r *Resolver) SignOut(ctx context.Context) error {
	return r.source.SignOut(ctx)
}

func (r *Resolver) handle(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	if s == nil || s.Subject == "" {
		if s != nil {
			logger.Warn("session event without subject treated as sign-out", nil)
		}
		if r.subject == "" && r.Snapshot().State() == StateSignedOut {
			return
		}
		r.subject = ""
		r.session = Session{}
		r.generation++
		r.publishLocked(SignedOut())
		return
	}

	// same principal: the fetch already issued (or finished) stands,
	// only changed session fields are republished
	if s.Subject == r.subject {
		if *s == r.session {
			return
		}
		r.session = *s
		if cur := r.Snapshot(); cur.State() == StateSignedIn {
			r.publishLocked(SignedIn(*s, cur.Profile()))
		}
		return
	}

	r.subject = s.Subject
	r.session = *s
	r.generation++
	r.publishLocked(Loading())

	go r.fetch(r.generation, *s)
}

type fetchResult struct {
	profile *profile.Profile
	err     error
}

func (r *Resolver) fetch(gen uint64, s Session) {
	res := r.lookup(s.Subject)

	outcome := metrics.FetchFound
	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		outcome = metrics.FetchTimeout
	case res.err != nil:
		outcome = metrics.FetchError
	case res.profile == nil:
		outcome = metrics.FetchMissing
	}

	if res.err != nil {
		// session stays valid; the subject is treated as having no profile
		logger.Error("profile fetch failed", map[string]any{
			"subject": s.Subject,
			"error":   res.err,
		})
		res.profile = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || gen != r.generation {
		metrics.ProfileFetches.WithLabelValues(metrics.FetchStale).Inc()
		logger.Debug("discarding stale profile fetch", map[string]any{
			"subject": s.Subject,
		})
		return
	}

	metrics.ProfileFetches.WithLabelValues(outcome).Inc()
	r.publishLocked(SignedIn(r.session, res.profile))
}

func (r *Resolver) lookup(subject string) fetchResult {
	if r.fetchTimeout <= 0 {
		p, err := r.profiles.Get(context.Background(), subject)
		return fetchResult{profile: p, err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	defer cancel()

	// stores that ignore ctx must not hold the snapshot in Loading
	done := make(chan fetchResult, 1)
	go func() {
		p, err := r.profiles.Get(ctx, subject)
		done <- fetchResult{profile: p, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return fetchResult{err: fmt.Errorf("identity: profile fetch for %s: %w", subject, ctx.Err())}
	}
}

func (r *Resolver) publishLocked(s Snapshot) {
	r.version++
	s.version = r.version
	r.current.Store(&s)

	for _, ch := range r.subscribers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
