package identity

import (
	"context"
	"sync"

	"identity-gate/internal/profile"
)

// fakeSource implements SessionSource for testing.
type fakeSource struct {
	mu          sync.Mutex
	handler     func(*Session)
	registerErr error
	registered  int
	disposed    bool
	signOuts    int
}

func (f *fakeSource) OnSessionChange(h func(*Session)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered++
	f.handler = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.disposed = true
		f.handler = nil
	}, nil
}

func (f *fakeSource) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.emit(nil)
	return nil
}

func (f *fakeSource) emit(s *Session) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(s)
	}
}

func (f *fakeSource) isDisposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// fakeStore implements ProfileStore for testing. A gate registered for a
// subject holds that subject's fetch until the gate is closed.
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[string]*profile.Profile
	errs      map[string]error
	gates     map[string]chan struct{}
	ignoreCtx bool
	calls     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*profile.Profile),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

func (f *fakeStore) gate(subject string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[subject] = ch
	return ch
}

func (f *fakeStore) callCount(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[subject]
}

func (f *fakeStore) Get(ctx context.Context, subject string) (*profile.Profile, error) {
	f.mu.Lock()
	f.calls[subject]++
	gate := f.gates[subject]
	p := f.profiles[subject]
	err := f.errs[subject]
	ignore := f.ignoreCtx
	f.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return p, err
}
