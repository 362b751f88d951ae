// Package session keeps the derived vault key in process memory for the
// duration of an unlocked session.
//
// Every successful read of the key counts as activity, so the session
// expires only after DefaultTimeout of idleness. The key is never persisted;
// a process restart always requires a new login.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// DefaultTimeout is the idle period after which the session locks.
const DefaultTimeout = 3 * 24 * time.Hour

// Holder owns the session key. The zero value is not usable; call New.
type Holder struct {
	mu       sync.Mutex
	key      krypto.Key
	last     time.Time
	id       string
	timeout  time.Duration
	now      func() time.Time
	onExpire func(id string)
}

// Option configures a Holder.
type Option func(*Holder)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Holder) { h.now = now }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Holder) { h.timeout = d }
}

// WithExpiryHook registers fn to run (under the holder lock) when a read
// observes an expired session.
func WithExpiryHook(fn func(id string)) Option {
	return func(h *Holder) { h.onExpire = fn }
}

// New returns an empty holder.
func New(opts ...Option) *Holder {
	h := &Holder{timeout: DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetKey stores a private copy of key, starts a new session id and resets activity.
func (h *Holder) SetKey(key krypto.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()

	krypto.Wipe(h.key)
	h.key = append(krypto.Key(nil), key...)
	h.id = uuid.NewString()
	h.last = h.now()
}

// Key returns a copy of the session key, or false when there is none or the
// session has been idle longer than the timeout. An expired key is wiped
// before returning. The caller owns the copy and should wipe it.
func (h *Holder) Key() (krypto.Key, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.key == nil {
		return nil, false
	}

	now := h.now()
	if now.Sub(h.last) > h.timeout {
		id := h.id
		h.clearLocked()
		if h.onExpire != nil {
			h.onExpire(id)
		}
		return nil, false
	}

	h.last = now
	return append(krypto.Key(nil), h.key...), true
}

// Clear drops the key and resets activity to the epoch.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
}

func (h *Holder) clearLocked() {
	krypto.Wipe(h.key)
	h.key = nil
	h.id = ""
	h.last = time.Time{}
}

// IsLoggedIn reports whether Key would return a key. It counts as activity.
func (h *Holder) IsLoggedIn() bool {
	key, ok := h.Key()
	krypto.Wipe(key)
	return ok
}

// SessionID identifies the current session in logs; empty when locked.
func (h *Holder) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}
