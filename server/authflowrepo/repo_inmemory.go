package authflowrepo

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/backlog-broker/csrf"
)

const (
	// DefaultTTL is how long a login attempt may take.
	DefaultTTL = 5 * time.Minute

	idBytes = 32
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	pending map[string]PendingAuthorization
	ttl     time.Duration
	nowTime func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// Option defines a function type to modify the InMemoryRepo instance.
type Option func(*InMemoryRepo)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryRepo creates a new in-memory pending authorization repository
func NewInMemoryRepo(options ...Option) *InMemoryRepo {
	r := &InMemoryRepo{
		pending: make(map[string]PendingAuthorization),
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Begin stores a new login attempt for spaceURL.
func (r *InMemoryRepo) Begin(spaceURL string) (PendingAuthorization, error) {
	if spaceURL == "" {
		return PendingAuthorization{}, errors.New("[authflowrepo.Begin] spaceURL cannot be empty")
	}

	id, err := randomID()
	if err != nil {
		return PendingAuthorization{}, err
	}
	csrfToken, err := csrf.NewToken()
	if err != nil {
		return PendingAuthorization{}, err
	}

	now := r.nowTime()
	p := PendingAuthorization{
		ID:        id,
		SpaceURL:  spaceURL,
		CSRFToken: csrfToken,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[id]; exists {
		return PendingAuthorization{}, errors.New("[authflowrepo.Begin] id collision")
	}
	r.pending[id] = p
	return p, nil
}

// Consume removes and returns the record for id.
func (r *InMemoryRepo) Consume(id string) (PendingAuthorization, bool) {
	if id == "" {
		return PendingAuthorization{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if !ok {
		return PendingAuthorization{}, false
	}
	delete(r.pending, id)

	if p.Expired(r.nowTime()) {
		return PendingAuthorization{}, false
	}
	return p, true
}

// Sweep removes every record that has expired at now.
func (r *InMemoryRepo) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, p := range r.pending {
		if p.Expired(now) {
			delete(r.pending, id)
			count++
		}
	}
	return count
}

func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func randomID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[authflowrepo] failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
