package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Prophet73/ai-chat-test/pkg/store"
)

// SessionRepository is the process-wide session store. Sessions are
// created lazily on first contact and evicted by TTL so an abandoned
// browser tab cannot grow the map forever.
type SessionRepository struct {
	cache *cache.Cache

	// One mutex per session id, held for a whole turn: state
	// transitions and history appends must be atomic with respect to
	// concurrent requests for the same id. Different ids never
	// contend.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	c := cache.New(ttl, 10*time.Minute)

	r := &SessionRepository{
		cache: c,
		locks: make(map[string]*sync.Mutex),
	}

	// Drop the per-id lock together with the evicted session.
	c.OnEvicted(func(sessionID string, _ any) {
		r.mu.Lock()
		delete(r.locks, sessionID)
		r.mu.Unlock()
	})

	return r
}

// Lock acquires the per-session mutex for the duration of one turn.
// The returned function releases it.
func (r *SessionRepository) Lock(sessionID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetOrCreate returns the session for the id, creating an empty IDLE
// session on first contact. Access refreshes the TTL.
func (r *SessionRepository) GetOrCreate(sessionID string) *store.Session {
	if x, found := r.cache.Get(sessionID); found {
		sess := x.(*store.Session)
		r.cache.Set(sessionID, sess, cache.DefaultExpiration)
		return sess
	}
	sess := store.NewSession(sessionID)
	r.cache.Set(sessionID, sess, cache.DefaultExpiration)
	return sess
}

// Get returns an existing session without creating one.
func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

// Save persists session state and refreshes its TTL.
func (r *SessionRepository) Save(sess *store.Session) {
	r.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

// Destroy removes a session explicitly (switch-session).
func (r *SessionRepository) Destroy(sessionID string) {
	r.cache.Delete(sessionID)
}

// Count reports the number of live sessions.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
