package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"pat-settlement/internal/idhash"
)

// IdempotencyRecord is a stored response for one Idempotency-Key.
type IdempotencyRecord struct {
	RequestHash string
	Status      int
	Body        []byte
	ExpiresAt   time.Time
}

// IdempotencyStore keeps responses of keyed POST requests.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, bool, error)
	Save(ctx context.Context, key string, rec *IdempotencyRecord) error
}

// MemoryIdempotencyStore is an in-process IdempotencyStore. Expired
// records are dropped on access and swept on every Save.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*IdempotencyRecord
	now     func() time.Time
}

// NewMemoryIdempotencyStore creates an empty store.
func NewMemoryIdempotencyStore(now func() time.Time) *MemoryIdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotencyStore{records: make(map[string]*IdempotencyRecord), now: now}
}

func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (*IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(rec.ExpiresAt) {
		delete(m.records, key)
		return nil, false, nil
	}
	return rec, true, nil
}

func (m *MemoryIdempotencyStore) Save(_ context.Context, key string, rec *IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, r := range m.records {
		if now.After(r.ExpiresAt) {
			delete(m.records, k)
		}
	}
	m.records[key] = rec
	return nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// recorder tees the response so it can be stored.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// idempotent replays the stored response when a caller repeats an
// Idempotency-Key on the same route. Reusing a key for a different body is
// rejected. Server errors are not stored.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		caller, ok := CallerFrom(r.Context())
		if key == "" || !ok {
			next.ServeHTTP(w, r)
			return
		}

		storeKey := caller.String() + "|" + r.Method + " " + r.URL.Path + "|" + key
		hash := idhash.ComputeRequestHash(r.Method, r.URL.Path, caller.String(), bodyFrom(r.Context()))

		unlock := s.lockKey(storeKey)
		defer unlock()

		rec, found, err := s.opts.Idempotency.Get(r.Context(), storeKey)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if found {
			if rec.RequestHash != hash {
				s.writeError(w, r, ErrIdempotencyMismatch)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(HeaderReplayed, "true")
			w.WriteHeader(rec.Status)
			_, _ = w.Write(rec.Body)
			return
		}

		rw := &recorder{ResponseWriter: w}
		next.ServeHTTP(rw, r)

		if rw.status == 0 || rw.status >= http.StatusInternalServerError {
			return
		}
		err = s.opts.Idempotency.Save(r.Context(), storeKey, &IdempotencyRecord{
			RequestHash: hash,
			Status:      rw.status,
			Body:        rw.body.Bytes(),
			ExpiresAt:   s.opts.Clock().Add(s.opts.IdempotencyTTL),
		})
		if err != nil {
			s.logger.Warn("failed to store idempotent response", "key", key, "error", err)
		}
	})
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// lockKey serializes requests sharing one idempotency key. The entry is
// removed once no request holds or waits for it.
func (s *Server) lockKey(key string) func() {
	s.keyMu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &keyLock{}
		s.keyLocks[key] = l
	}
	l.refs++
	s.keyMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.keyMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.keyLocks, key)
		}
		s.keyMu.Unlock()
	}
}
