package lstore

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// entry is a stored value with an optional expiry
type entry struct {
	value    []byte
	deadline time.Time // zero = never
}

func (e entry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && !now.Before(e.deadline)
}

type storeImpl struct {
	data   *xsync.MapOf[string, entry]
	closed atomic.Bool
	now    func() time.Time
}

// NewLocalStore creates a new in-memory store instance.
func NewLocalStore() store.IStore {
	return newLocalStore(time.Now)
}

// newLocalStore creates a store with the given clock
func newLocalStore(now func() time.Time) *storeImpl {
	return &storeImpl{
		data: xsync.NewMapOf[string, entry](),
		now:  now,
	}
}

// check returns an error if the store is closed or the key is invalid
func (s *storeImpl) check(key string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	return store.ValidateKey(key)
}

// newEntry copies the value so callers may reuse their buffer
func (s *storeImpl) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.deadline = s.now().Add(ttl)
	}
	return e
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	return s.SetE(key, value, 0)
}

func (s *storeImpl) SetE(key string, value []byte, ttl time.Duration) error {
	if err := s.check(key); err != nil {
		return err
	}
	s.data.Store(key, s.newEntry(value, ttl))
	return nil
}

func (s *storeImpl) SetEIfUnset(key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	set := false
	s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && !old.expired(s.now()) {
			return old, false
		}
		set = true
		return s.newEntry(value, ttl), false
	})
	return set, nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	s.data.Delete(key)
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	e, ok := s.load(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, e.value...), true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}
	_, ok := s.load(key)
	return ok, nil
}

func (s *storeImpl) Scan(prefix string, fn func(key string, value []byte) bool) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}

	// snapshot first, so fn may modify the store
	now := s.now()
	var keys []string
	values := make(map[string][]byte)
	s.data.Range(func(key string, e entry) bool {
		if strings.HasPrefix(key, prefix) && !e.expired(now) {
			keys = append(keys, key)
			values[key] = e.value
		}
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		if !fn(key, append([]byte{}, values[key]...)) {
			break
		}
	}
	return nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return store.NewError(store.RetCClosed, "store is already closed")
	}
	s.data.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// load returns the entry of a key and removes it if it is expired
func (s *storeImpl) load(key string) (entry, bool) {
	e, ok := s.data.Load(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		// only delete if no newer value was stored in the meantime
		s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
			return old, !loaded || old.expired(s.now())
		})
		return entry{}, false
	}
	return e, true
}
