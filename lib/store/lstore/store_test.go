package lstore

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	storetesting "github.com/ValentinKolb/dbsrv/lib/store/testing"
)

func Test(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func() store.IStore {
		return NewLocalStore()
	})
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestLazyExpiry tests that expired entries are removed from the map on access
func TestLazyExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newLocalStore(clock.Now)

	_ = s.SetE("key", []byte("value"), time.Millisecond)
	if s.data.Size() != 1 {
		t.Fatalf("expected one entry")
	}

	clock.Advance(time.Millisecond)
	if ok, _ := s.Has("key"); ok {
		t.Errorf("key must be expired exactly at its deadline")
	}
	if s.data.Size() != 0 {
		t.Errorf("expired entry must be removed on access, map has %d entries", s.data.Size())
	}
}
