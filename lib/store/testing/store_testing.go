package testing

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func() store.IStore

// RunStoreTests runs the conformance test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, withStore(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, withStore(t, factory))
		})

		t.Run("SetEIfUnset", func(t *testing.T) {
			testSetEIfUnset(t, withStore(t, factory))
		})

		t.Run("ConcurrentSetEIfUnset", func(t *testing.T) {
			testConcurrentSetEIfUnset(t, withStore(t, factory))
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, withStore(t, factory))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, withStore(t, factory))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, withStore(t, factory))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})
	})
}

// withStore creates a store that is closed when the test ends
func withStore(t *testing.T, factory StoreFactory) store.IStore {
	s := factory()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustGet(t *testing.T, s store.IStore, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value, ok
}

func testSetGet(t *testing.T, s store.IStore) {
	if err := s.Set("key1", []byte("value1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok := mustGet(t, s, "key1")
	if !ok || !bytes.Equal(value, []byte("value1")) {
		t.Errorf("expected value1, got %q (found=%v)", value, ok)
	}

	// overwrite
	if err := s.Set("key1", []byte("value2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _ := mustGet(t, s, "key1"); !bytes.Equal(value, []byte("value2")) {
		t.Errorf("expected value2 after overwrite, got %q", value)
	}

	// missing key
	if _, ok := mustGet(t, s, "missing"); ok {
		t.Errorf("expected missing key not to be found")
	}

	// the store keeps its own copy of the value
	buf := []byte("original")
	_ = s.Set("copy", buf)
	buf[0] = 'X'
	if value, _ := mustGet(t, s, "copy"); !bytes.Equal(value, []byte("original")) {
		t.Errorf("stored value was modified through the callers buffer: %q", value)
	}
	value, _ = mustGet(t, s, "copy")
	value[0] = 'Y'
	if value, _ := mustGet(t, s, "copy"); !bytes.Equal(value, []byte("original")) {
		t.Errorf("stored value was modified through a returned buffer: %q", value)
	}

	has, err := s.Has("key1")
	if err != nil || !has {
		t.Errorf("Has(key1) = %v, %v", has, err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	_ = s.Set("key", []byte("value"))
	if err := s.Delete("key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := mustGet(t, s, "key"); ok {
		t.Errorf("expected key to be deleted")
	}
	if has, _ := s.Has("key"); has {
		t.Errorf("Has must be false after delete")
	}

	// deleting a missing key is not an error
	if err := s.Delete("never-set"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func testSetEIfUnset(t *testing.T, s store.IStore) {
	set, err := s.SetEIfUnset("lock", []byte("first"), 0)
	if err != nil || !set {
		t.Fatalf("first SetEIfUnset = %v, %v", set, err)
	}

	set, err = s.SetEIfUnset("lock", []byte("second"), 0)
	if err != nil || set {
		t.Fatalf("second SetEIfUnset = %v, %v", set, err)
	}

	if value, _ := mustGet(t, s, "lock"); !bytes.Equal(value, []byte("first")) {
		t.Errorf("value must not be overwritten, got %q", value)
	}

	// after delete the key can be set again
	_ = s.Delete("lock")
	if set, _ := s.SetEIfUnset("lock", []byte("third"), 0); !set {
		t.Errorf("SetEIfUnset after delete must succeed")
	}
}

func testConcurrentSetEIfUnset(t *testing.T, s store.IStore) {
	const goroutines = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := s.SetEIfUnset("contended", []byte(fmt.Sprintf("owner-%d", i)), 0)
			if err != nil {
				t.Errorf("SetEIfUnset failed: %v", err)
				return
			}
			if set {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", winners.Load())
	}
}

func testExpiry(t *testing.T, s store.IStore) {
	// some backends count ttl in whole seconds
	const ttl = time.Second

	_ = s.SetE("short", []byte("value"), ttl)
	_ = s.SetE("long", []byte("value"), time.Hour)
	_ = s.Set("forever", []byte("value"))

	if _, ok := mustGet(t, s, "short"); !ok {
		t.Fatalf("key must exist before its ttl passed")
	}
	if set, _ := s.SetEIfUnset("short", []byte("other"), 0); set {
		t.Errorf("SetEIfUnset must not overwrite a live key")
	}

	time.Sleep(2*ttl + 100*time.Millisecond)

	if _, ok := mustGet(t, s, "short"); ok {
		t.Errorf("key must be gone after its ttl passed")
	}
	if has, _ := s.Has("short"); has {
		t.Errorf("Has must be false for an expired key")
	}
	for _, key := range []string{"long", "forever"} {
		if _, ok := mustGet(t, s, key); !ok {
			t.Errorf("key %s must still exist", key)
		}
	}

	var keys []string
	_ = s.Scan("", func(key string, value []byte) bool {
		keys = append(keys, key)
		return true
	})
	if !reflect.DeepEqual(keys, []string{"forever", "long"}) {
		t.Errorf("Scan must skip expired keys, got %v", keys)
	}

	// expired keys count as unset
	if set, _ := s.SetEIfUnset("short", []byte("new"), 0); !set {
		t.Errorf("SetEIfUnset must succeed on an expired key")
	}
	if value, _ := mustGet(t, s, "short"); !bytes.Equal(value, []byte("new")) {
		t.Errorf("expected new value, got %q", value)
	}
}

func testScan(t *testing.T, s store.IStore) {
	for _, key := range []string{"job:3", "job:1", "job:2", "log:1", "jobx"} {
		_ = s.Set(key, []byte("v-"+key))
	}

	var keys []string
	err := s.Scan("job:", func(key string, value []byte) bool {
		if !bytes.Equal(value, []byte("v-"+key)) {
			t.Errorf("unexpected value %q for %s", value, key)
		}
		keys = append(keys, key)
		return true
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"job:1", "job:2", "job:3"}) {
		t.Errorf("unexpected keys %v", keys)
	}

	// stop early
	count := 0
	_ = s.Scan("", func(key string, value []byte) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("Scan must stop when fn returns false, got %d calls", count)
	}

	// the callback may modify the store
	_ = s.Scan("job:", func(key string, value []byte) bool {
		if err := s.Delete(key); err != nil {
			t.Errorf("Delete in scan failed: %v", err)
		}
		return true
	})
	keys = nil
	_ = s.Scan("job:", func(key string, value []byte) bool {
		keys = append(keys, key)
		return true
	})
	if len(keys) != 0 {
		t.Errorf("expected no keys after delete, got %v", keys)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	// empty values are values
	_ = s.Set("empty", []byte{})
	value, ok := mustGet(t, s, "empty")
	if !ok || len(value) != 0 {
		t.Errorf("expected empty value, got %q (found=%v)", value, ok)
	}

	// binary keys and values
	key := "bin\x00key"
	bin := []byte{0, 1, 2, 255}
	_ = s.Set(key, bin)
	if value, _ := mustGet(t, s, key); !bytes.Equal(value, bin) {
		t.Errorf("binary value mismatch: %v", value)
	}

	// empty keys are rejected
	var storeErr *store.Error
	if err := s.Set("", []byte("x")); !errors.As(err, &storeErr) || storeErr.Code != store.RetCInvalidOperation {
		t.Errorf("expected invalid operation for empty key, got %v", err)
	}
}

func testClose(t *testing.T, s store.IStore) {
	_ = s.Set("key", []byte("value"))
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var storeErr *store.Error
	if _, _, err := s.Get("key"); !errors.As(err, &storeErr) || storeErr.Code != store.RetCClosed {
		t.Errorf("expected closed error, got %v", err)
	}
	if err := s.Set("key", nil); err == nil {
		t.Errorf("expected error on write after close")
	}
	if storeErr != nil && storeErr.ErrorKind() != store.ErrorKind {
		t.Errorf("unexpected error kind %s", storeErr.ErrorKind())
	}
}
