package bstore

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// maxConflictRetries bounds the retries of SetEIfUnset on transaction conflicts
const maxConflictRetries = 16

type storeImpl struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewBadgerStore opens (or creates) a persistent store in the given directory
func NewBadgerStore(dir string) (store.IStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("no data directory given")
	}
	return open(badger.DefaultOptions(dir))
}

// NewInMemoryBadgerStore creates a badger store that keeps everything in memory
func NewInMemoryBadgerStore() (store.IStore, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (store.IStore, error) {
	// badger logs through the dragonboat logger, its level follows ours
	opts = opts.WithLogger(Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", opts.Dir, err)
	}
	return &storeImpl{db: db}, nil
}

// check returns an error if the store is closed or the key is invalid
func (s *storeImpl) check(key string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}
	return store.ValidateKey(key)
}

// wrap converts badger errors into store errors
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return err
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return store.NewError(store.RetCClosed, "%s: %v", op, err)
	}
	return store.NewError(store.RetCInternalError, "%s: %v", op, err)
}

func newEntry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), append([]byte{}, value...))
	if ttl > 0 {
		e = e.WithTTL(ttl)
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
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
	return wrap("set", err)
}

func (s *storeImpl) SetEIfUnset(key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		set := false
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return nil // already set
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			set = true
			return txn.SetEntry(newEntry(key, value, ttl))
		})

		// a concurrent writer touched the key, check again
		if errors.Is(err, badger.ErrConflict) {
			Logger.Debugf("Conflict on SetEIfUnset of %q, retrying", key)
			continue
		}
		if err != nil {
			return false, wrap("set if unset", err)
		}
		return set, nil
	}
	return false, store.NewError(store.RetCInternalError, "set if unset: too many conflicts on key %q", key)
}

func (s *storeImpl) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return wrap("delete", err)
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap("has", err)
	}
	return true, nil
}

func (s *storeImpl) Scan(prefix string, fn func(key string, value []byte) bool) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed")
	}

	type pair struct {
		key   string
		value []byte
	}
	var pairs []pair

	// snapshot first, so fn may modify the store
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, pair{key: string(item.KeyCopy(nil)), value: value})
		}
		return nil
	})
	if err != nil {
		return wrap("scan", err)
	}

	for _, p := range pairs {
		if !fn(p.key, p.value) {
			break
		}
	}
	return nil
}

func (s *storeImpl) Close() error {
	if s.closed.Swap(true) {
		return store.NewError(store.RetCClosed, "store is already closed")
	}
	return wrap("close", s.db.Close())
}
