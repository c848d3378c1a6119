package server

import (
	"fmt"

	"github.com/ValentinKolb/dbsrv/lib/jobs"
	"github.com/ValentinKolb/dbsrv/lib/lockmgr"
	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/ValentinKolb/dbsrv/lib/store/bstore"
	"github.com/ValentinKolb/dbsrv/lib/store/lstore"
	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// NewBackend opens the store selected by the configuration
func NewBackend(config common.StoreConfig) (store.IStore, error) {
	switch config.Type {
	case common.StoreTypeMemory, "":
		return lstore.NewLocalStore(), nil
	case common.StoreTypeBadger:
		s, err := bstore.NewBadgerStore(config.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store in %s: %w", config.DataDir, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", config.Type)
	}
}

// DefaultAdapters returns the adapters of the mediated database, all sharing the given store
func DefaultAdapters(s store.IStore) []IRPCServerAdapter {
	return []IRPCServerAdapter{
		NewJobDBServerAdapter(jobs.NewJobDB(s)),
		NewLockManagerServerAdapter(lockmgr.NewLockManager(s)),
		NewIStoreServerAdapter(s),
	}
}
