package objstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/coreos/etcd/clientv3"
	"github.com/saascore/saas-cloud/log"
)

// DummyStore is an in-memory KVStore for unit tests and single
// process development runs.
type DummyStore struct {
	db      map[string]string
	vers    map[string]int64
	modRevs map[string]int64
	rev     int64
	mux     sync.Mutex
	// stmMux serializes ApplySTM calls, which trivially makes them
	// serializable.
	stmMux sync.Mutex
}

func NewDummyStore() *DummyStore {
	e := &DummyStore{}
	e.Start()
	return e
}

func (e *DummyStore) Start() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.db = make(map[string]string)
	e.vers = make(map[string]int64)
	e.modRevs = make(map[string]int64)
	e.rev = 1
	return nil
}

func (e *DummyStore) Stop() {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.db = nil
	e.vers = nil
	e.modRevs = nil
}

func (e *DummyStore) Create(ctx context.Context, key, val string) (int64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return 0, ErrKVStoreNotInitialized
	}
	if _, ok := e.db[key]; ok {
		return 0, ExistsError(key)
	}
	e.putLocked(key, val)
	log.DebugLog(log.DebugLevelStore, "Created", "key", key, "rev", e.rev)
	return e.rev, nil
}

func (e *DummyStore) Update(ctx context.Context, key, val string, version int64) (int64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return 0, ErrKVStoreNotInitialized
	}
	if _, ok := e.db[key]; !ok {
		return 0, NotFoundError(key)
	}
	ver := e.vers[key]
	if version != ObjStoreUpdateVersionAny && ver != version {
		return 0, errors.New("Invalid version")
	}
	e.putLocked(key, val)
	log.DebugLog(log.DebugLevelStore, "Updated", "key", key, "ver", ver+1, "rev", e.rev)
	return e.rev, nil
}

func (e *DummyStore) Delete(ctx context.Context, key string) (int64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return 0, ErrKVStoreNotInitialized
	}
	e.delLocked(key)
	log.DebugLog(log.DebugLevelStore, "Delete", "key", key, "rev", e.rev)
	return e.rev, nil
}

func (e *DummyStore) Get(key string) ([]byte, int64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return nil, 0, ErrKVStoreNotInitialized
	}
	val, ok := e.db[key]
	if !ok {
		return nil, 0, NotFoundError(key)
	}
	return []byte(val), e.vers[key], nil
}

func (e *DummyStore) Put(ctx context.Context, key, val string) (int64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return 0, ErrKVStoreNotInitialized
	}
	e.putLocked(key, val)
	log.DebugLog(log.DebugLevelStore, "Put", "key", key, "rev", e.rev)
	return e.rev, nil
}

func (e *DummyStore) List(key string, cb ListCb) error {
	e.mux.Lock()
	if e.db == nil {
		e.mux.Unlock()
		return ErrKVStoreNotInitialized
	}
	keys := []string{}
	vals := map[string]string{}
	for k, v := range e.db {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
			vals[k] = v
		}
	}
	rev := e.rev
	e.mux.Unlock()

	// call back outside the lock so the callback may use the store
	sort.Strings(keys)
	for _, k := range keys {
		if err := cb([]byte(k), []byte(vals[k]), rev); err != nil {
			return err
		}
	}
	return nil
}

func (e *DummyStore) ApplySTM(ctx context.Context, apply func(STM) error) (int64, error) {
	e.stmMux.Lock()
	defer e.stmMux.Unlock()

	stm := &dummySTM{
		store:  e,
		writes: make(map[string]*string),
	}
	if err := apply(stm); err != nil {
		return 0, err
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.db == nil {
		return 0, ErrKVStoreNotInitialized
	}
	for k, v := range stm.writes {
		if v == nil {
			e.delLocked(k)
		} else {
			e.putLocked(k, *v)
		}
	}
	log.SpanLog(ctx, log.DebugLevelStore, "apply stm", "rev", e.rev, "writes", len(stm.writes))
	return e.rev, nil
}

func (e *DummyStore) putLocked(key, val string) {
	e.rev++
	e.db[key] = val
	e.vers[key]++
	e.modRevs[key] = e.rev
}

func (e *DummyStore) delLocked(key string) {
	e.rev++
	delete(e.db, key)
	delete(e.vers, key)
	delete(e.modRevs, key)
}

// dummySTM buffers writes until apply returns without error.
// A nil write value is a delete.
type dummySTM struct {
	store  *DummyStore
	writes map[string]*string
}

func (s *dummySTM) Get(keys ...string) string {
	if len(keys) == 0 {
		return ""
	}
	key := keys[0]
	if v, found := s.writes[key]; found {
		if v == nil {
			return ""
		}
		return *v
	}
	s.store.mux.Lock()
	defer s.store.mux.Unlock()
	return s.store.db[key]
}

func (s *dummySTM) Put(key, val string, opts ...clientv3.OpOption) {
	s.writes[key] = &val
}

func (s *dummySTM) Rev(key string) int64 {
	s.store.mux.Lock()
	defer s.store.mux.Unlock()
	return s.store.modRevs[key]
}

func (s *dummySTM) Del(key string) {
	s.writes[key] = nil
}
