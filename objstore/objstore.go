package objstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/etcd/clientv3"
)

// Use for version passed to Update to ignore version check
const ObjStoreUpdateVersionAny int64 = 0

// Callback function for List function
type ListCb func(key, val []byte, rev int64) error

type KVStore interface {
	// Create creates an object with the given string key and value.
	// Create should fail if the key already exists.
	// It returns the revision (transaction) number and any error.
	Create(ctx context.Context, key, val string) (int64, error)
	// Update updates an object with the given string key and value.
	// Update should fail if the key does not exist, or if the version
	// doesn't match (meaning some other thread has already updated it).
	// It returns the revision (transaction) number and any error.
	Update(ctx context.Context, key, val string, version int64) (int64, error)
	// Delete deletes an object with the given key string.
	// It returns the revision (transaction) number and any error.
	Delete(ctx context.Context, key string) (int64, error)
	// Get retrieves a single object with the given key string.
	// Get returns the data, a version (not revision) number, and any error.
	Get(key string) ([]byte, int64, error)
	// Put the key-value pair, regardless of whether it already exists or not.
	Put(ctx context.Context, key, val string) (int64, error)
	// List retrives all objects that have the given key string prefix.
	List(key string, cb ListCb) error
	// ApplySTM runs apply as a serializable software transaction.
	// Apply may be called more than once if it conflicts with a
	// concurrent transaction, so it must not have side effects
	// outside of the STM.
	ApplySTM(ctx context.Context, apply func(STM) error) (int64, error)
}

// STM is the subset of the etcd concurrency.STM interface that
// callers use. Both the etcd and dummy stores provide it.
type STM interface {
	Get(key ...string) string
	Put(key, val string, opts ...clientv3.OpOption)
	Rev(key string) int64
	Del(key string)
}

var ErrKVStoreNotInitialized = errors.New("Object Storage not initialized")
var ErrKVStoreKeyNotFound = errors.New("Key not found")
var ErrKVStoreKeyExists = errors.New("Key already exists")

func NotFoundError(key string) error {
	return fmt.Errorf("%w: %s", ErrKVStoreKeyNotFound, DbKeyPrefixRemove(key))
}

func ExistsError(key string) error {
	return fmt.Errorf("%w: %s", ErrKVStoreKeyExists, DbKeyPrefixRemove(key))
}

// ObjKey is the struct on the Object that uniquely identifies the Object.
type ObjKey interface {
	// GetKeyString returns a string representation of the ObjKey
	GetKeyString() string
	// Validate checks that the key object fields do not contain
	// invalid or missing data.
	Validate() error
}

func DbKeyString(typ string, key ObjKey) string {
	return fmt.Sprintf("%s/%s", DbKeyPrefixString(typ), key.GetKeyString())
}

func DbKeyPrefixString(typ string) string {
	return fmt.Sprintf("%d/%s", GetRegion(), typ)
}

func DbKeyPrefixRemove(key string) string {
	ii := strings.IndexByte(key, '/')
	if ii == -1 {
		return key
	}
	key = key[ii+1:]
	ii = strings.IndexByte(key, '/')
	return key[ii+1:]
}
