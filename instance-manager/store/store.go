// Package store keeps instance manager records as JSON in the
// key-value store, under "<region>/<type>/<key>".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/objstore"
	"github.com/saascore/saas-cloud/saasproto"
)

const (
	TypeInstance    = "Instance"
	TypeServer      = "Server"
	TypeServerRefs  = "ServerRefs"
	TypeOdooVersion = "OdooVersion"
	TypeModule      = "Module"
	TypeBundle      = "Bundle"
	TypeBaseDomain  = "BaseDomain"
	TypeSSHKeyPair  = "SSHKeyPair"
)

type Store struct {
	kvstore objstore.KVStore
}

func New(kvstore objstore.KVStore) *Store {
	return &Store{kvstore: kvstore}
}

func (s *Store) KVStore() objstore.KVStore {
	return s.kvstore
}

func (s *Store) create(ctx context.Context, typ string, key objstore.ObjKey, obj interface{}) error {
	if err := key.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = s.kvstore.Create(ctx, objstore.DbKeyString(typ, key), string(val))
	if errors.Is(err, objstore.ErrKVStoreKeyExists) {
		return saasproto.NewValidationError("%s %s already exists", typ, key.GetKeyString())
	}
	return err
}

func (s *Store) put(ctx context.Context, typ string, key objstore.ObjKey, obj interface{}) error {
	if err := key.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = s.kvstore.Put(ctx, objstore.DbKeyString(typ, key), string(val))
	return err
}

// update writes obj only if it already exists.
func (s *Store) update(ctx context.Context, typ string, key objstore.ObjKey, obj interface{}) error {
	if err := key.Validate(); err != nil {
		return err
	}
	keystr := objstore.DbKeyString(typ, key)
	_, vers, err := s.kvstore.Get(keystr)
	if errors.Is(err, objstore.ErrKVStoreKeyNotFound) {
		return saasproto.NewValidationError("%s %s not found", typ, key.GetKeyString())
	}
	if err != nil {
		return err
	}
	val, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = s.kvstore.Update(ctx, keystr, string(val), vers)
	return err
}

func (s *Store) get(typ string, key objstore.ObjKey, buf interface{}) (bool, error) {
	val, _, err := s.kvstore.Get(objstore.DbKeyString(typ, key))
	if errors.Is(err, objstore.ErrKVStoreKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, buf); err != nil {
		log.DebugLog(log.DebugLevelStore, "Failed to parse data", "type", typ, "val", string(val), "err", err)
		return false, err
	}
	return true, nil
}

// mustGet returns a ValidationFailure if the object is missing.
func (s *Store) mustGet(typ string, key objstore.ObjKey, buf interface{}) error {
	found, err := s.get(typ, key, buf)
	if err != nil {
		return err
	}
	if !found {
		return saasproto.NewValidationError("%s %s not found", typ, key.GetKeyString())
	}
	return nil
}

func (s *Store) delete(ctx context.Context, typ string, key objstore.ObjKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.kvstore.Delete(ctx, objstore.DbKeyString(typ, key))
	return err
}

func (s *Store) list(typ string, cb func(val []byte) error) error {
	return s.kvstore.List(objstore.DbKeyPrefixString(typ)+"/", func(key, val []byte, rev int64) error {
		return cb(val)
	})
}

// stmGet reads a record inside a transaction. A record that cannot be
// decoded is an error, never treated as absent.
func stmGet(stm objstore.STM, typ string, key objstore.ObjKey, buf interface{}) (bool, error) {
	keystr := objstore.DbKeyString(typ, key)
	valstr := stm.Get(keystr)
	if valstr == "" {
		return false, nil
	}
	if buf != nil {
		if err := json.Unmarshal([]byte(valstr), buf); err != nil {
			return false, fmt.Errorf("failed to decode %s, %v", keystr, err)
		}
	}
	return true, nil
}

func stmPut(stm objstore.STM, typ string, key objstore.ObjKey, obj interface{}) error {
	val, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s, %v", typ, key.GetKeyString(), err)
	}
	stm.Put(objstore.DbKeyString(typ, key), string(val))
	return nil
}
