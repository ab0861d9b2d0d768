package store

import (
	"context"
	"encoding/json"

	"github.com/saascore/saas-cloud/saasproto"
)

// Instances

func (s *Store) CreateInstance(ctx context.Context, in *saasproto.Instance) error {
	return s.create(ctx, TypeInstance, in.Key, in)
}

func (s *Store) PutInstance(ctx context.Context, in *saasproto.Instance) error {
	return s.put(ctx, TypeInstance, in.Key, in)
}

func (s *Store) GetInstance(ctx context.Context, key saasproto.InstanceKey, buf *saasproto.Instance) (bool, error) {
	return s.get(TypeInstance, key, buf)
}

func (s *Store) DeleteInstance(ctx context.Context, key saasproto.InstanceKey) error {
	return s.delete(ctx, TypeInstance, key)
}

func (s *Store) ListInstances(ctx context.Context) ([]saasproto.Instance, error) {
	list := []saasproto.Instance{}
	err := s.list(TypeInstance, func(val []byte) error {
		obj := saasproto.Instance{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

// Servers

func (s *Store) CreateServer(ctx context.Context, in *saasproto.Server) error {
	return s.create(ctx, TypeServer, in.Key, in)
}

func (s *Store) UpdateServer(ctx context.Context, in *saasproto.Server) error {
	return s.update(ctx, TypeServer, in.Key, in)
}

func (s *Store) GetServer(ctx context.Context, key saasproto.ServerKey, buf *saasproto.Server) (bool, error) {
	return s.get(TypeServer, key, buf)
}

func (s *Store) MustGetServer(ctx context.Context, key saasproto.ServerKey, buf *saasproto.Server) error {
	return s.mustGet(TypeServer, key, buf)
}

// DeleteServer fails while any live instance is placed on the server.
func (s *Store) DeleteServer(ctx context.Context, key saasproto.ServerKey) error {
	insts, err := s.ListInstances(ctx)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		if inst.State == saasproto.StateCancelled {
			continue
		}
		if inst.DockerServer == key.Name || inst.DBServer == key.Name {
			return saasproto.NewValidationError("server %s in use by instance %s", key.Name, inst.Key.Subdomain)
		}
	}
	if err := s.delete(ctx, TypeServerRefs, key); err != nil {
		return err
	}
	return s.delete(ctx, TypeServer, key)
}

func (s *Store) ListServers(ctx context.Context) ([]saasproto.Server, error) {
	list := []saasproto.Server{}
	err := s.list(TypeServer, func(val []byte) error {
		obj := saasproto.Server{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

func (s *Store) GetServerRefs(ctx context.Context, key saasproto.ServerKey, buf *saasproto.ServerRefs) (bool, error) {
	return s.get(TypeServerRefs, key, buf)
}

// Versions

func (s *Store) CreateOdooVersion(ctx context.Context, in *saasproto.OdooVersion) error {
	return s.create(ctx, TypeOdooVersion, in.Key, in)
}

func (s *Store) UpdateOdooVersion(ctx context.Context, in *saasproto.OdooVersion) error {
	return s.update(ctx, TypeOdooVersion, in.Key, in)
}

func (s *Store) GetOdooVersion(ctx context.Context, key saasproto.VersionKey, buf *saasproto.OdooVersion) (bool, error) {
	return s.get(TypeOdooVersion, key, buf)
}

func (s *Store) DeleteOdooVersion(ctx context.Context, key saasproto.VersionKey) error {
	insts, err := s.ListInstances(ctx)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		if inst.OdooVersion == key.Name && inst.State != saasproto.StateCancelled {
			return saasproto.NewValidationError("version %s in use by instance %s", key.Name, inst.Key.Subdomain)
		}
	}
	return s.delete(ctx, TypeOdooVersion, key)
}

func (s *Store) ListOdooVersions(ctx context.Context) ([]saasproto.OdooVersion, error) {
	list := []saasproto.OdooVersion{}
	err := s.list(TypeOdooVersion, func(val []byte) error {
		obj := saasproto.OdooVersion{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

// Modules and bundles, also the moduledeps catalog

func (s *Store) CreateModule(ctx context.Context, in *saasproto.Module) error {
	return s.create(ctx, TypeModule, in.Key, in)
}

func (s *Store) UpdateModule(ctx context.Context, in *saasproto.Module) error {
	return s.update(ctx, TypeModule, in.Key, in)
}

func (s *Store) GetModule(ctx context.Context, key saasproto.ModuleKey, buf *saasproto.Module) (bool, error) {
	return s.get(TypeModule, key, buf)
}

func (s *Store) DeleteModule(ctx context.Context, key saasproto.ModuleKey) error {
	return s.delete(ctx, TypeModule, key)
}

func (s *Store) ListModules(ctx context.Context) ([]saasproto.Module, error) {
	list := []saasproto.Module{}
	err := s.list(TypeModule, func(val []byte) error {
		obj := saasproto.Module{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

func (s *Store) CreateBundle(ctx context.Context, in *saasproto.Bundle) error {
	return s.create(ctx, TypeBundle, in.Key, in)
}

func (s *Store) UpdateBundle(ctx context.Context, in *saasproto.Bundle) error {
	return s.update(ctx, TypeBundle, in.Key, in)
}

func (s *Store) GetBundle(ctx context.Context, key saasproto.BundleKey, buf *saasproto.Bundle) (bool, error) {
	return s.get(TypeBundle, key, buf)
}

func (s *Store) DeleteBundle(ctx context.Context, key saasproto.BundleKey) error {
	return s.delete(ctx, TypeBundle, key)
}

func (s *Store) ListBundles(ctx context.Context) ([]saasproto.Bundle, error) {
	list := []saasproto.Bundle{}
	err := s.list(TypeBundle, func(val []byte) error {
		obj := saasproto.Bundle{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

// Domains and keys

func (s *Store) PutBaseDomain(ctx context.Context, in *saasproto.BaseDomain) error {
	return s.put(ctx, TypeBaseDomain, in.Key, in)
}

func (s *Store) GetBaseDomain(ctx context.Context, key saasproto.DomainKey, buf *saasproto.BaseDomain) (bool, error) {
	return s.get(TypeBaseDomain, key, buf)
}

func (s *Store) DeleteBaseDomain(ctx context.Context, key saasproto.DomainKey) error {
	return s.delete(ctx, TypeBaseDomain, key)
}

func (s *Store) ListBaseDomains(ctx context.Context) ([]saasproto.BaseDomain, error) {
	list := []saasproto.BaseDomain{}
	err := s.list(TypeBaseDomain, func(val []byte) error {
		obj := saasproto.BaseDomain{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj)
		return nil
	})
	return list, err
}

func (s *Store) PutSSHKeyPair(ctx context.Context, in *saasproto.SSHKeyPair) error {
	return s.put(ctx, TypeSSHKeyPair, in.Key, in)
}

func (s *Store) GetSSHKeyPair(ctx context.Context, key saasproto.SSHKeyPairKey, buf *saasproto.SSHKeyPair) (bool, error) {
	return s.get(TypeSSHKeyPair, key, buf)
}

func (s *Store) DeleteSSHKeyPair(ctx context.Context, key saasproto.SSHKeyPairKey) error {
	return s.delete(ctx, TypeSSHKeyPair, key)
}

// ListSSHKeyPairNames returns key names only; private keys do not
// leave the store through listings.
func (s *Store) ListSSHKeyPairNames(ctx context.Context) ([]string, error) {
	list := []string{}
	err := s.list(TypeSSHKeyPair, func(val []byte) error {
		obj := saasproto.SSHKeyPair{}
		if err := json.Unmarshal(val, &obj); err != nil {
			return err
		}
		list = append(list, obj.Key.Name)
		return nil
	})
	return list, err
}
