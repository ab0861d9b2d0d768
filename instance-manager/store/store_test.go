package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/saascore/saas-cloud/instance-manager/moduledeps"
	"github.com/saascore/saas-cloud/instance-manager/portalloc"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/objstore"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/stretchr/testify/require"
)

// compile-time check that the store serves as the resolver catalog
var _ moduledeps.Catalog = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	objstore.InitRegion(1)
	return New(objstore.NewDummyStore())
}

func TestInstanceCRUD(t *testing.T) {
	log.SetDebugLevel(log.DebugLevelStore)
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)

	inst := saasproto.Instance{
		Key:          saasproto.InstanceKey{Subdomain: "acme"},
		BaseDomain:   "example.com",
		Customer:     "Acme Corp",
		DockerServer: "docker1",
		DBServer:     "db1",
		OdooVersion:  "17.0",
		State:        saasproto.StateDraft,
		ExtraConfig:  map[string]string{"workers": "2"},
	}
	inst.AddLine(saasproto.InstallationLine{Module: "sale"})
	require.Nil(t, s.CreateInstance(ctx, &inst))
	err := s.CreateInstance(ctx, &inst)
	require.True(t, errors.Is(err, saasproto.ErrValidationFailure), "%v", err)

	out := saasproto.Instance{}
	found, err := s.GetInstance(ctx, inst.Key, &out)
	require.Nil(t, err)
	require.True(t, found)
	require.Empty(t, cmp.Diff(inst, out))

	out.State = saasproto.StateRunning
	require.Nil(t, s.PutInstance(ctx, &out))
	list, err := s.ListInstances(ctx)
	require.Nil(t, err)
	require.Equal(t, 1, len(list))
	require.Equal(t, saasproto.StateRunning, list[0].State)

	require.Nil(t, s.DeleteInstance(ctx, inst.Key))
	found, err = s.GetInstance(ctx, inst.Key, &out)
	require.Nil(t, err)
	require.False(t, found)

	bad := saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "Not Valid!"}}
	require.NotNil(t, s.CreateInstance(ctx, &bad))
}

func TestServerInUse(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)

	srv := saasproto.Server{
		Key:      saasproto.ServerKey{Name: "docker1"},
		Kind:     saasproto.ServerKindDocker,
		PublicIP: "10.0.0.1",
	}
	srv.SetDefaults()
	require.Nil(t, s.CreateServer(ctx, &srv))
	srv.Sequence = 5
	require.Nil(t, s.UpdateServer(ctx, &srv))
	missing := saasproto.Server{Key: saasproto.ServerKey{Name: "nope"}}
	require.True(t, errors.Is(s.UpdateServer(ctx, &missing), saasproto.ErrValidationFailure))
	require.True(t, errors.Is(s.MustGetServer(ctx, missing.Key, &missing), saasproto.ErrValidationFailure))

	ver := saasproto.OdooVersion{
		Key:      saasproto.VersionKey{Name: "17.0"},
		Image:    "odoo",
		ImageTag: "17.0",
	}
	require.Nil(t, s.CreateOdooVersion(ctx, &ver))

	inst := saasproto.Instance{
		Key:          saasproto.InstanceKey{Subdomain: "acme"},
		DockerServer: "docker1",
		OdooVersion:  "17.0",
		State:        saasproto.StateRunning,
	}
	require.Nil(t, s.CreateInstance(ctx, &inst))
	err := s.DeleteServer(ctx, srv.Key)
	require.True(t, errors.Is(err, saasproto.ErrValidationFailure), "%v", err)
	err = s.DeleteOdooVersion(ctx, ver.Key)
	require.True(t, errors.Is(err, saasproto.ErrValidationFailure), "%v", err)

	// cancelled instances do not pin their references
	inst.State = saasproto.StateCancelled
	require.Nil(t, s.PutInstance(ctx, &inst))
	require.Nil(t, s.DeleteServer(ctx, srv.Key))
	require.Nil(t, s.DeleteOdooVersion(ctx, ver.Key))
	servers, err := s.ListServers(ctx)
	require.Nil(t, err)
	require.Equal(t, 0, len(servers))
}

func TestCatalog(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)

	mods := []saasproto.Module{
		{Key: saasproto.ModuleKey{Version: "17.0", TechnicalName: "sale"}, Dependencies: []string{"account"}},
		{Key: saasproto.ModuleKey{Version: "17.0", TechnicalName: "account"}},
		{Key: saasproto.ModuleKey{Version: "16.0", TechnicalName: "sale"}},
	}
	for ii := range mods {
		require.Nil(t, s.CreateModule(ctx, &mods[ii]))
	}
	require.NotNil(t, s.CreateModule(ctx, &mods[0]))
	bundle := saasproto.Bundle{
		Key:     saasproto.BundleKey{Version: "17.0", Name: "sales"},
		Modules: []string{"sale", "crm"},
	}
	require.Nil(t, s.CreateBundle(ctx, &bundle))

	resolver := moduledeps.NewResolver(s)
	names, err := resolver.InstallSet(ctx, "17.0", &saasproto.InstallationLine{Module: "sale"})
	require.Nil(t, err)
	require.Equal(t, []string{"account", "base", "sale"}, names)
	names, err = resolver.InstallSet(ctx, "17.0", &saasproto.InstallationLine{Bundle: "sales"})
	require.Nil(t, err)
	require.Equal(t, []string{"account", "base", "crm", "sale"}, names)

	list, err := s.ListModules(ctx)
	require.Nil(t, err)
	require.Equal(t, 3, len(list))
	require.Nil(t, s.DeleteModule(ctx, mods[2].Key))
	list, err = s.ListModules(ctx)
	require.Nil(t, err)
	require.Equal(t, 2, len(list))

	keypair := saasproto.SSHKeyPair{
		Key:        saasproto.SSHKeyPairKey{Name: "deploy"},
		Type:       "ed25519",
		PrivateKey: "c2VjcmV0",
	}
	require.Nil(t, s.PutSSHKeyPair(ctx, &keypair))
	keyNames, err := s.ListSSHKeyPairNames(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"deploy"}, keyNames)

	dom := saasproto.BaseDomain{Key: saasproto.DomainKey{Name: "example.com"}, ManageDNS: true}
	require.Nil(t, s.PutBaseDomain(ctx, &dom))
	domOut := saasproto.BaseDomain{}
	found, err := s.GetBaseDomain(ctx, dom.Key, &domOut)
	require.Nil(t, err)
	require.True(t, found)
	require.True(t, domOut.ManageDNS)
}

func TestReservePorts(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)
	server := saasproto.ServerKey{Name: "docker1"}

	a := &saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "a"}}
	b := &saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "b"}}
	pa, err := s.ReservePorts(ctx, server, a, portalloc.DefaultStartingPort)
	require.Nil(t, err)
	require.Equal(t, portalloc.PortPair{Http: 32000, Longpolling: 32001}, pa)
	a.HttpPort, a.LongpollingPort = pa.Http, pa.Longpolling
	pb, err := s.ReservePorts(ctx, server, b, portalloc.DefaultStartingPort)
	require.Nil(t, err)
	require.Equal(t, portalloc.PortPair{Http: 32002, Longpolling: 32003}, pb)

	// re-reserving for an instance that holds its pair is a no-op
	again, err := s.ReservePorts(ctx, server, a, portalloc.DefaultStartingPort)
	require.Nil(t, err)
	require.Equal(t, pa, again)

	refs := saasproto.ServerRefs{}
	found, err := s.GetServerRefs(ctx, server, &refs)
	require.Nil(t, err)
	require.True(t, found)
	require.Equal(t, map[int32]string{
		32000: "a", 32001: "a", 32002: "b", 32003: "b",
	}, refs.Ports)

	require.Nil(t, s.ReleasePorts(ctx, server, "a"))
	c := &saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "c"}}
	pc, err := s.ReservePorts(ctx, server, c, portalloc.DefaultStartingPort)
	require.Nil(t, err)
	require.Equal(t, pa, pc)

	// releasing on a server without refs is fine
	require.Nil(t, s.ReleasePorts(ctx, saasproto.ServerKey{Name: "other"}, "a"))
}

func TestReservePortsCorruptRefs(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)
	server := saasproto.ServerKey{Name: "docker1"}

	keystr := objstore.DbKeyString(TypeServerRefs, server)
	_, err := s.KVStore().Put(ctx, keystr, "{not json")
	require.Nil(t, err)

	// unreadable refs must not be replaced by an empty allocation
	inst := &saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "a"}}
	_, err = s.ReservePorts(ctx, server, inst, portalloc.DefaultStartingPort)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "failed to decode")
	err = s.ReleasePorts(ctx, server, "a")
	require.NotNil(t, err)

	val, _, err := s.KVStore().Get(keystr)
	require.Nil(t, err)
	require.Equal(t, "{not json", string(val))
}

func TestReservePortsConcurrent(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	s := newTestStore(t)
	server := saasproto.ServerKey{Name: "docker1"}

	count := 20
	pairs := make([]portalloc.PortPair, count)
	errs := make([]error, count)
	wg := sync.WaitGroup{}
	for ii := 0; ii < count; ii++ {
		wg.Add(1)
		go func(ii int) {
			defer wg.Done()
			inst := &saasproto.Instance{
				Key: saasproto.InstanceKey{Subdomain: fmt.Sprintf("inst%d", ii)},
			}
			pairs[ii], errs[ii] = s.ReservePorts(ctx, server, inst, portalloc.DefaultStartingPort)
		}(ii)
	}
	wg.Wait()

	seen := make(map[int32]bool)
	for ii := 0; ii < count; ii++ {
		require.Nil(t, errs[ii])
		require.Equal(t, pairs[ii].Http+1, pairs[ii].Longpolling)
		require.False(t, seen[pairs[ii].Http], "duplicate port %d", pairs[ii].Http)
		require.False(t, seen[pairs[ii].Longpolling])
		seen[pairs[ii].Http] = true
		seen[pairs[ii].Longpolling] = true
	}
	refs := saasproto.ServerRefs{}
	_, err := s.GetServerRefs(ctx, server, &refs)
	require.Nil(t, err)
	require.Equal(t, 2*count, len(refs.Ports))
}
