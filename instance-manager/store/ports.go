package store

import (
	"context"

	"github.com/saascore/saas-cloud/instance-manager/portalloc"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/objstore"
	"github.com/saascore/saas-cloud/saasproto"
)

// ReservePorts allocates the instance's port pair on the server and
// records it in the server's refs in one transaction, so concurrent
// reservations on the same server cannot collide.
func (s *Store) ReservePorts(ctx context.Context, server saasproto.ServerKey, inst *saasproto.Instance, start int32) (portalloc.PortPair, error) {
	var pair portalloc.PortPair
	_, err := s.kvstore.ApplySTM(ctx, func(stm objstore.STM) error {
		refs := saasproto.ServerRefs{}
		found, err := stmGet(stm, TypeServerRefs, server, &refs)
		if err != nil {
			return err
		}
		if !found {
			refs.Key = server
		}
		pair, err = portalloc.Reserve(&refs, inst, start)
		if err != nil {
			return err
		}
		return stmPut(stm, TypeServerRefs, server, &refs)
	})
	if err != nil {
		return portalloc.PortPair{}, err
	}
	log.SpanLog(ctx, log.DebugLevelStore, "reserved ports", "server", server.Name, "instance", inst.Key.Subdomain, "http", pair.Http, "longpolling", pair.Longpolling)
	return pair, nil
}

// ReleasePorts frees every port the instance holds on the server.
func (s *Store) ReleasePorts(ctx context.Context, server saasproto.ServerKey, owner string) error {
	_, err := s.kvstore.ApplySTM(ctx, func(stm objstore.STM) error {
		refs := saasproto.ServerRefs{}
		found, err := stmGet(stm, TypeServerRefs, server, &refs)
		if err != nil || !found {
			return err
		}
		refs.Release(owner)
		return stmPut(stm, TypeServerRefs, server, &refs)
	})
	return err
}
