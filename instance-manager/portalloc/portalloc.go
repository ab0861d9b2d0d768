// Package portalloc picks the http/longpolling port pair for an
// instance on a docker server.
package portalloc

import (
	"github.com/saascore/saas-cloud/saasproto"
)

const (
	DefaultStartingPort int32 = 32000
	MaxPort             int32 = 65535
)

// PortPair is a reserved (p, p+1) pair.
type PortPair struct {
	Http        int32
	Longpolling int32
}

// Allocate returns the first pair (c, c+1) with c = start + 2k where
// neither port is in used. It does not reserve anything; callers must
// serialize allocation per server and record the result.
func Allocate(server string, start int32, used map[int32]struct{}) (PortPair, error) {
	if start <= 0 {
		start = DefaultStartingPort
	}
	for c := start; c+1 <= MaxPort; c += 2 {
		if _, found := used[c]; found {
			continue
		}
		if _, found := used[c+1]; found {
			continue
		}
		return PortPair{Http: c, Longpolling: c + 1}, nil
	}
	return PortPair{}, saasproto.NewResourceExhaustedError("no free port pair on server %s starting at %d", server, start)
}

// Reserve allocates a pair for the instance against refs and records
// it there. An instance that already holds both ports keeps them.
func Reserve(refs *saasproto.ServerRefs, inst *saasproto.Instance, start int32) (PortPair, error) {
	owner := inst.Key.Subdomain
	if inst.HasPorts() && refs.Ports[inst.HttpPort] == owner && refs.Ports[inst.LongpollingPort] == owner {
		return PortPair{Http: inst.HttpPort, Longpolling: inst.LongpollingPort}, nil
	}
	pair, err := Allocate(refs.Key.Name, start, refs.UsedPorts(owner))
	if err != nil {
		return pair, err
	}
	if refs.Ports == nil {
		refs.Ports = make(map[int32]string)
	}
	// drop any stale half-reservation
	refs.Release(owner)
	refs.Ports[pair.Http] = owner
	refs.Ports[pair.Longpolling] = owner
	return pair, nil
}
