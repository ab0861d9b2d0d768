package portalloc

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/saascore/saas-cloud/saasproto"
	"github.com/stretchr/testify/require"
)

func usedSet(ports ...int32) map[int32]struct{} {
	used := make(map[int32]struct{})
	for _, p := range ports {
		used[p] = struct{}{}
	}
	return used
}

func TestAllocate(t *testing.T) {
	pair, err := Allocate("docker1", 0, nil)
	require.Nil(t, err)
	require.Equal(t, PortPair{32000, 32001}, pair)

	pair, err = Allocate("docker1", 32000, usedSet(32000, 32001))
	require.Nil(t, err)
	require.Equal(t, PortPair{32002, 32003}, pair)

	// either half in use skips the candidate
	pair, err = Allocate("docker1", 32000, usedSet(32001, 32002))
	require.Nil(t, err)
	require.Equal(t, PortPair{32004, 32005}, pair)

	// odd starting port keeps its parity
	pair, err = Allocate("docker1", 40001, usedSet(40001))
	require.Nil(t, err)
	require.Equal(t, PortPair{40003, 40004}, pair)

	// top of range
	pair, err = Allocate("docker1", 65534, nil)
	require.Nil(t, err)
	require.Equal(t, PortPair{65534, 65535}, pair)
	_, err = Allocate("docker1", 65534, usedSet(65535))
	require.True(t, errors.Is(err, saasproto.ErrResourceExhausted))
	_, err = Allocate("docker1", 65535, nil)
	require.True(t, errors.Is(err, saasproto.ErrResourceExhausted))
}

func TestAllocateProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for ii := 0; ii < 200; ii++ {
		start := int32(65000 + rnd.Intn(500))
		used := make(map[int32]struct{})
		n := rnd.Intn(600)
		for jj := 0; jj < n; jj++ {
			used[int32(65000+rnd.Intn(536))] = struct{}{}
		}
		pair, err := Allocate("s", start, used)
		if err != nil {
			require.True(t, errors.Is(err, saasproto.ErrResourceExhausted))
			// verify no pair was available
			for c := start; c+1 <= MaxPort; c += 2 {
				_, u0 := used[c]
				_, u1 := used[c+1]
				require.True(t, u0 || u1, "pair %d free but exhausted", c)
			}
			continue
		}
		require.True(t, pair.Http >= start)
		require.Equal(t, int32(0), (pair.Http-start)%2)
		require.Equal(t, pair.Http+1, pair.Longpolling)
		require.True(t, pair.Longpolling <= MaxPort)
		_, found := used[pair.Http]
		require.False(t, found)
		_, found = used[pair.Longpolling]
		require.False(t, found)
	}
}

func TestReserve(t *testing.T) {
	refs := saasproto.ServerRefs{
		Key: saasproto.ServerKey{Name: "docker1"},
	}
	acme := saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "acme"}}
	beta := saasproto.Instance{Key: saasproto.InstanceKey{Subdomain: "beta"}}

	pair, err := Reserve(&refs, &acme, 32000)
	require.Nil(t, err)
	require.Equal(t, PortPair{32000, 32001}, pair)
	acme.HttpPort, acme.LongpollingPort = pair.Http, pair.Longpolling

	pair, err = Reserve(&refs, &beta, 32000)
	require.Nil(t, err)
	require.Equal(t, PortPair{32002, 32003}, pair)

	// idempotent for an instance that holds its pair
	pair, err = Reserve(&refs, &acme, 32000)
	require.Nil(t, err)
	require.Equal(t, PortPair{32000, 32001}, pair)
	require.Equal(t, 4, len(refs.Ports))

	refs.Release("acme")
	require.Equal(t, map[int32]string{32002: "beta", 32003: "beta"}, refs.Ports)
}
