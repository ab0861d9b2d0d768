package rediscache

import (
	"time"

	"github.com/alicebob/miniredis/v2"
)

// DummyRedis is an in-process redis server for unit tests.
type DummyRedis struct {
	redisSrv *miniredis.Miniredis
}

func NewMockRedisServer() (*DummyRedis, error) {
	redisSrv, err := miniredis.Run()
	if err != nil {
		return nil, err
	}
	return &DummyRedis{redisSrv: redisSrv}, nil
}

func (r *DummyRedis) GetStandaloneAddr() string {
	return r.redisSrv.Addr()
}

func (r *DummyRedis) FastForward(d time.Duration) {
	r.redisSrv.FastForward(d)
}

func (r *DummyRedis) Close() {
	r.redisSrv.Close()
}
