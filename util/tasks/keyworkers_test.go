package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/saascore/saas-cloud/log"
	"github.com/stretchr/testify/require"
)

func TestKeyWorkers(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())

	kw := KeyWorkers{}
	kw.Init("test")

	workdata := testWorkData{}
	// we use this chan to block the go threads so we can check
	// that work for the same key is queued rather than run in parallel.
	workdata.startOk = make(chan bool)
	workdata.data = make(map[string][]int)
	workdata.active = make(map[string]int)

	results := []<-chan error{}
	rep := 50
	for ii := 0; ii < rep; ii++ {
		for _, key := range []string{"key1", "key2", "key3"} {
			results = append(results, kw.Submit(ctx, key, workdata.work(key, ii)))
		}
	}
	require.Equal(t, 3, kw.WorkerCount())
	close(workdata.startOk)

	for _, res := range results {
		<-res
	}
	kw.WaitIdle()

	require.Equal(t, 0, kw.WorkerCount())
	require.Equal(t, 0, workdata.overlaps)
	for _, key := range []string{"key1", "key2", "key3"} {
		// every func runs, in submit order
		require.Equal(t, rep, len(workdata.data[key]))
		for ii, val := range workdata.data[key] {
			require.Equal(t, ii, val)
		}
	}
}

func TestKeyWorkersRun(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())

	kw := KeyWorkers{}
	kw.Init("test")

	err := kw.Run(ctx, "key1", func(ctx context.Context) error {
		return fmt.Errorf("failed")
	})
	require.NotNil(t, err)
	require.Equal(t, "failed", err.Error())

	err = kw.Run(ctx, "key1", func(ctx context.Context) error {
		return nil
	})
	require.Nil(t, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	block := make(chan bool)
	err = kw.Run(cctx, "key2", func(ctx context.Context) error {
		<-block
		return nil
	})
	require.Equal(t, context.Canceled, err)
	close(block)
	kw.WaitIdle()
}

type testWorkData struct {
	startOk  chan bool
	data     map[string][]int
	active   map[string]int
	overlaps int
	mux      sync.Mutex
}

func (s *testWorkData) work(key string, val int) WorkFunc {
	return func(ctx context.Context) error {
		<-s.startOk

		s.mux.Lock()
		s.active[key]++
		if s.active[key] > 1 {
			s.overlaps++
		}
		s.data[key] = append(s.data[key], val)
		s.mux.Unlock()

		s.mux.Lock()
		s.active[key]--
		s.mux.Unlock()
		return nil
	}
}
