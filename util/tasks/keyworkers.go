package tasks

import (
	"context"
	"sync"

	"github.com/saascore/saas-cloud/log"
)

// KeyWorkers manages worker threads for keys. Each key gets its own thread,
// and subsequent work submitted for the same key is queued in order
// on that thread, so work for one key never runs in parallel while
// different keys proceed independently. Unlike a notify-driven
// worker, queued work is not compressed: every submitted func runs.

type WorkFunc func(ctx context.Context) error

type KeyWorkers struct {
	name        string
	workers     map[string]*keyWorker
	mux         sync.Mutex
	waitWorkers sync.WaitGroup
}

type keyWorker struct {
	key   string
	queue []*keyJob
}

type keyJob struct {
	ctx  context.Context
	fn   WorkFunc
	done chan error
}

func (s *KeyWorkers) Init(name string) {
	s.name = name
	s.workers = make(map[string]*keyWorker)
}

// Submit queues fn for key and returns a channel that receives its
// result once it has run.
func (s *KeyWorkers) Submit(ctx context.Context, key string, fn WorkFunc) <-chan error {
	s.mux.Lock()
	defer s.mux.Unlock()

	job := &keyJob{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}
	worker, found := s.workers[key]
	if !found {
		// start new go thread
		worker = &keyWorker{key: key}
		s.workers[key] = worker
		s.waitWorkers.Add(1)
		go s.runWorker(worker)
	}
	worker.queue = append(worker.queue, job)
	return job.done
}

// Run submits fn and waits for it to finish. If ctx is done first
// the wait is abandoned but the queued work still runs.
func (s *KeyWorkers) Run(ctx context.Context, key string, fn WorkFunc) error {
	done := s.Submit(ctx, key, fn)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KeyWorkers) runWorker(worker *keyWorker) {
	for {
		s.mux.Lock()
		if len(worker.queue) == 0 {
			// we're done
			delete(s.workers, worker.key)
			s.mux.Unlock()
			break
		}
		job := worker.queue[0]
		worker.queue = worker.queue[1:]
		span, ctx := log.ChildSpan(job.ctx, log.DebugLevelApi, s.name+" KeyWorker")
		span.SetTag("key", worker.key)
		s.mux.Unlock()

		job.done <- job.fn(ctx)
		span.Finish()
	}
	s.waitWorkers.Done()
}

func (s *KeyWorkers) WorkerCount() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.workers)
}

// WaitIdle waits until there are no workers. Mostly for unit testing.
func (s *KeyWorkers) WaitIdle() {
	s.waitWorkers.Wait()
}
