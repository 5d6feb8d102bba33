package execution

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
)

// Pool is a fixed set of execution workers sharing one artifact store.
type Pool struct {
	workers []*Worker
}

// NewPool creates size workers named exec-1..exec-N, all reporting to out.
func NewPool(size int, store ArtifactStore, out bus.Sink, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{workers: make([]*Worker, 0, size)}
	for i := 1; i <= size; i++ {
		p.workers = append(p.workers, NewWorker(fmt.Sprintf("exec-%d", i), store, out, opts...))
	}
	return p
}

// Workers returns the pool's workers.
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Capacity returns the total number of task slots in the pool.
func (p *Pool) Capacity() int {
	n := 0
	for _, w := range p.workers {
		n += w.Capacity()
	}
	return n
}

// Run runs every worker until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
