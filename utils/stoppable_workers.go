package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers owns background loops that all share one cancellation.
type StoppableWorkers interface {
	// AddWorkers launches more loops under the shared context.
	AddWorkers(...func(context.Context))
	// Stop cancels the shared context and blocks until every loop has returned.
	Stop()
	// Context is cancelled by Stop or by the parent context.
	Context() context.Context
}

type workerGroup struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewStoppableWorkers launches each loop on its own goroutine.
func NewStoppableWorkers(loops ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), loops...)
}

// NewStoppableWorkersWithContext ties the loops to parent as well as to Stop.
func NewStoppableWorkersWithContext(parent context.Context, loops ...func(context.Context)) StoppableWorkers {
	ctx, cancel := context.WithCancel(parent)
	g := &workerGroup{ctx: ctx, cancel: cancel}
	g.AddWorkers(loops...)
	return g
}

func (g *workerGroup) AddWorkers(loops ...func(context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// late additions after a stop are dropped
	if g.ctx.Err() != nil {
		return
	}
	for _, loop := range loops {
		g.running.Add(1)
		goutils.PanicCapturingGo(func() {
			defer g.running.Done()
			loop(g.ctx)
		})
	}
}

func (g *workerGroup) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel()
	g.running.Wait()
}

func (g *workerGroup) Context() context.Context {
	return g.ctx
}
