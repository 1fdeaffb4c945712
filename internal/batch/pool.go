package batch

import (
	"sync"

	"replaywatch/internal/models"
)

type job struct {
	slot  int
	entry models.IndexEntry
}

// WorkerPool runs index entries on a fixed number of goroutines. Each job
// writes only its own slot, so outcomes need no locking.
type WorkerPool struct {
	jobs     chan job
	work     func(models.IndexEntry) models.EntryOutcome
	outcomes []models.EntryOutcome
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorkerPool creates a pool of maxConcurrency workers with room for size
// outcomes.
func NewWorkerPool(maxConcurrency, size int, work func(models.IndexEntry) models.EntryOutcome) *WorkerPool {
	maxConcurrency = max(maxConcurrency, 1)
	pool := &WorkerPool{
		jobs:     make(chan job, maxConcurrency*2),
		work:     work,
		outcomes: make([]models.EntryOutcome, size),
	}

	pool.startWorkers(maxConcurrency)
	return pool
}

// startWorkers launches the worker goroutines.
func (p *WorkerPool) startWorkers(count int) {
	p.wg.Add(count)
	for i := 0; i < count; i++ {
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.outcomes[j.slot] = p.work(j.entry)
			}
		}()
	}
}

// Submit queues an entry, blocking while the queue is full.
func (p *WorkerPool) Submit(slot int, entry models.IndexEntry) {
	p.jobs <- job{slot: slot, entry: entry}
}

// Stop closes the queue, waits for in-flight work and returns the outcomes
// in slot order.
func (p *WorkerPool) Stop() []models.EntryOutcome {
	p.stopOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
	})
	return p.outcomes
}
