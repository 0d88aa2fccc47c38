package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pool runs a fixed number of workers, each pulling workflow IDs off a
// shared job queue and driving them through Orchestrator.Run. Adapted
// from evalgo-org-eve's worker.Pool/Worker shape, simplified because a
// workflow's processing state lives durably in the checkpoint store
// rather than in the queue itself: there is no MarkProcessing/
// CompleteJob/FailJob bookkeeping to replicate, since Run's own
// checkpoint-then-advance loop already makes re-enqueuing a finished or
// failed workflow harmless (dispatch on a terminal stage is a no-op).
//
// The one invariant the pool itself must hold is that no workflow ID is
// ever driven by two Run calls at once: Run is not safe for concurrent
// invocation on the same workflow (both callers would load the same
// checkpoint and race to save the next one). active tracks which IDs
// are currently being driven so Enqueue and the periodic resume scan
// can both skip a workflow that is already in flight.
type Pool struct {
	orch *Orchestrator
	jobs chan string
	log  logrus.FieldLogger

	mu     sync.Mutex
	active map[string]bool

	wg sync.WaitGroup
}

// NewPool builds a Pool with queueSize buffered job slots.
func NewPool(orch *Orchestrator, queueSize int) *Pool {
	return &Pool{
		orch:   orch,
		jobs:   make(chan string, queueSize),
		log:    orch.logger(),
		active: make(map[string]bool),
	}
}

// Start launches workers workers, each running until ctx is cancelled or
// Stop is called.
func (p *Pool) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case workflowID, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.orch.Run(ctx, workflowID); err != nil {
				p.log.WithField("worker", id).WithField("workflow_id", workflowID).
					WithError(err).Warn("orchestrator: workflow run ended with error")
			}
			p.mu.Lock()
			delete(p.active, workflowID)
			p.mu.Unlock()
		}
	}
}

// Enqueue schedules workflowID for processing by the next free worker.
// A no-op if workflowID is already queued or being driven by another
// worker.
func (p *Pool) Enqueue(workflowID string) {
	p.mu.Lock()
	if p.active[workflowID] {
		p.mu.Unlock()
		return
	}
	p.active[workflowID] = true
	p.mu.Unlock()

	p.jobs <- workflowID
}

// Stop closes the job queue and blocks until every worker currently
// draining it has returned. Workers blocked inside a WAIT state exit
// only once their Run's context is cancelled (the caller's ctx passed to
// Start), not merely because Stop was called — callers that need an
// immediate stop should cancel that context first.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// ResumeActive enqueues every workflow the checkpoint store considers
// still in flight, so a freshly started daemon picks up exactly where a
// prior crash left off.
func (p *Pool) ResumeActive(ctx context.Context) error {
	ids, err := p.orch.Checkpoints.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p.Enqueue(id)
	}
	return nil
}

// PollForWork periodically re-runs ResumeActive until ctx is done, so a
// workflow submitted by another process (e.g. minervactl submit, writing
// straight to the checkpoint store) gets picked up without requiring a
// daemon restart. Already-active workflows are skipped by Enqueue, so
// this is safe to run alongside workers continuously draining the queue.
func (p *Pool) PollForWork(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ResumeActive(ctx); err != nil {
				p.log.WithError(err).Warn("orchestrator: poll for work failed")
			}
		}
	}
}
