package engine

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
)

// submission is one unit of work: a candidate plus an optional channel the
// outcome is delivered on (nil for fire-and-forget).
type submission struct {
	cand    event.Candidate
	resultC chan<- submissionResult
}

type submissionResult struct {
	outcome *Outcome
	err     error
}

// submissionPool is a fixed-size goroutine pool with a bounded input queue.
// Workers have no per-user affinity; ordering is enforced by the store, not
// here.
type submissionPool struct {
	queue   chan submission
	process func(ctx context.Context, cand event.Candidate) (*Outcome, error)
	wg      sync.WaitGroup
}

func newSubmissionPool(ctx context.Context, workers, depth int, fn func(context.Context, event.Candidate) (*Outcome, error)) *submissionPool {
	p := &submissionPool{
		queue:   make(chan submission, depth),
		process: fn,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *submissionPool) run(ctx context.Context) {
	for {
		select {
		case sub, ok := <-p.queue:
			if !ok {
				return
			}
			out, err := p.process(ctx, sub.cand)
			if sub.resultC != nil {
				sub.resultC <- submissionResult{outcome: out, err: err}
			}
		case <-ctx.Done():
			return
		}
	}
}

// submit enqueues without blocking; returns false when the queue is full.
func (p *submissionPool) submit(s submission) bool {
	select {
	case p.queue <- s:
		return true
	default:
		return false
	}
}

// drain closes the queue and waits for in-flight work to finish.
func (p *submissionPool) drain() {
	close(p.queue)
	p.wg.Wait()
}

func (p *submissionPool) queueLen() int { return len(p.queue) }
func (p *submissionPool) queueCap() int { return cap(p.queue) }
