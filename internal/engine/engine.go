// Package engine runs admitted events through rule evaluation and assembles
// caller-facing outcomes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/txnwatch/internal/admission"
	"github.com/gyaneshwarpardhi/txnwatch/internal/config"
	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
	"github.com/gyaneshwarpardhi/txnwatch/internal/metrics"
	"github.com/gyaneshwarpardhi/txnwatch/internal/rules"
	"github.com/gyaneshwarpardhi/txnwatch/internal/store"
)

// Queue-pressure errors, distinct from admission failures.
var (
	ErrQueueFull = errors.New("submission queue full")
	ErrTimeout   = errors.New("submission processing timed out")
)

// Outcome is the caller-facing result of a successful submission.
// AlertCodes is always non-nil and strictly ascending.
type Outcome struct {
	Alert      bool  `json:"alert"`
	AlertCodes []int `json:"alert_codes"`
	UserID     int64 `json:"user_id"`
}

// Engine processes submissions through a bounded worker pool. Admission and
// evaluation for one submission are a single unit of work; evaluation reads
// only committed state, so workers need no coordination beyond the store.
type Engine struct {
	store      *store.Store
	gatekeeper *admission.Gatekeeper
	pool       *submissionPool
	conf       config.EngineConf
}

// New creates an Engine using conf and starts the worker pool.
func New(ctx context.Context, st *store.Store, gk *admission.Gatekeeper, conf config.EngineConf) *Engine {
	e := &Engine{
		store:      st,
		gatekeeper: gk,
		conf:       conf,
	}
	e.pool = newSubmissionPool(ctx, conf.Workers, conf.QueueDepth, e.processSubmission)
	return e
}

// SubmitSync admits and evaluates one candidate synchronously. Returns
// ErrQueueFull or ErrTimeout under queue pressure, an admission error when
// the candidate is rejected, and a wrapped store error on infrastructure
// faults.
func (e *Engine) SubmitSync(ctx context.Context, cand event.Candidate) (*Outcome, error) {
	resultC := make(chan submissionResult, 1)
	if !e.pool.submit(submission{cand: cand, resultC: resultC}) {
		metrics.SubmissionsDropped.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}
	metrics.SubmissionsEnqueued.Inc()

	timeout := time.Duration(e.conf.SubmitTimeoutMs) * time.Millisecond
	select {
	case res := <-resultC:
		return res.outcome, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitAsync enqueues a candidate for background processing. Returns false
// when the queue is full.
func (e *Engine) SubmitAsync(cand event.Candidate) bool {
	if !e.pool.submit(submission{cand: cand}) {
		metrics.SubmissionsDropped.Inc()
		return false
	}
	metrics.SubmissionsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.queueCap() == 0 {
		return 0
	}
	return float64(e.pool.queueLen()) / float64(e.pool.queueCap())
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.drain()
}

func (e *Engine) processSubmission(ctx context.Context, cand event.Candidate) (*Outcome, error) {
	start := time.Now()

	current, err := e.gatekeeper.Admit(ctx, cand)
	if err != nil {
		metrics.EventsRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}
	metrics.EventsAdmitted.Inc()

	codes, err := e.evaluate(ctx, current)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		metrics.AlertsFired.WithLabelValues(strconv.Itoa(code)).Inc()
	}
	metrics.SubmissionDuration.Observe(float64(time.Since(start).Milliseconds()))

	return &Outcome{
		Alert:      len(codes) > 0,
		AlertCodes: codes,
		UserID:     current.UserID,
	}, nil
}

// evaluate fetches the three history slices the rules need and runs them.
// current is already committed and visible, so these reads include it.
func (e *Engine) evaluate(ctx context.Context, current event.Event) ([]int, error) {
	recent, err := e.store.RecentEventsFor(ctx, current.UserID, 3)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	deposits, err := e.store.RecentDepositsFor(ctx, current.UserID, 3)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	windowed, err := e.store.DepositsInWindow(ctx, current.UserID, current.Timestamp-rules.WindowSeconds, current.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	codes := rules.Evaluate(current, recent, deposits, windowed)
	if codes == nil {
		codes = []int{}
	}
	return codes, nil
}

func rejectionReason(err error) string {
	var invalid *admission.InvalidPayloadError
	if errors.As(err, &invalid) {
		return "invalid_" + invalid.Field
	}
	var dup *admission.DuplicateTimestampError
	if errors.As(err, &dup) {
		return "duplicate_timestamp"
	}
	return "store_error"
}
