package mesh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Op is a single queued GATT operation.
type Op struct {
	ID      string
	Lane    lane
	Payload []byte
	DataType DataType
	Run     func(context.Context) error
}

type lane int

const (
	laneControl lane = iota
	laneAudio
)

// OpQueue serializes per-link GATT operations into two FIFO lanes —
// Control (unbounded) and Audio (bounded, head-drop on overflow) — per
// §4.E. Only one operation is in flight at a time; a watchdog cancels the
// link if a single operation exceeds the configured timeout.
type OpQueue struct {
	log     *slog.Logger
	timeout time.Duration
	onStall func()
	metrics *Metrics

	controlLimiter *rate.Limiter

	mu               sync.Mutex
	control          []*Op
	audio            []*Op
	audioCapacity    int
	starvationLimit  int
	controlStreak    int
	closed           bool
	notify           chan struct{}

	wg sync.WaitGroup
}

// NewOpQueue creates a queue bounding the audio lane at audioCapacity and
// forcing an audio op through after starvationLimit consecutive control
// ops. onStall is invoked (nil-safe) when the watchdog fires. metrics may
// be nil (tests construct queues without a Metrics instance).
func NewOpQueue(audioCapacity, starvationLimit int, timeout time.Duration, onStall func(), metrics *Metrics, log *slog.Logger) *OpQueue {
	if log == nil {
		log = slog.Default()
	}
	return &OpQueue{
		log:             log,
		timeout:         timeout,
		onStall:         onStall,
		metrics:         metrics,
		// Throttles control-lane admission to a sustainable GATT write
		// rate; distinct from the spec's bespoke ScanRateLimiter, which
		// needs reservation rollback that rate.Limiter doesn't offer.
		controlLimiter:  rate.NewLimiter(rate.Limit(50), 10),
		audioCapacity:   audioCapacity,
		starvationLimit: starvationLimit,
		notify:          make(chan struct{}, 1),
	}
}

// Enqueue admits op onto its lane. Control is unbounded (throttled by the
// rate limiter, not dropped). Audio is bounded at audioCapacity; on
// overflow the oldest audio op is dropped to make room, since freshness
// beats completeness for voice.
func (q *OpQueue) Enqueue(op *Op) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	switch op.Lane {
	case laneAudio:
		for len(q.audio) >= q.audioCapacity {
			dropped := q.audio[0]
			q.audio = q.audio[1:]
			q.log.Warn("mesh: audio queue overflow, dropping oldest frame", "op", dropped.ID)
			if q.metrics != nil {
				q.metrics.AudioFramesDroppedTotal.Inc()
			}
		}
		q.audio = append(q.audio, op)
	default:
		q.control = append(q.control, op)
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled, executing one operation at
// a time with the configured stall watchdog. It should be run in its own
// goroutine per link.
func (q *OpQueue) Run(ctx context.Context) {
	for {
		op := q.next(ctx)
		if op == nil {
			return
		}
		q.execute(ctx, op)
	}
}

// next blocks until an operation is available or ctx is done, applying
// the control-before-audio scheduling rule with the starvation guard.
func (q *OpQueue) next(ctx context.Context) *Op {
	for {
		q.mu.Lock()
		op := q.popLocked()
		q.mu.Unlock()
		if op != nil {
			return op
		}
		select {
		case <-ctx.Done():
			return nil
		case <-q.notify:
		}
	}
}

// popLocked selects the next operation per the drain order: control
// before audio, except a forced audio op after AUDIO_STARVATION_THRESHOLD
// consecutive control ops (§4.E). Caller holds mu.
func (q *OpQueue) popLocked() *Op {
	forceAudio := q.controlStreak >= q.starvationLimit && len(q.audio) > 0

	if !forceAudio && len(q.control) > 0 {
		op := q.control[0]
		q.control = q.control[1:]
		q.controlStreak++
		return op
	}
	if len(q.audio) > 0 {
		if forceAudio && q.metrics != nil {
			q.metrics.StarvationGuardTrippedTotal.Inc()
		}
		op := q.audio[0]
		q.audio = q.audio[1:]
		q.controlStreak = 0
		return op
	}
	return nil
}

// execute runs op with a stall watchdog: if it doesn't complete within
// the timeout, onStall fires and the link is considered dead.
func (q *OpQueue) execute(ctx context.Context, op *Op) {
	if op.Lane == laneControl {
		_ = q.controlLimiter.Wait(ctx)
	}

	done := make(chan error, 1)
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	go func() {
		done <- op.Run(opCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			q.log.Warn("mesh: queued operation failed", "op", op.ID, "error", err)
		}
	case <-opCtx.Done():
		q.log.Error("mesh: operation stalled past timeout, cancelling link", "op", op.ID, "error", ErrOperationStalled)
		if q.onStall != nil {
			q.onStall()
		}
	}
}

// Close stops accepting new operations. Already-queued operations are
// abandoned; callers should cancel the Run context separately.
func (q *OpQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Depth reports the current (control, audio) queue lengths, for metrics.
func (q *OpQueue) Depth() (control, audio int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.control), len(q.audio)
}
