package messaging

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
	"github.com/budget-hub/budget-envelope-hub/internal/projection"
)

// Dispatcher delivers committed events to projections. Deliveries for one
// stream always land on the same shard, so order within a stream is
// preserved; across streams there is no ordering guarantee, which is
// exactly what projections are required to tolerate.
type Dispatcher struct {
	projections map[shared.EventType][]projection.Projection
	shards      []chan shared.Event
	retry       RetryConfig
	deadLetters *DeadLetterQueue
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	quit        chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RetryConfig controls how a failed primary view write is retried before
// the delivery is parked in the dead letter queue.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Shards is the number of serial delivery lanes. Events of one stream
	// always use the same lane.
	Shards int

	// QueueSize is the buffer of each lane.
	QueueSize int

	// Retry configures re-delivery of failed primary writes.
	Retry RetryConfig

	// DeadLetterQueueSize bounds the DLQ; oldest entries are evicted.
	DeadLetterQueueSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Shards:              8,
		QueueSize:           256,
		Retry:               DefaultRetryConfig(),
		DeadLetterQueueSize: 1000,
	}
}

// NewDispatcher creates a dispatcher and starts its delivery lanes.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Shards <= 0 {
		config.Shards = 8
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		projections: make(map[shared.EventType][]projection.Projection),
		shards:      make([]chan shared.Event, config.Shards),
		retry:       config.Retry,
		deadLetters: NewDeadLetterQueue(config.DeadLetterQueueSize),
		logger:      config.Logger,
		ctx:         ctx,
		cancel:      cancel,
		quit:        make(chan struct{}),
	}

	for i := range d.shards {
		d.shards[i] = make(chan shared.Event, config.QueueSize)
		d.wg.Add(1)
		go d.deliveryLoop(d.shards[i])
	}

	return d
}

// Register wires a projection into the pipeline for its declared types.
func (d *Dispatcher) Register(p projection.Projection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, eventType := range p.Handles() {
		d.projections[eventType] = append(d.projections[eventType], p)
	}
	d.logger.Debug("projection registered", "projection", p.Name(), "types", len(p.Handles()))
}

// Dispatch enqueues one committed event for delivery. It blocks when the
// stream's lane is full, which back-pressures the publisher rather than
// dropping deliveries.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	lane := d.shards[shardIndex(event.AggregateID(), len(d.shards))]
	select {
	case lane <- event:
		return nil
	case <-d.quit:
		return ErrEventBusClosed
	}
}

// HandleEvent adapts Dispatch to shared.EventHandler for bus subscription.
func (d *Dispatcher) HandleEvent(event shared.Event) error {
	return d.Dispatch(event)
}

func (d *Dispatcher) deliveryLoop(lane <-chan shared.Event) {
	defer d.wg.Done()

	for {
		select {
		case <-d.quit:
			// Drain what is already queued before exiting. d.ctx is still
			// live here, so drained deliveries keep their retry budget and
			// their handlers run with an uncanceled context.
			for {
				select {
				case event := <-lane:
					d.deliver(event)
				default:
					return
				}
			}
		case event := <-lane:
			d.deliver(event)
		}
	}
}

func (d *Dispatcher) deliver(event shared.Event) {
	d.mu.RLock()
	targets := d.projections[event.EventType()]
	d.mu.RUnlock()

	for _, target := range targets {
		if err := d.deliverWithRetry(target, event); err != nil {
			d.logger.Error("delivery failed, parking in dead letter queue",
				"projection", target.Name(),
				"event_type", event.EventType(),
				"stream", event.AggregateID(),
				"error", err,
			)
			d.deadLetters.Add(DeadLetter{
				Projection: target.Name(),
				Event:      event,
				Err:        err,
				FailedAt:   time.Now().UTC(),
			})
		}
	}
}

func (d *Dispatcher) deliverWithRetry(target projection.Projection, event shared.Event) error {
	backoff := d.retry.InitialBackoff
	var err error

	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.ctx.Done():
				return err
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * d.retry.BackoffMultiplier)
			if d.retry.MaxBackoff > 0 && backoff > d.retry.MaxBackoff {
				backoff = d.retry.MaxBackoff
			}
		}

		if err = target.Handle(d.ctx, event); err == nil {
			return nil
		}
	}
	return err
}

// Close stops intake, drains queued deliveries, and only then cancels the
// delivery context. Canceling before the drain would abort retry backoffs
// and hand canceled contexts to projections mid-drain.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	d.wg.Wait()
	d.cancel()
	d.logger.Info("dispatcher closed")
	return nil
}

// DeadLetters returns the DLQ.
func (d *Dispatcher) DeadLetters() *DeadLetterQueue {
	return d.deadLetters
}

func shardIndex(streamID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(streamID))
	return int(h.Sum32() % uint32(shards))
}

// DeadLetter is a delivery that exhausted its retries.
type DeadLetter struct {
	Projection string
	Event      shared.Event
	Err        error
	FailedAt   time.Time
}

// DeadLetterQueue is a bounded buffer of failed deliveries kept for
// operator inspection and manual replay.
type DeadLetterQueue struct {
	mu      sync.Mutex
	letters []DeadLetter
	maxSize int
}

// NewDeadLetterQueue creates a DLQ with the given capacity.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends a dead letter, evicting the oldest when full.
func (q *DeadLetterQueue) Add(letter DeadLetter) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.letters) >= q.maxSize {
		q.letters = q.letters[1:]
	}
	q.letters = append(q.letters, letter)
}

// Drain returns and clears all dead letters.
func (q *DeadLetterQueue) Drain() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	letters := q.letters
	q.letters = nil
	return letters
}

// Len returns the number of parked deliveries.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.letters)
}
