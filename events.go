package auth

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

// UserRegisteredEvent is published after a successful registration so the
// mail collaborator can send the verification email. Delivery is at least
// once; consumers must tolerate duplicates.
type UserRegisteredEvent struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Role              string `json:"role"`
	VerificationToken string `json:"verification_token"`
}

// PasswordResetEvent is published when a known account requests a password
// reset.
type PasswordResetEvent struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	ResetToken string `json:"reset_token"`
}

// EventSink is the notification collaborator boundary: whatever consumes the
// queue (mail service client, message broker producer) implements it.
type EventSink interface {
	HandleUserRegistered(ctx context.Context, event UserRegisteredEvent) error
	HandlePasswordReset(ctx context.Context, event PasswordResetEvent) error
}

type queuedEvent struct {
	registered *UserRegisteredEvent
	reset      *PasswordResetEvent
}

// Dispatcher is a bounded, fire-and-forget event queue with its own worker
// pool. Publish never blocks: when the queue is full the event is dropped
// and counted, which is acceptable for best-effort notifications.
type Dispatcher struct {
	sink    EventSink
	logger  Logger
	queue   chan queuedEvent
	workers int

	mu      sync.Mutex
	dropped int
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ EventPublisher = (*Dispatcher)(nil)

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan queuedEvent, size)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a dispatcher bound to a sink. Call Start before
// publishing and Stop on shutdown to drain in-flight events.
func NewDispatcher(sink EventSink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		logger:  defLogger{},
		queue:   make(chan queuedEvent, 128),
		workers: 2,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

// Dropped reports how many events were discarded on queue overflow.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) PublishUserRegistered(ctx context.Context, event UserRegisteredEvent) error {
	return d.enqueue(queuedEvent{registered: &event})
}

func (d *Dispatcher) PublishPasswordReset(ctx context.Context, event PasswordResetEvent) error {
	return d.enqueue(queuedEvent{reset: &event})
}

func (d *Dispatcher) enqueue(ev queuedEvent) error {
	select {
	case d.queue <- ev:
		return nil
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		return errors.New("event queue full, event dropped", errors.CategoryOperation)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			// drain whatever is left before exiting
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev queuedEvent) {
	ctx := context.Background()

	var err error
	switch {
	case ev.registered != nil:
		err = d.sink.HandleUserRegistered(ctx, *ev.registered)
	case ev.reset != nil:
		err = d.sink.HandlePasswordReset(ctx, *ev.reset)
	}

	if err != nil {
		d.logger.Error("event delivery failed: %v", err)
	}
}

// noopPublisher swallows events; it is the default when no publisher is
// configured.
type noopPublisher struct{}

var _ EventPublisher = noopPublisher{}

func (noopPublisher) PublishUserRegistered(ctx context.Context, event UserRegisteredEvent) error {
	return nil
}

func (noopPublisher) PublishPasswordReset(ctx context.Context, event PasswordResetEvent) error {
	return nil
}
