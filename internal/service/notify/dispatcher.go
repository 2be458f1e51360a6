package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/splax/gameportal/internal/domain"
)

const deadLetterTimeout = 5 * time.Second

// DeadLetterStore keeps messages whose delivery was abandoned.
type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, letter *domain.DeadLetter) error
}

// Config sizes the dispatcher.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

type job struct {
	msg    Message
	result chan error
}

// Dispatcher delivers messages on a fixed pool of workers with bounded retry.
// Submit never blocks the caller.
type Dispatcher struct {
	sender      Sender
	deadLetters DeadLetterStore
	cfg         Config
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker pool. deadLetters may be nil, in which case
// abandoned messages are only logged.
func NewDispatcher(sender Sender, deadLetters DeadLetterStore, cfg Config, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:      sender,
		deadLetters: deadLetters,
		cfg:         cfg,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan job, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Submit enqueues msg and returns a channel that receives the final outcome
// exactly once. A full queue or a stopped dispatcher fails the message at once.
func (d *Dispatcher) Submit(msg Message) <-chan error {
	result := make(chan error, 1)
	if err := d.enqueue(job{msg: msg, result: result}); err != nil {
		d.abandon(msg, 0, err)
		result <- fmt.Errorf("%w: %v", domain.ErrNotification, err)
		close(result)
	}
	return result
}

var (
	errStopped   = errors.New("dispatcher stopped")
	errQueueFull = errors.New("notification queue full")
)

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errStopped
	}
	select {
	case d.queue <- j:
		return nil
	default:
		return errQueueFull
	}
}

// Stop refuses new messages and waits for queued ones to finish. If ctx expires
// first, in-flight retries are cancelled and ctx.Err is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.queue {
		err := d.deliver(j.msg)
		j.result <- err
		close(j.result)
	}
	d.logger.Debug("notification worker stopped", "worker", id)
}

func (d *Dispatcher) deliver(msg Message) error {
	backoff := retry.WithMaxRetries(uint64(d.cfg.MaxAttempts-1), retry.NewExponential(d.cfg.Backoff))
	backoff = retry.WithJitterPercent(10, backoff)

	attempts := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempts++
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
		err := d.sender.Send(sendCtx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		d.logger.Warn("notification attempt failed", "attempt", attempts, "to", msg.To, "error", err)
		return retry.RetryableError(err)
	})
	if err == nil {
		d.logger.Info("notification sent", "to", msg.To, "subject", msg.Subject, "attempts", attempts)
		return nil
	}
	d.abandon(msg, attempts, err)
	return fmt.Errorf("%w: %v", domain.ErrNotification, err)
}

func (d *Dispatcher) abandon(msg Message, attempts int, cause error) {
	d.logger.Error("notification abandoned", "to", msg.To, "subject", msg.Subject, "attempts", attempts, "error", cause)
	if d.deadLetters == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()
	letter := &domain.DeadLetter{
		ID:        uuid.NewString(),
		Recipient: msg.To,
		Subject:   msg.Subject,
		Payload:   msg.HTML,
		Attempts:  attempts,
		LastError: cause.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if err := d.deadLetters.InsertDeadLetter(ctx, letter); err != nil {
		d.logger.Error("failed to store dead letter", "to", msg.To, "error", err)
	}
}
