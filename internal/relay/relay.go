// Package relay mirrors committed store changes into an external version
// history.
//
// Replicate never blocks on the history system: jobs are queued and a single
// worker publishes them in order. Local storage stays the source of truth, so
// a failed publish is logged and otherwise ignored.
package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher records paths as one snapshot with message and publishes it.
type Publisher interface {
	Publish(ctx context.Context, paths []string, message string) error
}

// Config controls queueing and timeouts.
type Config struct {
	// BufferSize is the number of pending jobs before new ones are dropped.
	BufferSize int
	// Timeout bounds a single Publish call.
	Timeout time.Duration
}

// DefaultConfig is used for zero Config fields.
var DefaultConfig = Config{BufferSize: 64, Timeout: 30 * time.Second}

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("relay: closed")

type job struct {
	id      string
	paths   []string
	message string
}

// Relay queues replication jobs for a Publisher.
type Relay struct {
	cfg  Config
	pub  Publisher
	log  *zap.Logger
	jobs chan job
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// New starts the worker. Close must be called to stop it.
func New(cfg Config, pub Publisher, log *zap.Logger) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig.BufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Relay{
		cfg:  cfg,
		pub:  pub,
		log:  log,
		jobs: make(chan job, cfg.BufferSize),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Replicate queues paths for publishing with message and returns at once.
func (r *Relay) Replicate(paths []string, message string) {
	j := job{id: uuid.NewString(), paths: append([]string(nil), paths...), message: message}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn("replication skipped, relay closed", zap.String("job", j.id), zap.String("message", message))
		return
	}
	select {
	case r.jobs <- j:
	default:
		r.dropped.Add(1)
		r.log.Error("replication queue full, job dropped",
			zap.String("job", j.id), zap.Strings("paths", paths), zap.String("message", message))
	}
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		close(r.done)
		return ctx.Err()
	}
}

// Stats returns counters of published, failed and dropped jobs.
func (r *Relay) Stats() (published, failed, dropped uint64) {
	return r.published.Load(), r.failed.Load(), r.dropped.Load()
}

func (r *Relay) run() {
	defer r.wg.Done()
	for j := range r.jobs {
		select {
		case <-r.done:
			r.log.Warn("replication abandoned on shutdown", zap.String("job", j.id))
			continue
		default:
		}
		r.publish(j)
	}
}

func (r *Relay) publish(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := r.pub.Publish(ctx, j.paths, j.message)
	if err != nil {
		r.failed.Add(1)
		r.log.Error("replication failed",
			zap.String("job", j.id),
			zap.Strings("paths", j.paths),
			zap.String("message", j.message),
			zap.Error(err),
		)
		return
	}
	r.published.Add(1)
	r.log.Info("replication published",
		zap.String("job", j.id),
		zap.String("message", j.message),
		zap.Duration("duration", time.Since(start)),
	)
}
