// Package processor drains import lines from the queue into the matching service.
// Lines are matched by a fixed worker pool fed from a bounded channel, so a slow catalog
// backs up into the consumer instead of into memory.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/cenkalti/backoff/v5"

	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/errors"
	"github.com/Ramsey-B/vine/pkg/kafka"
	"github.com/Ramsey-B/vine/pkg/metrics"
	"github.com/Ramsey-B/vine/pkg/models"
	"github.com/Ramsey-B/vine/pkg/tracing"
)

// Matcher classifies one line. *matching.Service implements it.
type Matcher interface {
	Match(ctx context.Context, line models.ImportLine) (models.MatchResult, error)
}

// Deferrer hands a line that kept failing back for a later replay. *events.Emitter implements it.
type Deferrer interface {
	EmitMatchDeferred(ctx context.Context, line models.ImportLine, reason error) error
}

// Job is one queued line. Ack is called once the line needs no further delivery.
type Job struct {
	Line      models.ImportLine
	RequestID string
	Ack       func(ctx context.Context) error
}

// Config contains configuration for the worker pool.
type Config struct {
	Workers        int           // concurrent matches (default: 8)
	QueueSize      int           // buffered jobs before Enqueue blocks (default: 256)
	MaxAttempts    uint          // tries per line for retryable failures (default: 5)
	InitialBackoff time.Duration // first retry delay (default: 200ms)
	MaxBackoff     time.Duration // retry delay cap (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:        8,
		QueueSize:      256,
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Processor is a worker pool over the matching service
type Processor struct {
	logger   ectologger.Logger
	matcher  Matcher
	deferrer Deferrer
	cfg      Config

	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewProcessor creates a new processor. deferrer may be nil, in which case lines that exhaust
// their retries are left uncommitted for redelivery.
func NewProcessor(logger ectologger.Logger, matcher Matcher, deferrer Deferrer, cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Processor{
		logger:   logger,
		matcher:  matcher,
		deferrer: deferrer,
		cfg:      cfg,
		queue:    make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. They run until Stop is called; ctx only scopes the matches.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"workers":    p.cfg.Workers,
		"queue_size": p.cfg.QueueSize,
	}).Info("Match processor started")
}

// Stop closes the queue and waits for the workers to drain it. Stop the consumer first.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Enqueue queues one job, blocking while the queue is full.
func (p *Processor) Enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.ErrProcessorStopped
	}
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage is the kafka.MessageHandler feeding the pool.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	return p.Enqueue(ctx, Job{Line: *msg.Line, RequestID: msg.RequestID(), Ack: msg.Commit})
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.queue {
		p.process(ctx, job)
	}
}

func (p *Processor) process(ctx context.Context, job Job) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "processor.Processor.process", map[string]string{
		"import_line_id": job.Line.ID,
	})
	defer span.End()

	metrics.QueueJobsInFlight.Inc()
	defer metrics.QueueJobsInFlight.Dec()

	if job.RequestID != "" {
		ctx = vinectx.SetRequestID(ctx, job.RequestID)
	}
	ctx = vinectx.SetImportID(ctx, job.Line.ImportID)
	ctx = vinectx.SetSupplierID(ctx, job.Line.SupplierID)
	log := p.logger.WithContext(ctx).WithFields(vinectx.LogFields(ctx)).WithField("import_line_id", job.Line.ID)

	err := p.match(ctx, job.Line)
	status := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		metrics.QueueJobsProcessed.WithLabelValues("canceled").Inc()
		log.WithError(err).Warn("Match canceled; leaving line for redelivery")
		return
	case errors.IsRetryable(err):
		if p.deferrer == nil {
			metrics.QueueJobsProcessed.WithLabelValues("retry_exhausted").Inc()
			log.WithError(err).Error("Retries exhausted; leaving line for redelivery")
			return
		}
		if derr := p.deferrer.EmitMatchDeferred(ctx, job.Line, err); derr != nil {
			metrics.QueueJobsProcessed.WithLabelValues("defer_failed").Inc()
			log.WithError(derr).Error("Failed to defer line; leaving it for redelivery")
			return
		}
		status = "deferred"
		log.WithError(err).Warn("Retries exhausted; line deferred")
	default:
		// recorded against the line; redelivery would fail the same way
		status = "failed"
		log.WithError(err).Warn("Line failed to match")
	}

	metrics.QueueJobsProcessed.WithLabelValues(status).Inc()
	if job.Ack == nil {
		return
	}
	if err := job.Ack(ctx); err != nil {
		log.WithError(err).Error("Failed to commit line")
	}
}

// match runs the matcher, retrying retryable failures with exponential backoff. A mapping
// conflict accompanies a stored result and counts as success.
func (p *Processor) match(ctx context.Context, line models.ImportLine) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		_, err := p.matcher.Match(ctx, line)
		switch {
		case err == nil, errors.IsMappingConflict(err):
			return struct{}{}, nil
		case errors.IsRetryable(err):
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"import_line_id": line.ID,
				"attempt":        attempt,
			}).Debug("Retryable match failure")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.cfg.MaxAttempts))
	return err
}
