package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/aiverse/server/internal/observability"
)

const (
	defaultMaxAttempts  = 5
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// RetryConfig controls the attempt budget and the backoff schedule.
// Zero values fall back to 5 attempts, a 1s initial delay and a 30s cap.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Jitter is the backoff randomization factor in [0, 1). Zero gives a
	// pure doubling schedule.
	Jitter float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	return c
}

func (c RetryConfig) override(maxAttempts int, initialDelay time.Duration) RetryConfig {
	if maxAttempts > 0 {
		c.MaxAttempts = maxAttempts
	}
	if initialDelay > 0 {
		c.InitialDelay = initialDelay
	}
	return c
}

func (c RetryConfig) schedule() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: c.Jitter,
		Multiplier:          2,
		MaxInterval:         c.MaxDelay,
	}
	b.Reset()
	return b
}

// MaxWait is the worst-case time spent sleeping between attempts.
func (c RetryConfig) MaxWait() time.Duration {
	c = c.withDefaults()
	var total time.Duration
	delay := c.InitialDelay
	for i := 1; i < c.MaxAttempts; i++ {
		total += time.Duration(float64(delay) * (1 + c.Jitter))
		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}
	return total
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Option customises a Retrier.
type Option func(*Retrier)

// WithSleeper replaces the wall-clock wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(r *Retrier) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithMetrics records every attempt on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Retrier) { r.metrics = m }
}

// Retrier runs an operation with bounded exponential backoff.
type Retrier struct {
	config  RetryConfig
	sleep   Sleeper
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRetrier creates a Retrier. A nil logger is replaced by a no-op logger.
func NewRetrier(config RetryConfig, logger *zap.Logger, opts ...Option) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retrier{
		config: config.withDefaults(),
		sleep:  SleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective retry configuration.
func (r *Retrier) Config() RetryConfig { return r.config }

// Do calls op until it succeeds, returns a Permanent error, or the attempt
// budget is spent. Exhaustion yields an *UnavailableError wrapping the last error.
func (r *Retrier) Do(ctx context.Context, upstream string, op func(ctx context.Context) error) error {
	return r.run(ctx, upstream, r.config, op)
}

func (r *Retrier) run(ctx context.Context, upstream string, config RetryConfig, op func(ctx context.Context) error) error {
	config = config.withDefaults()
	schedule := config.schedule()

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		start := time.Now()
		err := op(ctx)
		elapsed := time.Since(start)

		if err == nil {
			r.metrics.ObserveAttempt(upstream, "success", elapsed)
			if attempt > 1 {
				r.logger.Info("Upstream call succeeded after retry",
					zap.String("upstream", upstream),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			r.metrics.ObserveAttempt(upstream, "permanent", elapsed)
			r.logger.Warn("Upstream call failed permanently",
				zap.String("upstream", upstream),
				zap.Int("attempt", attempt),
				zap.Error(permanent.err))
			return permanent.err
		}

		r.metrics.ObserveAttempt(upstream, "error", elapsed)
		lastErr = err
		if attempt == config.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		r.logger.Warn("Upstream call failed, retrying",
			zap.String("upstream", upstream),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", config.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := r.sleep(ctx, delay); err != nil {
			return &UnavailableError{Upstream: upstream, Attempts: attempt, Err: err}
		}
	}

	r.logger.Error("Upstream call attempts exhausted",
		zap.String("upstream", upstream),
		zap.Int("attempts", config.MaxAttempts),
		zap.Error(lastErr))
	return &UnavailableError{Upstream: upstream, Attempts: config.MaxAttempts, Err: lastErr}
}
