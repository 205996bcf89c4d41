package stress

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"waitmap.dev/cmd/pkg/check"
	"waitmap.dev/cmd/pkg/errors"
	"waitmap.dev/cmd/pkg/id"
	"waitmap.dev/cmd/pkg/stress/wire"
	"waitmap.dev/cmd/pkg/trace"
	"waitmap.dev/cmd/pkg/waitmap"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

const keyLength = 8

// Engine drives a stress scenario against one shared rendezvous map.
type Engine struct {
	opts []waitmap.Option
}

func New(opts ...func(*Engine)) *Engine {
	ngn := &Engine{}
	for _, opt := range opts {
		opt(ngn)
	}
	return ngn
}

// Run loads the scenario file, spawns every job's producer and consumers
// and tallies their outcomes. A consumer that observes a wrong value fails
// the whole run.
func (e *Engine) Run(ctx context.Context, file string) (*check.S, error) {
	p, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.New("failed to read file: %w", err)
	}

	sc, err := wire.Parse(p)
	if err != nil {
		return nil, errors.New("failed to parse file: %w", err)
	}

	mopts := append([]waitmap.Option{}, e.opts...)
	if sc.Capacity > 0 {
		mopts = append(mopts, waitmap.WithCapacity(sc.Capacity))
	}
	if sc.Policy == wire.PolicyEvictOldest {
		mopts = append(mopts, waitmap.WithPolicy(waitmap.PolicyEvictOldest))
	}

	m := waitmap.New[string, string](mopts...)
	defer m.Close()

	var s check.S

	var g errgroup.Group

	for i, job := range sc.Jobs {
		jid := job.ID
		if jid == "" {
			jid = fmt.Sprintf("job-%d", i)
		}

		jctx := trace.With(ctx, "job", jid)

		keys := []string{job.Key}
		if job.Keys > 0 {
			keys = id.Keys(job.Keys, keyLength)
		}

		// Validated by wire.Parse.
		delay, _ := time.ParseDuration(job.Delay)
		timeout, _ := time.ParseDuration(job.Timeout)

		consumers := job.Consumers
		if consumers == 0 {
			consumers = 1
		}

		for _, key := range keys {
			g.Go(func() error {
				return e.produce(jctx, m, &s, job, key, delay)
			})

			for c := 0; c < consumers; c++ {
				cctx := trace.With(jctx, "worker", fmt.Sprintf("consumer-%d", c))
				g.Go(func() error {
					return e.consume(cctx, m, &s, job, key, timeout)
				})
			}
		}
	}

	return &s, g.Wait()
}

func (e *Engine) produce(ctx context.Context, m *waitmap.Map[string, string], s *check.S, job wire.Job, key string, delay time.Duration) error {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var err error
	if job.NonBlocking {
		err = m.TryInsert(key, job.Value)
	} else {
		err = m.Insert(ctx, key, job.Value)
	}
	switch {
	case err == nil:
		s.InsertOK()
	case errors.Is(err, waitmap.ErrDuplicateKey):
		s.InsertDuplicate()
	case errors.Is(err, waitmap.ErrWouldBlock):
		s.InsertBlocked()
	case errors.Is(err, waitmap.ErrClosed):
		s.InsertBlocked()
	default:
		slog.Error("insert failure",
			"key", key,
			tint.Err(err),
		)
		return err
	}

	slog.Debug("insert done",
		"key", key,
	)

	return nil
}

func (e *Engine) consume(ctx context.Context, m *waitmap.Map[string, string], s *check.S, job wire.Job, key string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := m.Get(ctx, key)
	switch {
	case err == nil:
		if v != job.Value {
			return errors.New("key %q: got %q, want %q", key, v, job.Value)
		}
		s.GetResolved()
	case errors.Is(err, waitmap.ErrClosed):
		s.GetClosed()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.GetCancelled()
	default:
		slog.Error("get failure",
			"key", key,
			tint.Err(err),
		)
		return err
	}

	return nil
}
