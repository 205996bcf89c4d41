package trace // import "waitmap.dev/cmd/pkg/trace"

import (
	"context"
	"log/slog"
)

var nopMap = MapTrace{
	Hit:       func(context.Context, any) {},
	Wait:      func(context.Context, any) {},
	Resolve:   func(context.Context, any, int) {},
	Duplicate: func(context.Context, any) {},
	Cancel:    func(context.Context, any) {},
	Admit:     func(context.Context, any, bool) {},
	Evict:     func(context.Context, any) {},
}

// MapTrace observes the lifecycle of map operations that carry a context:
// resolved-entry hits, waiter registration, resolution with the count of
// woken waiters, duplicate inserts, cancelled waits, admission and
// eviction. Callbacks run inline on the operation's goroutine and must not
// call back into the map.
type MapTrace struct {
	Hit       func(ctx context.Context, key any)
	Wait      func(ctx context.Context, key any)
	Resolve   func(ctx context.Context, key any, waiters int)
	Duplicate func(ctx context.Context, key any)
	Cancel    func(ctx context.Context, key any)
	Admit     func(ctx context.Context, key any, waited bool)
	Evict     func(ctx context.Context, key any)
}

// Join overlays the non-nil callbacks of extra on top of mt, chaining both
// where mt already has one.
func (mt MapTrace) Join(extra MapTrace) MapTrace {
	if extra.Hit != nil {
		fn := mt.Hit
		mt.Hit = func(ctx context.Context, key any) {
			if fn != nil {
				fn(ctx, key)
			}
			extra.Hit(ctx, key)
		}
	}
	if extra.Wait != nil {
		fn := mt.Wait
		mt.Wait = func(ctx context.Context, key any) {
			if fn != nil {
				fn(ctx, key)
			}
			extra.Wait(ctx, key)
		}
	}
	if extra.Resolve != nil {
		fn := mt.Resolve
		mt.Resolve = func(ctx context.Context, key any, waiters int) {
			if fn != nil {
				fn(ctx, key, waiters)
			}
			extra.Resolve(ctx, key, waiters)
		}
	}
	if extra.Duplicate != nil {
		fn := mt.Duplicate
		mt.Duplicate = func(ctx context.Context, key any) {
			if fn != nil {
				fn(ctx, key)
			}
			extra.Duplicate(ctx, key)
		}
	}
	if extra.Cancel != nil {
		fn := mt.Cancel
		mt.Cancel = func(ctx context.Context, key any) {
			if fn != nil {
				fn(ctx, key)
			}
			extra.Cancel(ctx, key)
		}
	}
	if extra.Admit != nil {
		fn := mt.Admit
		mt.Admit = func(ctx context.Context, key any, waited bool) {
			if fn != nil {
				fn(ctx, key, waited)
			}
			extra.Admit(ctx, key, waited)
		}
	}
	if extra.Evict != nil {
		fn := mt.Evict
		mt.Evict = func(ctx context.Context, key any) {
			if fn != nil {
				fn(ctx, key)
			}
			extra.Evict(ctx, key)
		}
	}
	return mt
}

// LogMap returns a MapTrace that reports every event through slog.
func LogMap() MapTrace {
	return MapTrace{
		Hit: func(ctx context.Context, key any) {
			tags := append(attrs(ctx),
				"key", key,
			)
			slog.Debug("trace: Hit", tags...)
		},
		Wait: func(ctx context.Context, key any) {
			tags := append(attrs(ctx),
				"key", key,
			)
			slog.Info("trace: Wait", tags...)
		},
		Resolve: func(ctx context.Context, key any, waiters int) {
			tags := append(attrs(ctx),
				"key", key,
				"waiters", waiters,
			)
			slog.Info("trace: Resolve", tags...)
		},
		Duplicate: func(ctx context.Context, key any) {
			tags := append(attrs(ctx),
				"key", key,
			)
			slog.Error("trace: Duplicate", tags...)
		},
		Cancel: func(ctx context.Context, key any) {
			tags := append(attrs(ctx),
				"key", key,
			)
			slog.Error("trace: Cancel", tags...)
		},
		Admit: func(ctx context.Context, key any, waited bool) {
			tags := append(attrs(ctx),
				"key", key,
				"waited", waited,
			)
			slog.Info("trace: Admit", tags...)
		},
		Evict: func(ctx context.Context, key any) {
			tags := append(attrs(ctx),
				"key", key,
			)
			slog.Info("trace: Evict", tags...)
		},
	}
}

func attrs(ctx context.Context) []any {
	var attrs []any

	if scenario := Get(ctx, "scenario"); scenario != "" {
		attrs = append(attrs, "scenario", scenario)
	}
	if job := Get(ctx, "job"); job != "" {
		attrs = append(attrs, "job", job)
	}
	if worker := Get(ctx, "worker"); worker != "" {
		attrs = append(attrs, "worker", worker)
	}

	return attrs
}

func WithMap(ctx context.Context, trace MapTrace) context.Context {
	return with(ctx, &trace)
}

func ContextMap(ctx context.Context) MapTrace {
	if trace := from[MapTrace](ctx); trace != nil {
		return nopMap.Join(*trace)
	}
	return nopMap
}

type traceKey struct{ string }

func With(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, traceKey{key}, value)
}

func Get(ctx context.Context, key string) string {
	value, _ := ctx.Value(traceKey{key}).(string)
	return value
}
