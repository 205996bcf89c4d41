package stress

import "waitmap.dev/cmd/pkg/waitmap"

func WithMapOptions(opts ...waitmap.Option) func(*Engine) {
	return func(e *Engine) {
		e.opts = append(e.opts, opts...)
	}
}
