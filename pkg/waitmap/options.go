package waitmap

// Policy selects the backpressure behavior of a bounded map when an
// operation needs to create an entry at capacity.
type Policy int

const (
	// PolicyBlock suspends the caller until a slot frees up.
	PolicyBlock Policy = iota
	// PolicyEvictOldest drops the oldest resolved entry to make room,
	// blocking only when every entry is still pending.
	PolicyEvictOldest
)

type options struct {
	capacity int
	policy   Policy
}

type Option func(*options)

// WithCapacity bounds the map to at most n live entries, pending and
// resolved combined. n <= 0 leaves the map unbounded.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithPolicy sets the backpressure policy of a bounded map. The default is
// PolicyBlock.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}
