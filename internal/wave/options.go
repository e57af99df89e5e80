package wave

// Option configures a Tracker
type Option func(*Tracker)

// WithStrictMonotonic rejects sync updates that would move a stored wave back.
// Disabled by default: a lower wave silently overwrites the stored one.
func WithStrictMonotonic(strict bool) Option {
	return func(t *Tracker) {
		t.strictMonotonic = strict
	}
}

// WithEvictionPolicy replaces the default random eviction of the change cache
func WithEvictionPolicy(policy EvictionPolicy) Option {
	return func(t *Tracker) {
		t.cache = NewChangeCache(policy)
	}
}

// WithClock sets the clock new waves are allocated from
func WithClock(clock *Clock) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}
