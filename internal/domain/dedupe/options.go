package dedupe

type config struct {
	maxSize int
}

// Option applies a configuration option to the deduper.
type Option func(*config)

// WithMaxSize sets the maximum number of IDs to keep in memory. A value of
// zero or less keeps every ID.
func WithMaxSize(maxSize int) Option {
	return func(c *config) { c.maxSize = maxSize }
}
