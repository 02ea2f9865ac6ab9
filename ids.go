package store

import "github.com/google/uuid"

func newInstanceID() string {
	return uuid.NewString()
}

// WithIDGenerator overrides how action instance ids are generated. The store
// still guarantees uniqueness among live instances by suffixing the start
// sequence number when the generator repeats itself.
func WithIDGenerator(next func() string) Option {
	return func(cfg *storeConfig) {
		cfg.newID = next
	}
}
