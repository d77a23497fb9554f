package repository

import "slices"

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithColumns sets the feature order every artifact must have been fitted on.
func WithColumns(columns []string) Option {
	return func(s *FileStore) {
		if len(columns) > 0 {
			s.columns = slices.Clone(columns)
		}
	}
}
