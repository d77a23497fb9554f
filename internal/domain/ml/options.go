package ml

import (
	"slices"

	"github.com/okian/solara/internal/domain/table"
)

// LoadOption configures the Load functions.
type LoadOption func(*loadOptions)

type loadOptions struct {
	expected []string
}

// ExpectColumns makes Load fail with a SchemaMismatchError unless the stored
// column list equals columns.
func ExpectColumns(columns []string) LoadOption {
	return func(o *loadOptions) { o.expected = slices.Clone(columns) }
}

func checkLoaded(stored []string, opts []LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.expected == nil {
		return nil
	}
	return table.CheckSchema(o.expected, stored)
}
