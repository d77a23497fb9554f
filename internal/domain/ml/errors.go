package ml

import (
	"errors"
	"fmt"

	"github.com/okian/solara/internal/domain/artifact"
	"github.com/okian/solara/internal/domain/table"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrArtifactNotFound is returned by the Load functions when the file is absent.
	ErrArtifactNotFound = artifact.ErrNotFound
	ErrNoColumns        = errors.New("no feature columns")
	ErrNotEnoughRows    = errors.New("not enough rows to fit")
	ErrLengthMismatch   = errors.New("rows and targets differ in length")
	ErrSingular         = errors.New("normal equations are not positive definite")
	ErrInvalidLabel     = errors.New("label out of range")
)

// widthError reports rows whose width does not match the fitted columns.
func widthError(columns []string, got int) error {
	return &table.SchemaMismatchError{Expected: columns, Got: []string{fmt.Sprintf("%d values", got)}}
}

func checkRows(columns []string, rows [][]float64) error {
	for _, r := range rows {
		if len(r) != len(columns) {
			return widthError(columns, len(r))
		}
	}
	return nil
}
