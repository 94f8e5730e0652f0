package driven

import (
	"iter"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// RowSource streams header-mapped rows from a delimited file.
type RowSource interface {
	// Rows opens path and yields one row at a time.
	// An error wrapping domain.ErrParse describes a single malformed line
	// and iteration continues. Any other error is terminal: the file could
	// not be opened or read. The sequence is not resumable.
	Rows(path string) iter.Seq2[domain.RawRow, error]
}
