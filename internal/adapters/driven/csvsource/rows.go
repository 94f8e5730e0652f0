// Package csvsource reads header-mapped rows from CSV files.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

// Ensure Reader implements the interface.
var _ driven.RowSource = (*Reader)(nil)

// ErrNoHeader is returned when the file has no header line.
var ErrNoHeader = errors.New("csv has no header")

// Reader streams CSV rows keyed by the header line.
type Reader struct{}

// NewReader creates a CSV row source.
func NewReader() *Reader {
	return &Reader{}
}

// Rows opens path and yields one RawRow per data line.
// Short lines yield rows without the trailing keys; extra fields are ignored.
// A line the CSV decoder rejects yields a nil row with an error wrapping
// domain.ErrParse and iteration continues.
func (r *Reader) Rows(path string) iter.Seq2[domain.RawRow, error] {
	return func(yield func(domain.RawRow, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		for row, err := range Decode(f) {
			if !yield(row, err) {
				return
			}
		}
	}
}

// Decode yields header-mapped rows from src.
func Decode(src io.Reader) iter.Seq2[domain.RawRow, error] {
	return func(yield func(domain.RawRow, error) bool) {
		cr := csv.NewReader(src)
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		header, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrNoHeader
			}
			yield(nil, err)
			return
		}
		header = append([]string(nil), header...)
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\ufeff")
		}

		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					// Malformed line; keep going.
					if !yield(nil, fmt.Errorf("%w: %w", domain.ErrParse, err)) {
						return
					}
					continue
				}
				yield(nil, err)
				return
			}

			row := make(domain.RawRow, len(header))
			for i, name := range header {
				if i < len(record) {
					row[name] = record[i]
				}
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
