package csvsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

func collect(t *testing.T, src string) ([]domain.RawRow, []error) {
	t.Helper()
	var rows []domain.RawRow
	var errs []error
	for row, err := range Decode(strings.NewReader(src)) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func TestDecode_MapsByHeader(t *testing.T) {
	rows, errs := collect(t, "Id,SSN,FIRST\n1,999-1,Ana\n2,999-2,\"Diaz, Jr\"\n")

	require.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.RawRow{"Id": "1", "SSN": "999-1", "FIRST": "Ana"}, rows[0])
	assert.Equal(t, "Diaz, Jr", rows[1]["FIRST"])
}

func TestDecode_ShortRowLacksTrailingKeys(t *testing.T) {
	rows, errs := collect(t, "Id,SSN,FIRST\n1,999-1\n")

	require.Empty(t, errs)
	require.Len(t, rows, 1)
	_, ok := rows[0]["FIRST"]
	assert.False(t, ok)
	assert.Equal(t, "999-1", rows[0]["SSN"])
}

func TestDecode_ExtraFieldsIgnored(t *testing.T) {
	rows, errs := collect(t, "Id,SSN\n1,999-1,surplus\n")

	require.Empty(t, errs)
	assert.Equal(t, domain.RawRow{"Id": "1", "SSN": "999-1"}, rows[0])
}

func TestDecode_StripsBOM(t *testing.T) {
	rows, errs := collect(t, "\ufeffId,SSN\n1,999-1\n")

	require.Empty(t, errs)
	assert.Equal(t, "1", rows[0]["Id"])
}

func TestDecode_MalformedLineContinues(t *testing.T) {
	rows, errs := collect(t, "Id,SSN\n1,999-1\n2,99\"9-2\n3,999-3\n")

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrParse)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["Id"])
	assert.Equal(t, "3", rows[1]["Id"])
}

func TestDecode_EmptyInput(t *testing.T) {
	rows, errs := collect(t, "")

	assert.Empty(t, rows)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoHeader)
	assert.NotErrorIs(t, errs[0], domain.ErrParse)
}

func TestDecode_HeaderOnly(t *testing.T) {
	rows, errs := collect(t, "Id,SSN\n")

	assert.Empty(t, rows)
	assert.Empty(t, errs)
}

func TestDecode_StopsWhenConsumerBreaks(t *testing.T) {
	n := 0
	for range Decode(strings.NewReader("Id\n1\n2\n3\n")) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestReader_Rows_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte("Id,SSN\n1,999-1\n"), 0600))

	var rows []domain.RawRow
	for row, err := range NewReader().Rows(path) {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	assert.Equal(t, []domain.RawRow{{"Id": "1", "SSN": "999-1"}}, rows)
}

func TestReader_Rows_MissingFile(t *testing.T) {
	var errs []error
	for row, err := range NewReader().Rows(filepath.Join(t.TempDir(), "nope.csv")) {
		assert.Nil(t, row)
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}
