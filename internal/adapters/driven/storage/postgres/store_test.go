package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/rowcodec"
)

func TestBuildInsert(t *testing.T) {
	sql := buildInsert()

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO patients (id, birthdate, deathdate, ssn,"))
	assert.Contains(t, sql, "$1::text::uuid")
	assert.Contains(t, sql, "$2::text::date")
	assert.Contains(t, sql, "$4::text,")
	assert.Contains(t, sql, "$12::text::marital")
	assert.Contains(t, sql, "$25::text::numeric)")
	assert.Equal(t, len(rowcodec.Columns), strings.Count(sql, "::text"))
}

func TestBuildSelectList(t *testing.T) {
	list := buildSelectList()

	assert.True(t, strings.HasPrefix(list, "id::text, birthdate::text"))
	assert.True(t, strings.HasSuffix(list, "healthcare_coverage::text"))
}

func TestNewStore_BadURI(t *testing.T) {
	_, err := NewStore(context.Background(), "postgres://%zz", 1)

	assert.ErrorContains(t, err, "parsing postgres uri")
}
