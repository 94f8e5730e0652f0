package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvie/nuvie-ingestor/internal/adapters/driving/cli"
	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

func TestBootstrap_UnknownDatasetOpensNoStore(t *testing.T) {
	dbDir := filepath.Join(t.TempDir(), "db")
	t.Setenv("NUVIE_STORE", "sqlite")
	t.Setenv("NUVIE_SQLITE_PATH", dbDir)

	svc, err := bootstrap(context.Background(), cli.GlobalFlags{
		ConfigDir: t.TempDir(),
		Dataset:   "bogus",
	})

	assert.Nil(t, svc)
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.NoDirExists(t, dbDir)
}

func TestBootstrap_UnknownDatasetSkipsPostgres(t *testing.T) {
	t.Setenv("NUVIE_STORE", "postgres")
	t.Setenv("POSTGRES_SERVER", "unreachable.invalid")

	_, err := bootstrap(context.Background(), cli.GlobalFlags{
		ConfigDir: t.TempDir(),
		Dataset:   "bogus",
	})

	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestBootstrap_MemoryStore(t *testing.T) {
	t.Setenv("NUVIE_STORE", "")

	svc, err := bootstrap(context.Background(), cli.GlobalFlags{
		ConfigDir: t.TempDir(),
		Store:     "memory",
		Dataset:   domain.DefaultDatasetName,
	})

	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.NotNil(t, svc.Ingestor)
	assert.NotNil(t, svc.Patients)
	assert.NotNil(t, svc.Metrics)
	assert.NoError(t, svc.Close())
}

func TestBootstrap_InvalidStoreFlag(t *testing.T) {
	_, err := bootstrap(context.Background(), cli.GlobalFlags{
		ConfigDir: t.TempDir(),
		Store:     "mongo",
	})

	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
