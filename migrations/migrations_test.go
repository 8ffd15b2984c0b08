package migrations

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOrdersEmbeddedVersions(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	provider, err := newProvider(raw)
	require.NoError(t, err)

	sources := provider.ListSources()
	require.Len(t, sources, 2)
	assert.Equal(t, int64(1), sources[0].Version)
	assert.Equal(t, int64(2), sources[1].Version)
}

func TestEveryMigrationIsReversible(t *testing.T) {
	names, err := files.ReadDir(".")
	require.NoError(t, err)
	for _, entry := range names {
		body, err := files.ReadFile(entry.Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", entry.Name())
		assert.Contains(t, string(body), "-- +goose Down", entry.Name())
	}
}

func TestEmbeddedSchemaDeclaresCoreTables(t *testing.T) {
	body, err := files.ReadFile("001_init.sql")
	require.NoError(t, err)
	for _, table := range []string{"wallets", "transactions", "payment_holds", "claims", "bank_transactions"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}

	sponsor, err := files.ReadFile("002_project_sponsor.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sponsor), "ADD COLUMN IF NOT EXISTS sponsor_id")
}
