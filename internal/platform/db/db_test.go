package db

import (
	"testing"

	cfgpkg "github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestDialector(t *testing.T) {
	d, err := dialector(cfgpkg.DBConfig{Driver: cfgpkg.DBDriverPostgres, DSN: "postgres://x"})
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())

	d, err = dialector(cfgpkg.DBConfig{Driver: cfgpkg.DBDriverMySQL, DSN: "user:pass@tcp(localhost:3306)/app"})
	require.NoError(t, err)
	require.Equal(t, "mysql", d.Name())

	_, err = dialector(cfgpkg.DBConfig{Driver: "sqlite"})
	require.Error(t, err)
}

func TestAllModelsHaveTables(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range AllModels() {
		tn, ok := m.(schema.Tabler)
		require.True(t, ok, "%T must declare TableName", m)
		require.False(t, seen[tn.TableName()])
		seen[tn.TableName()] = true
	}
	require.True(t, seen["credits_ledger"])
	require.True(t, seen["payment"])
}
