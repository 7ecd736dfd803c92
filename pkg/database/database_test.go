package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		db, err := New(context.Background(), "mysql", "dsn")

		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "urls.db")

		db, err := New(context.Background(), DriverSQLite, path, WithMaxIdleConns(2))
		require.NoError(t, err)
		t.Cleanup(func() {
			db.Close()
		})

		assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	})
}

func TestRunMigrations(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		assert.Error(t, RunMigrations("mysql", "mysql://localhost"))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "urls.db")

		require.NoError(t, RunMigrations(DriverSQLite, "sqlite3://"+path))
		// A second run has nothing to apply.
		require.NoError(t, RunMigrations(DriverSQLite, "sqlite3://"+path))

		db, err := New(context.Background(), DriverSQLite, path)
		require.NoError(t, err)
		t.Cleanup(func() {
			db.Close()
		})

		var count int
		require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM urls`))
		assert.Zero(t, count)
	})
}
