package main

import (
	"testing"

	"github.com/GoSTEAN/velo-sub001/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptMigrations(t *testing.T) {
	migrations := receiptMigrations()

	t.Run("VersionsAreSequential", func(t *testing.T) {
		for i, m := range migrations {
			assert.Equal(t, i+1, m.Version)
			assert.NotEmpty(t, m.Description)
			assert.NotNil(t, m.Up)
			assert.NotNil(t, m.Down)
		}
	})

	t.Run("CoverAllReceiptIndexes", func(t *testing.T) {
		assert.Len(t, services.ReceiptIndexes(), 3)
	})

	t.Run("PendingFromScratch", func(t *testing.T) {
		pending := pendingMigrations(migrations, 0)
		require.Len(t, pending, len(migrations))
		assert.Equal(t, 1, pending[0].Version)
	})

	t.Run("PendingAfterPartialRun", func(t *testing.T) {
		pending := pendingMigrations(migrations, 2)
		require.Len(t, pending, 1)
		assert.Equal(t, 3, pending[0].Version)
	})

	t.Run("NothingPendingWhenCurrent", func(t *testing.T) {
		assert.Empty(t, pendingMigrations(migrations, len(migrations)))
	})

	t.Run("PendingIsOrdered", func(t *testing.T) {
		shuffled := []Migration{migrations[2], migrations[0], migrations[1]}
		pending := pendingMigrations(shuffled, 0)
		require.Len(t, pending, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{pending[0].Version, pending[1].Version, pending[2].Version})
	})

	t.Run("FindMigration", func(t *testing.T) {
		m, ok := findMigration(migrations, 2)
		require.True(t, ok)
		assert.Equal(t, 2, m.Version)

		_, ok = findMigration(migrations, 99)
		assert.False(t, ok)
	})
}
