package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/database"
)

// NewTestDB opens an in-memory SQLite failure journal, already migrated and
// closed at test cleanup
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewTestConnection()
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
