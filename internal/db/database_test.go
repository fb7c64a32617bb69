package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/online_store/internal/db"
	"github.com/Skotchmaster/online_store/internal/db/dbtest"
	"github.com/Skotchmaster/online_store/internal/models"
)

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, err := db.Open(context.Background(), "")
	require.Error(t, err)
}

func TestMigrate_CreatesTables(t *testing.T) {
	t.Parallel()

	gdb := dbtest.Open(t)
	for _, m := range models.All() {
		assert.True(t, gdb.Migrator().HasTable(m), "%T", m)
	}
}
