package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_RetriesUntilReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("the database system is starting up"))
	mock.ExpectPing().WillReturnError(errors.New("the database system is starting up"))
	mock.ExpectPing()

	require.NoError(t, wait(context.Background(), db, time.Second, time.Millisecond))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWait_GivesUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 100; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	err = wait(context.Background(), db, 30*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready within 30ms")
}
