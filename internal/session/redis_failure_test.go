// internal/session/redis_failure_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_TouchSurfacesBackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, time.Minute)

	mock.ExpectTxPipeline()
	mock.ExpectHGet("session:sess-1", fieldLastRoute).RedisNil()
	mock.ExpectHIncrBy("session:sess-1", fieldTurnCount, 1).SetErr(errors.New("connection lost"))

	_, err := store.Touch(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session touch failed")
}

func TestRedisStore_SetRouteSurfacesBackendErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, 0)

	mock.ExpectTxPipeline()
	mock.ExpectHSet("session:sess-1", fieldLastRoute, "menu").SetErr(errors.New("connection lost"))

	err := store.SetRoute(context.Background(), "sess-1", "menu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session set route failed")
}
