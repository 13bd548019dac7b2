package users

import (
	"context"
	"testing"
	"time"

	"wifidog-auth/internal/common/database"
	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/storage/redisstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newDirectory(t *testing.T) *Directory {
	t.Helper()
	mr := miniredis.RunT(t)
	client := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { client.Close() })

	clk := clock.NewMock()
	clk.Set(testNow)
	return NewDirectory(redisstore.New(client).Users(), clk, logger.NewTestLogger(t))
}

// ==========================
// Password Hashing
// ==========================

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong-pass")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ per hash")
}

func TestVerifyPassword_InvalidFormat(t *testing.T) {
	for _, stored := range []string{"", "nodollar", "a$b$c", "!!!$abc", "YWJj$!!!"} {
		_, err := VerifyPassword(stored, "x")
		assert.ErrorIs(t, err, ErrInvalidHash, stored)
	}
}

// ==========================
// Directory
// ==========================

func TestDirectory_RegisterAndAuthenticate(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	user, err := dir.Register(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, user.ID)

	got, err := dir.Authenticate(ctx, " alice ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, testNow, *got.LastLogin)

	active, err := dir.IsActive(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestDirectory_AuthenticateFailures(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()
	_, err := dir.Register(ctx, "bob", "", "hunter2hunter2")
	require.NoError(t, err)

	_, err = dir.Authenticate(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	_, err = dir.Authenticate(ctx, "mallory", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	require.NoError(t, dir.SetActive(ctx, "bob", false))
	_, err = dir.Authenticate(ctx, "bob", "hunter2hunter2")
	assert.ErrorIs(t, err, apperrors.ErrUserInactive)
}

func TestDirectory_RegisterValidation(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()
	_, err := dir.Register(ctx, "carol", "", "long-enough")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "  ", "", "long-enough"},
		{"bad email", "dave", "not-an-email", "long-enough"},
		{"short password", "dave", "", "short"},
		{"duplicate username", "carol", "", "long-enough"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Register(ctx, tt.username, tt.email, tt.password)
			assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
		})
	}
}

func TestDirectory_IsActiveUnknownUser(t *testing.T) {
	dir := newDirectory(t)

	active, err := dir.IsActive(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, active)

	err = dir.SetActive(context.Background(), "missing", true)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
}

func TestDirectory_StorageFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("test:user:username:alice").SetErr(context.DeadlineExceeded)

	dir := NewDirectory(redisstore.New(database.NewRedisFromClient(client, "test:")).Users(), nil, logger.NewTestLogger(t))
	_, err := dir.Authenticate(context.Background(), "alice", "pw")

	assert.True(t, apperrors.IsStorageError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
