package bandwidth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/database"
	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
	"wifidog-auth/internal/storage/redisstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

type MockBandwidthRepository struct {
	mock.Mock
}

func (m *MockBandwidthRepository) ApplyUsage(ctx context.Context, u storage.Usage) (storage.Applied, bool, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(storage.Applied), args.Bool(1), args.Error(2)
}

func (m *MockBandwidthRepository) Buckets(ctx context.Context, userID, gatewayID string, since time.Time) ([]models.BandwidthBucket, error) {
	args := m.Called(ctx, userID, gatewayID, since)
	out, _ := args.Get(0).([]models.BandwidthBucket)
	return out, args.Error(1)
}

func (m *MockBandwidthRepository) SumByUserPerDay(ctx context.Context, userID string, start, end time.Time) ([]models.DailyBandwidth, error) {
	args := m.Called(ctx, userID, start, end)
	out, _ := args.Get(0).([]models.DailyBandwidth)
	return out, args.Error(1)
}

func (m *MockBandwidthRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]models.UserBandwidth, error) {
	args := m.Called(ctx, since, limit)
	out, _ := args.Get(0).([]models.UserBandwidth)
	return out, args.Error(1)
}

func (m *MockBandwidthRepository) SumByGatewayPerDay(ctx context.Context, gatewayID string, since time.Time) ([]models.DailyBandwidth, error) {
	args := m.Called(ctx, gatewayID, since)
	out, _ := args.Get(0).([]models.DailyBandwidth)
	return out, args.Error(1)
}

type redisFixture struct {
	store *redisstore.Store
	acc   *Accumulator
}

func newRedisFixture(t *testing.T, mode string) *redisFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redisstore.New(database.NewRedisFromClient(client, "test:"))
	cfg := DefaultConfig()
	cfg.CounterMode = mode
	return &redisFixture{
		store: store,
		acc:   NewAccumulator(cfg, store.Bandwidth(), logger.NewTestLogger(t)),
	}
}

func (f *redisFixture) openSession(t *testing.T, id, token string) {
	t.Helper()
	require.NoError(t, f.store.Sessions().Insert(context.Background(), &models.Session{
		ID: id, Token: token, UserID: "user-1", MACAddress: "aa:bb:cc:dd:ee:ff",
		IPAddress: "10.0.0.2", GatewayID: "GW1", IsActive: true,
		SessionStart: testNow, LastActivity: testNow,
	}))
}

func (f *redisFixture) session(t *testing.T, token string) *models.Session {
	t.Helper()
	s, err := f.store.Sessions().FindByToken(context.Background(), token)
	require.NoError(t, err)
	return s
}

// ==========================
// RecordUsage
// ==========================

func TestAccumulator_RecordUsage_Validation(t *testing.T) {
	repo := new(MockBandwidthRepository)
	acc := NewAccumulator(nil, repo, logger.NewTestLogger(t))
	ctx := context.Background()

	err := acc.RecordUsage(ctx, "s1", "u1", "GW1", -1, 10, testNow)
	assert.Equal(t, apperrors.ErrCodeInvalidBandwidthDelta, apperrors.CodeOf(err))

	err = acc.RecordUsage(ctx, "s1", "u1", "GW1", 10, -1, testNow)
	assert.Equal(t, apperrors.ErrCodeInvalidBandwidthDelta, apperrors.CodeOf(err))

	assert.NoError(t, acc.RecordUsage(ctx, "s1", "u1", "GW1", 0, 0, testNow))
	repo.AssertNotCalled(t, "ApplyUsage", mock.Anything, mock.Anything)
}

func TestAccumulator_RecordUsage_PassesCounterMode(t *testing.T) {
	repo := new(MockBandwidthRepository)
	want := storage.Usage{
		SessionID: "s1", UserID: "u1", GatewayID: "GW1",
		Incoming: 300, Outgoing: 200, Cumulative: true, Now: testNow,
	}
	repo.On("ApplyUsage", mock.Anything, want).Return(storage.Applied{Incoming: 300, Outgoing: 200}, true, nil)

	acc := NewAccumulator(&Config{CounterMode: config.CounterModeCumulative, MaxReportDays: 30}, repo, logger.NewTestLogger(t))
	require.NoError(t, acc.RecordUsage(context.Background(), "s1", "u1", "GW1", 300, 200, testNow))
	repo.AssertExpectations(t)
}

func TestAccumulator_RecordUsage_Failures(t *testing.T) {
	tests := []struct {
		name     string
		active   bool
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"inactive session", false, nil, apperrors.ErrCodeInvalidOrInactiveSession},
		{"storage down", false, fmt.Errorf("%w: timeout", storage.ErrUnavailable), apperrors.ErrCodeStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockBandwidthRepository)
			repo.On("ApplyUsage", mock.Anything, mock.Anything).Return(storage.Applied{}, tt.active, tt.err)

			acc := NewAccumulator(nil, repo, logger.NewTestLogger(t))
			err := acc.RecordUsage(context.Background(), "s1", "u1", "GW1", 1, 1, testNow)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestAccumulator_ConcurrentDeltasSumExactly(t *testing.T) {
	f := newRedisFixture(t, config.CounterModeDelta)
	f.openSession(t, "sid-1", "tok-1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.acc.RecordUsage(ctx, "sid-1", "user-1", "GW1", 100, 10, testNow))
		}()
	}
	wg.Wait()

	s := f.session(t, "tok-1")
	assert.Equal(t, int64(2000), s.IncomingBytes)
	assert.Equal(t, int64(200), s.OutgoingBytes)

	buckets, err := f.store.Bandwidth().Buckets(ctx, "user-1", "GW1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, models.HourOf(testNow), buckets[0].HourStart)
	assert.Equal(t, int64(2000), buckets[0].IncomingBytes)
}

func TestAccumulator_CumulativeResendCountsZero(t *testing.T) {
	f := newRedisFixture(t, config.CounterModeCumulative)
	f.openSession(t, "sid-1", "tok-1")
	ctx := context.Background()

	require.NoError(t, f.acc.RecordUsage(ctx, "sid-1", "user-1", "GW1", 500, 50, testNow))
	require.NoError(t, f.acc.RecordUsage(ctx, "sid-1", "user-1", "GW1", 500, 50, testNow))
	require.NoError(t, f.acc.RecordUsage(ctx, "sid-1", "user-1", "GW1", 800, 60, testNow))

	s := f.session(t, "tok-1")
	assert.Equal(t, int64(800), s.IncomingBytes)
	assert.Equal(t, int64(60), s.OutgoingBytes)

	buckets, err := f.store.Bandwidth().Buckets(ctx, "user-1", "GW1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(800), buckets[0].IncomingBytes)
	assert.Equal(t, int64(60), buckets[0].OutgoingBytes)
}

func TestAccumulator_TerminatedSessionAppliesNothing(t *testing.T) {
	f := newRedisFixture(t, config.CounterModeDelta)
	f.openSession(t, "sid-1", "tok-1")
	ctx := context.Background()

	_, err := f.store.Sessions().DeactivateByToken(ctx, "tok-1", testNow)
	require.NoError(t, err)

	err = f.acc.RecordUsage(ctx, "sid-1", "user-1", "GW1", 100, 100, testNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrInactiveSession)

	buckets, err := f.store.Bandwidth().Buckets(ctx, "user-1", "GW1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

// ==========================
// Reports
// ==========================

func TestAccumulator_GetUserBandwidth_EndIsInclusive(t *testing.T) {
	repo := new(MockBandwidthRepository)
	start := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	repo.On("SumByUserPerDay", mock.Anything, "u1",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
	).Return([]models.DailyBandwidth{{Day: start, TotalBytes: 10}}, nil)

	acc := NewAccumulator(nil, repo, logger.NewTestLogger(t))
	days, err := acc.GetUserBandwidth(context.Background(), "u1", start, end)

	require.NoError(t, err)
	assert.Len(t, days, 1)
	repo.AssertExpectations(t)

	_, err = acc.GetUserBandwidth(context.Background(), "u1", end, start)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
}

func TestAccumulator_ReportWindows(t *testing.T) {
	repo := new(MockBandwidthRepository)
	weekStart := time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)
	repo.On("TopUsers", mock.Anything, weekStart, 10).Return([]models.UserBandwidth{{UserID: "u1"}}, nil)
	repo.On("SumByGatewayPerDay", mock.Anything, "GW1", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)).
		Return([]models.DailyBandwidth{}, nil)

	acc := NewAccumulator(nil, repo, logger.NewTestLogger(t))
	ctx := context.Background()

	top, err := acc.GetTopUsers(ctx, 0, 7, testNow)
	require.NoError(t, err)
	assert.Equal(t, "u1", top[0].UserID)

	_, err = acc.GetGatewayBandwidth(ctx, "GW1", 0, testNow)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAccumulator_ReportStorageFailure(t *testing.T) {
	repo := new(MockBandwidthRepository)
	repo.On("TopUsers", mock.Anything, mock.Anything, mock.Anything).Return(nil, storage.ErrUnavailable)

	acc := NewAccumulator(nil, repo, logger.NewTestLogger(t))
	_, err := acc.GetTopUsers(context.Background(), 5, 7, testNow)
	assert.True(t, apperrors.IsStorageError(err))
}

// ==========================
// Formatting and Config
// ==========================

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{1234567890123, "1.12 TB"},
		{-2048, "-2 KB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.in))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, ConfigFrom(config.SessionConfig{CounterMode: config.CounterModeCumulative}).Validate())
	assert.Error(t, (&Config{CounterMode: "absolute", MaxReportDays: 1}).Validate())
	assert.Error(t, (&Config{CounterMode: config.CounterModeDelta}).Validate())
}
