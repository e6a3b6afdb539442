package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shiv7/trading-dashboard-sub004/internal/domain"
	"github.com/Shiv7/trading-dashboard-sub004/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackerFixture(t *testing.T, side domain.Side) (*usecase.ExitCoordinator, *usecase.OiTracker, *MockOISource) {
	t.Helper()
	c := newCoordinator(coordinatorDeps{})
	req := scenarioRequest("OPT1")
	req.Side = side
	_, err := c.OpenPosition(context.Background(), req)
	require.NoError(t, err)

	source := NewMockOISource()
	tracker := usecase.NewOiTracker(usecase.DefaultTrackerConfig(), source, c, nil)
	tracker.SetClock(func() time.Time { return fixedNow })
	return c, tracker, source
}

func TestOiTracker_UnavailableSkipsTick(t *testing.T) {
	c, tracker, source := newTrackerFixture(t, domain.SideLong)
	source.Fail("OPT1", errors.New("connection refused"))

	err := tracker.Refresh(context.Background(), "OPT1")
	assert.Error(t, err)

	snap, err := c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.Empty(t, snap.OiWindow)
	assert.Zero(t, snap.LastOiCheckMs)

	// Empty queue maps to unavailable as well.
	source.Fail("OPT1", nil)
	assert.ErrorIs(t, tracker.Refresh(context.Background(), "OPT1"), domain.ErrDataUnavailable)
}

func TestOiTracker_WeakReadingDiscarded(t *testing.T) {
	c, tracker, source := newTrackerFixture(t, domain.SideLong)
	source.Push("OPT1", domain.OiLongUnwinding, 0.29)
	source.Push("OPT1", domain.OiLongUnwinding, 0.3)

	require.NoError(t, tracker.Refresh(context.Background(), "OPT1"))
	snap, err := c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.Empty(t, snap.OiWindow)
	assert.Equal(t, fixedNow.UnixMilli(), snap.LastOiCheckMs)

	require.NoError(t, tracker.Refresh(context.Background(), "OPT1"))
	snap, err = c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.Len(t, snap.OiWindow, 1)
}

func TestOiTracker_UnknownInterpretation(t *testing.T) {
	_, tracker, source := newTrackerFixture(t, domain.SideLong)
	source.Push("OPT1", "SIDEWAYS", 0.9)

	assert.ErrorIs(t, tracker.Refresh(context.Background(), "OPT1"), domain.ErrDataUnavailable)
}

func TestOiTracker_UnknownPosition(t *testing.T) {
	_, tracker, source := newTrackerFixture(t, domain.SideLong)
	source.Push("OPT9", domain.OiNeutral, 0.9)

	assert.ErrorIs(t, tracker.Refresh(context.Background(), "OPT9"), domain.ErrUnknownPosition)
}

func TestOiTracker_RaisesAndKeepsFlag(t *testing.T) {
	c, tracker, source := newTrackerFixture(t, domain.SideLong)
	ctx := context.Background()

	for _, interp := range []domain.OiInterpretation{
		domain.OiLongUnwinding, domain.OiNeutral, domain.OiLongUnwinding, domain.OiNeutral,
	} {
		source.Push("OPT1", interp, 0.9)
		require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	}
	snap, err := c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.False(t, snap.ExitFlag, "four readings must not fire")

	source.Push("OPT1", domain.OiLongUnwinding, 0.9)
	require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	snap, err = c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.True(t, snap.ExitFlag)
	require.NotNil(t, snap.ExitPattern)
	assert.Equal(t, "LONG_UNWINDING 3/5", *snap.ExitPattern)

	// Calm readings roll the window but never clear the flag.
	for i := 0; i < 6; i++ {
		source.Push("OPT1", domain.OiLongBuildup, 0.9)
		require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	}
	snap, err = c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.True(t, snap.ExitFlag)
	assert.Equal(t, "LONG_UNWINDING 3/5", *snap.ExitPattern)
	assert.Len(t, snap.OiWindow, usecase.OiWindowSize)

	d, err := c.OnTargetHit(ctx, "OPT1", 2)
	require.NoError(t, err)
	assert.Equal(t, 750, d.Quantity)
	assert.Equal(t, "T2 all lots (LONG_UNWINDING 3/5)", d.Reason)
}

func TestOiTracker_ModerateConfidenceDoesNotVote(t *testing.T) {
	c, tracker, source := newTrackerFixture(t, domain.SideLong)
	ctx := context.Background()

	// 0.4 passes the window floor but not the vote threshold.
	for _, conf := range []float64{0.9, 0.9, 0.4, 0.4, 0.4} {
		source.Push("OPT1", domain.OiLongUnwinding, conf)
		require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	}
	snap, err := c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.Len(t, snap.OiWindow, 5)
	assert.False(t, snap.ExitFlag)
}

func TestOiTracker_ShortWatchesShortCovering(t *testing.T) {
	c, tracker, source := newTrackerFixture(t, domain.SideShort)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		source.Push("OPT1", domain.OiLongUnwinding, 0.9)
		require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	}
	snap, err := c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.False(t, snap.ExitFlag)

	for i := 0; i < 3; i++ {
		source.Push("OPT1", domain.OiShortCovering, 0.8)
		require.NoError(t, tracker.Refresh(ctx, "OPT1"))
	}
	snap, err = c.Snapshot("OPT1")
	require.NoError(t, err)
	assert.True(t, snap.ExitFlag)
	assert.Equal(t, "SHORT_COVERING 3/5", *snap.ExitPattern)
}
