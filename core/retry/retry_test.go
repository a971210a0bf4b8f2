// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBudget(t *testing.T) {
	require := require.New(t)

	b := NewBudget(4)
	for i := 0; i < 4; i++ {
		require.NoError(b.Spend())
	}
	require.Equal(4, b.Used())
	require.Zero(b.Remaining())
	require.ErrorIs(b.Spend(), ErrExhausted)
	require.Equal(4, b.Used())

	var zero Budget
	require.ErrorIs(zero.Spend(), ErrExhausted)
}

func TestDelay(t *testing.T) {
	require := require.New(t)

	baseDelay := 100 * time.Millisecond
	maxDelay := 1 * time.Second

	t.Run("exponential growth", func(t *testing.T) {
		require.Equal(100*time.Millisecond, Delay(baseDelay, maxDelay, 0, 0))
		require.Equal(200*time.Millisecond, Delay(baseDelay, maxDelay, 0, 1))
		require.Equal(400*time.Millisecond, Delay(baseDelay, maxDelay, 0, 2))
		require.Equal(800*time.Millisecond, Delay(baseDelay, maxDelay, 0, 3))
	})

	t.Run("max delay cap", func(t *testing.T) {
		require.Equal(maxDelay, Delay(baseDelay, maxDelay, 0, 10))
	})

	t.Run("jitter range", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			d := Delay(baseDelay, maxDelay, 0.2, 0)
			require.GreaterOrEqual(d, 80*time.Millisecond)
			require.LessOrEqual(d, 120*time.Millisecond)
		}
	})
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	require.NoError(Sleep(context.Background(), 0, 3))
	require.NoError(Sleep(context.Background(), time.Millisecond, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(Sleep(ctx, time.Hour, 0), context.Canceled)
}
