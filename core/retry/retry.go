// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package retry provides bounded attempt budgets and exponential backoff
// for the backup client.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/katzenpost/hpqc/rand"
)

const (
	// DefaultMaxDelay is the default maximum delay between retries.
	DefaultMaxDelay = 10 * time.Second

	// DefaultJitter is the default jitter factor (0.0 to 1.0).
	DefaultJitter = 0.2
)

// ErrExhausted is returned by Spend once every attempt has been used.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Budget counts attempts at one kind of request.  The zero value has no
// attempts; use NewBudget.
type Budget struct {
	max  int
	used int
}

// NewBudget returns a Budget allowing max attempts.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Spend consumes one attempt, returning ErrExhausted if none remain.
func (b *Budget) Spend() error {
	if b.used >= b.max {
		return ErrExhausted
	}
	b.used++
	return nil
}

// Used returns the number of attempts spent so far.
func (b *Budget) Used() int {
	return b.used
}

// Remaining returns the number of attempts left.
func (b *Budget) Remaining() int {
	return b.max - b.used
}

// Delay calculates the delay for a given retry attempt using exponential
// backoff with jitter.
func Delay(baseDelay, maxDelay time.Duration, jitter float64, attempt int) time.Duration {
	// Calculate exponential delay
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))

	// Cap at maxDelay
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	if jitter > 0 {
		r := rand.NewMath()
		jitterFactor := 1 - jitter + r.Float64()*2*jitter
		delay *= jitterFactor
	}

	return time.Duration(delay)
}

// Sleep waits for the backoff delay of attempt, returning early with
// ctx.Err() if ctx is cancelled.  A zero baseDelay returns immediately.
func Sleep(ctx context.Context, baseDelay time.Duration, attempt int) error {
	if baseDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(Delay(baseDelay, DefaultMaxDelay, DefaultJitter, attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
