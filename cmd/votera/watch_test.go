package main

import (
	"context"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/bosagora/votera/backend"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func noBackoff(uint) time.Duration {
	return time.Millisecond
}

func TestResubscribeBudgetStartsOverAfterConnect(t *testing.T) {
	calls := 0
	resubscribe(context.Background(), log.New(), 3, noBackoff, func(ctx context.Context, onConnected func()) error {
		calls++
		if calls > 12 {
			return backend.ErrSubscriptionDisabled
		}
		onConnected()
		return errors.New("connection reset")
	})
	assert.Equal(t, 13, calls)
}

func TestResubscribeGivesUp(t *testing.T) {
	calls := 0
	resubscribe(context.Background(), log.New(), 3, noBackoff, func(ctx context.Context, onConnected func()) error {
		calls++
		return errors.New("connection refused")
	})
	assert.Equal(t, 3, calls)
}

func TestResubscribeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	resubscribe(ctx, log.New(), 3, noBackoff, func(ctx context.Context, onConnected func()) error {
		calls++
		onConnected()
		cancel()
		return ctx.Err()
	})
	assert.Equal(t, 1, calls)
}
