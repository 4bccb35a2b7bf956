package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func watchedProposal(now time.Time) *Proposal {
	return &Proposal{
		ID:           "p1",
		Status:       StatusPendingAssess,
		AssessPeriod: &Period{Begin: now.Add(time.Minute), End: now.Add(2 * time.Minute)},
		VotePeriod:   &Period{Begin: now.Add(3 * time.Minute), End: now.Add(4 * time.Minute)},
	}
}

func newTestWatcher(c *clock, refreshes *int32, changed chan *Proposal) *Watcher {
	p := watchedProposal(c.Now())
	w := NewWatcher(log.New(), 5*time.Millisecond, func(ctx context.Context) (*Proposal, error) {
		atomic.AddInt32(refreshes, 1)
		cp := *p
		return &cp, nil
	}, func(p *Proposal) {
		changed <- p
	})
	w.Now = c.Now
	return w
}

func TestWatcherBoundaryFiresOnce(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	var refreshes int32
	changed := make(chan *Proposal, 10)
	w := newTestWatcher(c, &refreshes, changed)

	w.Start(context.Background(), watchedProposal(c.Now()))
	defer w.Stop()
	assert.Len(t, w.Pending(), 4)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&refreshes))

	c.Add(time.Minute)
	select {
	case p := <-changed:
		assert.Equal(t, "p1", p.ID)
	case <-time.After(time.Second):
		t.Fatal("boundary did not trigger a refetch")
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Len(t, w.Pending(), 3)
}

func TestWatcherPush(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	var refreshes int32
	changed := make(chan *Proposal, 10)
	w := newTestWatcher(c, &refreshes, changed)
	w.Interval = time.Hour

	w.Start(context.Background(), watchedProposal(c.Now()))
	defer w.Stop()

	w.Notify("other")
	w.Notify("p1")
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("push did not trigger a refetch")
	}
	require.Eventually(t, func() bool { return len(changed) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestWatcherStop(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	var refreshes int32
	changed := make(chan *Proposal, 10)
	w := newTestWatcher(c, &refreshes, changed)

	w.Start(context.Background(), watchedProposal(c.Now()))
	w.Stop()
	w.Stop()

	c.Add(time.Hour)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&refreshes))
}
