package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWatchInterval = 10 * time.Second

	EventChanMaxSize = 100
)

// RefreshFunc refetches the watched proposal. Both watcher triggers end up here.
type RefreshFunc func(ctx context.Context) (*Proposal, error)

// Watcher refetches a proposal when one of its period boundaries is crossed or when the backend
// pushes a change for it. Each boundary triggers at most one refetch.
type Watcher struct {
	Logger   logrus.FieldLogger
	Interval time.Duration
	Now      func() time.Time

	// EventChan receives ids of proposals changed on the backend
	EventChan chan string

	refresh  RefreshFunc
	onChange func(*Proposal)

	mu         sync.Mutex
	proposalID string
	pending    []time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewWatcher(logger logrus.FieldLogger, interval time.Duration, refresh RefreshFunc, onChange func(*Proposal)) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if onChange == nil {
		onChange = func(*Proposal) {}
	}
	return &Watcher{
		Logger:    logger,
		Interval:  interval,
		Now:       time.Now,
		EventChan: make(chan string, EventChanMaxSize),
		refresh:   refresh,
		onChange:  onChange,
	}
}

func (w *Watcher) Start(ctx context.Context, p *Proposal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	w.track(p)

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.listen(ctx, w.done)
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Notify reports a backend push. It never blocks, a full channel drops the event.
func (w *Watcher) Notify(proposalID string) {
	select {
	case w.EventChan <- proposalID:
	default:
		w.Logger.Warnf("watcher event channel full, dropping event for %s", proposalID)
	}
}

// Pending returns the boundaries that have not fired yet.
func (w *Watcher) Pending() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Time(nil), w.pending...)
}

func (w *Watcher) track(p *Proposal) {
	if p == nil {
		return
	}
	w.proposalID = p.ID
	w.pending = Project(ProjectionFor(p, w.Now(), nil, nil)).Boundaries
}

func (w *Watcher) listen(ctx context.Context, done chan struct{}) {
	defer close(done)
	w.Logger.Info("watch proposal phase")

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Debug("watcher context done")
			return
		case <-ticker.C:
			if w.crossed(w.Now()) {
				w.doRefresh(ctx, "period boundary crossed")
			}
		case id := <-w.EventChan:
			w.mu.Lock()
			watched := id == w.proposalID
			w.mu.Unlock()
			if watched {
				w.doRefresh(ctx, "backend push")
			}
		}
	}
}

// crossed drops every boundary at or before now and reports whether any was dropped.
func (w *Watcher) crossed(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	var hit bool
	rest := w.pending[:0]
	for _, b := range w.pending {
		if !b.After(now) {
			hit = true
			continue
		}
		rest = append(rest, b)
	}
	w.pending = rest
	return hit
}

func (w *Watcher) doRefresh(ctx context.Context, reason string) {
	w.Logger.Debugf("refresh proposal: %s", reason)
	p, err := w.refresh(ctx)
	if err != nil {
		w.Logger.Errorf("refresh proposal error: %s", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	w.track(p)
	w.mu.Unlock()

	w.onChange(p)
}
