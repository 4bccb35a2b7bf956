// Package proposal keeps the current proposal in sync with the backend and exposes its
// membership and discussion mutations.
package proposal

import (
	"context"
	"sync"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/storage"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type Backend interface {
	GetProposal(ctx context.Context, id string) (*core.Proposal, error)
	IsProposalJoined(ctx context.Context, id string) (bool, error)
	JoinProposal(ctx context.Context, id string) (bool, error)
	CreateProposal(ctx context.Context, in core.ProposalInput) (*core.Proposal, error)
	ListProposals(ctx context.Context, vars backend.ListVariables) (*backend.ProposalList, error)
	CreatePost(ctx context.Context, in backend.PostInput) (*core.Post, error)
	ReportPost(ctx context.Context, activityID, postID string) error
}

// Identity reports the signed-in user, nil when there is none.
type Identity interface {
	User() *core.User
}

var _ Backend = (*backend.Client)(nil)

type commentKey struct {
	activityID string
	parentID   string
}

type Repository struct {
	backend  Backend
	identity Identity
	store    *storage.Store
	logger   logrus.FieldLogger

	mu         sync.RWMutex
	generation uint64
	current    *core.Proposal
	joined     bool
	lists      map[backend.ListVariables]*backend.ProposalList
	comments   map[commentKey][]*core.Post
	listeners  []func(*core.Proposal, bool)
}

func NewRepository(b Backend, identity Identity, store *storage.Store, logger logrus.FieldLogger) *Repository {
	return &Repository{
		backend:  b,
		identity: identity,
		store:    store,
		logger:   logger,
		lists:    make(map[backend.ListVariables]*backend.ProposalList),
		comments: make(map[commentKey][]*core.Post),
	}
}

// OnChange registers fn to be called with the current proposal and joined flag after each change.
func (r *Repository) OnChange(fn func(p *core.Proposal, joined bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Repository) Current() *core.Proposal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil
	}
	p := *r.current
	return &p
}

func (r *Repository) Joined() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.joined
}

// FetchProposal drops the current proposal and loads id. When calls overlap only the last one
// is applied.
func (r *Repository) FetchProposal(ctx context.Context, id string) (*core.Proposal, error) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.current = nil
	r.joined = false
	r.mu.Unlock()
	r.notify()

	return r.load(ctx, id, gen)
}

// Refresh reloads the current proposal and keeps showing it while the request runs.
func (r *Repository) Refresh(ctx context.Context) (*core.Proposal, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return nil, core.ErrProposalNotLoaded
	}
	r.generation++
	gen := r.generation
	id := r.current.ID
	r.mu.Unlock()

	return r.load(ctx, id, gen)
}

// Invalidate refreshes when id is the current proposal. It is fed by pushes and phase boundaries.
func (r *Repository) Invalidate(ctx context.Context, id string) error {
	cur := r.Current()
	if cur == nil || cur.ID != id {
		return nil
	}
	_, err := r.Refresh(ctx)
	return err
}

func (r *Repository) load(ctx context.Context, id string, gen uint64) (*core.Proposal, error) {
	p, err := r.backend.GetProposal(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch proposal %s", id)
	}
	if p == nil {
		return nil, errors.Errorf("proposal %s not found", id)
	}

	joined := false
	if r.identity.User() != nil {
		joined, err = r.backend.IsProposalJoined(ctx, id)
		if err != nil {
			r.logger.Warnf("check joined %s: %s", id, err)
			joined = false
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		r.logger.WithField("id", id).Debug("drop stale proposal fetch")
		return p, nil
	}
	r.current = p
	r.joined = joined
	r.mu.Unlock()
	r.notify()
	return p, nil
}

// JoinProposal joins the current proposal. It reports success and only logs failures.
func (r *Repository) JoinProposal(ctx context.Context) bool {
	if r.identity.User() == nil {
		r.logger.Warn("join proposal without identity")
		return false
	}
	cur := r.Current()
	if cur == nil {
		r.logger.Warn("join proposal before it is loaded")
		return false
	}
	if r.Joined() {
		return true
	}

	ok, err := r.backend.JoinProposal(ctx, cur.ID)
	if err != nil {
		r.logger.Errorf("join proposal %s: %s", cur.ID, err)
		return false
	}
	if !ok || ctx.Err() != nil {
		return ok
	}

	r.mu.Lock()
	if r.current != nil && r.current.ID == cur.ID {
		r.joined = true
	}
	r.mu.Unlock()
	r.notify()
	return true
}

// EnsureJoined is the explicit join step callers run before a joined-only operation.
func (r *Repository) EnsureJoined(ctx context.Context) error {
	if r.Current() == nil {
		return core.ErrProposalNotLoaded
	}
	if r.JoinProposal(ctx) {
		return nil
	}
	return core.ErrNotJoined
}

// RequireJoined fails with core.ErrNotJoined unless the current proposal was joined.
func (r *Repository) RequireJoined() (*core.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, core.ErrProposalNotLoaded
	}
	if !r.joined {
		return nil, core.ErrNotJoined
	}
	p := *r.current
	return &p, nil
}

// CreateProposal creates a proposal and, when cacheVars is given, prepends it to that cached list.
func (r *Repository) CreateProposal(ctx context.Context, in core.ProposalInput, cacheVars *backend.ListVariables) (*core.Proposal, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if r.identity.User() == nil {
		return nil, core.ErrNotAuthenticated
	}

	p, err := r.backend.CreateProposal(ctx, in)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("create proposal returned no proposal")
	}
	if cacheVars != nil && ctx.Err() == nil {
		r.prepend(*cacheVars, p)
	}
	return p, nil
}

func (r *Repository) prepend(vars backend.ListVariables, p *core.Proposal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.lists[vars]
	if !ok {
		return
	}
	values := make([]*core.Proposal, 0, len(list.Values)+1)
	values = append(values, p)
	values = append(values, list.Values...)
	r.lists[vars] = &backend.ProposalList{Count: list.Count + 1, Values: values}
}

// FetchList loads a proposal list and caches it under vars.
func (r *Repository) FetchList(ctx context.Context, vars backend.ListVariables) (*backend.ProposalList, error) {
	list, err := r.backend.ListProposals(ctx, vars)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.SeedList(vars, list)
	return r.CachedList(vars), nil
}

func (r *Repository) SeedList(vars backend.ListVariables, list *backend.ProposalList) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[vars] = &backend.ProposalList{Count: list.Count, Values: append([]*core.Proposal{}, list.Values...)}
}

// CachedList returns a copy of the list cached under vars, or nil.
func (r *Repository) CachedList(vars backend.ListVariables) *backend.ProposalList {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.lists[vars]
	if !ok {
		return nil
	}
	return &backend.ProposalList{Count: list.Count, Values: append([]*core.Proposal{}, list.Values...)}
}

func (r *Repository) notify() {
	r.mu.RLock()
	var p *core.Proposal
	if r.current != nil {
		c := *r.current
		p = &c
	}
	joined := r.joined
	listeners := append([]func(*core.Proposal, bool){}, r.listeners...)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(p, joined)
	}
}

// Bookmark flips the bookmark of the current proposal.
func (r *Repository) Bookmark() (bool, error) {
	cur := r.Current()
	if cur == nil {
		return false, core.ErrProposalNotLoaded
	}
	return r.store.ToggleBookmark(cur.ID)
}

func (r *Repository) Bookmarked(id string) (bool, error) {
	blob, err := r.store.Load()
	if err != nil {
		return false, err
	}
	return lo.Contains(blob.Bookmarks, id), nil
}
