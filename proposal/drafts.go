package proposal

import (
	"sort"
	"time"

	"github.com/bosagora/votera/core"
	"github.com/bosagora/votera/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrDraftNotFound = errors.New("draft not found")

// SaveDraft stores in as a local draft. An empty id creates a new draft.
func (r *Repository) SaveDraft(id string, in core.ProposalInput) (core.Draft, error) {
	if id == "" {
		id = uuid.NewString()
	}
	draft := core.Draft{ID: id, Input: in, UpdatedAt: time.Now()}
	err := r.store.Update(func(b *storage.Blob) error {
		if b.Drafts == nil {
			b.Drafts = make(map[string]core.Draft)
		}
		b.Drafts[id] = draft
		return nil
	})
	return draft, err
}

// Drafts returns the local drafts, most recently updated first.
func (r *Repository) Drafts() ([]core.Draft, error) {
	blob, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	drafts := lo.Values(blob.Drafts)
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].UpdatedAt.After(drafts[j].UpdatedAt)
	})
	return drafts, nil
}

func (r *Repository) Draft(id string) (core.Draft, error) {
	blob, err := r.store.Load()
	if err != nil {
		return core.Draft{}, err
	}
	d, ok := blob.Drafts[id]
	if !ok {
		return core.Draft{}, errors.Wrap(ErrDraftNotFound, id)
	}
	return d, nil
}

func (r *Repository) DeleteDraft(id string) error {
	return r.store.Update(func(b *storage.Blob) error {
		if _, ok := b.Drafts[id]; !ok {
			return errors.Wrap(ErrDraftNotFound, id)
		}
		delete(b.Drafts, id)
		return nil
	})
}
