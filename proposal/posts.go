package proposal

import (
	"context"
	"strings"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/core"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// CreateActivityComment comments on the current proposal's discussion board.
func (r *Repository) CreateActivityComment(ctx context.Context, content string) (*core.Post, error) {
	p, err := r.RequireJoined()
	if err != nil {
		return nil, err
	}
	return r.createPost(ctx, backend.PostInput{
		Type:       core.PostCommentOnActivity,
		ActivityID: p.ActivityID,
		Content:    content,
	})
}

// CreatePostComment replies to the comment parentID.
func (r *Repository) CreatePostComment(ctx context.Context, parentID, content string) (*core.Post, error) {
	p, err := r.RequireJoined()
	if err != nil {
		return nil, err
	}
	if parentID == "" {
		return nil, errors.Wrap(core.ErrInvalidInput, "parent post is required")
	}
	return r.createPost(ctx, backend.PostInput{
		Type:       core.PostReplyOnComment,
		ActivityID: p.ActivityID,
		ParentID:   parentID,
		Content:    content,
	})
}

// CreateProposalNotice posts an article on the current proposal's notice board.
func (r *Repository) CreateProposalNotice(ctx context.Context, content string) (*core.Post, error) {
	p, err := r.RequireJoined()
	if err != nil {
		return nil, err
	}
	return r.createPost(ctx, backend.PostInput{
		Type:       core.PostBoardArticle,
		ActivityID: p.NoticeID,
		Content:    content,
	})
}

func (r *Repository) createPost(ctx context.Context, in backend.PostInput) (*core.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.Wrap(core.ErrInvalidInput, "content is required")
	}
	if in.ActivityID == "" {
		return nil, errors.Wrap(core.ErrInvalidInput, "proposal has no such board")
	}

	post, err := r.backend.CreatePost(ctx, in)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, errors.New("create post returned no post")
	}
	if err := ctx.Err(); err != nil {
		return post, err
	}

	// a fresh post is unread, not liked and not reported
	post.Status = core.PostStatus{}

	key := commentKey{activityID: in.ActivityID, parentID: in.ParentID}
	r.mu.Lock()
	r.comments[key] = append([]*core.Post{post}, r.comments[key]...)
	r.mu.Unlock()
	return post, nil
}

// Comments returns the cached posts of a board, or the replies to parentID when it is set.
func (r *Repository) Comments(activityID, parentID string) []*core.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*core.Post{}, r.comments[commentKey{activityID: activityID, parentID: parentID}]...)
}

func (r *Repository) SeedComments(activityID, parentID string, posts []*core.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments[commentKey{activityID: activityID, parentID: parentID}] = append([]*core.Post{}, posts...)
}

// ReportPost reports postID on the current proposal's board and marks the cached copy.
func (r *Repository) ReportPost(ctx context.Context, postID string) error {
	if r.identity.User() == nil {
		return core.ErrNotAuthenticated
	}
	p := r.Current()
	if p == nil {
		return core.ErrProposalNotLoaded
	}
	if err := r.backend.ReportPost(ctx, p.ActivityID, postID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, posts := range r.comments {
		if post, ok := lo.Find(posts, func(p *core.Post) bool { return p.ID == postID }); ok {
			post.Status.IsReported = true
		}
	}
	return nil
}
