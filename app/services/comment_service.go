package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quill/app/models"
	"quill/app/repositories"
)

var commentMessages = map[string]string{
	"content.required": "Comment content is required.",
	"content.max":      "Comment cannot exceed 2000 characters.",
	"post_id.required": "Post ID is required.",
}

const (
	msgPostMissing   = "Selected post does not exist."
	msgParentMissing = "Parent comment does not exist."
	msgParentElse    = "Parent comment belongs to a different post."
)

// CommentInput is a new comment as submitted by a reader.
type CommentInput struct {
	Content  string `json:"content" validate:"required,max=2000"`
	PostID   int    `json:"post_id" validate:"required"`
	ParentID *int   `json:"parent_id"`
}

// CommentService handles business logic for comments
type CommentService struct {
	store *repositories.Store
	now   func() time.Time
}

// NewCommentService creates a new CommentService
func NewCommentService(store *repositories.Store) *CommentService {
	return &CommentService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a comment written by actor and returns it with the post it
// belongs to.
func (s *CommentService) Create(ctx context.Context, actor *models.User, input CommentInput) (*models.Comment, *models.Post, error) {
	if actor == nil {
		return nil, nil, ErrUnauthenticated
	}
	input.Content = strings.TrimSpace(input.Content)
	if input.ParentID != nil && *input.ParentID == 0 {
		input.ParentID = nil
	}

	verr := validateInput(input, commentMessages)

	var post *models.Post
	if !verr.Has("post_id") {
		var err error
		post, err = s.store.Posts.GetByID(ctx, input.PostID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			verr.Add("post_id", msgPostMissing)
		case err != nil:
			return nil, nil, err
		}
	}

	if input.ParentID != nil {
		parent, err := s.store.Comments.GetByID(ctx, *input.ParentID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			verr.Add("parent_id", msgParentMissing)
		case err != nil:
			return nil, nil, err
		case post != nil && parent.PostID != post.ID:
			verr.Add("parent_id", msgParentElse)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}

	comment := &models.Comment{
		UserID:   actor.ID,
		ParentID: input.ParentID,
		Content:  input.Content,
	}
	if err := comment.SetPost(post); err != nil {
		return nil, nil, err
	}
	comment.BeforeCreate(s.now())
	if err := comment.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid comment: %w", err)
	}

	if err := s.store.Comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrConstraint) {
			verr.Add("post_id", msgPostMissing)
			return nil, nil, verr
		}
		return nil, nil, err
	}
	comment.Author = actor
	return comment, post, nil
}

// Delete removes a comment and its replies. Only the comment's author may
// delete it. The post it belonged to is returned for redirects.
func (s *CommentService) Delete(ctx context.Context, actor *models.User, id int) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	comment, err := s.store.Comments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !comment.OwnedBy(actor) {
		return nil, ErrForbidden
	}

	post, err := s.store.Posts.GetByID(ctx, comment.PostID)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.store.Comments.Delete(ctx, id); err != nil {
		return nil, notFound(err)
	}
	return post, nil
}
