package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quill/app/content"
	"quill/app/models"
	"quill/app/queries"
	"quill/app/repositories"
)

var postMessages = map[string]string{
	"title.required":   "Post title is required.",
	"content.required": "Post content is required.",
	"status.required":  "Post status is required.",
	"status.oneof":     "Post status must be draft, published, or archived.",
}

const (
	msgCategoryMissing = "Selected category does not exist."
	msgTagsMissing     = "One or more selected tags do not exist."
	msgSlugTaken       = "The slug has already been taken."
)

// PostInput is the writable part of a post. A nil Tags leaves the post's
// tags unchanged; an empty one clears them. Sent lists the fields the
// client supplied; a nil Sent means all of them.
type PostInput struct {
	Title         string            `json:"title" validate:"required,max=255"`
	Slug          string            `json:"slug" validate:"max=255"`
	Excerpt       string            `json:"excerpt" validate:"max=500"`
	Content       string            `json:"content" validate:"required"`
	FeaturedImage string            `json:"featured_image" validate:"max=255"`
	Status        models.PostStatus `json:"status" validate:"required,oneof=draft published archived"`
	PublishedAt   *time.Time        `json:"published_at"`
	CategoryID    *int              `json:"category_id" validate:"omitempty,gt=0"`
	Tags          []int             `json:"tags"`
	ReadingTime   *int              `json:"reading_time" validate:"omitempty,gte=1"`
	MetaData      map[string]any    `json:"meta_data"`

	Sent map[string]bool `json:"-"`
}

// UnmarshalJSON decodes the input and records which keys were present, so
// a partial update leaves the other fields alone.
func (in *PostInput) UnmarshalJSON(data []byte) error {
	type plain PostInput
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*in = PostInput(p)
	in.Sent = make(map[string]bool, len(keys))
	for k := range keys {
		in.Sent[strings.ToLower(k)] = true
	}
	return nil
}

func (in *PostInput) sent(field string) bool {
	return in.Sent == nil || in.Sent[field]
}

// PostView is everything the post page shows.
type PostView struct {
	Post         *models.Post   `json:"post"`
	ContentHTML  string         `json:"content_html"`
	RelatedPosts []*models.Post `json:"related_posts"`
}

// PostIndex is the public post listing with its sidebars.
type PostIndex struct {
	Posts      *models.Page[*models.Post] `json:"posts"`
	Categories []*models.Category         `json:"categories"`
	Tags       []*models.Tag              `json:"tags"`
}

// PostForm carries the choices of the create and edit forms. Post is nil
// on the create form.
type PostForm struct {
	Post       *models.Post       `json:"post,omitempty"`
	Categories []*models.Category `json:"categories"`
	Tags       []*models.Tag      `json:"tags"`
}

// PostService handles business logic for blog posts
type PostService struct {
	store   *repositories.Store
	queries *queries.Queries
	now     func() time.Time
}

// NewPostService creates a new PostService
func NewPostService(store *repositories.Store, q *queries.Queries) *PostService {
	return &PostService{
		store:   store,
		queries: q,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Find resolves a post by slug, falling back to a numeric id.
func (s *PostService) Find(ctx context.Context, key string) (*models.Post, error) {
	post, err := s.store.Posts.GetBySlug(ctx, key)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	id, convErr := strconv.Atoi(key)
	if convErr != nil || id <= 0 {
		return nil, ErrNotFound
	}
	post, err = s.store.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return post, nil
}

// Index lists published posts with category and tag counts.
func (s *PostService) Index(ctx context.Context, page int) (*PostIndex, error) {
	posts, err := s.queries.ListPublished(ctx, queries.PostFilter{}, page)
	if err != nil {
		return nil, err
	}
	categories, err := s.queries.CategoriesWithCounts(ctx, 0)
	if err != nil {
		return nil, err
	}
	tags, err := s.queries.TagsWithCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &PostIndex{Posts: posts, Categories: categories, Tags: tags}, nil
}

// Show returns a post visible to actor, counting the view.
func (s *PostService) Show(ctx context.Context, actor *models.User, key string) (*PostView, error) {
	post, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(actor) {
		return nil, ErrNotFound
	}

	views, err := s.store.Posts.IncrementViews(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count view: %w", notFound(err))
	}
	post.Views = views

	if _, err := s.queries.Detail(ctx, post); err != nil {
		return nil, err
	}
	related, err := s.queries.RelatedTo(ctx, post, queries.RelatedLimit)
	if err != nil {
		return nil, err
	}
	html, err := content.RenderMarkdown(post.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to render post %d: %w", post.ID, err)
	}
	return &PostView{Post: post, ContentHTML: html, RelatedPosts: related}, nil
}

// CreateForm returns the choices for a new post.
func (s *PostService) CreateForm(ctx context.Context, actor *models.User) (*PostForm, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.form(ctx, nil)
}

// EditForm returns the post with its tags and the choices to edit it.
func (s *PostService) EditForm(ctx context.Context, actor *models.User, key string) (*PostForm, error) {
	post, err := s.authorize(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	if err := s.queries.WithTags(ctx, post); err != nil {
		return nil, err
	}
	return s.form(ctx, post)
}

func (s *PostService) form(ctx context.Context, post *models.Post) (*PostForm, error) {
	categories, err := s.store.Categories.List(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.Tags.List(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	return &PostForm{Post: post, Categories: categories, Tags: tags}, nil
}

// Create validates input and stores a new post authored by actor.
func (s *PostService) Create(ctx context.Context, actor *models.User, input PostInput) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	input.normalize()

	verr := validateInput(input, postMessages)
	if err := s.checkReferences(ctx, input, verr); err != nil {
		return nil, err
	}
	if input.Slug != "" && !verr.Has("slug") {
		if err := s.checkSlug(ctx, input.Slug, 0, verr); err != nil {
			return nil, err
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{UserID: actor.ID}
	input.apply(post, now)
	if post.Slug == "" {
		slug, err := s.uniqueSlug(ctx, input.Title, 0)
		if err != nil {
			return nil, err
		}
		post.Slug = slug
	}
	post.BeforeCreate(now)
	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("invalid post: %w", err)
	}

	if err := s.store.Posts.Create(ctx, post); err != nil {
		return nil, writeError(err, "category_id")
	}
	if input.Tags != nil {
		if err := s.store.Posts.SyncTags(ctx, post.ID, input.Tags); err != nil {
			// Undo the insert so a failed create leaves nothing behind.
			if derr := s.store.Posts.Delete(ctx, post.ID); derr != nil {
				return nil, errors.Join(err, derr)
			}
			return nil, writeError(err, "tags")
		}
	}
	post.Author = actor
	return post, s.queries.WithTags(ctx, post)
}

// Update applies input to the post identified by key. Only its author may
// update it.
func (s *PostService) Update(ctx context.Context, actor *models.User, key string, input PostInput) (*models.Post, error) {
	post, err := s.authorize(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	input.normalize()

	verr := validateInput(input, postMessages)
	if err := s.checkReferences(ctx, input, verr); err != nil {
		return nil, err
	}
	if input.Slug != "" && input.Slug != post.Slug && !verr.Has("slug") {
		if err := s.checkSlug(ctx, input.Slug, post.ID, verr); err != nil {
			return nil, err
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	input.apply(post, now)
	if input.Slug == "" && post.Slug == "" {
		slug, err := s.uniqueSlug(ctx, input.Title, post.ID)
		if err != nil {
			return nil, err
		}
		post.Slug = slug
	}
	post.UpdatedAt = now
	if err := post.Validate(); err != nil {
		return nil, fmt.Errorf("invalid post: %w", err)
	}

	if err := s.store.Posts.Update(ctx, post); err != nil {
		return nil, writeError(err, "category_id")
	}
	if input.Tags != nil {
		if err := s.store.Posts.SyncTags(ctx, post.ID, input.Tags); err != nil {
			return nil, writeError(err, "tags")
		}
	}
	post.Author = actor
	return post, s.queries.WithTags(ctx, post)
}

// Delete removes the post identified by key with its comments and tag
// links. Only its author may delete it.
func (s *PostService) Delete(ctx context.Context, actor *models.User, key string) error {
	post, err := s.authorize(ctx, actor, key)
	if err != nil {
		return err
	}
	return notFound(s.store.Posts.Delete(ctx, post.ID))
}

// authorize loads the post and checks that actor wrote it.
func (s *PostService) authorize(ctx context.Context, actor *models.User, key string) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	post, err := s.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(actor) {
		return nil, ErrForbidden
	}
	return post, nil
}

// checkReferences reports a missing category or tag on verr.
func (s *PostService) checkReferences(ctx context.Context, input PostInput, verr *ValidationError) error {
	if input.CategoryID != nil && !verr.Has("category_id") {
		_, err := s.store.Categories.GetByID(ctx, *input.CategoryID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			verr.Add("category_id", msgCategoryMissing)
		case err != nil:
			return err
		}
	}
	if len(input.Tags) > 0 {
		tags, err := s.store.Tags.GetMany(ctx, input.Tags)
		if err != nil {
			return err
		}
		for _, id := range input.Tags {
			if _, ok := tags[id]; !ok {
				verr.Add("tags", msgTagsMissing)
				break
			}
		}
	}
	return nil
}

func (s *PostService) checkSlug(ctx context.Context, slug string, selfID int, verr *ValidationError) error {
	existing, err := s.store.Posts.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if existing.ID != selfID {
		verr.Add("slug", msgSlugTaken)
	}
	return nil
}

// uniqueSlug derives a slug from title, appending -2, -3... until it is
// free or only used by selfID.
func (s *PostService) uniqueSlug(ctx context.Context, title string, selfID int) (string, error) {
	base := content.Slugify(title)
	if base == "" {
		base = "post"
	}
	if len(base) > 240 {
		base = strings.TrimRight(base[:240], "-")
	}
	candidate := base
	for n := 2; ; n++ {
		existing, err := s.store.Posts.GetBySlug(ctx, candidate)
		if errors.Is(err, repositories.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if existing.ID == selfID {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// writeError maps store write failures that slipped past validation. A
// broken reference is reported on field.
func writeError(err error, field string) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicate):
		verr := NewValidationError()
		verr.Add("slug", msgSlugTaken)
		return verr
	case errors.Is(err, repositories.ErrConstraint):
		verr := NewValidationError()
		if field == "tags" {
			verr.Add(field, msgTagsMissing)
		} else {
			verr.Add(field, msgCategoryMissing)
		}
		return verr
	}
	return notFound(err)
}

func (in *PostInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = content.Slugify(strings.TrimSpace(in.Slug))
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.FeaturedImage = strings.TrimSpace(in.FeaturedImage)
	in.Status = models.PostStatus(strings.TrimSpace(string(in.Status)))
	if in.CategoryID != nil && *in.CategoryID == 0 {
		in.CategoryID = nil
	}
}

// apply copies the input onto post. Fields the client did not send keep
// their stored values; excerpt and reading time are derived from the
// content unless they were set explicitly.
func (in *PostInput) apply(post *models.Post, now time.Time) {
	contentChanged := post.Content != in.Content
	derivedExcerpt := post.Excerpt == "" || post.Excerpt == content.Excerpt(post.Content)

	post.Title = in.Title
	if in.Slug != "" {
		post.Slug = in.Slug
	}
	post.Content = in.Content
	if in.sent("featured_image") {
		post.FeaturedImage = in.FeaturedImage
	}
	if in.sent("category_id") {
		post.CategoryID = in.CategoryID
	}
	if in.MetaData != nil {
		post.MetaData = in.MetaData
	}

	switch {
	case in.sent("excerpt"):
		post.Excerpt = in.Excerpt
	case derivedExcerpt:
		post.Excerpt = ""
	}
	if post.Excerpt == "" {
		post.Excerpt = content.Excerpt(in.Content)
	}

	switch {
	case in.ReadingTime != nil:
		post.ReadingTime = *in.ReadingTime
	case post.ReadingTime == 0 || contentChanged:
		post.ReadingTime = content.ReadingTime(in.Content)
	}

	post.ApplyStatus(in.Status, in.PublishedAt, now)
}
