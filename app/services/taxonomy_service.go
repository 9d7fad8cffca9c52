package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"quill/app/content"
	"quill/app/models"
	"quill/app/queries"
	"quill/app/repositories"
)

// TaxonomyInput creates a category or a tag. Description is ignored for
// tags.
type TaxonomyInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"max=255"`
	Description string `json:"description" validate:"max=1000"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

func (in *TaxonomyInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = content.Slugify(strings.TrimSpace(in.Slug))
	if in.Slug == "" {
		in.Slug = content.Slugify(in.Name)
	}
	in.Color = strings.TrimSpace(in.Color)
}

// CategoryPage is a category with one page of its published posts.
type CategoryPage struct {
	Category *models.Category          `json:"category"`
	Posts    *models.Page[*models.Post] `json:"posts"`
}

// CategoryService serves the category pages
type CategoryService struct {
	store   *repositories.Store
	queries *queries.Queries
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(store *repositories.Store, q *queries.Queries) *CategoryService {
	return &CategoryService{store: store, queries: q}
}

// Index lists every category with its post count.
func (s *CategoryService) Index(ctx context.Context) ([]*models.Category, error) {
	return s.queries.CategoriesWithCounts(ctx, 0)
}

// Show returns the category with one page of its published posts.
func (s *CategoryService) Show(ctx context.Context, slug string, page int) (*CategoryPage, error) {
	category, err := s.store.Categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err)
	}
	posts, err := s.queries.ListPublished(ctx, queries.PostFilter{CategoryID: category.ID}, page)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Category: category, Posts: posts}, nil
}

// Create adds a category. Any signed in user may create one.
func (s *CategoryService) Create(ctx context.Context, actor *models.User, input TaxonomyInput) (*models.Category, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	input.normalize()
	verr := validateInput(input, nil)
	if input.Slug == "" {
		verr.Add("slug", "The slug field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		Color:       input.Color,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Categories.Create(ctx, category); err != nil {
		return nil, slugTaken(err)
	}
	return category, nil
}

// TagPage is a tag with one page of its published posts.
type TagPage struct {
	Tag   *models.Tag                `json:"tag"`
	Posts *models.Page[*models.Post] `json:"posts"`
}

// TagService serves the tag pages
type TagService struct {
	store   *repositories.Store
	queries *queries.Queries
}

// NewTagService creates a new TagService
func NewTagService(store *repositories.Store, q *queries.Queries) *TagService {
	return &TagService{store: store, queries: q}
}

// Index lists every tag with its post count.
func (s *TagService) Index(ctx context.Context) ([]*models.Tag, error) {
	return s.queries.TagsWithCounts(ctx)
}

// Show returns the tag with one page of the published posts carrying it.
func (s *TagService) Show(ctx context.Context, slug string, page int) (*TagPage, error) {
	tag, err := s.store.Tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err)
	}
	posts, err := s.queries.ListPublished(ctx, queries.PostFilter{TagID: tag.ID}, page)
	if err != nil {
		return nil, err
	}
	return &TagPage{Tag: tag, Posts: posts}, nil
}

// Create adds a tag. Any signed in user may create one.
func (s *TagService) Create(ctx context.Context, actor *models.User, input TaxonomyInput) (*models.Tag, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	input.normalize()
	verr := validateInput(input, nil)
	if input.Slug == "" {
		verr.Add("slug", "The slug field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	tag := &models.Tag{
		Name:      input.Name,
		Slug:      input.Slug,
		Color:     input.Color,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Tags.Create(ctx, tag); err != nil {
		return nil, slugTaken(err)
	}
	return tag, nil
}

func slugTaken(err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		verr := NewValidationError()
		verr.Add("slug", msgSlugTaken)
		return verr
	}
	return err
}
