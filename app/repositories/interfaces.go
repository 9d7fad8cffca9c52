package repositories

import (
	"context"
	"errors"

	"quill/app/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrConstraint reports a broken reference between records.
	ErrConstraint = errors.New("constraint violation")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetMany(ctx context.Context, ids []int) (map[int]*models.User, error)
	// Delete removes the user together with their posts and comments.
	Delete(ctx context.Context, id int) error
}

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetMany(ctx context.Context, ids []int) (map[int]*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	// Delete removes the category and detaches it from its posts.
	Delete(ctx context.Context, id int) error
}

// TagRepository defines the interface for tag data access
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id int) (*models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	GetMany(ctx context.Context, ids []int) (map[int]*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
	// Delete removes the tag and its post associations.
	Delete(ctx context.Context, id int) error
}

// PostOrder selects the sort of a post listing.
type PostOrder int

const (
	// OrderPublishedDesc sorts by published_at then id, newest first.
	OrderPublishedDesc PostOrder = iota
	// OrderCreatedDesc sorts by created_at then id, newest first.
	OrderCreatedDesc
	// OrderViewsDesc sorts by views descending, then id ascending.
	OrderViewsDesc
)

// PostQuery filters a post listing. Zero values mean "no constraint".
type PostQuery struct {
	Status     models.PostStatus
	CategoryID int
	TagID      int
	AuthorID   int
	ExcludeID  int

	// RelatedCategoryID and RelatedTagIDs match posts in that category OR
	// carrying any of those tags. Both empty disables the constraint.
	RelatedCategoryID int
	RelatedTagIDs     []int

	Order  PostOrder
	Limit  int
	Offset int
}

// HasRelated reports whether the query carries an either-or relation filter.
func (q PostQuery) HasRelated() bool {
	return q.RelatedCategoryID > 0 || len(q.RelatedTagIDs) > 0
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post, its comments and its tag associations.
	Delete(ctx context.Context, id int) error

	// Find returns one window of matching posts plus the total match count.
	Find(ctx context.Context, q PostQuery) ([]*models.Post, int, error)

	// SyncTags replaces the post's tag set with exactly tagIDs.
	SyncTags(ctx context.Context, postID int, tagIDs []int) error
	TagIDs(ctx context.Context, postIDs []int) (map[int][]int, error)

	// IncrementViews atomically adds one view and returns the new count.
	IncrementViews(ctx context.Context, id int) (int64, error)

	CountByCategory(ctx context.Context) (map[int]int, error)
	CountByTag(ctx context.Context) (map[int]int, error)
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id int) (*models.Comment, error)
	// ListByPost returns every comment of the post ordered by id.
	ListByPost(ctx context.Context, postID int) ([]*models.Comment, error)
	// Delete removes the comment and, transitively, its replies.
	Delete(ctx context.Context, id int) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Users      UserRepository
	Categories CategoryRepository
	Tags       TagRepository
	Posts      PostRepository
	Comments   CommentRepository

	closer func() error
}

// NewStore assembles a Store; closer releases the backend.
func NewStore(users UserRepository, categories CategoryRepository, tags TagRepository,
	posts PostRepository, comments CommentRepository, closer func() error) *Store {
	return &Store{
		Users:      users,
		Categories: categories,
		Tags:       tags,
		Posts:      posts,
		Comments:   comments,
		closer:     closer,
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
