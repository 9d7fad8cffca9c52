package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	StatusArchived  PostStatus = "archived"
)

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentApproved CommentStatus = "approved"
	CommentPending  CommentStatus = "pending"
)

// User is an account that can author posts and comments.
type User struct {
	ID           int       `json:"id" validate:"gte=0"`
	Name         string    `json:"name" validate:"required,max=255"`
	Email        string    `json:"email" validate:"required,email,max=255"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Category groups posts. PostsCount is only filled by aggregate queries.
type Category struct {
	ID          int       `json:"id" validate:"gte=0"`
	Name        string    `json:"name" validate:"required,max=255"`
	Slug        string    `json:"slug" validate:"required,max=255"`
	Description string    `json:"description"`
	Color       string    `json:"color" validate:"omitempty,hexcolor"`
	PostsCount  *int      `json:"posts_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tag labels posts. PostsCount is only filled by aggregate queries.
type Tag struct {
	ID         int       `json:"id" validate:"gte=0"`
	Name       string    `json:"name" validate:"required,max=255"`
	Slug       string    `json:"slug" validate:"required,max=255"`
	Color      string    `json:"color" validate:"omitempty,hexcolor"`
	PostsCount *int      `json:"posts_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Post represents a blog post. Author, Category, Tags and Comments are
// relations attached by the query layer and are never persisted with the row.
type Post struct {
	ID            int            `json:"id" validate:"gte=0"`
	UserID        int            `json:"user_id" validate:"required,gt=0"`
	CategoryID    *int           `json:"category_id"`
	Title         string         `json:"title" validate:"required,max=255"`
	Slug          string         `json:"slug" validate:"required,max=255"`
	Excerpt       string         `json:"excerpt" validate:"max=500"`
	Content       string         `json:"content" validate:"required"`
	FeaturedImage string         `json:"featured_image" validate:"max=255"`
	Status        PostStatus     `json:"status" validate:"required"`
	PublishedAt   *time.Time     `json:"published_at"`
	Views         int64          `json:"views" validate:"gte=0"`
	ReadingTime   int            `json:"reading_time" validate:"gte=0"`
	MetaData      map[string]any `json:"meta_data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Author   *User      `json:"author,omitempty" validate:"-"`
	Category *Category  `json:"category,omitempty" validate:"-"`
	Tags     []*Tag     `json:"tags,omitempty" validate:"-"`
	Comments []*Comment `json:"comments,omitempty" validate:"-"`
}

// Comment is a reply to a post, optionally nested under another comment.
type Comment struct {
	ID        int           `json:"id" validate:"gte=0"`
	PostID    int           `json:"post_id" validate:"required,gt=0"`
	UserID    int           `json:"user_id" validate:"required,gt=0"`
	ParentID  *int          `json:"parent_id"`
	Content   string        `json:"content" validate:"required,max=2000"`
	Status    CommentStatus `json:"status" validate:"required,oneof=approved pending"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	Author  *User      `json:"author,omitempty" validate:"-"`
	Post    *Post      `json:"-" validate:"-"`
	Replies []*Comment `json:"replies,omitempty" validate:"-"`
}
