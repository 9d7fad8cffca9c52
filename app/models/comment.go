package models

import (
	"errors"
	"time"
)

// Validate checks if the comment meets all validation requirements
func (c *Comment) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.CreatedAt.IsZero() {
		return errors.New("created_at cannot be zero")
	}
	if c.ParentID != nil && *c.ParentID == c.ID && c.ID != 0 {
		return errors.New("comment cannot reply to itself")
	}

	return nil
}

// BeforeCreate sets up any necessary fields before creation
func (c *Comment) BeforeCreate(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = CommentApproved
	}
}

// SetPost sets the parent post and updates the PostID
func (c *Comment) SetPost(post *Post) error {
	if post == nil {
		return errors.New("post cannot be nil")
	}

	c.Post = post
	c.PostID = post.ID
	return nil
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// OwnedBy reports whether u wrote the comment.
func (c *Comment) OwnedBy(u *User) bool {
	return u != nil && c.UserID == u.ID
}

// AddReply appends reply to the comment's reply list.
func (c *Comment) AddReply(reply *Comment) error {
	if reply == nil {
		return errors.New("reply cannot be nil")
	}
	if reply.PostID != c.PostID {
		return errors.New("reply belongs to a different post")
	}
	c.Replies = append(c.Replies, reply)
	return nil
}
