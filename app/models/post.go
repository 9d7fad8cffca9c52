package models

import (
	"errors"
	"fmt"
	"time"
)

// ValidStatus reports whether s is one of the known post statuses.
func ValidStatus(s PostStatus) bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("unknown post status %q", p.Status)
	}

	if p.Status == StatusPublished && p.PublishedAt == nil {
		return errors.New("published post must have published_at")
	}

	return nil
}

// BeforeCreate sets up any necessary fields before creation
func (p *Post) BeforeCreate(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusDraft
	}
}

// ApplyStatus moves the post into status. An explicit publishedAt always
// wins; otherwise the first transition into published stamps now and an
// existing timestamp is never touched.
func (p *Post) ApplyStatus(status PostStatus, publishedAt *time.Time, now time.Time) {
	p.Status = status
	if publishedAt != nil {
		t := *publishedAt
		p.PublishedAt = &t
		return
	}
	if status == StatusPublished && p.PublishedAt == nil {
		t := now
		p.PublishedAt = &t
	}
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// OwnedBy reports whether u authored the post.
func (p *Post) OwnedBy(u *User) bool {
	return u != nil && p.UserID == u.ID
}

// VisibleTo reports whether u may read the post: published posts are
// public, anything else is only visible to its author.
func (p *Post) VisibleTo(u *User) bool {
	return p.IsPublished() || p.OwnedBy(u)
}

// TagIDs returns the ids of the attached tags.
func (p *Post) TagIDs() []int {
	ids := make([]int, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// Row returns a copy of the post without its relations, as it is stored.
func (p *Post) Row() *Post {
	row := *p
	row.Author = nil
	row.Category = nil
	row.Tags = nil
	row.Comments = nil
	return &row
}
