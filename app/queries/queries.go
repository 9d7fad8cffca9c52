// Package queries composes the read views of the blog: filtered, ordered
// and paginated post listings with their relations attached in batches.
package queries

import (
	"context"
	"fmt"
	"sort"

	"quill/app/models"
	"quill/app/repositories"
)

const (
	// PerPage is the page size of every public post listing.
	PerPage = 12
	// RelatedLimit caps the related posts shown under a post.
	RelatedLimit = 3
	// LatestLimit is the number of posts on the home page.
	LatestLimit = 6
	// HomeCategoryLimit is the number of categories on the home page.
	HomeCategoryLimit = 8
	// DashboardLimit is the number of the actor's own posts on the dashboard.
	DashboardLimit = 5
)

// Relations selects what attach loads onto a batch of posts.
type Relations struct {
	Author   bool
	Category bool
	Tags     bool
}

var (
	withAll            = Relations{Author: true, Category: true, Tags: true}
	withAuthorCategory = Relations{Author: true, Category: true}
	withCategoryTags   = Relations{Category: true, Tags: true}
	withAuthor         = Relations{Author: true}
)

// PostFilter narrows ListPublished. Zero fields are ignored.
type PostFilter struct {
	CategoryID int
	TagID      int
}

// Queries runs the named read queries over a store.
type Queries struct {
	store *repositories.Store
}

// New creates a Queries over store
func New(store *repositories.Store) *Queries {
	return &Queries{store: store}
}

// ListPublished returns one page of published posts, newest first, with
// author, category and tags attached.
func (q *Queries) ListPublished(ctx context.Context, filter PostFilter, page int) (*models.Page[*models.Post], error) {
	if page < 1 {
		page = 1
	}
	posts, total, err := q.store.Posts.Find(ctx, repositories.PostQuery{
		Status:     models.StatusPublished,
		CategoryID: filter.CategoryID,
		TagID:      filter.TagID,
		Order:      repositories.OrderPublishedDesc,
		Limit:      PerPage,
		Offset:     models.Offset(page, PerPage),
	})
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	if err := q.attach(ctx, posts, withAll); err != nil {
		return nil, err
	}
	return models.NewPage(posts, page, PerPage, total), nil
}

// RelatedTo returns up to limit published posts other than post that share
// its category or at least one of its tags.
func (q *Queries) RelatedTo(ctx context.Context, post *models.Post, limit int) ([]*models.Post, error) {
	tagIDs := post.TagIDs()
	if post.Tags == nil {
		ids, err := q.store.Posts.TagIDs(ctx, []int{post.ID})
		if err != nil {
			return nil, fmt.Errorf("load tags of post %d: %w", post.ID, err)
		}
		tagIDs = ids[post.ID]
	}

	query := repositories.PostQuery{
		Status:        models.StatusPublished,
		ExcludeID:     post.ID,
		RelatedTagIDs: tagIDs,
		Order:         repositories.OrderPublishedDesc,
		Limit:         limit,
	}
	if post.CategoryID != nil {
		query.RelatedCategoryID = *post.CategoryID
	}
	if !query.HasRelated() {
		return []*models.Post{}, nil
	}

	posts, _, err := q.store.Posts.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find related posts: %w", err)
	}
	if err := q.attach(ctx, posts, withAuthor); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// CategoriesWithCounts lists categories by id with the number of posts in
// each, whatever their status. A positive limit keeps only the first ones.
func (q *Queries) CategoriesWithCounts(ctx context.Context, limit int) ([]*models.Category, error) {
	categories, err := q.store.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if limit > 0 && len(categories) > limit {
		categories = categories[:limit]
	}
	counts, err := q.store.Posts.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts by category: %w", err)
	}
	for _, c := range categories {
		n := counts[c.ID]
		c.PostsCount = &n
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	return categories, nil
}

// TagsWithCounts lists tags by id with the number of posts carrying each.
func (q *Queries) TagsWithCounts(ctx context.Context) ([]*models.Tag, error) {
	tags, err := q.store.Tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	counts, err := q.store.Posts.CountByTag(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts by tag: %w", err)
	}
	for _, t := range tags {
		n := counts[t.ID]
		t.PostsCount = &n
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	return tags, nil
}

// Detail attaches author, category, tags and the comment thread to post.
// Top-level comments come newest first; every deeper reply is listed under
// its top-level ancestor in creation order.
func (q *Queries) Detail(ctx context.Context, post *models.Post) (*models.Post, error) {
	if err := q.attach(ctx, []*models.Post{post}, withAll); err != nil {
		return nil, err
	}

	comments, err := q.store.Comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", post.ID, err)
	}
	userIDs := make([]int, 0, len(comments))
	for _, c := range comments {
		userIDs = append(userIDs, c.UserID)
	}
	authors, err := q.store.Users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load comment authors: %w", err)
	}
	for _, c := range comments {
		c.Author = authors[c.UserID]
	}

	post.Comments = Thread(comments)
	return post, nil
}

// Thread arranges comments, ordered by id, into two levels.
func Thread(comments []*models.Comment) []*models.Comment {
	byID := make(map[int]*models.Comment, len(comments))
	for _, c := range comments {
		c.Replies = nil
		byID[c.ID] = c
	}

	root := func(c *models.Comment) *models.Comment {
		seen := map[int]bool{c.ID: true}
		for c.IsReply() {
			parent, ok := byID[*c.ParentID]
			if !ok || seen[parent.ID] {
				break
			}
			seen[parent.ID] = true
			c = parent
		}
		return c
	}

	roots := make([]*models.Comment, 0)
	for _, c := range comments {
		r := root(c)
		if r == c || r.AddReply(c) != nil {
			roots = append(roots, c)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if !roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].CreatedAt.After(roots[j].CreatedAt)
		}
		return roots[i].ID > roots[j].ID
	})
	return roots
}

// Latest returns the n most recently published posts with all relations.
func (q *Queries) Latest(ctx context.Context, n int) ([]*models.Post, error) {
	posts, _, err := q.store.Posts.Find(ctx, repositories.PostQuery{
		Status: models.StatusPublished,
		Order:  repositories.OrderPublishedDesc,
		Limit:  n,
	})
	if err != nil {
		return nil, fmt.Errorf("list latest posts: %w", err)
	}
	if err := q.attach(ctx, posts, withAll); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// MostViewed returns the published post with the most views, or nil when
// nothing is published.
func (q *Queries) MostViewed(ctx context.Context) (*models.Post, error) {
	posts, _, err := q.store.Posts.Find(ctx, repositories.PostQuery{
		Status: models.StatusPublished,
		Order:  repositories.OrderViewsDesc,
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("find most viewed post: %w", err)
	}
	if len(posts) == 0 {
		return nil, nil
	}
	if err := q.attach(ctx, posts, withAuthorCategory); err != nil {
		return nil, err
	}
	return posts[0], nil
}

// ByAuthor returns the n most recently created posts of userID in any
// status, with category and tags.
func (q *Queries) ByAuthor(ctx context.Context, userID, n int) ([]*models.Post, error) {
	posts, _, err := q.store.Posts.Find(ctx, repositories.PostQuery{
		AuthorID: userID,
		Order:    repositories.OrderCreatedDesc,
		Limit:    n,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts of user %d: %w", userID, err)
	}
	if err := q.attach(ctx, posts, withCategoryTags); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

// WithTags attaches only the tags of post.
func (q *Queries) WithTags(ctx context.Context, post *models.Post) error {
	return q.attach(ctx, []*models.Post{post}, Relations{Tags: true})
}

// attach loads the selected relations for posts with one lookup per
// relation.
func (q *Queries) attach(ctx context.Context, posts []*models.Post, rel Relations) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]int, 0, len(posts))
	userIDs := make([]int, 0, len(posts))
	categoryIDs := make([]int, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		userIDs = append(userIDs, p.UserID)
		if p.CategoryID != nil {
			categoryIDs = append(categoryIDs, *p.CategoryID)
		}
	}

	if rel.Author {
		users, err := q.store.Users.GetMany(ctx, userIDs)
		if err != nil {
			return fmt.Errorf("load post authors: %w", err)
		}
		for _, p := range posts {
			p.Author = users[p.UserID]
		}
	}

	if rel.Category {
		categories, err := q.store.Categories.GetMany(ctx, categoryIDs)
		if err != nil {
			return fmt.Errorf("load post categories: %w", err)
		}
		for _, p := range posts {
			p.Category = nil
			if p.CategoryID != nil {
				p.Category = categories[*p.CategoryID]
			}
		}
	}

	if rel.Tags {
		tagIDs, err := q.store.Posts.TagIDs(ctx, postIDs)
		if err != nil {
			return fmt.Errorf("load post tag ids: %w", err)
		}
		var all []int
		for _, ids := range tagIDs {
			all = append(all, ids...)
		}
		tags, err := q.store.Tags.GetMany(ctx, all)
		if err != nil {
			return fmt.Errorf("load post tags: %w", err)
		}
		for _, p := range posts {
			p.Tags = make([]*models.Tag, 0, len(tagIDs[p.ID]))
			for _, id := range tagIDs[p.ID] {
				if t, ok := tags[id]; ok {
					p.Tags = append(p.Tags, t)
				}
			}
		}
	}
	return nil
}
