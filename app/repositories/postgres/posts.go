package postgres

import (
	"context"
	"fmt"
	"strings"

	"quill/app/models"
	"quill/app/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postColumns = `id, user_id, category_id, title, slug, excerpt, content, featured_image,
	status, published_at, views, reading_time, meta_data, created_at, updated_at`

// PostRepository implements repositories.PostRepository on PostgreSQL.
type PostRepository struct {
	pool *pgxpool.Pool
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.UserID, &p.CategoryID, &p.Title, &p.Slug, &p.Excerpt, &p.Content,
		&p.FeaturedImage, &p.Status, &p.PublishedAt, &p.Views, &p.ReadingTime, &p.MetaData,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO posts (user_id, category_id, title, slug, excerpt, content, featured_image,
			status, published_at, views, reading_time, meta_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`,
		post.UserID, post.CategoryID, post.Title, post.Slug, post.Excerpt, post.Content,
		post.FeaturedImage, post.Status, post.PublishedAt, post.Views, post.ReadingTime,
		post.MetaData, post.CreatedAt, post.UpdatedAt,
	).Scan(&post.ID)
	return mapError(err)
}

func (r *PostRepository) GetByID(ctx context.Context, id int) (*models.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = $1`, slug))
}

// Update writes every column except views, which only IncrementViews owns.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE posts SET user_id = $2, category_id = $3, title = $4, slug = $5, excerpt = $6,
			content = $7, featured_image = $8, status = $9, published_at = $10,
			reading_time = $11, meta_data = $12, updated_at = $13
		 WHERE id = $1 RETURNING views`,
		post.ID, post.UserID, post.CategoryID, post.Title, post.Slug, post.Excerpt, post.Content,
		post.FeaturedImage, post.Status, post.PublishedAt, post.ReadingTime, post.MetaData,
		post.UpdatedAt,
	).Scan(&post.Views)
	return mapError(err)
}

// Delete relies on ON DELETE CASCADE for comments and post_tag rows.
func (r *PostRepository) Delete(ctx context.Context, id int) error {
	return execOne(ctx, r.pool, `DELETE FROM posts WHERE id = $1`, id)
}

var orderClauses = map[repositories.PostOrder]string{
	repositories.OrderPublishedDesc: `published_at DESC NULLS LAST, id DESC`,
	repositories.OrderCreatedDesc:   `created_at DESC, id DESC`,
	repositories.OrderViewsDesc:     `views DESC, id ASC`,
}

// buildWhere renders q as a WHERE clause and its positional arguments.
func buildWhere(q repositories.PostQuery) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Status != "" {
		conds = append(conds, "status = "+arg(q.Status))
	}
	if q.AuthorID > 0 {
		conds = append(conds, "user_id = "+arg(q.AuthorID))
	}
	if q.ExcludeID > 0 {
		conds = append(conds, "id <> "+arg(q.ExcludeID))
	}
	if q.CategoryID > 0 {
		conds = append(conds, "category_id = "+arg(q.CategoryID))
	}
	if q.TagID > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM post_tag pt WHERE pt.post_id = posts.id AND pt.tag_id = "+arg(q.TagID)+")")
	}
	if q.HasRelated() {
		var either []string
		if q.RelatedCategoryID > 0 {
			either = append(either, "category_id = "+arg(q.RelatedCategoryID))
		}
		if len(q.RelatedTagIDs) > 0 {
			either = append(either, "EXISTS (SELECT 1 FROM post_tag pt WHERE pt.post_id = posts.id AND pt.tag_id = ANY("+arg(q.RelatedTagIDs)+"))")
		}
		conds = append(conds, "("+strings.Join(either, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostRepository) Find(ctx context.Context, q repositories.PostQuery) ([]*models.Post, int, error) {
	where, args := buildWhere(q)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	sql := `SELECT ` + postColumns + ` FROM posts` + where + ` ORDER BY ` + orderClauses[q.Order]
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return posts, total, nil
}

func (r *PostRepository) SyncTags(ctx context.Context, postID int, tagIDs []int) error {
	if tagIDs == nil {
		tagIDs = []int{}
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := execOne(ctx, tx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM post_tag WHERE post_id = $1 AND NOT (tag_id = ANY($2))`, postID, tagIDs); err != nil {
			return mapError(err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO post_tag (post_id, tag_id)
			 SELECT $1, UNNEST($2::int[])
			 ON CONFLICT DO NOTHING`, postID, tagIDs)
		return mapError(err)
	})
}

func (r *PostRepository) TagIDs(ctx context.Context, postIDs []int) (map[int][]int, error) {
	out := make(map[int][]int, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT post_id, tag_id FROM post_tag WHERE post_id = ANY($1) ORDER BY post_id, tag_id`, postIDs)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var postID, tagID int
		if err := rows.Scan(&postID, &tagID); err != nil {
			return nil, mapError(err)
		}
		out[postID] = append(out[postID], tagID)
	}
	return out, mapError(rows.Err())
}

func (r *PostRepository) IncrementViews(ctx context.Context, id int) (int64, error) {
	var views int64
	err := r.pool.QueryRow(ctx,
		`UPDATE posts SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&views)
	if err != nil {
		return 0, mapError(err)
	}
	return views, nil
}

func (r *PostRepository) CountByCategory(ctx context.Context) (map[int]int, error) {
	return r.counts(ctx, `SELECT category_id, COUNT(*) FROM posts WHERE category_id IS NOT NULL GROUP BY category_id`)
}

func (r *PostRepository) CountByTag(ctx context.Context) (map[int]int, error) {
	return r.counts(ctx, `SELECT tag_id, COUNT(*) FROM post_tag GROUP BY tag_id`)
}

func (r *PostRepository) counts(ctx context.Context, sql string) (map[int]int, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	counts := make(map[int]int)
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, mapError(err)
		}
		counts[id] = n
	}
	return counts, mapError(rows.Err())
}
