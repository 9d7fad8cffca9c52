package postgres

import (
	"context"
	"time"

	"quill/app/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	categoryColumns = `id, name, slug, description, color, created_at, updated_at`
	tagColumns      = `id, name, slug, color, created_at, updated_at`
)

// CategoryRepository implements repositories.CategoryRepository on PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func collectCategories(rows pgx.Rows, err error) ([]*models.Category, error) {
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var categories []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, mapError(rows.Err())
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.UpdatedAt = category.CreatedAt
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug, description, color, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		category.Name, category.Slug, category.Description, category.Color,
		category.CreatedAt, category.UpdatedAt,
	).Scan(&category.ID)
	return mapError(err)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
}

func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug))
}

func (r *CategoryRepository) GetMany(ctx context.Context, ids []int) (map[int]*models.Category, error) {
	out := make(map[int]*models.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := collectCategories(r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ANY($1)`, ids))
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		out[c.ID] = c
	}
	return out, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	return collectCategories(r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`))
}

// Delete relies on ON DELETE SET NULL for posts.category_id.
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	return execOne(ctx, r.pool, `DELETE FROM categories WHERE id = $1`, id)
}

// TagRepository implements repositories.TagRepository on PostgreSQL.
type TagRepository struct {
	pool *pgxpool.Pool
}

func scanTag(row pgx.Row) (*models.Tag, error) {
	var t models.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func collectTags(rows pgx.Rows, err error) ([]*models.Tag, error) {
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var tags []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, mapError(rows.Err())
}

func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = time.Now().UTC()
	}
	tag.UpdatedAt = tag.CreatedAt
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tags (name, slug, color, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		tag.Name, tag.Slug, tag.Color, tag.CreatedAt, tag.UpdatedAt,
	).Scan(&tag.ID)
	return mapError(err)
}

func (r *TagRepository) GetByID(ctx context.Context, id int) (*models.Tag, error) {
	return scanTag(r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id))
}

func (r *TagRepository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	return scanTag(r.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM tags WHERE slug = $1`, slug))
}

func (r *TagRepository) GetMany(ctx context.Context, ids []int) (map[int]*models.Tag, error) {
	out := make(map[int]*models.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := collectTags(r.pool.Query(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ANY($1)`, ids))
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		out[t.ID] = t
	}
	return out, nil
}

func (r *TagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	return collectTags(r.pool.Query(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY id`))
}

// Delete relies on ON DELETE CASCADE for post_tag rows.
func (r *TagRepository) Delete(ctx context.Context, id int) error {
	return execOne(ctx, r.pool, `DELETE FROM tags WHERE id = $1`, id)
}
