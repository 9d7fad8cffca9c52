package postgres

import (
	"context"
	"time"

	"quill/app/models"
	"quill/app/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const commentColumns = `id, post_id, user_id, parent_id, content, status, created_at, updated_at`

// CommentRepository implements repositories.CommentRepository on PostgreSQL.
type CommentRepository struct {
	pool *pgxpool.Pool
}

func scanComment(row pgx.Row) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.ParentID, &c.Content, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// Create inserts the comment; a parent must belong to the same post.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if comment.UpdatedAt.IsZero() {
		comment.UpdatedAt = comment.CreatedAt
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if comment.ParentID != nil {
			var parentPostID int
			err := tx.QueryRow(ctx, `SELECT post_id FROM comments WHERE id = $1`, *comment.ParentID).Scan(&parentPostID)
			if err != nil {
				if mapError(err) == repositories.ErrNotFound {
					return repositories.ErrConstraint
				}
				return mapError(err)
			}
			if parentPostID != comment.PostID {
				return repositories.ErrConstraint
			}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO comments (post_id, user_id, parent_id, content, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			comment.PostID, comment.UserID, comment.ParentID, comment.Content, comment.Status,
			comment.CreatedAt, comment.UpdatedAt,
		).Scan(&comment.ID)
		return mapError(err)
	})
}

func (r *CommentRepository) GetByID(ctx context.Context, id int) (*models.Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID int) ([]*models.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY id`, postID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, mapError(rows.Err())
}

// Delete relies on ON DELETE CASCADE for replies.
func (r *CommentRepository) Delete(ctx context.Context, id int) error {
	return execOne(ctx, r.pool, `DELETE FROM comments WHERE id = $1`, id)
}
