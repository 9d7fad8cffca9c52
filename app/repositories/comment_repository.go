package repositories

import (
	"context"
	"sort"
	"time"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCommentRepository implements CommentRepository using BadgerDB
type BadgerCommentRepository struct {
	db *badger.DB
}

// NewBadgerCommentRepository creates a new BadgerCommentRepository
func NewBadgerCommentRepository(db *badger.DB) *BadgerCommentRepository {
	return &BadgerCommentRepository{db: db}
}

func commentRow(c *models.Comment) *models.Comment {
	row := *c
	row.Author = nil
	row.Post = nil
	row.Replies = nil
	return &row
}

// Create creates a new comment. The post and author must exist, and a
// parent must belong to the same post.
func (r *BadgerCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		ok, err := exists(txn, entityKey(PostKeyPrefix, comment.PostID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrConstraint
		}
		ok, err = exists(txn, entityKey(UserKeyPrefix, comment.UserID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrConstraint
		}
		if comment.ParentID != nil {
			ok, err := exists(txn, commentKey(comment.PostID, *comment.ParentID))
			if err != nil {
				return err
			}
			if !ok {
				return ErrConstraint
			}
		}

		// Get next ID
		id, err := getNextID(txn, CommentSeqKey)
		if err != nil {
			return err
		}
		comment.ID = id
		if comment.CreatedAt.IsZero() {
			comment.CreatedAt = time.Now().UTC()
		}
		if comment.UpdatedAt.IsZero() {
			comment.UpdatedAt = comment.CreatedAt
		}

		if err := setIndex(txn, entityKey(CommentIndexPrefix, id), comment.PostID); err != nil {
			return err
		}
		return putEntity(txn, commentKey(comment.PostID, id), commentRow(comment))
	})
}

// GetByID retrieves a comment by ID
func (r *BadgerCommentRepository) GetByID(ctx context.Context, id int) (*models.Comment, error) {
	var comment models.Comment
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		postID, err := getIndex(txn, entityKey(CommentIndexPrefix, id))
		if err != nil {
			return err
		}
		return getEntity(txn, commentKey(postID, id), &comment)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func listComments(txn *badger.Txn, postID int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := scanPrefix(txn, childPrefix(CommentKeyPrefix, postID), func(_, val []byte) error {
		var comment models.Comment
		if err := unmarshalEntity(val, &comment); err != nil {
			return err
		}
		comments = append(comments, &comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

// ListByPost retrieves every comment of a post ordered by id
func (r *BadgerCommentRepository) ListByPost(ctx context.Context, postID int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		var err error
		comments, err = listComments(txn, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// Delete deletes a comment and its replies
func (r *BadgerCommentRepository) Delete(ctx context.Context, id int) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		postID, err := getIndex(txn, entityKey(CommentIndexPrefix, id))
		if err != nil {
			return err
		}
		return deleteCommentTxn(txn, postID, id)
	})
}

func deleteCommentTxn(txn *badger.Txn, postID, id int) error {
	ok, err := exists(txn, commentKey(postID, id))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	comments, err := listComments(txn, postID)
	if err != nil {
		return err
	}
	children := make(map[int][]int)
	for _, c := range comments {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	doomed := []int{id}
	for i := 0; i < len(doomed); i++ {
		doomed = append(doomed, children[doomed[i]]...)
	}
	for _, commentID := range doomed {
		if err := txn.Delete(commentKey(postID, commentID)); err != nil {
			return err
		}
		if err := txn.Delete(entityKey(CommentIndexPrefix, commentID)); err != nil {
			return err
		}
	}
	return nil
}
