package repositories

import (
	"context"
	"strings"
	"time"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// userRecord is the stored shape of a user; the password hash is hidden
// from the public JSON of models.User.
type userRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func toUserRecord(u *models.User) *userRecord {
	return &userRecord{User: *u, PasswordHash: u.PasswordHash}
}

func (r *userRecord) model() *models.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BadgerUserRepository implements UserRepository using BadgerDB
type BadgerUserRepository struct {
	db *badger.DB
}

// NewBadgerUserRepository creates a new BadgerUserRepository
func NewBadgerUserRepository(db *badger.DB) *BadgerUserRepository {
	return &BadgerUserRepository{db: db}
}

// Create creates a new user; the email must be unused
func (r *BadgerUserRepository) Create(ctx context.Context, user *models.User) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getNextID(txn, UserSeqKey)
		if err != nil {
			return err
		}
		if err := claimIndex(txn, indexKey(UserEmailPrefix, normalizeEmail(user.Email)), id); err != nil {
			return err
		}
		user.ID = id
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		user.UpdatedAt = user.CreatedAt
		return putEntity(txn, entityKey(UserKeyPrefix, id), toUserRecord(user))
	})
}

// GetByID retrieves a user by ID
func (r *BadgerUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var rec userRecord
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getEntity(txn, entityKey(UserKeyPrefix, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.model(), nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *BadgerUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var rec userRecord
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getIndex(txn, indexKey(UserEmailPrefix, normalizeEmail(email)))
		if err != nil {
			return err
		}
		return getEntity(txn, entityKey(UserKeyPrefix, id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.model(), nil
}

// GetMany retrieves the users with the given ids; missing ids are skipped
func (r *BadgerUserRepository) GetMany(ctx context.Context, ids []int) (map[int]*models.User, error) {
	users := make(map[int]*models.User, len(ids))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, id := range dedupeIDs(ids) {
			var rec userRecord
			err := getEntity(txn, entityKey(UserKeyPrefix, id), &rec)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			users[id] = rec.model()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Delete deletes a user, their posts (with everything hanging off them)
// and every comment they wrote elsewhere
func (r *BadgerUserRepository) Delete(ctx context.Context, id int) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		var rec userRecord
		if err := getEntity(txn, entityKey(UserKeyPrefix, id), &rec); err != nil {
			return err
		}

		var postIDs []int
		err := scanPrefix(txn, []byte(PostKeyPrefix), func(_, val []byte) error {
			var post models.Post
			if err := unmarshalEntity(val, &post); err != nil {
				return err
			}
			if post.UserID == id {
				postIDs = append(postIDs, post.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, postID := range postIDs {
			if err := deletePostTxn(txn, postID); err != nil {
				return err
			}
		}

		var authored []*models.Comment
		err = scanPrefix(txn, []byte(CommentKeyPrefix), func(_, val []byte) error {
			var comment models.Comment
			if err := unmarshalEntity(val, &comment); err != nil {
				return err
			}
			if comment.UserID == id {
				authored = append(authored, &comment)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, comment := range authored {
			if err := deleteCommentTxn(txn, comment.PostID, comment.ID); err != nil && err != ErrNotFound {
				return err
			}
		}

		if err := txn.Delete(indexKey(UserEmailPrefix, normalizeEmail(rec.Email))); err != nil {
			return err
		}
		return txn.Delete(entityKey(UserKeyPrefix, id))
	})
}
