package repositories

import (
	"context"
	"sort"
	"time"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerTagRepository implements TagRepository using BadgerDB
type BadgerTagRepository struct {
	db *badger.DB
}

// NewBadgerTagRepository creates a new BadgerTagRepository
func NewBadgerTagRepository(db *badger.DB) *BadgerTagRepository {
	return &BadgerTagRepository{db: db}
}

// Create creates a new tag; the slug must be unused
func (r *BadgerTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getNextID(txn, TagSeqKey)
		if err != nil {
			return err
		}
		if err := claimIndex(txn, indexKey(TagSlugPrefix, tag.Slug), id); err != nil {
			return err
		}
		tag.ID = id
		if tag.CreatedAt.IsZero() {
			tag.CreatedAt = time.Now().UTC()
		}
		tag.UpdatedAt = tag.CreatedAt
		row := *tag
		row.PostsCount = nil
		return putEntity(txn, entityKey(TagKeyPrefix, id), &row)
	})
}

// GetByID retrieves a tag by ID
func (r *BadgerTagRepository) GetByID(ctx context.Context, id int) (*models.Tag, error) {
	var tag models.Tag
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getEntity(txn, entityKey(TagKeyPrefix, id), &tag)
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetBySlug retrieves a tag by slug
func (r *BadgerTagRepository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getIndex(txn, indexKey(TagSlugPrefix, slug))
		if err != nil {
			return err
		}
		return getEntity(txn, entityKey(TagKeyPrefix, id), &tag)
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetMany retrieves the tags with the given ids; missing ids are skipped
func (r *BadgerTagRepository) GetMany(ctx context.Context, ids []int) (map[int]*models.Tag, error) {
	tags := make(map[int]*models.Tag, len(ids))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, id := range dedupeIDs(ids) {
			var tag models.Tag
			err := getEntity(txn, entityKey(TagKeyPrefix, id), &tag)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			tags[id] = &tag
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// List retrieves all tags ordered by id
func (r *BadgerTagRepository) List(ctx context.Context) ([]*models.Tag, error) {
	var tags []*models.Tag
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(TagKeyPrefix), func(_, val []byte) error {
			var tag models.Tag
			if err := unmarshalEntity(val, &tag); err != nil {
				return err
			}
			tags = append(tags, &tag)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags, nil
}

// Delete deletes a tag and every post association that references it
func (r *BadgerTagRepository) Delete(ctx context.Context, id int) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		var tag models.Tag
		if err := getEntity(txn, entityKey(TagKeyPrefix, id), &tag); err != nil {
			return err
		}

		var postIDs []int
		err := scanKeys(txn, childPrefix(TagPostPrefix, id), func(key []byte) error {
			postID, err := lastID(key)
			if err != nil {
				return err
			}
			postIDs = append(postIDs, postID)
			return nil
		})
		if err != nil {
			return err
		}
		for _, postID := range postIDs {
			if err := txn.Delete(postTagKey(postID, id)); err != nil {
				return err
			}
			if err := txn.Delete(tagPostKey(id, postID)); err != nil {
				return err
			}
		}

		if err := txn.Delete(indexKey(TagSlugPrefix, tag.Slug)); err != nil {
			return err
		}
		return txn.Delete(entityKey(TagKeyPrefix, id))
	})
}
