package repositories

import (
	"context"
	"sort"
	"time"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCategoryRepository implements CategoryRepository using BadgerDB
type BadgerCategoryRepository struct {
	db *badger.DB
}

// NewBadgerCategoryRepository creates a new BadgerCategoryRepository
func NewBadgerCategoryRepository(db *badger.DB) *BadgerCategoryRepository {
	return &BadgerCategoryRepository{db: db}
}

// Create creates a new category; the slug must be unused
func (r *BadgerCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getNextID(txn, CategorySeqKey)
		if err != nil {
			return err
		}
		if err := claimIndex(txn, indexKey(CategorySlugPrefix, category.Slug), id); err != nil {
			return err
		}
		category.ID = id
		if category.CreatedAt.IsZero() {
			category.CreatedAt = time.Now().UTC()
		}
		category.UpdatedAt = category.CreatedAt
		row := *category
		row.PostsCount = nil
		return putEntity(txn, entityKey(CategoryKeyPrefix, id), &row)
	})
}

// GetByID retrieves a category by ID
func (r *BadgerCategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	var category models.Category
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getEntity(txn, entityKey(CategoryKeyPrefix, id), &category)
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetBySlug retrieves a category by slug
func (r *BadgerCategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getIndex(txn, indexKey(CategorySlugPrefix, slug))
		if err != nil {
			return err
		}
		return getEntity(txn, entityKey(CategoryKeyPrefix, id), &category)
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// GetMany retrieves the categories with the given ids; missing ids are skipped
func (r *BadgerCategoryRepository) GetMany(ctx context.Context, ids []int) (map[int]*models.Category, error) {
	categories := make(map[int]*models.Category, len(ids))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, id := range dedupeIDs(ids) {
			var category models.Category
			err := getEntity(txn, entityKey(CategoryKeyPrefix, id), &category)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			categories[id] = &category
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// List retrieves all categories ordered by id
func (r *BadgerCategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(CategoryKeyPrefix), func(_, val []byte) error {
			var category models.Category
			if err := unmarshalEntity(val, &category); err != nil {
				return err
			}
			categories = append(categories, &category)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// Delete deletes a category and clears it from every post that used it
func (r *BadgerCategoryRepository) Delete(ctx context.Context, id int) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		var category models.Category
		if err := getEntity(txn, entityKey(CategoryKeyPrefix, id), &category); err != nil {
			return err
		}

		var detached []*models.Post
		err := scanPrefix(txn, []byte(PostKeyPrefix), func(_, val []byte) error {
			var post models.Post
			if err := unmarshalEntity(val, &post); err != nil {
				return err
			}
			if post.CategoryID != nil && *post.CategoryID == id {
				post.CategoryID = nil
				detached = append(detached, &post)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, post := range detached {
			if err := putEntity(txn, entityKey(PostKeyPrefix, post.ID), post); err != nil {
				return err
			}
		}

		if err := txn.Delete(indexKey(CategorySlugPrefix, category.Slug)); err != nil {
			return err
		}
		return txn.Delete(entityKey(CategoryKeyPrefix, id))
	})
}
