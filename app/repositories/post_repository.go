package repositories

import (
	"bytes"
	"context"
	"sort"
	"strconv"

	"quill/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerPostRepository implements PostRepository using BadgerDB
type BadgerPostRepository struct {
	db *badger.DB
}

// NewBadgerPostRepository creates a new BadgerPostRepository
func NewBadgerPostRepository(db *badger.DB) *BadgerPostRepository {
	return &BadgerPostRepository{db: db}
}

// checkPostRefs verifies the author and category a post points at.
func checkPostRefs(txn *badger.Txn, post *models.Post) error {
	ok, err := exists(txn, entityKey(UserKeyPrefix, post.UserID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrConstraint
	}
	if post.CategoryID == nil {
		return nil
	}
	ok, err = exists(txn, entityKey(CategoryKeyPrefix, *post.CategoryID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrConstraint
	}
	return nil
}

// Create creates a new post
func (r *BadgerPostRepository) Create(ctx context.Context, post *models.Post) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		if err := checkPostRefs(txn, post); err != nil {
			return err
		}

		// Get next ID
		id, err := getNextID(txn, PostSeqKey)
		if err != nil {
			return err
		}
		if err := claimIndex(txn, indexKey(PostSlugPrefix, post.Slug), id); err != nil {
			return err
		}
		post.ID = id

		// Save post
		return putEntity(txn, entityKey(PostKeyPrefix, post.ID), post.Row())
	})
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(ctx context.Context, id int) (*models.Post, error) {
	var post models.Post
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getEntity(txn, entityKey(PostKeyPrefix, id), &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetBySlug retrieves a post by slug
func (r *BadgerPostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		id, err := getIndex(txn, indexKey(PostSlugPrefix, slug))
		if err != nil {
			return err
		}
		return getEntity(txn, entityKey(PostKeyPrefix, id), &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Update updates an existing post
func (r *BadgerPostRepository) Update(ctx context.Context, post *models.Post) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		key := entityKey(PostKeyPrefix, post.ID)

		// Verify post exists
		var existing models.Post
		if err := getEntity(txn, key, &existing); err != nil {
			return err
		}
		if err := checkPostRefs(txn, post); err != nil {
			return err
		}

		if existing.Slug != post.Slug {
			if err := claimIndex(txn, indexKey(PostSlugPrefix, post.Slug), post.ID); err != nil {
				return err
			}
			if err := txn.Delete(indexKey(PostSlugPrefix, existing.Slug)); err != nil {
				return err
			}
		}

		// The counter is owned by IncrementViews.
		row := post.Row()
		row.Views = existing.Views
		post.Views = existing.Views
		return putEntity(txn, key, row)
	})
}

// Delete deletes a post by ID together with its comments and tag links
func (r *BadgerPostRepository) Delete(ctx context.Context, id int) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		return deletePostTxn(txn, id)
	})
}

func deletePostTxn(txn *badger.Txn, id int) error {
	var post models.Post
	if err := getEntity(txn, entityKey(PostKeyPrefix, id), &post); err != nil {
		return err
	}

	var commentKeys [][]byte
	var commentIDs []int
	err := scanKeys(txn, childPrefix(CommentKeyPrefix, id), func(key []byte) error {
		commentID, err := lastID(key)
		if err != nil {
			return err
		}
		commentKeys = append(commentKeys, key)
		commentIDs = append(commentIDs, commentID)
		return nil
	})
	if err != nil {
		return err
	}
	for i, key := range commentKeys {
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(entityKey(CommentIndexPrefix, commentIDs[i])); err != nil {
			return err
		}
	}

	tagIDs, err := postTagIDs(txn, id)
	if err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if err := unlinkTag(txn, id, tagID); err != nil {
			return err
		}
	}

	if err := txn.Delete(indexKey(PostSlugPrefix, post.Slug)); err != nil {
		return err
	}
	return txn.Delete(entityKey(PostKeyPrefix, id))
}

func postTagIDs(txn *badger.Txn, postID int) ([]int, error) {
	var ids []int
	err := scanKeys(txn, childPrefix(PostTagPrefix, postID), func(key []byte) error {
		tagID, err := lastID(key)
		if err != nil {
			return err
		}
		ids = append(ids, tagID)
		return nil
	})
	sort.Ints(ids)
	return ids, err
}

func linkTag(txn *badger.Txn, postID, tagID int) error {
	if err := txn.Set(postTagKey(postID, tagID), nil); err != nil {
		return err
	}
	return txn.Set(tagPostKey(tagID, postID), nil)
}

func unlinkTag(txn *badger.Txn, postID, tagID int) error {
	if err := txn.Delete(postTagKey(postID, tagID)); err != nil {
		return err
	}
	return txn.Delete(tagPostKey(tagID, postID))
}

// matchPost applies every non-zero constraint of q to post.
func matchPost(txn *badger.Txn, post *models.Post, q PostQuery) (bool, error) {
	if q.Status != "" && post.Status != q.Status {
		return false, nil
	}
	if q.AuthorID > 0 && post.UserID != q.AuthorID {
		return false, nil
	}
	if q.ExcludeID > 0 && post.ID == q.ExcludeID {
		return false, nil
	}
	if q.CategoryID > 0 && (post.CategoryID == nil || *post.CategoryID != q.CategoryID) {
		return false, nil
	}
	if q.TagID > 0 {
		ok, err := exists(txn, postTagKey(post.ID, q.TagID))
		if err != nil || !ok {
			return false, err
		}
	}
	if !q.HasRelated() {
		return true, nil
	}
	if q.RelatedCategoryID > 0 && post.CategoryID != nil && *post.CategoryID == q.RelatedCategoryID {
		return true, nil
	}
	for _, tagID := range q.RelatedTagIDs {
		ok, err := exists(txn, postTagKey(post.ID, tagID))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// sortPosts orders posts the way the SQL backend's ORDER BY clauses do.
func sortPosts(posts []*models.Post, order PostOrder) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch order {
		case OrderCreatedDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		case OrderViewsDesc:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			return a.ID < b.ID
		default:
			switch {
			case a.PublishedAt == nil && b.PublishedAt == nil:
			case a.PublishedAt == nil:
				return false
			case b.PublishedAt == nil:
				return true
			case !a.PublishedAt.Equal(*b.PublishedAt):
				return a.PublishedAt.After(*b.PublishedAt)
			}
			return a.ID > b.ID
		}
	})
}

// Find retrieves a filtered, ordered window of posts and the total number
// of matches
func (r *BadgerPostRepository) Find(ctx context.Context, q PostQuery) ([]*models.Post, int, error) {
	var posts []*models.Post
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(PostKeyPrefix), func(_, val []byte) error {
			var post models.Post
			if err := unmarshalEntity(val, &post); err != nil {
				return err
			}
			ok, err := matchPost(txn, &post, q)
			if err != nil {
				return err
			}
			if ok {
				posts = append(posts, &post)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sortPosts(posts, q.Order)
	total := len(posts)

	// Skip offset items
	if q.Offset > 0 {
		if q.Offset >= len(posts) {
			posts = nil
		} else {
			posts = posts[q.Offset:]
		}
	}
	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, total, nil
}

// SyncTags makes tagIDs the exact tag set of the post
func (r *BadgerPostRepository) SyncTags(ctx context.Context, postID int, tagIDs []int) error {
	wanted := dedupeIDs(tagIDs)
	return update(ctx, r.db, func(txn *badger.Txn) error {
		ok, err := exists(txn, entityKey(PostKeyPrefix, postID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		for _, tagID := range wanted {
			ok, err := exists(txn, entityKey(TagKeyPrefix, tagID))
			if err != nil {
				return err
			}
			if !ok {
				return ErrConstraint
			}
		}

		current, err := postTagIDs(txn, postID)
		if err != nil {
			return err
		}
		keep := make(map[int]bool, len(wanted))
		for _, tagID := range wanted {
			keep[tagID] = true
		}
		for _, tagID := range current {
			if !keep[tagID] {
				if err := unlinkTag(txn, postID, tagID); err != nil {
					return err
				}
			}
		}
		for _, tagID := range wanted {
			if err := linkTag(txn, postID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
}

// TagIDs returns the tag ids attached to each of the given posts
func (r *BadgerPostRepository) TagIDs(ctx context.Context, postIDs []int) (map[int][]int, error) {
	result := make(map[int][]int, len(postIDs))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, postID := range dedupeIDs(postIDs) {
			ids, err := postTagIDs(txn, postID)
			if err != nil {
				return err
			}
			if len(ids) > 0 {
				result[postID] = ids
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IncrementViews adds one view inside a transaction; conflicting
// increments are retried so none are lost
func (r *BadgerPostRepository) IncrementViews(ctx context.Context, id int) (int64, error) {
	var views int64
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		key := entityKey(PostKeyPrefix, id)
		var post models.Post
		if err := getEntity(txn, key, &post); err != nil {
			return err
		}
		post.Views++
		views = post.Views
		return putEntity(txn, key, &post)
	})
	if err != nil {
		return 0, err
	}
	return views, nil
}

// CountByCategory counts posts per category id
func (r *BadgerPostRepository) CountByCategory(ctx context.Context) (map[int]int, error) {
	counts := make(map[int]int)
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(PostKeyPrefix), func(_, val []byte) error {
			var post models.Post
			if err := unmarshalEntity(val, &post); err != nil {
				return err
			}
			if post.CategoryID != nil {
				counts[*post.CategoryID]++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CountByTag counts posts per tag id
func (r *BadgerPostRepository) CountByTag(ctx context.Context) (map[int]int, error) {
	counts := make(map[int]int)
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanKeys(txn, []byte(TagPostPrefix), func(key []byte) error {
			// rel:tag_post:<tagID>:<postID>
			rest := key[len(TagPostPrefix):]
			if i := bytes.IndexByte(rest, ':'); i >= 0 {
				rest = rest[:i]
			}
			tagID, err := strconv.Atoi(string(rest))
			if err != nil {
				return err
			}
			counts[tagID]++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
