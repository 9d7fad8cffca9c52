package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	// Key prefixes for different entity types
	UserKeyPrefix     = "user:"
	CategoryKeyPrefix = "category:"
	TagKeyPrefix      = "tag:"
	PostKeyPrefix     = "post:"
	CommentKeyPrefix  = "comment:"

	// Secondary index prefixes; values hold the owning entity id
	UserEmailPrefix    = "idx:user_email:"
	CategorySlugPrefix = "idx:category_slug:"
	TagSlugPrefix      = "idx:tag_slug:"
	PostSlugPrefix     = "idx:post_slug:"
	CommentIndexPrefix = "idx:comment:"

	// Association keys, one per direction
	PostTagPrefix = "rel:post_tag:"
	TagPostPrefix = "rel:tag_post:"

	// Sequence keys for auto-incrementing IDs
	UserSeqKey     = "seq:user"
	CategorySeqKey = "seq:category"
	TagSeqKey      = "seq:tag"
	PostSeqKey     = "seq:post"
	CommentSeqKey  = "seq:comment"
)

const maxConflictRetries = 10

// getNextID gets the next available ID for a given sequence key
func getNextID(txn *badger.Txn, seqKey string) (int, error) {
	var id int
	item, err := txn.Get([]byte(seqKey))
	if err == badger.ErrKeyNotFound {
		id = 1
	} else if err != nil {
		return 0, err
	} else {
		err = item.Value(func(val []byte) error {
			id = int(val[0])<<24 | int(val[1])<<16 | int(val[2])<<8 | int(val[3])
			return nil
		})
		if err != nil {
			return 0, err
		}
		id++
	}

	// Store new ID
	idBytes := []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	if err := txn.Set([]byte(seqKey), idBytes); err != nil {
		return 0, err
	}

	return id, nil
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}

func entityKey(prefix string, id int) []byte {
	return []byte(fmt.Sprintf("%s%d", prefix, id))
}

func indexKey(prefix, value string) []byte {
	return []byte(prefix + value)
}

// childPrefix is the prefix of every key nested under parent id.
func childPrefix(prefix string, id int) []byte {
	return []byte(fmt.Sprintf("%s%d:", prefix, id))
}

func commentKey(postID, id int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", CommentKeyPrefix, postID, id))
}

func postTagKey(postID, tagID int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", PostTagPrefix, postID, tagID))
}

func tagPostKey(tagID, postID int) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", TagPostPrefix, tagID, postID))
}

// getEntity loads the JSON value stored at key into entity.
func getEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, entity)
	})
}

// putEntity stores entity as JSON at key.
func putEntity(txn *badger.Txn, key []byte, entity interface{}) error {
	data, err := marshalEntity(entity)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// getIndex resolves a secondary index key to the id it points at.
func getIndex(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var id int
	err = item.Value(func(val []byte) error {
		id, err = strconv.Atoi(string(val))
		return err
	})
	return id, err
}

func setIndex(txn *badger.Txn, key []byte, id int) error {
	return txn.Set(key, []byte(strconv.Itoa(id)))
}

// claimIndex points key at id, failing with ErrDuplicate when another id
// already owns it.
func claimIndex(txn *badger.Txn, key []byte, id int) error {
	owner, err := getIndex(txn, key)
	switch {
	case err == ErrNotFound:
		return setIndex(txn, key, id)
	case err != nil:
		return err
	case owner != id:
		return ErrDuplicate
	}
	return nil
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

// scanPrefix calls fn for every key/value under prefix.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// scanKeys calls fn for every key under prefix without reading values.
func scanKeys(txn *badger.Txn, prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item().KeyCopy(nil)); err != nil {
			return err
		}
	}
	return nil
}

// lastID parses the trailing numeric segment of a colon separated key.
func lastID(key []byte) (int, error) {
	i := bytes.LastIndexByte(key, ':')
	return strconv.Atoi(string(key[i+1:]))
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent writers.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return err
}

// view runs fn in a read-only transaction.
func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
