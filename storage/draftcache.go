package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DraftCache holds raw markdown for articles that have never been published.
// GetDraft returns ("", nil) when no draft exists.
type DraftCache interface {
	SetDraft(authorID, slug, markdown string) error
	GetDraft(authorID, slug string) (string, error)
	DeleteDraft(authorID, slug string) error
	ForEachDraft(fn func(authorID, slug string) error) error
}

var draftBucket = []byte("drafts")

// BoltDraftCache implements DraftCache on a local bolt file.
type BoltDraftCache struct {
	db *bolt.DB
}

func OpenDraftCache(path string) (*BoltDraftCache, error) {
	if path == "" {
		return nil, errors.New("draftcache: missing path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(draftBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDraftCache{db: db}, nil
}

func (c *BoltDraftCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func draftKey(authorID, slug string) []byte {
	return []byte(authorID + "/" + slug)
}

func (c *BoltDraftCache) SetDraft(authorID, slug, markdown string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftBucket).Put(draftKey(authorID, slug), []byte(markdown))
	})
}

func (c *BoltDraftCache) GetDraft(authorID, slug string) (string, error) {
	var markdown string
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(draftBucket).Get(draftKey(authorID, slug)); v != nil {
			markdown = string(v)
		}
		return nil
	})
	return markdown, err
}

func (c *BoltDraftCache) DeleteDraft(authorID, slug string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftBucket).Delete(draftKey(authorID, slug))
	})
}

// ForEachDraft visits every cached draft key; used by the cleanup batch.
func (c *BoltDraftCache) ForEachDraft(fn func(authorID, slug string) error) error {
	return c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(draftBucket).ForEach(func(k, _ []byte) error {
			authorID, slug, ok := strings.Cut(string(k), "/")
			if !ok {
				return nil
			}
			return fn(authorID, slug)
		})
	})
}
