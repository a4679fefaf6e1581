package storage

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *BoltDraftCache {
	t.Helper()
	cache, err := OpenDraftCache(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestDraftCacheRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.SetDraft("author-1", "my-post", "# Draft"))

	got, err := cache.GetDraft("author-1", "my-post")
	require.NoError(t, err)
	assert.Equal(t, "# Draft", got)

	// overwrite
	require.NoError(t, cache.SetDraft("author-1", "my-post", "# Draft v2"))
	got, err = cache.GetDraft("author-1", "my-post")
	require.NoError(t, err)
	assert.Equal(t, "# Draft v2", got)
}

func TestDraftCacheMiss(t *testing.T) {
	cache := openTestCache(t)

	got, err := cache.GetDraft("author-1", "never-set")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDraftCacheDelete(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.SetDraft("author-1", "my-post", "x"))
	require.NoError(t, cache.DeleteDraft("author-1", "my-post"))

	got, err := cache.GetDraft("author-1", "my-post")
	require.NoError(t, err)
	assert.Empty(t, got)

	// deleting a missing draft is fine
	require.NoError(t, cache.DeleteDraft("author-1", "my-post"))
}

func TestDraftCacheForEach(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.SetDraft("a1", "post-one", "x"))
	require.NoError(t, cache.SetDraft("a1", "post-two", "y"))
	require.NoError(t, cache.SetDraft("a2", "other", "z"))

	var keys []string
	err := cache.ForEachDraft(func(authorID, slug string) error {
		keys = append(keys, authorID+"/"+slug)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, []string{"a1/post-one", "a1/post-two", "a2/other"}, keys)
}

func TestDraftCacheOpenMissingPath(t *testing.T) {
	_, err := OpenDraftCache("")
	require.Error(t, err)
}
