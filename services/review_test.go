package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitpress/models"
)

func syncedArticle(t *testing.T, env *testEnv) *models.Article {
	t.Helper()
	author := env.addAuthor("author-1", "inst-1")
	env.addFile("posts/oauth-basics.md", validArticle, "sha-1")
	env.fetcher.images["images/flow.png"] = []byte("png")

	_, err := env.sync.SyncFile(context.Background(), author, "owner", "repo", "posts/oauth-basics.md")
	require.NoError(t, err)

	article, err := env.articles.FindByPath(context.Background(), "author-1", "posts/oauth-basics.md")
	require.NoError(t, err)
	require.NotNil(t, article)
	return article
}

func TestApproveFirstPublication(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	approved, err := env.review.Approve(context.Background(), article.ID, "A primer on OAuth.")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPublished, approved.Status)
	assert.Equal(t, "sha-1", approved.PublishedSha)
	require.NotNil(t, approved.PublishedAt)

	// draft promoted to the published snapshot
	snapshot := env.objects.snapshots["author-1/oauth-basics"]
	assert.Contains(t, snapshot, "cdn.example.com")
	assert.NotContains(t, env.drafts.drafts, "author-1/oauth-basics")

	assert.Equal(t, "A primer on OAuth.", env.search.summaries[article.ID])
	assert.Contains(t, env.notifications.types(), models.NotificationArticleApproved)
}

const revisedArticle = `---
title: "OAuth Basics"
published: true
targetCategories:
  - authentication
topics:
  - oauth
  - pkce
---
# OAuth Basics

Revised body with ![diagram](images/new.png) inline.
`

func TestReapprovalRepublishesCurrentContent(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)
	linkRepo(env, "owner/repo", "author-1")

	_, err := env.review.Approve(context.Background(), article.ID, "A primer on OAuth.")
	require.NoError(t, err)

	author, err := env.authors.FindByID(context.Background(), "author-1")
	require.NoError(t, err)
	env.addFile("posts/oauth-basics.md", revisedArticle, "sha-2")
	env.fetcher.images["images/new.png"] = []byte("png-2")

	outcome, err := env.sync.SyncFile(context.Background(), author, "owner", "repo", "posts/oauth-basics.md")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	approved, err := env.review.Approve(context.Background(), article.ID, "An updated primer.")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPublished, approved.Status)
	assert.Equal(t, "sha-2", approved.PublishedSha)

	snapshot := env.objects.snapshots["author-1/oauth-basics"]
	assert.Contains(t, snapshot, "Revised body")
	assert.Contains(t, snapshot, "cdn.example.com/images/author-1/oauth-basics/new.png")
	assert.Contains(t, env.objects.uploads, "images/author-1/oauth-basics/new.png")

	assert.Equal(t, []string{"oauth", "pkce"}, env.articles.topics[article.ID])

	require.NotEmpty(t, env.search.upserts)
	last := env.search.upserts[len(env.search.upserts)-1]
	assert.Contains(t, last.Body, "Revised body")
	assert.Equal(t, "An updated primer.", env.search.summaries[article.ID])
}

func TestReapprovalFailsWhenFetchFails(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)
	linkRepo(env, "owner/repo", "author-1")

	_, err := env.review.Approve(context.Background(), article.ID, "s")
	require.NoError(t, err)

	author, err := env.authors.FindByID(context.Background(), "author-1")
	require.NoError(t, err)
	env.addFile("posts/oauth-basics.md", revisedArticle, "sha-2")
	env.fetcher.images["images/new.png"] = []byte("png-2")
	_, err = env.sync.SyncFile(context.Background(), author, "owner", "repo", "posts/oauth-basics.md")
	require.NoError(t, err)

	delete(env.fetcher.files, "posts/oauth-basics.md")
	snapshotBefore := env.objects.snapshots["author-1/oauth-basics"]

	_, err = env.review.Approve(context.Background(), article.ID, "s")
	require.Error(t, err)

	stored, _ := env.articles.FindByID(context.Background(), article.ID)
	assert.Equal(t, models.StatusPendingUpdate, stored.Status)
	assert.Equal(t, "sha-1", stored.PublishedSha)
	assert.Equal(t, snapshotBefore, env.objects.snapshots["author-1/oauth-basics"])
}

func TestApproveUnknownArticle(t *testing.T) {
	env := newTestEnv()
	_, err := env.review.Approve(context.Background(), "nope", "summary")
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ARTICLE_NOT_FOUND", appErr.Code)
}

func TestApprovePublishedArticleFails(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	_, err := env.review.Approve(context.Background(), article.ID, "s")
	require.NoError(t, err)

	_, err = env.review.Approve(context.Background(), article.ID, "s")
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", appErr.Code)
}

func TestReject(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	rejected, err := env.review.Reject(context.Background(), article.ID, "needs examples")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "needs examples", rejected.RejectionReason)
	assert.Contains(t, env.search.removed, article.ID)
	assert.Contains(t, env.notifications.types(), models.NotificationArticleRejected)
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	_, err := env.review.Reject(context.Background(), article.ID, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reason is required")
}

func TestAuthorDelete(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	require.NoError(t, env.review.Delete(context.Background(), article.ID, "author-1"))

	stored, _ := env.articles.FindByID(context.Background(), article.ID)
	assert.Equal(t, models.StatusDeleted, stored.Status)
	assert.Contains(t, env.search.removed, article.ID)
	assert.Contains(t, env.objects.deleted, "author-1/oauth-basics")
}

func TestAuthorDeleteForeignArticle(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)
	env.addAuthor("author-2", "inst-2")

	err := env.review.Delete(context.Background(), article.ID, "author-2")
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN_ARTICLE_ACCESS", appErr.Code)

	stored, _ := env.articles.FindByID(context.Background(), article.ID)
	assert.Equal(t, models.StatusPendingNew, stored.Status)
}

func TestListPending(t *testing.T) {
	env := newTestEnv()
	article := syncedArticle(t, env)

	pending, err := env.review.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, article.ID, pending[0].ID)

	_, err = env.review.Approve(context.Background(), article.ID, "s")
	require.NoError(t, err)

	pending, err = env.review.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
