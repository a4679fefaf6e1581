package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitpress/config"
	"gitpress/models"
)

const webhookSecret = "hook-secret"

func newWebhookService(env *testEnv) *WebhookService {
	return &WebhookService{
		Config: &config.Config{GitHubWebhookSecret: webhookSecret, DefaultBranch: "main"},
		Stores: env.stores,
		Sync:   env.sync,
		Logger: zap.NewNop(),
	}
}

func signedBody(t *testing.T, payload any) (string, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), body
}

func pushPayload(ref, fullName string, commits []PushCommit) map[string]any {
	return map[string]any{
		"ref":          ref,
		"repository":   map[string]any{"full_name": fullName},
		"installation": map[string]any{"id": 42},
		"commits":      commits,
	}
}

func linkRepo(env *testEnv, fullName, authorID string) {
	env.links.links[fullName] = &models.RepoLink{ID: "link-1", AuthorID: authorID, FullName: fullName}
}

func TestIngestRejectsBadSignature(t *testing.T) {
	env := newTestEnv()
	svc := newWebhookService(env)

	_, body := signedBody(t, pushPayload("refs/heads/main", "owner/repo", nil))
	_, err := svc.Ingest(context.Background(), "push", "sha256=deadbeef", body)
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 401, appErr.Status)
}

func TestIngestIgnoresNonPushEvents(t *testing.T) {
	env := newTestEnv()
	svc := newWebhookService(env)

	sig, body := signedBody(t, map[string]any{"zen": "Design for failure."})
	result, err := svc.Ingest(context.Background(), "ping", sig, body)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Contains(t, result.Reason, "ignored event type")
}

func TestIngestIgnoresOtherBranches(t *testing.T) {
	env := newTestEnv()
	env.addAuthor("author-1", "inst-1")
	linkRepo(env, "owner/repo", "author-1")
	svc := newWebhookService(env)

	sig, body := signedBody(t, pushPayload("refs/heads/feature", "owner/repo", []PushCommit{
		{Added: []string{"posts/a.md"}},
	}))
	result, err := svc.Ingest(context.Background(), "push", sig, body)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Contains(t, result.Reason, "ignored ref")
	assert.Zero(t, result.Synced)
}

func TestIngestUnlinkedRepository(t *testing.T) {
	env := newTestEnv()
	svc := newWebhookService(env)

	sig, body := signedBody(t, pushPayload("refs/heads/main", "stranger/repo", []PushCommit{
		{Added: []string{"posts/a.md"}},
	}))
	result, err := svc.Ingest(context.Background(), "push", sig, body)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, "repository not linked", result.Reason)
}

func TestIngestSyncsMarkdownFiles(t *testing.T) {
	env := newTestEnv()
	env.addAuthor("author-1", "inst-1")
	linkRepo(env, "owner/repo", "author-1")
	env.addFile("posts/a.md", "---\ntitle: A\npublished: true\ntargetCategories:\n  - security\n---\nbody", "sha-a")
	env.addFile("posts/b.md", "---\ntitle: B\npublished: true\ntargetCategories:\n  - security\n---\nbody", "sha-b")
	svc := newWebhookService(env)

	sig, body := signedBody(t, pushPayload("refs/heads/main", "owner/repo", []PushCommit{
		{Added: []string{"posts/a.md", "README.md", "assets/logo.svg"}},
		{Modified: []string{"posts/b.md", ".github/workflows/ci.md"}},
	}))
	result, err := svc.Ingest(context.Background(), "push", sig, body)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Synced)
	assert.Zero(t, result.Failed)
	assert.Len(t, env.articles.articles, 2)
}

func TestIngestPerFileIsolation(t *testing.T) {
	env := newTestEnv()
	env.addAuthor("author-1", "inst-1")
	linkRepo(env, "owner/repo", "author-1")
	// posts/missing.md is never registered with the fetcher
	env.addFile("posts/ok.md", "---\ntitle: OK\npublished: true\ntargetCategories:\n  - security\n---\nbody", "sha-1")
	svc := newWebhookService(env)

	sig, body := signedBody(t, pushPayload("refs/heads/main", "owner/repo", []PushCommit{
		{Added: []string{"posts/missing.md", "posts/ok.md"}},
	}))
	result, err := svc.Ingest(context.Background(), "push", sig, body)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)

	article, _ := env.articles.FindByPath(context.Background(), "author-1", "posts/ok.md")
	assert.NotNil(t, article)
	assert.Contains(t, env.notifications.types(), models.NotificationSyncFailed)
}

func TestIngestRemovedFiles(t *testing.T) {
	env := newTestEnv()
	author := env.addAuthor("author-1", "inst-1")
	linkRepo(env, "owner/repo", "author-1")
	env.addFile("posts/gone.md", "---\ntitle: G\npublished: true\ntargetCategories:\n  - security\n---\nbody", "sha-1")

	_, err := env.sync.SyncFile(context.Background(), author, "owner", "repo", "posts/gone.md")
	require.NoError(t, err)

	svc := newWebhookService(env)
	sig, body := signedBody(t, pushPayload("refs/heads/main", "owner/repo", []PushCommit{
		{Removed: []string{"posts/gone.md"}},
	}))
	result, err := svc.Ingest(context.Background(), "push", sig, body)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
}

func TestCollectArticleFiles(t *testing.T) {
	commits := []PushCommit{
		{Added: []string{"posts/a.md", "notes.txt"}, Removed: []string{"posts/old.md"}},
		{Modified: []string{"posts/a.md", "posts/b.md"}},
		{Removed: []string{"posts/b.md"}, Added: []string{"posts/c.md"}},
	}

	changed, removed := collectArticleFiles(commits)

	assert.Equal(t, []string{"posts/a.md", "posts/b.md", "posts/c.md"}, changed)
	// posts/b.md was modified in the same delivery, so it is not removed
	assert.Equal(t, []string{"posts/old.md"}, removed)
}

func TestCollectArticleFilesSkipsDotfiles(t *testing.T) {
	commits := []PushCommit{
		{Added: []string{".hidden.md", "posts/.draft.md", "posts/visible.md"}},
	}
	changed, _ := collectArticleFiles(commits)
	assert.Equal(t, []string{"posts/visible.md"}, changed)
}
