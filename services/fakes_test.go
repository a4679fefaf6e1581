package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/repository"
)

// In-memory store fakes shared by the sync, webhook and review tests.

type fakeArticleStore struct {
	articles map[string]*models.Article
	topics   map[string][]string
	saveErr  error
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{
		articles: map[string]*models.Article{},
		topics:   map[string][]string{},
	}
}

func (s *fakeArticleStore) FindByID(ctx context.Context, id string) (*models.Article, error) {
	if a, ok := s.articles[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeArticleStore) FindByPath(ctx context.Context, authorID, githubPath string) (*models.Article, error) {
	for _, a := range s.articles {
		if a.AuthorID == authorID && a.GithubPath == githubPath {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeArticleStore) FindBySlug(ctx context.Context, authorID, slug string) (*models.Article, error) {
	for _, a := range s.articles {
		if a.AuthorID == authorID && a.Slug == slug {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeArticleStore) Save(ctx context.Context, article *models.Article) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *article
	s.articles[article.ID] = &copied
	return nil
}

func (s *fakeArticleStore) ReplaceTopics(ctx context.Context, articleID string, topics []string) error {
	s.topics[articleID] = append([]string(nil), topics...)
	return nil
}

func (s *fakeArticleStore) ListPublished(ctx context.Context, limit, offset int) ([]models.Article, int64, error) {
	var out []models.Article
	for _, a := range s.articles {
		if a.Status == models.StatusPublished {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeArticleStore) ListPublishedByCategory(ctx context.Context, category string, limit, offset int) ([]models.Article, int64, error) {
	var out []models.Article
	for _, a := range s.articles {
		if a.Status != models.StatusPublished {
			continue
		}
		for _, c := range a.TargetCategories {
			if c == category {
				out = append(out, *a)
				break
			}
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeArticleStore) ListPendingReview(ctx context.Context) ([]models.Article, error) {
	var out []models.Article
	for _, a := range s.articles {
		if a.Status == models.StatusPendingNew || a.Status == models.StatusPendingUpdate {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeAuthorStore struct {
	authors map[string]*models.Author
}

func (s *fakeAuthorStore) FindByID(ctx context.Context, id string) (*models.Author, error) {
	if a, ok := s.authors[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

type fakeRepoLinkStore struct {
	links map[string]*models.RepoLink // keyed by full name
}

func (s *fakeRepoLinkStore) FindByFullName(ctx context.Context, fullName string) (*models.RepoLink, error) {
	if l, ok := s.links[fullName]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeRepoLinkStore) FindByAuthorID(ctx context.Context, authorID string) (*models.RepoLink, error) {
	for _, l := range s.links {
		if l.AuthorID == authorID {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRepoLinkStore) Link(ctx context.Context, link *models.RepoLink) error {
	s.links[link.FullName] = link
	return nil
}

type fakeNotificationStore struct {
	saved []models.Notification
}

func (s *fakeNotificationStore) Save(ctx context.Context, n *models.Notification) error {
	s.saved = append(s.saved, *n)
	return nil
}

func (s *fakeNotificationStore) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.saved {
		if n.AuthorID == authorID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) types() []string {
	out := make([]string, len(s.saved))
	for i, n := range s.saved {
		out[i] = n.Type
	}
	return out
}

type fakeDraftCache struct {
	drafts map[string]string
}

func newFakeDraftCache() *fakeDraftCache {
	return &fakeDraftCache{drafts: map[string]string{}}
}

func (c *fakeDraftCache) SetDraft(authorID, slug, markdown string) error {
	c.drafts[authorID+"/"+slug] = markdown
	return nil
}

func (c *fakeDraftCache) GetDraft(authorID, slug string) (string, error) {
	return c.drafts[authorID+"/"+slug], nil
}

func (c *fakeDraftCache) DeleteDraft(authorID, slug string) error {
	delete(c.drafts, authorID+"/"+slug)
	return nil
}

func (c *fakeDraftCache) ForEachDraft(fn func(authorID, slug string) error) error {
	for key := range c.drafts {
		authorID, slug, _ := strings.Cut(key, "/")
		if err := fn(authorID, slug); err != nil {
			return err
		}
	}
	return nil
}

// testEnv bundles one fully wired sync pipeline on fakes.
type testEnv struct {
	articles      *fakeArticleStore
	authors       *fakeAuthorStore
	links         *fakeRepoLinkStore
	notifications *fakeNotificationStore
	search        *fakeSearchStore
	drafts        *fakeDraftCache
	fetcher       *fakeFetcher
	objects       *fakeObjectStore

	stores *repository.Stores
	sync   *SyncService
	review *ReviewService
}

var envNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	env := &testEnv{
		articles:      newFakeArticleStore(),
		authors:       &fakeAuthorStore{authors: map[string]*models.Author{}},
		links:         &fakeRepoLinkStore{links: map[string]*models.RepoLink{}},
		notifications: &fakeNotificationStore{},
		search:        &fakeSearchStore{},
		drafts:        newFakeDraftCache(),
		fetcher:       &fakeFetcher{files: map[string]githubapi.File{}, images: map[string][]byte{}},
		objects:       newFakeObjectStore(),
	}
	env.stores = &repository.Stores{
		Articles:      env.articles,
		Authors:       env.authors,
		RepoLinks:     env.links,
		Notifications: env.notifications,
		Search:        env.search,
	}

	logger := zap.NewNop()
	notifications := NewNotificationService(env.notifications, logger, sequentialIDs("ntf"), func() time.Time { return envNow })
	env.sync = &SyncService{
		Stores:        env.stores,
		Fetcher:       env.fetcher,
		Images:        NewImagePipeline(env.fetcher, env.objects, logger),
		Drafts:        env.drafts,
		Objects:       env.objects,
		Notifications: notifications,
		Logger:        logger,
		NewID:         sequentialIDs("art"),
		Now:           func() time.Time { return envNow },
	}
	env.review = &ReviewService{
		Stores:        env.stores,
		Fetcher:       env.fetcher,
		Images:        env.sync.Images,
		Drafts:        env.drafts,
		Objects:       env.objects,
		Notifications: notifications,
		Logger:        logger,
		Now:           func() time.Time { return envNow },
	}
	return env
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func (e *testEnv) addAuthor(id, installationID string) *models.Author {
	a := &models.Author{ID: id, Username: id, GithubInstallationID: installationID}
	e.authors.authors[id] = a
	return a
}

func (e *testEnv) addFile(path, content, sha string) {
	e.fetcher.files[path] = githubapi.File{Content: content, Sha: sha}
}
