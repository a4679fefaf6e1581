package repository

import (
	"context"

	"gorm.io/gorm"

	"gitpress/models"
)

// ArticleStore is the relational persistence surface for articles. Find
// methods return (nil, nil) when no row matches.
type ArticleStore interface {
	FindByID(ctx context.Context, id string) (*models.Article, error)
	FindByPath(ctx context.Context, authorID, githubPath string) (*models.Article, error)
	FindBySlug(ctx context.Context, authorID, slug string) (*models.Article, error)
	Save(ctx context.Context, article *models.Article) error
	ReplaceTopics(ctx context.Context, articleID string, topics []string) error
	ListPublished(ctx context.Context, limit, offset int) ([]models.Article, int64, error)
	ListPublishedByCategory(ctx context.Context, category string, limit, offset int) ([]models.Article, int64, error)
	ListPendingReview(ctx context.Context) ([]models.Article, error)
}

type AuthorStore interface {
	FindByID(ctx context.Context, id string) (*models.Author, error)
}

type RepoLinkStore interface {
	FindByFullName(ctx context.Context, fullName string) (*models.RepoLink, error)
	FindByAuthorID(ctx context.Context, authorID string) (*models.RepoLink, error)
	Link(ctx context.Context, link *models.RepoLink) error
}

type NotificationStore interface {
	Save(ctx context.Context, n *models.Notification) error
	ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]models.Notification, error)
}

// SearchStore is the full-text index surface. All match queries are
// restricted to published, non-deleted articles.
type SearchStore interface {
	Upsert(ctx context.Context, entry *models.SearchEntry) error
	SetSummary(ctx context.Context, articleID, summary string) error
	Delete(ctx context.Context, articleID string) error

	SearchAnd(ctx context.Context, tokens []string, limit, offset int) ([]models.Article, error)
	CountAnd(ctx context.Context, tokens []string) (int64, error)
	AndMatchIDs(ctx context.Context, tokens []string, cap int) ([]string, error)
	SearchOr(ctx context.Context, tokens []string, excludeIDs []string, limit, offset int) ([]models.Article, error)
	CountOr(ctx context.Context, tokens []string, excludeIDs []string) (int64, error)

	SearchByTopics(ctx context.Context, topics []string, limit, offset int) ([]models.Article, error)
	CountByTopics(ctx context.Context, topics []string) (int64, error)
}

// Stores bundles every store backed by the same gorm connection.
type Stores struct {
	Articles      ArticleStore
	Authors       AuthorStore
	RepoLinks     RepoLinkStore
	Notifications NotificationStore
	Search        SearchStore
}

func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Articles:      &articleRepo{db: db},
		Authors:       &authorRepo{db: db},
		RepoLinks:     &repoLinkRepo{db: db},
		Notifications: &notificationRepo{db: db},
		Search:        &searchRepo{db: db},
	}
}
