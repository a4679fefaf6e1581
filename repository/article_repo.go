package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitpress/models"
)

type articleRepo struct {
	db *gorm.DB
}

func (r *articleRepo) firstWhere(ctx context.Context, query string, args ...any) (*models.Article, error) {
	var article models.Article
	err := r.db.WithContext(ctx).Where(query, args...).First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepo) FindByID(ctx context.Context, id string) (*models.Article, error) {
	return r.firstWhere(ctx, "id = ?", id)
}

func (r *articleRepo) FindByPath(ctx context.Context, authorID, githubPath string) (*models.Article, error) {
	return r.firstWhere(ctx, "author_id = ? AND github_path = ?", authorID, githubPath)
}

func (r *articleRepo) FindBySlug(ctx context.Context, authorID, slug string) (*models.Article, error) {
	return r.firstWhere(ctx, "author_id = ? AND slug = ?", authorID, slug)
}

// Save upserts by id so redelivered webhooks cannot create duplicate rows.
func (r *articleRepo) Save(ctx context.Context, article *models.Article) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "category", "target_categories", "status",
			"github_sha", "published_sha", "rejection_reason",
			"published_at", "updated_at",
		}),
	}).Create(article).Error
}

// ReplaceTopics swaps the full topic set, delete-then-insert.
func (r *articleRepo) ReplaceTopics(ctx context.Context, articleID string, topics []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", articleID).Delete(&models.Topic{}).Error; err != nil {
			return err
		}
		for _, name := range topics {
			topic := models.Topic{ID: uuid.NewString(), ArticleID: articleID, Name: name}
			if err := tx.Create(&topic).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *articleRepo) ListPublished(ctx context.Context, limit, offset int) ([]models.Article, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Article{}).Where("status = ?", models.StatusPublished)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var articles []models.Article
	err := base.Order("published_at DESC").Limit(limit).Offset(offset).Find(&articles).Error
	return articles, total, err
}

func (r *articleRepo) ListPublishedByCategory(ctx context.Context, category string, limit, offset int) ([]models.Article, int64, error) {
	// TargetCategories is a JSON array column; match on the quoted element.
	base := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("status = ?", models.StatusPublished).
		Where("target_categories LIKE ?", `%"`+category+`"%`)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var articles []models.Article
	err := base.Order("published_at DESC").Limit(limit).Offset(offset).Find(&articles).Error
	return articles, total, err
}

func (r *articleRepo) ListPendingReview(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.ArticleStatus{models.StatusPendingNew, models.StatusPendingUpdate}).
		Order("created_at ASC").
		Find(&articles).Error
	return articles, err
}
