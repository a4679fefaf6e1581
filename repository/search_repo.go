package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitpress/models"
)

type searchRepo struct {
	db *gorm.DB
}

func (r *searchRepo) Upsert(ctx context.Context, entry *models.SearchEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "headings", "body"}),
	}).Create(entry).Error
}

func (r *searchRepo) SetSummary(ctx context.Context, articleID, summary string) error {
	return r.db.WithContext(ctx).Model(&models.SearchEntry{}).
		Where("article_id = ?", articleID).
		Update("summary", summary).Error
}

func (r *searchRepo) Delete(ctx context.Context, articleID string) error {
	return r.db.WithContext(ctx).Where("article_id = ?", articleID).Delete(&models.SearchEntry{}).Error
}

// tokenMatch is the per-token condition over the indexed columns.
const tokenMatch = "(se.title ILIKE ? OR se.summary ILIKE ? OR se.headings ILIKE ? OR se.body ILIKE ?)"

func tokenArgs(token string) []any {
	p := "%" + token + "%"
	return []any{p, p, p, p}
}

// base joins articles to their index entries, published only.
func (r *searchRepo) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Article{}).
		Joins("JOIN search_entries se ON se.article_id = articles.id").
		Where("articles.status = ?", models.StatusPublished)
}

func (r *searchRepo) andQuery(ctx context.Context, tokens []string) *gorm.DB {
	q := r.base(ctx)
	for _, token := range tokens {
		q = q.Where(tokenMatch, tokenArgs(token)...)
	}
	return q
}

func (r *searchRepo) orQuery(ctx context.Context, tokens []string, excludeIDs []string) *gorm.DB {
	conds := make([]string, len(tokens))
	var args []any
	for i, token := range tokens {
		conds[i] = tokenMatch
		args = append(args, tokenArgs(token)...)
	}
	q := r.base(ctx).Where("("+strings.Join(conds, " OR ")+")", args...)
	if len(excludeIDs) > 0 {
		q = q.Where("articles.id NOT IN ?", excludeIDs)
	}
	return q
}

func (r *searchRepo) SearchAnd(ctx context.Context, tokens []string, limit, offset int) ([]models.Article, error) {
	var articles []models.Article
	err := r.andQuery(ctx, tokens).
		Order("articles.published_at DESC").
		Limit(limit).Offset(offset).
		Find(&articles).Error
	return articles, err
}

func (r *searchRepo) CountAnd(ctx context.Context, tokens []string) (int64, error) {
	var total int64
	err := r.andQuery(ctx, tokens).Count(&total).Error
	return total, err
}

// AndMatchIDs returns the ids of every AND match up to cap, used by the
// executor to exclude AND hits from the OR backfill.
func (r *searchRepo) AndMatchIDs(ctx context.Context, tokens []string, cap int) ([]string, error) {
	var ids []string
	err := r.andQuery(ctx, tokens).Limit(cap).Pluck("articles.id", &ids).Error
	return ids, err
}

func (r *searchRepo) SearchOr(ctx context.Context, tokens []string, excludeIDs []string, limit, offset int) ([]models.Article, error) {
	var articles []models.Article
	err := r.orQuery(ctx, tokens, excludeIDs).
		Order("articles.published_at DESC").
		Limit(limit).Offset(offset).
		Find(&articles).Error
	return articles, err
}

func (r *searchRepo) CountOr(ctx context.Context, tokens []string, excludeIDs []string) (int64, error) {
	var total int64
	err := r.orQuery(ctx, tokens, excludeIDs).Count(&total).Error
	return total, err
}

func (r *searchRepo) topicQuery(ctx context.Context, topics []string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Article{}).
		Joins("JOIN topics t ON t.article_id = articles.id").
		Where("articles.status = ?", models.StatusPublished).
		Where("t.name IN ?", topics)
}

// SearchByTopics unions the topic matches, de-duplicated by article id.
func (r *searchRepo) SearchByTopics(ctx context.Context, topics []string, limit, offset int) ([]models.Article, error) {
	var articles []models.Article
	err := r.topicQuery(ctx, topics).
		Distinct("articles.*").
		Order("articles.published_at DESC").
		Limit(limit).Offset(offset).
		Find(&articles).Error
	return articles, err
}

func (r *searchRepo) CountByTopics(ctx context.Context, topics []string) (int64, error) {
	var total int64
	err := r.topicQuery(ctx, topics).Distinct("articles.id").Count(&total).Error
	return total, err
}
