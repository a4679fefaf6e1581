package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ArticleStatus is the review lifecycle state of an article.
type ArticleStatus string

const (
	StatusPendingNew    ArticleStatus = "pending_new"
	StatusPendingUpdate ArticleStatus = "pending_update"
	StatusPublished     ArticleStatus = "published"
	StatusRejected      ArticleStatus = "rejected"
	StatusDeleted       ArticleStatus = "deleted"
)

// Target categories recognized in frontmatter.
const (
	CategoryAuthentication = "authentication"
	CategoryAuthorization  = "authorization"
	CategorySecurity       = "security"
)

// IsTargetCategory reports whether v is a recognized target category tag.
func IsTargetCategory(v string) bool {
	switch v {
	case CategoryAuthentication, CategoryAuthorization, CategorySecurity:
		return true
	}
	return false
}

// StringList is stored as a JSON array in a single text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported type %T for StringList", src)
}

// Article is the unit of synchronized content. Status only changes through
// the transition methods below; orchestration code never writes the field
// directly.
type Article struct {
	ID       string `json:"id" gorm:"primaryKey"`
	AuthorID string `json:"author_id" gorm:"index;uniqueIndex:idx_articles_author_path;uniqueIndex:idx_articles_author_slug"`

	Slug       string `json:"slug" gorm:"uniqueIndex:idx_articles_author_slug"`
	GithubPath string `json:"github_path" gorm:"uniqueIndex:idx_articles_author_path"`

	Title            string     `json:"title" gorm:"not null"`
	Category         string     `json:"category,omitempty"`
	TargetCategories StringList `json:"target_categories" gorm:"type:text"`

	GithubSha    string `json:"github_sha,omitempty"`
	PublishedSha string `json:"published_sha,omitempty"`

	Status          ArticleStatus `json:"status" gorm:"index;default:'pending_new'"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	PublishedAt     *time.Time    `json:"published_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleMetadata carries the frontmatter-derived fields that may change on
// any content update, independent of status transitions.
type ArticleMetadata struct {
	Title            string
	Category         string
	TargetCategories []string
}

// NewArticle creates a freshly detected article in pending_new.
func NewArticle(id, authorID, slug, githubPath, sha string, meta ArticleMetadata, now time.Time) *Article {
	return &Article{
		ID:               id,
		AuthorID:         authorID,
		Slug:             slug,
		GithubPath:       githubPath,
		Title:            meta.Title,
		Category:         meta.Category,
		TargetCategories: meta.TargetCategories,
		GithubSha:        sha,
		Status:           StatusPendingNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// HasPublicationHistory reports whether the article has ever been approved.
func (a *Article) HasPublicationHistory() bool {
	return a.PublishedAt != nil
}

// Approve publishes the article. The published sha is pinned to the current
// source sha and any prior rejection reason is cleared.
func (a *Article) Approve(now time.Time) error {
	if a.Status != StatusPendingNew && a.Status != StatusPendingUpdate {
		return NewInvalidStatusTransitionError(a.Status, StatusPublished)
	}
	a.Status = StatusPublished
	a.PublishedSha = a.GithubSha
	a.PublishedAt = &now
	a.RejectionReason = ""
	a.UpdatedAt = now
	return nil
}

// Reject moves the article out of review with a reason.
func (a *Article) Reject(reason string, now time.Time) error {
	if a.Status != StatusPendingNew && a.Status != StatusPendingUpdate {
		return NewInvalidStatusTransitionError(a.Status, StatusRejected)
	}
	a.Status = StatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = now
	return nil
}

// MarkContentChanged records a new source revision. Published and rejected
// articles re-enter review as pending_update; articles already pending keep
// their state and only pick up the new sha and metadata.
func (a *Article) MarkContentChanged(newSha string, meta ArticleMetadata, now time.Time) error {
	switch a.Status {
	case StatusPublished, StatusRejected:
		a.Status = StatusPendingUpdate
		a.RejectionReason = ""
	case StatusPendingNew, StatusPendingUpdate:
		// no status change
	default:
		return NewInvalidStatusTransitionError(a.Status, StatusPendingUpdate)
	}
	a.GithubSha = newSha
	a.Title = meta.Title
	a.Category = meta.Category
	a.TargetCategories = meta.TargetCategories
	a.UpdatedAt = now
	return nil
}

// MarkDeleted is terminal. Rows are kept; read paths filter the status out.
func (a *Article) MarkDeleted(now time.Time) error {
	if a.Status == StatusDeleted {
		return NewInvalidStatusTransitionError(a.Status, StatusDeleted)
	}
	a.Status = StatusDeleted
	a.UpdatedAt = now
	return nil
}
