package models

import "time"

// Notification types created by the sync pipeline and review actions.
const (
	NotificationArticleApproved       = "article_approved"
	NotificationArticleRejected       = "article_rejected"
	NotificationArticleUpdateDetected = "article_update_detected"
	NotificationSyncFailed            = "sync_failed"
)

// Notification is an author-facing message. Delivery (email, UI) is handled
// by external collaborators; this core only persists the row.
type Notification struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	AuthorID  string     `json:"author_id" gorm:"index"`
	Type      string     `json:"type"`
	ArticleID string     `json:"article_id,omitempty" gorm:"index"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
