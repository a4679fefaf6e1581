package models

// Topic is a lowercase free-text label attached to an article. The full set
// is replaced on every content update.
type Topic struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ArticleID string `json:"article_id" gorm:"index"`
	Name      string `json:"name" gorm:"index"`
}
