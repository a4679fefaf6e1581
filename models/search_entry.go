package models

// SearchEntry is the full-text index row for one article. Title and the
// extracted features are written on sync, the summary at approval time.
type SearchEntry struct {
	ArticleID string `json:"article_id" gorm:"primaryKey"`
	Title     string `json:"title"`
	Summary   string `json:"summary,omitempty"`
	Headings  string `json:"headings,omitempty" gorm:"type:text"`
	Body      string `json:"body,omitempty" gorm:"type:text"`
}

func (SearchEntry) TableName() string {
	return "search_entries"
}
