package models

import "time"

// Author is the owner of a linked repository. Account management itself is
// handled elsewhere; the sync pipeline only needs the identity and the
// GitHub App installation used for API calls.
type Author struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GithubInstallationID string `json:"github_installation_id,omitempty"`
}

// RepoLink binds one GitHub repository to exactly one author.
type RepoLink struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AuthorID  string    `json:"author_id" gorm:"uniqueIndex"`
	FullName  string    `json:"full_name" gorm:"uniqueIndex"` // owner/repo
	CreatedAt time.Time `json:"created_at"`
}

func (RepoLink) TableName() string {
	return "repo_links"
}
