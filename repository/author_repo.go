package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gitpress/models"
)

type authorRepo struct {
	db *gorm.DB
}

func (r *authorRepo) FindByID(ctx context.Context, id string) (*models.Author, error) {
	var author models.Author
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}

type repoLinkRepo struct {
	db *gorm.DB
}

func (r *repoLinkRepo) FindByFullName(ctx context.Context, fullName string) (*models.RepoLink, error) {
	var link models.RepoLink
	err := r.db.WithContext(ctx).Where("full_name = ?", fullName).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repoLinkRepo) FindByAuthorID(ctx context.Context, authorID string) (*models.RepoLink, error) {
	var link models.RepoLink
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Link creates the binding. A repository already linked to a different
// author is rejected; re-linking the same pair is a no-op.
func (r *repoLinkRepo) Link(ctx context.Context, link *models.RepoLink) error {
	existing, err := r.FindByFullName(ctx, link.FullName)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.AuthorID == link.AuthorID {
			return nil
		}
		return models.NewRepoAlreadyLinkedError(link.FullName)
	}
	return r.db.WithContext(ctx).Create(link).Error
}
