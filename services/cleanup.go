package services

import (
	"context"

	"go.uber.org/zap"

	"gitpress/models"
	"gitpress/repository"
	"gitpress/storage"
)

// CleanupService removes drafts whose article no longer needs them: the
// article is gone, tombstoned, or already published. Runs on a schedule.
type CleanupService struct {
	Stores  *repository.Stores
	Drafts  storage.DraftCache
	Objects storage.ObjectStore
	Logger  *zap.Logger
}

type orphanedDraft struct {
	authorID     string
	slug         string
	purgeObjects bool
}

func (s *CleanupService) Run(ctx context.Context) error {
	var orphans []orphanedDraft

	err := s.Drafts.ForEachDraft(func(authorID, slug string) error {
		article, err := s.Stores.Articles.FindBySlug(ctx, authorID, slug)
		if err != nil {
			return err
		}
		switch {
		case article == nil, article.Status == models.StatusDeleted:
			orphans = append(orphans, orphanedDraft{authorID, slug, true})
		case article.HasPublicationHistory():
			orphans = append(orphans, orphanedDraft{authorID, slug, false})
		}
		return nil
	})
	if err != nil {
		return err
	}

	removed := 0
	for _, o := range orphans {
		if err := s.Drafts.DeleteDraft(o.authorID, o.slug); err != nil {
			s.Logger.Error("failed to delete orphaned draft",
				zap.String("author_id", o.authorID),
				zap.String("slug", o.slug),
				zap.Error(err))
			continue
		}
		if o.purgeObjects {
			if err := s.Objects.DeleteAll(ctx, o.authorID, o.slug); err != nil {
				s.Logger.Error("failed to purge orphaned objects",
					zap.String("author_id", o.authorID),
					zap.String("slug", o.slug),
					zap.Error(err))
			}
		}
		removed++
	}

	if removed > 0 {
		s.Logger.Info("draft cleanup finished", zap.Int("removed", removed))
	}
	return nil
}
