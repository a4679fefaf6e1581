package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/repository"
	"gitpress/storage"
)

// SyncOutcome describes what a single file sync did.
type SyncOutcome string

const (
	OutcomeCreated   SyncOutcome = "created"
	OutcomeUpdated   SyncOutcome = "updated"
	OutcomeUnchanged SyncOutcome = "unchanged"
	OutcomeSkipped   SyncOutcome = "skipped"
	OutcomeRemoved   SyncOutcome = "removed"
)

// SyncService mirrors repository content into the article store. One call
// handles one file; the webhook layer fans out over a delivery's file list.
type SyncService struct {
	Stores        *repository.Stores
	Fetcher       githubapi.ContentFetcher
	Images        *ImagePipeline
	Drafts        storage.DraftCache
	Objects       storage.ObjectStore
	Notifications *NotificationService
	Logger        *zap.Logger

	NewID func() string
	Now   func() time.Time
}

// SyncFile fetches, parses and persists one markdown file. Draft content and
// image uploads only happen while the article has never been published;
// after first approval the published snapshot is the delivery artifact and
// review works off the stored metadata.
func (s *SyncService) SyncFile(ctx context.Context, author *models.Author, owner, repo, githubPath string) (SyncOutcome, error) {
	file, err := s.Fetcher.FetchFile(ctx, author.GithubInstallationID, owner, repo, githubPath)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("fetch %s: %w", githubPath, err)
	}

	fm, body, err := ParseFrontmatter(file.Content)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !fm.Published {
		s.Logger.Debug("file not marked published, skipping",
			zap.String("path", githubPath))
		return OutcomeSkipped, nil
	}
	if err := fm.Validate(); err != nil {
		return OutcomeSkipped, err
	}

	article, err := s.Stores.Articles.FindByPath(ctx, author.ID, githubPath)
	if err != nil {
		return OutcomeSkipped, err
	}

	if article == nil {
		return s.createArticle(ctx, author, owner, repo, githubPath, file, fm, body)
	}
	return s.updateArticle(ctx, author, owner, repo, article, file, fm, body)
}

func (s *SyncService) createArticle(ctx context.Context, author *models.Author, owner, repo, githubPath string, file githubapi.File, fm *Frontmatter, body string) (SyncOutcome, error) {
	slug := SlugFromPath(githubPath)
	existing, err := s.Stores.Articles.FindBySlug(ctx, author.ID, slug)
	if err != nil {
		return OutcomeSkipped, err
	}
	if existing != nil {
		return OutcomeSkipped, models.NewDuplicateSlugError(slug, author.ID)
	}

	article := models.NewArticle(s.NewID(), author.ID, slug, githubPath, file.Sha, fm.Metadata(), s.Now())

	rewritten, err := s.Images.ProcessAndRewrite(ctx, author.GithubInstallationID, owner, repo, author.ID, slug, body)
	if err != nil {
		return OutcomeSkipped, err
	}

	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Stores.Articles.ReplaceTopics(ctx, article.ID, fm.Topics); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Drafts.SetDraft(author.ID, slug, rewritten); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.indexArticle(ctx, article, rewritten); err != nil {
		return OutcomeSkipped, err
	}

	s.Logger.Info("article created",
		zap.String("article_id", article.ID),
		zap.String("slug", slug),
		zap.String("path", githubPath))
	return OutcomeCreated, nil
}

func (s *SyncService) updateArticle(ctx context.Context, author *models.Author, owner, repo string, article *models.Article, file githubapi.File, fm *Frontmatter, body string) (SyncOutcome, error) {
	if article.Status == models.StatusDeleted {
		s.Logger.Info("push for deleted article ignored",
			zap.String("article_id", article.ID),
			zap.String("path", article.GithubPath))
		return OutcomeSkipped, nil
	}
	if article.GithubSha == file.Sha {
		return OutcomeUnchanged, nil
	}

	wasLive := article.Status == models.StatusPublished || article.Status == models.StatusRejected

	if err := article.MarkContentChanged(file.Sha, fm.Metadata(), s.Now()); err != nil {
		return OutcomeSkipped, err
	}

	rewritten := body
	if !article.HasPublicationHistory() {
		var err error
		rewritten, err = s.Images.ProcessAndRewrite(ctx, author.GithubInstallationID, owner, repo, author.ID, article.Slug, body)
		if err != nil {
			return OutcomeSkipped, err
		}
	}

	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Stores.Articles.ReplaceTopics(ctx, article.ID, fm.Topics); err != nil {
		return OutcomeSkipped, err
	}
	if !article.HasPublicationHistory() {
		if err := s.Drafts.SetDraft(author.ID, article.Slug, rewritten); err != nil {
			return OutcomeSkipped, err
		}
	}
	if err := s.indexArticle(ctx, article, rewritten); err != nil {
		return OutcomeSkipped, err
	}

	if wasLive {
		s.Notifications.Notify(ctx, author.ID, models.NotificationArticleUpdateDetected, article.ID,
			fmt.Sprintf("Update detected for %q, awaiting review", article.Title))
	}

	s.Logger.Info("article updated",
		zap.String("article_id", article.ID),
		zap.String("status", string(article.Status)))
	return OutcomeUpdated, nil
}

// indexArticle refreshes the searchable fields. The admin-written summary is
// kept as is; only title, headings and body text are replaced.
func (s *SyncService) indexArticle(ctx context.Context, article *models.Article, body string) error {
	headings, text := ExtractFeatures(body)
	return s.Stores.Search.Upsert(ctx, &models.SearchEntry{
		ArticleID: article.ID,
		Title:     article.Title,
		Headings:  headings,
		Body:      text,
	})
}

// RemoveFile handles a file deleted from the repository: the article is
// tombstoned and all derived artifacts are purged.
func (s *SyncService) RemoveFile(ctx context.Context, author *models.Author, githubPath string) (SyncOutcome, error) {
	article, err := s.Stores.Articles.FindByPath(ctx, author.ID, githubPath)
	if err != nil {
		return OutcomeSkipped, err
	}
	if article == nil || article.Status == models.StatusDeleted {
		return OutcomeSkipped, nil
	}

	if err := article.MarkDeleted(s.Now()); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Stores.Search.Delete(ctx, article.ID); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Drafts.DeleteDraft(author.ID, article.Slug); err != nil {
		return OutcomeSkipped, err
	}
	if err := s.Objects.DeleteAll(ctx, author.ID, article.Slug); err != nil {
		return OutcomeSkipped, err
	}

	s.Logger.Info("article removed",
		zap.String("article_id", article.ID),
		zap.String("path", githubPath))
	return OutcomeRemoved, nil
}
