package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/repository"
	"gitpress/storage"
)

// ReviewService applies the admin decisions to articles under review and
// handles author-initiated deletion.
type ReviewService struct {
	Stores        *repository.Stores
	Fetcher       githubapi.ContentFetcher
	Images        *ImagePipeline
	Drafts        storage.DraftCache
	Objects       storage.ObjectStore
	Notifications *NotificationService
	Logger        *zap.Logger

	Now func() time.Time
}

// Approve publishes a pending article. On first approval the cached draft
// becomes the published snapshot. On later approvals the source file is
// fetched again and the image pipeline re-runs, so the snapshot, topics and
// search entry all reflect the content being published, and the published
// sha is pinned to that fetch.
func (s *ReviewService) Approve(ctx context.Context, articleID, summary string) (*models.Article, error) {
	article, err := s.Stores.Articles.FindByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, models.NewArticleNotFoundError(articleID)
	}

	firstApproval := !article.HasPublicationHistory()

	var snapshot string
	var topics []string
	if !firstApproval {
		if article.Status != models.StatusPendingUpdate {
			return nil, models.NewInvalidStatusTransitionError(article.Status, models.StatusPublished)
		}
		fm, rewritten, sha, err := s.fetchForPublication(ctx, article)
		if err != nil {
			return nil, err
		}
		if err := article.MarkContentChanged(sha, fm.Metadata(), s.Now()); err != nil {
			return nil, err
		}
		snapshot = rewritten
		topics = fm.Topics
	}

	if err := article.Approve(s.Now()); err != nil {
		return nil, err
	}
	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return nil, err
	}
	if err := s.Stores.Search.SetSummary(ctx, article.ID, summary); err != nil {
		return nil, err
	}

	if firstApproval {
		draft, err := s.Drafts.GetDraft(article.AuthorID, article.Slug)
		if err != nil {
			return nil, err
		}
		if draft != "" {
			if err := s.Objects.PutSnapshot(ctx, article.AuthorID, article.Slug, draft); err != nil {
				return nil, err
			}
			if err := s.Drafts.DeleteDraft(article.AuthorID, article.Slug); err != nil {
				return nil, err
			}
		}
	} else {
		if err := s.Objects.PutSnapshot(ctx, article.AuthorID, article.Slug, snapshot); err != nil {
			return nil, err
		}
		if err := s.Stores.Articles.ReplaceTopics(ctx, article.ID, topics); err != nil {
			return nil, err
		}
		headings, text := ExtractFeatures(snapshot)
		if err := s.Stores.Search.Upsert(ctx, &models.SearchEntry{
			ArticleID: article.ID,
			Title:     article.Title,
			Headings:  headings,
			Body:      text,
		}); err != nil {
			return nil, err
		}
	}

	s.Notifications.Notify(ctx, article.AuthorID, models.NotificationArticleApproved, article.ID,
		fmt.Sprintf("%q has been approved and published", article.Title))

	s.Logger.Info("article approved",
		zap.String("article_id", article.ID),
		zap.String("slug", article.Slug))
	return article, nil
}

// fetchForPublication pulls the current revision of an already published
// article and runs it through the image pipeline. Nothing is persisted here;
// a failure leaves the article untouched in review.
func (s *ReviewService) fetchForPublication(ctx context.Context, article *models.Article) (*Frontmatter, string, string, error) {
	author, err := s.Stores.Authors.FindByID(ctx, article.AuthorID)
	if err != nil {
		return nil, "", "", err
	}
	if author == nil {
		return nil, "", "", fmt.Errorf("author %s not found", article.AuthorID)
	}
	link, err := s.Stores.RepoLinks.FindByAuthorID(ctx, article.AuthorID)
	if err != nil {
		return nil, "", "", err
	}
	if link == nil {
		return nil, "", "", fmt.Errorf("author %s has no linked repository", article.AuthorID)
	}
	owner, repo, _ := strings.Cut(link.FullName, "/")

	file, err := s.Fetcher.FetchFile(ctx, author.GithubInstallationID, owner, repo, article.GithubPath)
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch %s: %w", article.GithubPath, err)
	}
	fm, body, err := ParseFrontmatter(file.Content)
	if err != nil {
		return nil, "", "", err
	}
	if !fm.Published {
		return nil, "", "", models.NewValidationError("article is no longer marked published")
	}
	if err := fm.Validate(); err != nil {
		return nil, "", "", err
	}

	rewritten, err := s.Images.ProcessAndRewrite(ctx, author.GithubInstallationID, owner, repo, article.AuthorID, article.Slug, body)
	if err != nil {
		return nil, "", "", err
	}
	return fm, rewritten, file.Sha, nil
}

// Reject sends a pending article back to the author with a reason and drops
// its search entry. The next sync re-indexes the content.
func (s *ReviewService) Reject(ctx context.Context, articleID, reason string) (*models.Article, error) {
	if reason == "" {
		return nil, models.NewValidationError("rejection reason is required")
	}
	article, err := s.Stores.Articles.FindByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, models.NewArticleNotFoundError(articleID)
	}

	if err := article.Reject(reason, s.Now()); err != nil {
		return nil, err
	}
	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return nil, err
	}
	if err := s.Stores.Search.Delete(ctx, article.ID); err != nil {
		return nil, err
	}

	s.Notifications.Notify(ctx, article.AuthorID, models.NotificationArticleRejected, article.ID,
		fmt.Sprintf("%q was rejected: %s", article.Title, reason))

	s.Logger.Info("article rejected",
		zap.String("article_id", article.ID),
		zap.String("reason", reason))
	return article, nil
}

// Delete tombstones an article on behalf of its author and purges the
// search entry, draft and published assets.
func (s *ReviewService) Delete(ctx context.Context, articleID, authorID string) error {
	article, err := s.Stores.Articles.FindByID(ctx, articleID)
	if err != nil {
		return err
	}
	if article == nil {
		return models.NewArticleNotFoundError(articleID)
	}
	if article.AuthorID != authorID {
		return models.NewForbiddenArticleAccessError(articleID)
	}

	if err := article.MarkDeleted(s.Now()); err != nil {
		return err
	}
	if err := s.Stores.Articles.Save(ctx, article); err != nil {
		return err
	}
	if err := s.Stores.Search.Delete(ctx, article.ID); err != nil {
		return err
	}
	if err := s.Drafts.DeleteDraft(article.AuthorID, article.Slug); err != nil {
		return err
	}
	if err := s.Objects.DeleteAll(ctx, article.AuthorID, article.Slug); err != nil {
		return err
	}

	s.Logger.Info("article deleted by author",
		zap.String("article_id", article.ID),
		zap.String("author_id", authorID))
	return nil
}

// ListPending returns the review queue, oldest first.
func (s *ReviewService) ListPending(ctx context.Context) ([]models.Article, error) {
	return s.Stores.Articles.ListPendingReview(ctx)
}
