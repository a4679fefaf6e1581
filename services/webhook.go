package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"gitpress/config"
	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/repository"
)

// PushCommit is one commit in a push payload.
type PushCommit struct {
	ID       string   `json:"id"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// PushEvent is the subset of the GitHub push payload the pipeline consumes.
type PushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Installation struct {
		ID json.Number `json:"id"`
	} `json:"installation"`
	Commits []PushCommit `json:"commits"`
}

// IngestResult summarizes one processed delivery.
type IngestResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Synced   int    `json:"synced"`
	Removed  int    `json:"removed"`
	Failed   int    `json:"failed"`
}

// WebhookService turns push deliveries into per-file sync operations.
type WebhookService struct {
	Config *config.Config
	Stores *repository.Stores
	Sync   *SyncService
	Logger *zap.Logger
}

// Ingest verifies and processes one webhook delivery. Only signature
// failures are errors; everything else answers accepted, with a reason when
// the delivery was a no-op. Per-file failures never abort the delivery.
func (s *WebhookService) Ingest(ctx context.Context, eventType, signature string, body []byte) (*IngestResult, error) {
	if !githubapi.VerifySignature(body, signature, s.Config.GitHubWebhookSecret) {
		return nil, models.NewInvalidSignatureError()
	}
	if eventType != "push" {
		return &IngestResult{Accepted: true, Reason: "ignored event type: " + eventType}, nil
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return &IngestResult{Accepted: true, Reason: "malformed payload"}, nil
	}

	wantRef := "refs/heads/" + s.Config.DefaultBranch
	if event.Ref != wantRef {
		return &IngestResult{Accepted: true, Reason: "ignored ref: " + event.Ref}, nil
	}

	link, err := s.Stores.RepoLinks.FindByFullName(ctx, event.Repository.FullName)
	if err != nil {
		return nil, err
	}
	if link == nil {
		s.Logger.Warn("push from unlinked repository",
			zap.String("repository", event.Repository.FullName))
		return &IngestResult{Accepted: true, Reason: "repository not linked"}, nil
	}
	author, err := s.Stores.Authors.FindByID(ctx, link.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return &IngestResult{Accepted: true, Reason: "author not found"}, nil
	}
	if id := event.Installation.ID.String(); id != "" && id != "0" {
		author.GithubInstallationID = id
	}
	if author.GithubInstallationID == "" {
		return &IngestResult{Accepted: true, Reason: "no installation for author"}, nil
	}

	owner, repo, _ := strings.Cut(event.Repository.FullName, "/")
	changed, removed := collectArticleFiles(event.Commits)

	result := &IngestResult{Accepted: true}
	for _, file := range changed {
		outcome, err := s.Sync.SyncFile(ctx, author, owner, repo, file)
		if err != nil {
			result.Failed++
			s.Logger.Error("file sync failed",
				zap.String("path", file), zap.Error(err))
			s.Sync.Notifications.Notify(ctx, author.ID, models.NotificationSyncFailed, "",
				fmt.Sprintf("Failed to sync %s: %s", file, err.Error()))
			continue
		}
		if outcome == OutcomeCreated || outcome == OutcomeUpdated {
			result.Synced++
		}
	}
	for _, file := range removed {
		outcome, err := s.Sync.RemoveFile(ctx, author, file)
		if err != nil {
			result.Failed++
			s.Logger.Error("file removal failed",
				zap.String("path", file), zap.Error(err))
			s.Sync.Notifications.Notify(ctx, author.ID, models.NotificationSyncFailed, "",
				fmt.Sprintf("Failed to remove %s: %s", file, err.Error()))
			continue
		}
		if outcome == OutcomeRemoved {
			result.Removed++
		}
	}
	return result, nil
}

// collectArticleFiles flattens a delivery's commits into the files to sync
// and the files to remove. A file both removed and re-added or modified in
// the same delivery counts as changed, not removed. Order follows first
// appearance across commits.
func collectArticleFiles(commits []PushCommit) (changed, removed []string) {
	changedSet := map[string]bool{}
	removedSet := map[string]bool{}

	for _, commit := range commits {
		for _, f := range commit.Added {
			if isArticleFile(f) && !changedSet[f] {
				changedSet[f] = true
				changed = append(changed, f)
			}
		}
		for _, f := range commit.Modified {
			if isArticleFile(f) && !changedSet[f] {
				changedSet[f] = true
				changed = append(changed, f)
			}
		}
		for _, f := range commit.Removed {
			if isArticleFile(f) && !removedSet[f] {
				removedSet[f] = true
				removed = append(removed, f)
			}
		}
	}

	kept := removed[:0]
	for _, f := range removed {
		if !changedSet[f] {
			kept = append(kept, f)
		}
	}
	return changed, kept
}

// isArticleFile accepts .md files whose name does not start with a dot.
func isArticleFile(p string) bool {
	base := path.Base(p)
	return strings.HasSuffix(base, ".md") && !strings.HasPrefix(base, ".")
}
