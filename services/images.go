package services

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/storage"
)

const (
	maxImageBytes    = 3 * 1024 * 1024
	maxImagesPerFile = 20
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImagePipeline uploads the images an article references and rewrites the
// markdown so it only points at public object-store URLs.
type ImagePipeline struct {
	Fetcher githubapi.ContentFetcher
	Objects storage.ObjectStore
	Logger  *zap.Logger
}

func NewImagePipeline(fetcher githubapi.ContentFetcher, objects storage.ObjectStore, logger *zap.Logger) *ImagePipeline {
	return &ImagePipeline{Fetcher: fetcher, Objects: objects, Logger: logger}
}

// ProcessAndRewrite resolves every images/ reference in the markdown against
// the repository, uploads each image once, and returns the body with all
// occurrences rewritten. Any failing image fails the whole document.
func (p *ImagePipeline) ProcessAndRewrite(ctx context.Context, installationID, owner, repo, authorID, slug, markdown string) (string, error) {
	refs := ExtractImagePaths(markdown)
	if len(refs) == 0 {
		return markdown, nil
	}

	seen := map[string]bool{}
	unique := make([]string, 0, len(refs))
	for _, ref := range refs {
		if !seen[ref] {
			seen[ref] = true
			unique = append(unique, ref)
		}
	}
	if len(unique) > maxImagesPerFile {
		return "", models.NewTooManyImagesError(len(unique), maxImagesPerFile)
	}

	rewritten := markdown
	for _, ref := range unique {
		repoPath := strings.TrimPrefix(strings.TrimPrefix(ref, "./"), "/")
		data, err := p.Fetcher.FetchImage(ctx, installationID, owner, repo, repoPath)
		if err != nil {
			p.Logger.Warn("image fetch failed",
				zap.String("path", repoPath), zap.Error(err))
			return "", models.NewInvalidImageError(repoPath)
		}
		if len(data) > maxImageBytes {
			return "", models.NewImageSizeLimitError(len(data), maxImageBytes)
		}
		contentType := contentTypeForPath(repoPath)
		// Every type contentTypeForPath can produce is currently in the
		// allow list; the check only matters if the mapping grows.
		if !allowedImageTypes[contentType] {
			return "", models.NewInvalidImageError(repoPath)
		}

		filename := path.Base(repoPath)
		url, err := p.Objects.PutImage(ctx, authorID, slug, filename, data, contentType)
		if err != nil {
			return "", err
		}
		rewritten = strings.ReplaceAll(rewritten, "("+ref+")", "("+url+")")
	}
	return rewritten, nil
}

func contentTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
