package models

import (
	"fmt"
	"net/http"
)

// AppError is the base for all domain errors. Code is stable and machine
// readable, Status is the HTTP-equivalent status a transport layer should
// answer with.
type AppError struct {
	Code    string
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewArticleNotFoundError(articleID string) *AppError {
	return &AppError{
		Code:    "ARTICLE_NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("article not found: %s", articleID),
	}
}

func NewAuthorNotFoundError(identifier string) *AppError {
	return &AppError{
		Code:    "AUTHOR_NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("author not found: %s", identifier),
	}
}

func NewRepoLinkNotFoundError(fullName string) *AppError {
	return &AppError{
		Code:    "REPOSITORY_NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("no linked repository for %s", fullName),
	}
}

func NewRepoAlreadyLinkedError(fullName string) *AppError {
	return &AppError{
		Code:    "REPOSITORY_ALREADY_LINKED",
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("repository %s is already linked to another author", fullName),
	}
}

func NewInvalidStatusTransitionError(from, to ArticleStatus) *AppError {
	return &AppError{
		Code:    "INVALID_STATUS_TRANSITION",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewDuplicateSlugError(slug, authorID string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_SLUG",
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("article with slug %q already exists for author %s", slug, authorID),
	}
}

func NewInvalidFrontmatterError(reason string) *AppError {
	return &AppError{
		Code:    "INVALID_FRONTMATTER",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("invalid frontmatter: %s", reason),
	}
}

// NewValidationError reports a frontmatter schema violation. The message
// names the offending field and is surfaced verbatim to the author.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

func NewInvalidImageError(reason string) *AppError {
	return &AppError{
		Code:    "INVALID_IMAGE",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("invalid image: %s", reason),
	}
}

func NewImageSizeLimitError(size, maxSize int) *AppError {
	return &AppError{
		Code:    "IMAGE_SIZE_LIMIT_EXCEEDED",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("image size %d bytes exceeds maximum %d bytes", size, maxSize),
	}
}

func NewTooManyImagesError(count, maxCount int) *AppError {
	return &AppError{
		Code:    "TOO_MANY_IMAGES",
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("article has %d images, maximum is %d", count, maxCount),
	}
}

func NewInvalidSignatureError() *AppError {
	return &AppError{
		Code:    "INVALID_SIGNATURE",
		Status:  http.StatusUnauthorized,
		Message: "webhook signature verification failed",
	}
}

func NewForbiddenArticleAccessError(articleID string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN_ARTICLE_ACCESS",
		Status:  http.StatusForbidden,
		Message: fmt.Sprintf("article %s belongs to another author", articleID),
	}
}
