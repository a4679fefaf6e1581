package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitpress/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// File is one fetched repository file. Sha identifies the revision and is
// used purely for change detection.
type File struct {
	Content string
	Sha     string
}

// ContentFetcher reads files from the Git host on behalf of an installation.
type ContentFetcher interface {
	FetchFile(ctx context.Context, installationID, owner, repo, path string) (File, error)
	FetchImage(ctx context.Context, installationID, owner, repo, path string) ([]byte, error)
}

// Client talks to the GitHub contents API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

type contentsResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Sha     string `json:"sha"`
}

func (c *Client) getContents(ctx context.Context, owner, repo, path string) (*contentsResponse, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.Config.GitHubBaseURL, owner, repo, escapePath(path), url.QueryEscape(c.Config.DefaultBranch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.Config.GitHubToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github contents %s/%s/%s: bad status %s", owner, repo, path, resp.Status)
	}

	var contents contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return nil, err
	}
	if contents.Type != "file" {
		return nil, fmt.Errorf("github contents %s/%s/%s: not a file", owner, repo, path)
	}
	return &contents, nil
}

// FetchFile returns the decoded file content plus its content sha.
// The installation id selects the GitHub App installation; the prototype
// token in config covers all installations of the app.
func (c *Client) FetchFile(ctx context.Context, installationID, owner, repo, path string) (File, error) {
	log := c.Logger.With(zap.String("repo", owner+"/"+repo), zap.String("path", path))
	log.Debug("Fetching file from GitHub", zap.String("installation_id", installationID))

	contents, err := c.getContents(ctx, owner, repo, path)
	if err != nil {
		return File{}, err
	}
	data, err := decodeContent(contents.Content)
	if err != nil {
		return File{}, err
	}
	return File{Content: string(data), Sha: contents.Sha}, nil
}

// FetchImage returns the raw bytes of a binary file.
func (c *Client) FetchImage(ctx context.Context, installationID, owner, repo, path string) ([]byte, error) {
	contents, err := c.getContents(ctx, owner, repo, path)
	if err != nil {
		return nil, err
	}
	return decodeContent(contents.Content)
}

// decodeContent handles the newline-chunked base64 the contents API returns.
func decodeContent(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\n", ""))
}

// escapePath percent-encodes each path segment while keeping the slashes.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
