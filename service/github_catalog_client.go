package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"no3d-library-api/models"
)

const (
	githubAcceptJSON = "application/vnd.github+json"
	githubAcceptRaw  = "application/vnd.github.raw"
	githubAPIVersion = "2022-11-28"
)

// GitHubCatalogConfig identifies the repository branch holding the catalog
type GitHubCatalogConfig struct {
	BaseURL string
	Token   string
	Owner   string
	Repo    string
	Branch  string
	Timeout time.Duration
}

// GitHubCatalogClient reads and writes the catalog through the GitHub contents API
// Implements CatalogClientInterface
type GitHubCatalogClient struct {
	cfg        GitHubCatalogConfig
	httpClient *http.Client
}

// NewGitHubCatalogClient creates a new GitHubCatalogClient
func NewGitHubCatalogClient(cfg GitHubCatalogConfig) *GitHubCatalogClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GitHubCatalogClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ensure GitHubCatalogClient implements CatalogClientInterface
var _ CatalogClientInterface = (*GitHubCatalogClient)(nil)

// githubContent is one element of a contents API response
type githubContent struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type githubWriteRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (c *GitHubCatalogClient) contentsURL(path string, withRef bool) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), strings.Join(segments, "/"))
	if withRef {
		u += "?ref=" + url.QueryEscape(c.cfg.Branch)
	}
	return u
}

// do executes a request and returns the body for 2xx responses.
// 404 maps to ErrNotFound; other failures wrap ErrUpstreamUnavailable.
func (c *GitHubCatalogClient) do(ctx context.Context, method, u, accept string, body []byte) ([]byte, int, error) {
	if c.cfg.Token == "" {
		return nil, 0, fmt.Errorf("github catalog: %w", ErrMissingCredentials)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", "no3d-library-api")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github %s %s: %w: %v", method, u, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read github response: %w: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, fmt.Errorf("github %s: %w", u, ErrNotFound)
	default:
		return nil, resp.StatusCode, fmt.Errorf("github %s %s returned status %d: %w", method, u, resp.StatusCode, ErrUpstreamUnavailable)
	}
}

// ListDirectory lists a repository directory on the configured branch
func (c *GitHubCatalogClient) ListDirectory(ctx context.Context, path string) ([]models.CatalogEntry, error) {
	data, _, err := c.do(ctx, http.MethodGet, c.contentsURL(path, true), githubAcceptJSON, nil)
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("github path %q is not a directory", path)
	}

	var items []githubContent
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode github listing for %q: %w", path, err)
	}

	entries := make([]models.CatalogEntry, 0, len(items))
	for _, item := range items {
		var entryType models.EntryType
		switch item.Type {
		case "dir":
			entryType = models.EntryTypeDir
		case "file":
			entryType = models.EntryTypeFile
		default:
			// symlinks and submodules are not part of the catalog
			continue
		}
		entries = append(entries, models.CatalogEntry{Name: item.Name, Path: item.Path, Type: entryType})
	}
	return entries, nil
}

// ReadFile fetches a file's content and blob sha
func (c *GitHubCatalogClient) ReadFile(ctx context.Context, path string) (*models.CatalogFile, error) {
	data, _, err := c.do(ctx, http.MethodGet, c.contentsURL(path, true), githubAcceptJSON, nil)
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, fmt.Errorf("github path %q is a directory", path)
	}

	var item githubContent
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode github file %q: %w", path, err)
	}

	file := &models.CatalogFile{Path: path, Revision: item.SHA}

	// Files above 1MB come back without inline content
	if item.Encoding == "base64" && (item.Content != "" || item.Size == 0) {
		content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(item.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to decode github content for %q: %w", path, err)
		}
		file.Content = content
		return file, nil
	}

	raw, _, err := c.do(ctx, http.MethodGet, c.contentsURL(path, true), githubAcceptRaw, nil)
	if err != nil {
		return nil, err
	}
	file.Content = raw
	return file, nil
}

// WriteFile commits content to path on the configured branch
func (c *GitHubCatalogClient) WriteFile(ctx context.Context, path string, content []byte, expectedRevision, message string) error {
	body, err := json.Marshal(githubWriteRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.cfg.Branch,
		SHA:     expectedRevision,
	})
	if err != nil {
		return fmt.Errorf("failed to encode github write: %w", err)
	}

	_, status, err := c.do(ctx, http.MethodPut, c.contentsURL(path, false), githubAcceptJSON, body)
	if err != nil {
		// 409 is a sha mismatch, 422 a missing sha for an existing file
		if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
			return fmt.Errorf("github write %q: %w", path, ErrConflict)
		}
		return err
	}
	return nil
}
