// Package source fetches article Markdown from outside the poster, currently
// from files in GitHub repositories.
package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"auto_note_article_publisher/executor"
)

const DefaultGitHubAPI = "https://api.github.com"

// ErrFetch is matched by every error Fetch returns after the request was sent.
var ErrFetch = errors.New("github fetch failed")

// FetchError carries the HTTP status of a failed contents call.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) Unwrap() error { return e.Err }

// GitHub reads files through the repository contents API.
type GitHub struct {
	APIBase string
	// Token is optional; public repositories need none.
	Token string

	exec   *executor.Executor
	logger *zap.Logger
}

func NewGitHub(exec *executor.Executor, logger *zap.Logger) *GitHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exec == nil {
		exec = executor.New(executor.Config{BaseWait: executor.DefaultBaseWait}, nil, logger)
	}
	return &GitHub{APIBase: DefaultGitHubAPI, exec: exec, logger: logger}
}

// ContentsURL maps a repository URL such as https://github.com/owner/repo
// and a file path to its contents API endpoint.
func (g *GitHub) ContentsURL(repoURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(repoURL))
	if err != nil {
		return "", fmt.Errorf("parse repo url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("repo url %q is not of the form https://github.com/owner/repo", repoURL)
	}
	owner, repo := parts[0], strings.TrimSuffix(parts[1], ".git")

	path = strings.Trim(path, "/")
	if path == "" {
		return "", errors.New("file path is required")
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	base := strings.TrimRight(g.APIBase, "/")
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", base, url.PathEscape(owner), url.PathEscape(repo), strings.Join(segs, "/")), nil
}

type contentsResp struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Fetch downloads one file and returns its decoded bytes.
func (g *GitHub) Fetch(ctx context.Context, repoURL, path string) ([]byte, error) {
	target, err := g.ContentsURL(repoURL, path)
	if err != nil {
		return nil, err
	}
	req := executor.Request{
		Method: http.MethodGet,
		URL:    target,
		Header: http.Header{"Accept": []string{"application/vnd.github+json"}},
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	g.logger.Info("fetching github content", zap.String("url", target))
	resp, err := g.exec.Execute(ctx, req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: target, Status: resp.StatusCode}
	}

	var data contentsResp
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if data.Type != "" && data.Type != "file" {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: fmt.Errorf("%s is a %s, not a file", path, data.Type)}
	}
	if data.Encoding != "" && data.Encoding != "base64" {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: fmt.Errorf("unsupported encoding %q", data.Encoding)}
	}
	// The API wraps base64 at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(data.Content))
	if err != nil {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: fmt.Errorf("decode content: %w", err)}
	}
	return raw, nil
}
