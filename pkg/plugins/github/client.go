// RealitySpiral - agent plugins for GitHub, Coinbase and e-mail
// License: MIT
//
// Copyright (c) 2026 RealitySpiral contributors

// Package github provides actions for the GitHub issue and pull request
// lifecycle over the REST v3 API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
)

const (
	DefaultBaseURL = "https://api.github.com/"
	acceptDiff     = "application/vnd.github.v3.diff"
)

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string

	err error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the go-github error the response was decoded into.
func (e *APIError) Unwrap() error { return e.err }

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// apiError converts the error types go-github returns for failed responses
// into an APIError.
func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		errResp *gh.ErrorResponse
		rate    *gh.RateLimitError
		abuse   *gh.AbuseRateLimitError
		out     *APIError
	)
	switch {
	case errors.As(err, &errResp) && errResp.Response != nil:
		out = &APIError{
			StatusCode:       errResp.Response.StatusCode,
			Message:          errResp.Message,
			DocumentationURL: errResp.DocumentationURL,
		}
	case errors.As(err, &rate) && rate.Response != nil:
		out = &APIError{StatusCode: rate.Response.StatusCode, Message: rate.Message}
	case errors.As(err, &abuse) && abuse.Response != nil:
		out = &APIError{StatusCode: abuse.Response.StatusCode, Message: abuse.Message}
	default:
		return fmt.Errorf("github: %s: %w", op, err)
	}
	out.err = err
	logger.DebugCF("github", "API request failed", map[string]any{
		"op":     op,
		"status": out.StatusCode,
	})
	return out
}

// Client wraps a go-github client and maps its results onto the small set of
// types the actions work with.
type Client struct {
	gh *gh.Client
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL string
	limiter *ratelimit.Limiter
	base    http.RoundTripper
	timeout time.Duration
}

func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithLimiter throttles every request through l under the "github" key.
func WithLimiter(l *ratelimit.Limiter) ClientOption {
	return func(o *clientOptions) { o.limiter = l }
}

func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.base = rt }
}

func NewClient(token string, opts ...ClientOption) *Client {
	o := clientOptions{baseURL: DefaultBaseURL, timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper = o.base
	if o.limiter != nil {
		transport = &ratelimit.Transport{Base: transport, Limiter: o.limiter, Key: "github"}
	}
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	client := gh.NewClient(&http.Client{Transport: transport, Timeout: o.timeout})
	if u, err := url.Parse(strings.TrimRight(o.baseURL, "/") + "/"); err == nil {
		client.BaseURL = u
	} else {
		logger.WarnCF("github", "Ignoring invalid base URL", map[string]any{
			"base_url": o.baseURL,
			"error":    err.Error(),
		})
	}
	return &Client{gh: client}
}

type User struct {
	Login string `json:"login"`
}

type Label struct {
	Name string `json:"name"`
}

func labels(in []*gh.Label) []Label {
	if len(in) == 0 {
		return nil
	}
	out := make([]Label, 0, len(in))
	for _, l := range in {
		out = append(out, Label{Name: l.GetName()})
	}
	return out
}

type Issue struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	State   string  `json:"state"`
	HTMLURL string  `json:"html_url"`
	Labels  []Label `json:"labels"`
}

type IssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

func (c *Client) CreateIssue(ctx context.Context, owner, repo string, in IssueRequest) (*Issue, error) {
	req := &gh.IssueRequest{Title: gh.String(in.Title)}
	if in.Body != "" {
		req.Body = gh.String(in.Body)
	}
	if len(in.Labels) > 0 {
		req.Labels = &in.Labels
	}
	issue, _, err := c.gh.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, apiError("create issue", err)
	}
	return &Issue{
		Number:  issue.GetNumber(),
		Title:   issue.GetTitle(),
		Body:    issue.GetBody(),
		State:   issue.GetState(),
		HTMLURL: issue.GetHTMLURL(),
		Labels:  labels(issue.Labels),
	}, nil
}

type Branch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type PullRequest struct {
	Number            int       `json:"number"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	State             string    `json:"state"`
	HTMLURL           string    `json:"html_url"`
	DiffURL           string    `json:"diff_url"`
	CommentsURL       string    `json:"comments_url"`
	ReviewCommentsURL string    `json:"review_comments_url"`
	Merged            bool      `json:"merged"`
	Head              Branch    `json:"head"`
	Base              Branch    `json:"base"`
	Labels            []Label   `json:"labels"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func pullRequest(pr *gh.PullRequest) *PullRequest {
	return &PullRequest{
		Number:            pr.GetNumber(),
		Title:             pr.GetTitle(),
		Body:              pr.GetBody(),
		State:             pr.GetState(),
		HTMLURL:           pr.GetHTMLURL(),
		DiffURL:           pr.GetDiffURL(),
		CommentsURL:       pr.GetCommentsURL(),
		ReviewCommentsURL: pr.GetReviewCommentsURL(),
		Merged:            pr.GetMerged(),
		Head:              Branch{Ref: pr.GetHead().GetRef(), SHA: pr.GetHead().GetSHA()},
		Base:              Branch{Ref: pr.GetBase().GetRef(), SHA: pr.GetBase().GetSHA()},
		Labels:            labels(pr.Labels),
		CreatedAt:         pr.GetCreatedAt().Time,
		UpdatedAt:         pr.GetUpdatedAt().Time,
	}
}

func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, apiError("get pull request", err)
	}
	return pullRequest(pr), nil
}

// GetPullRequestDiff returns the unified diff of a pull request.
func (c *Client) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", apiError("get diff", err)
	}
	return diff, nil
}

type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, in NewPullRequest) (*PullRequest, error) {
	req := &gh.NewPullRequest{
		Title: gh.String(in.Title),
		Head:  gh.String(in.Head),
		Base:  gh.String(in.Base),
	}
	if in.Body != "" {
		req.Body = gh.String(in.Body)
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, apiError("create pull request", err)
	}
	return pullRequest(pr), nil
}

// PullRequestUpdate holds the fields to change; empty fields are left alone.
type PullRequestUpdate struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	State string `json:"state,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return gh.String(s)
}

func (c *Client) UpdatePullRequest(ctx context.Context, owner, repo string, number int, in PullRequestUpdate) (*PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, &gh.PullRequest{
		Title: optional(in.Title),
		Body:  optional(in.Body),
		State: optional(in.State),
	})
	if err != nil {
		return nil, apiError("update pull request", err)
	}
	return pullRequest(pr), nil
}

type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// MergePullRequest merges with method merge, squash or rebase.
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, method string) (*MergeResult, error) {
	res, _, err := c.gh.PullRequests.Merge(ctx, owner, repo, number, "", &gh.PullRequestOptions{MergeMethod: method})
	if err != nil {
		return nil, apiError("merge pull request", err)
	}
	return &MergeResult{SHA: res.GetSHA(), Merged: res.GetMerged(), Message: res.GetMessage()}, nil
}

type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	Path      string    `json:"path,omitempty"`
	Line      int       `json:"line,omitempty"`
	User      User      `json:"user"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	// Review is set for pull request review comments.
	Review bool `json:"-"`
}

func reviewComment(c *gh.PullRequestComment) Comment {
	return Comment{
		ID:        c.GetID(),
		Body:      c.GetBody(),
		Path:      c.GetPath(),
		Line:      c.GetLine(),
		User:      User{Login: c.GetUser().GetLogin()},
		HTMLURL:   c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Time,
		Review:    true,
	}
}

func issueComment(c *gh.IssueComment) Comment {
	return Comment{
		ID:        c.GetID(),
		Body:      c.GetBody(),
		User:      User{Login: c.GetUser().GetLogin()},
		HTMLURL:   c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

const perPage = 100

func (c *Client) ListReviewComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	list, _, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, &gh.PullRequestListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, apiError("list review comments", err)
	}
	out := make([]Comment, 0, len(list))
	for _, c := range list {
		out = append(out, reviewComment(c))
	}
	return out, nil
}

func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	list, _, err := c.gh.Issues.ListComments(ctx, owner, repo, number, &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, apiError("list issue comments", err)
	}
	out := make([]Comment, 0, len(list))
	for _, c := range list {
		out = append(out, issueComment(c))
	}
	return out, nil
}

func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	created, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.String(body)})
	if err != nil {
		return nil, apiError("create issue comment", err)
	}
	out := issueComment(created)
	return &out, nil
}

func (c *Client) ReplyToReviewComment(ctx context.Context, owner, repo string, number int, commentID int64, body string) (*Comment, error) {
	created, _, err := c.gh.PullRequests.CreateCommentInReplyTo(ctx, owner, repo, number, body, commentID)
	if err != nil {
		return nil, apiError("reply to review comment", err)
	}
	out := reviewComment(created)
	return &out, nil
}

// ReviewComment is a line comment attached to a review.
type ReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Side string `json:"side,omitempty"`
	Body string `json:"body"`
}

type ReviewRequest struct {
	Body     string          `json:"body,omitempty"`
	Event    string          `json:"event"`
	Comments []ReviewComment `json:"comments,omitempty"`
}

type Review struct {
	ID      int64  `json:"id"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

func (c *Client) CreateReview(ctx context.Context, owner, repo string, number int, in ReviewRequest) (*Review, error) {
	req := &gh.PullRequestReviewRequest{
		Body:  optional(in.Body),
		Event: gh.String(in.Event),
	}
	for _, rc := range in.Comments {
		req.Comments = append(req.Comments, &gh.DraftReviewComment{
			Path: gh.String(rc.Path),
			Line: gh.Int(rc.Line),
			Side: optional(rc.Side),
			Body: gh.String(rc.Body),
		})
	}
	review, _, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, number, req)
	if err != nil {
		return nil, apiError("create review", err)
	}
	return &Review{ID: review.GetID(), State: review.GetState(), HTMLURL: review.GetHTMLURL()}, nil
}

type Reaction struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// ReactionTarget selects what a reaction is attached to.
type ReactionTarget int

const (
	// ReactOnIssue reacts on an issue or pull request by number.
	ReactOnIssue ReactionTarget = iota
	ReactOnReviewComment
	ReactOnIssueComment
)

func (c *Client) CreateReaction(ctx context.Context, owner, repo string, target ReactionTarget, id int64, content string) (*Reaction, error) {
	var (
		r   *gh.Reaction
		err error
	)
	switch target {
	case ReactOnReviewComment:
		r, _, err = c.gh.Reactions.CreatePullRequestCommentReaction(ctx, owner, repo, id, content)
	case ReactOnIssueComment:
		r, _, err = c.gh.Reactions.CreateIssueCommentReaction(ctx, owner, repo, id, content)
	default:
		r, _, err = c.gh.Reactions.CreateIssueReaction(ctx, owner, repo, int(id), content)
	}
	if err != nil {
		return nil, apiError("create reaction", err)
	}
	return &Reaction{ID: r.GetID(), Content: r.GetContent()}, nil
}

type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

func ref(r *gh.Reference) *Ref {
	out := &Ref{Ref: r.GetRef()}
	out.Object.SHA = r.GetObject().GetSHA()
	return out
}

// GetRef returns the head commit of branch.
func (c *Client) GetRef(ctx context.Context, owner, repo, branch string) (*Ref, error) {
	r, _, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return nil, apiError("get ref", err)
	}
	return ref(r), nil
}

func (c *Client) CreateRef(ctx context.Context, owner, repo, branch, sha string) (*Ref, error) {
	r, _, err := c.gh.Git.CreateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	})
	if err != nil {
		return nil, apiError("create ref", err)
	}
	return ref(r), nil
}

// GetFileSHA returns the blob sha of path on ref, or "" when the file does
// not exist.
func (c *Client) GetFileSHA(ctx context.Context, owner, repo, path, ref string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		err = apiError("get contents", err)
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if file == nil {
		return "", fmt.Errorf("github: %s is a directory", path)
	}
	return file.GetSHA(), nil
}

type FileCommit struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// PutFile creates or replaces path on branch in a single commit. sha is the
// current blob sha when replacing.
func (c *Client) PutFile(ctx context.Context, owner, repo, path, branch, message, content, sha string) (*FileCommit, error) {
	path = strings.TrimPrefix(path, "/")
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: []byte(content),
		Branch:  gh.String(branch),
	}
	var (
		res *gh.RepositoryContentResponse
		err error
	)
	if sha == "" {
		res, _, err = c.gh.Repositories.CreateFile(ctx, owner, repo, path, opts)
	} else {
		opts.SHA = gh.String(sha)
		res, _, err = c.gh.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	}
	if err != nil {
		return nil, apiError("put file", err)
	}
	out := &FileCommit{}
	out.Content.Path = res.GetContent().GetPath()
	out.Content.SHA = res.GetContent().GetSHA()
	out.Commit.SHA = res.Commit.GetSHA()
	return out, nil
}
