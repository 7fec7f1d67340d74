package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

type fileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type createPullRequestContent struct {
	Owner       string       `json:"owner"`
	Repo        string       `json:"repo"`
	Branch      string       `json:"branch"`
	Base        string       `json:"base"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Files       []fileChange `json:"files"`
}

var createPullRequestSchema = generate.ObjectSchema(append(repoField(),
	generate.Field{Name: "branch", Schema: generate.String("branch to push the changes to")},
	generate.Field{Name: "base", Schema: generate.String("branch to merge into"), Optional: true},
	generate.Field{Name: "title", Schema: generate.String("pull request title")},
	generate.Field{Name: "description", Schema: generate.String("pull request description")},
	generate.Field{Name: "files", Schema: generate.Array(generate.ObjectSchema(
		generate.Field{Name: "path", Schema: generate.String("file path")},
		generate.Field{Name: "content", Schema: generate.String("full file content")},
	), "files to write")},
)...)

type CreatePullRequestAction struct{ action }

func (*CreatePullRequestAction) Name() string { return "CREATE_PULL_REQUEST" }

func (*CreatePullRequestAction) Similes() []string {
	return []string{
		"CREATE_PR",
		"GENERATE_PR",
		"PULL_REQUEST",
		"GITHUB_CREATE_PULL_REQUEST",
		"GITHUB_PR",
		"GITHUB_GENERATE_PR",
		"GITHUB_PULL_REQUEST",
	}
}

func (*CreatePullRequestAction) Description() string { return "Create a pull request" }

func (a *CreatePullRequestAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c createPullRequestContent
	if _, err := a.extract(ctx, rt, req, state, createPullRequestTemplate, createPullRequestSchema, &c); err != nil {
		return nil, err
	}
	if c.Base == "" {
		c.Base = "main"
	}

	logger.InfoCF("github", "Creating a pull request", map[string]any{
		"repo":   c.Owner + "/" + c.Repo,
		"branch": c.Branch,
		"base":   c.Base,
		"files":  len(c.Files),
	})

	pr, paths, err := a.open(ctx, a.opts.client(rt), c)
	if err != nil {
		return nil, fail(cb, fmt.Sprintf("Error creating pull request on %s/%s branch %s. Please try again.", c.Owner, c.Repo, c.Branch), err)
	}
	savePullRequest(ctx, rt, req, c.Owner, c.Repo, pr, paths)

	return respond(cb, fmt.Sprintf("Pull request created successfully! URL: %s", pr.HTMLURL), map[string]any{
		"owner":  c.Owner,
		"repo":   c.Repo,
		"number": pr.Number,
		"url":    pr.HTMLURL,
		"branch": c.Branch,
		"base":   c.Base,
		"files":  paths,
	}), nil
}

// open branches from base, commits every file through the contents API and
// opens the pull request.
func (a *CreatePullRequestAction) open(ctx context.Context, client *Client, c createPullRequestContent) (*PullRequest, []string, error) {
	base, err := client.GetRef(ctx, c.Owner, c.Repo, c.Base)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve base %s: %w", c.Base, err)
	}
	if _, err := client.CreateRef(ctx, c.Owner, c.Repo, c.Branch, base.Object.SHA); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
			return nil, nil, fmt.Errorf("create branch %s: %w", c.Branch, err)
		}
		// branch already exists; commit on top of it
	}

	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		sha, err := client.GetFileSHA(ctx, c.Owner, c.Repo, f.Path, c.Branch)
		if err != nil {
			return nil, nil, fmt.Errorf("look up %s: %w", f.Path, err)
		}
		if _, err := client.PutFile(ctx, c.Owner, c.Repo, f.Path, c.Branch, c.Title, f.Content, sha); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", f.Path, err)
		}
		paths = append(paths, f.Path)
	}

	pr, err := client.CreatePullRequest(ctx, c.Owner, c.Repo, NewPullRequest{
		Title: c.Title,
		Body:  c.Description,
		Head:  c.Branch,
		Base:  c.Base,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open pull request: %w", err)
	}
	return pr, paths, nil
}
