package github

import (
	"context"
	"fmt"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

type createIssueContent struct {
	Owner  string   `json:"owner"`
	Repo   string   `json:"repo"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

var createIssueSchema = generate.ObjectSchema(append(repoField(),
	generate.Field{Name: "title", Schema: generate.String("issue title")},
	generate.Field{Name: "body", Schema: generate.String("issue body")},
	generate.Field{Name: "labels", Schema: generate.Array(generate.String(""), "labels"), Optional: true},
)...)

type CreateIssueAction struct{ action }

func (*CreateIssueAction) Name() string { return "CREATE_ISSUE" }

func (*CreateIssueAction) Similes() []string {
	return []string{"CREATE_GITHUB_ISSUE", "OPEN_ISSUE", "NEW_ISSUE", "GITHUB_ISSUE"}
}

func (*CreateIssueAction) Description() string {
	return "Creates a new issue in the GitHub repository"
}

func (a *CreateIssueAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c createIssueContent
	if _, err := a.extract(ctx, rt, req, state, createIssueTemplate, createIssueSchema, &c); err != nil {
		return nil, err
	}

	issue, err := a.opts.client(rt).CreateIssue(ctx, c.Owner, c.Repo, IssueRequest{Title: c.Title, Body: c.Body, Labels: c.Labels})
	if err != nil {
		return nil, fail(cb, fmt.Sprintf("Error creating issue in repository %s/%s. Please try again.", c.Owner, c.Repo), err)
	}

	_ = rt.Memory().CreateMemory(ctx, &memory.Memory{
		UserID:  rt.AgentID(),
		AgentID: rt.AgentID(),
		RoomID:  req.RoomID,
		Content: memory.Content{
			Text:   fmt.Sprintf("Created issue #%d %q in %s/%s", issue.Number, issue.Title, c.Owner, c.Repo),
			Action: "CREATE_ISSUE",
			Source: "github",
			Metadata: map[string]any{
				"type":   "issue",
				"owner":  c.Owner,
				"repo":   c.Repo,
				"number": issue.Number,
				"url":    issue.HTMLURL,
			},
		},
	})

	return respond(cb, fmt.Sprintf("Created issue #%d successfully! URL: %s", issue.Number, issue.HTMLURL), map[string]any{
		"owner":  c.Owner,
		"repo":   c.Repo,
		"number": issue.Number,
		"url":    issue.HTMLURL,
	}), nil
}
