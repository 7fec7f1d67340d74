package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/ratelimit"
)

// Options configures the client every GitHub action builds per call.
type Options struct {
	// BaseURL overrides DefaultBaseURL and the GITHUB_BASE_URL setting.
	BaseURL   string
	Limiter   *ratelimit.Limiter
	Transport http.RoundTripper
}

func (o Options) client(rt actions.Runtime) *Client {
	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = rt.GetSetting("GITHUB_BASE_URL")
	}
	return NewClient(rt.GetSetting("GITHUB_API_TOKEN"),
		WithBaseURL(baseURL),
		WithLimiter(o.Limiter),
		WithTransport(o.Transport),
	)
}

// Plugins returns the GitHub plugins in registration order.
func Plugins(opts Options) []actions.Plugin {
	return []actions.Plugin{
		{
			Name:        "githubCreateIssue",
			Description: "Integration with GitHub for creating issues",
			Actions:     []actions.Action{&CreateIssueAction{action{opts}}},
		},
		{
			Name:        "githubCreatePullRequest",
			Description: "Integration with GitHub for creating a pull request",
			Actions:     []actions.Action{&CreatePullRequestAction{action{opts}}},
		},
		{
			Name:        "githubInteractWithPR",
			Description: "Integration with GitHub for adding comments or reactions or merging, or closing pull requests",
			Actions: []actions.Action{
				&ReactToPRAction{action{opts}},
				&CommentOnPRAction{action{opts}},
				&ClosePRAction{action{opts}},
				&MergePRAction{action{opts}},
				&ReplyToPRCommentAction{action{opts}},
			},
		},
	}
}

// action holds what every GitHub action shares.
type action struct {
	opts Options
}

func (action) Validate(_ context.Context, rt actions.Runtime) bool {
	return rt.GetSetting("GITHUB_API_TOKEN") != ""
}

// extract prepares state for req, renders tmpl and decodes the model's
// structured answer into out.
func (action) extract(
	ctx context.Context,
	rt actions.Runtime,
	req *memory.Memory,
	state *actions.State,
	tmpl string,
	schema *jsonschema.Schema,
	out any,
) (*actions.State, error) {
	state, err := actions.PrepareState(ctx, rt, req, state)
	if err != nil {
		return nil, err
	}
	if err := generate.Object(ctx, rt.Provider(), rt.Model(), generate.Render(tmpl, state), schema, out, nil); err != nil {
		logger.ErrorCF("github", "Invalid content", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}
	return state, nil
}

// respond reports text through cb and wraps it in a Result.
func respond(cb actions.Callback, text string, data map[string]any) *actions.Result {
	logger.InfoCF("github", text, nil)
	actions.Emit(cb, actions.Content{Text: text, Attachments: []actions.Attachment{}})
	return &actions.Result{Text: text, Data: data}
}

// fail reports text through cb and returns err annotated with it.
func fail(cb actions.Callback, text string, err error) error {
	logger.ErrorCF("github", text, map[string]any{
		"error": err.Error(),
	})
	actions.Emit(cb, actions.Content{Text: text})
	return fmt.Errorf("%s: %w", text, err)
}

func repoField() []generate.Field {
	return []generate.Field{
		{Name: "owner", Schema: generate.String("repository owner")},
		{Name: "repo", Schema: generate.String("repository name")},
	}
}

func prFields(extra ...generate.Field) []generate.Field {
	fields := append(repoField(), generate.Field{Name: "pullRequest", Schema: generate.Integer("pull request number")})
	return append(fields, extra...)
}

var reactions = []string{"+1", "-1", "laugh", "confused", "heart", "hooray", "rocket", "eyes"}
