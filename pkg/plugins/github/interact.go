package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

type prTarget struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	PullRequest int    `json:"pullRequest"`
}

// REACT_TO_PR

type reactToPRContent struct {
	prTarget
	Reaction string `json:"reaction"`
}

var reactToPRSchema = generate.ObjectSchema(prFields(
	generate.Field{Name: "reaction", Schema: generate.Enum("reaction to add", reactions...)},
)...)

type ReactToPRAction struct{ action }

func (*ReactToPRAction) Name() string { return "REACT_TO_PR" }

func (*ReactToPRAction) Similes() []string {
	return []string{"ADD_REACTION_PR", "POST_REACTION_PR"}
}

func (*ReactToPRAction) Description() string {
	return "Adds a reaction to a comment in a pull request in the GitHub repository"
}

func (a *ReactToPRAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c reactToPRContent
	if _, err := a.extract(ctx, rt, req, state, reactToPRTemplate, reactToPRSchema, &c); err != nil {
		return nil, err
	}

	client := a.opts.client(rt)
	errText := fmt.Sprintf("Error adding reaction to pull request #%d. Please try again.", c.PullRequest)
	reaction, err := client.CreateReaction(ctx, c.Owner, c.Repo, ReactOnIssue, int64(c.PullRequest), c.Reaction)
	if err != nil {
		return nil, fail(cb, errText, err)
	}
	pr, err := client.GetPullRequest(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}

	return respond(cb, fmt.Sprintf("Added reaction to pull request #%d successfully! PR: %s", c.PullRequest, pr.HTMLURL), map[string]any{
		"reaction_id": reaction.ID,
		"reaction":    reaction.Content,
		"url":         pr.HTMLURL,
	}), nil
}

// COMMENT_ON_PULL_REQUEST

type commentOnPRContent struct {
	prTarget
	EmojiReaction string `json:"emojiReaction"`
}

var commentOnPRSchema = generate.ObjectSchema(prFields(
	generate.Field{Name: "emojiReaction", Schema: generate.String("optional reaction"), Optional: true},
)...)

type generatedReview struct {
	Comment           string        `json:"comment"`
	LineLevelComments []LineComment `json:"lineLevelComments"`
	ApprovalEvent     string        `json:"approvalEvent"`
}

var generatedReviewSchema = generate.ObjectSchema(
	generate.Field{Name: "comment", Schema: generate.String("overall review comment")},
	generate.Field{Name: "lineLevelComments", Schema: generate.Array(generate.ObjectSchema(
		generate.Field{Name: "path", Schema: generate.String("file path in the diff")},
		generate.Field{Name: "line", Schema: generate.Integer("line number on the new side")},
		generate.Field{Name: "body", Schema: generate.String("comment text")},
	), "line comments"), Optional: true},
	generate.Field{Name: "approvalEvent", Schema: generate.Enum("review event", "APPROVE", "REQUEST_CHANGES", "COMMENT")},
)

type CommentOnPRAction struct{ action }

func (*CommentOnPRAction) Name() string { return "COMMENT_ON_PULL_REQUEST" }

func (*CommentOnPRAction) Similes() []string {
	return []string{
		"COMMENT_ON_PR",
		"REVIEW_PR",
		"REVIEW_PULL_REQUEST",
		"ADD_REVIEW_COMMENT_TO_PR",
		"ADD_REVIEW_COMMENT_TO_PULL_REQUEST",
		"ADD_COMMENT_TO_PR",
		"ADD_COMMENT_TO_PULL_REQUEST",
		"POST_COMMENT_PR",
		"ADD_COMMENT_PR",
	}
}

func (*CommentOnPRAction) Description() string {
	return "Adds a comment and review to an existing pull request in the GitHub repository"
}

func (a *CommentOnPRAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c commentOnPRContent
	state, err := a.extract(ctx, rt, req, state, addCommentToPRTemplate, commentOnPRSchema, &c)
	if err != nil {
		return nil, err
	}

	client := a.opts.client(rt)
	errText := fmt.Sprintf("Error adding comment to pull request #%d. Please try again.", c.PullRequest)

	pr, err := client.GetPullRequest(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}
	diff, err := client.GetPullRequestDiff(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}

	details, err := pullRequestDetails(ctx, rt, client, req.RoomID, c.prTarget, pr, diff)
	if err != nil {
		return nil, fail(cb, errText, err)
	}
	state.Set("specificPullRequest", details)

	var review generatedReview
	prompt := generate.Render(generateCommentTemplate, state)
	if err := generate.Object(ctx, rt.Provider(), rt.Model(), prompt, generatedReviewSchema, &review, nil); err != nil {
		logger.ErrorCF("github", "Invalid comment content", map[string]any{"error": err.Error()})
		return nil, err
	}

	lineComments := ReviewCommentsForDiff(diff, review.LineLevelComments)
	created, err := client.CreateReview(ctx, c.Owner, c.Repo, c.PullRequest, ReviewRequest{
		Body:     review.Comment,
		Event:    review.ApprovalEvent,
		Comments: lineComments,
	})
	if err != nil {
		return nil, fail(cb, errText, err)
	}

	if c.EmojiReaction != "" && isReaction(c.EmojiReaction) {
		if _, err := client.CreateReaction(ctx, c.Owner, c.Repo, ReactOnIssue, int64(c.PullRequest), c.EmojiReaction); err != nil {
			logger.WarnCF("github", "Failed to add reaction to pull request", map[string]any{
				"number": c.PullRequest,
				"error":  err.Error(),
			})
		}
	}

	return respond(cb, fmt.Sprintf("Added comment to pull request #%d successfully! See comment at %s", c.PullRequest, created.HTMLURL), map[string]any{
		"review_id":      created.ID,
		"url":            created.HTMLURL,
		"approval_event": review.ApprovalEvent,
		"line_comments":  len(lineComments),
	}), nil
}

// pullRequestDetails describes the pull request for the review prompt,
// preferring what CREATE_PULL_REQUEST saved in the room.
func pullRequestDetails(ctx context.Context, rt actions.Runtime, client *Client, room string, t prTarget, pr *PullRequest, diff string) (string, error) {
	if saved, ok := findPullRequest(ctx, rt, room, t.Owner, t.Repo, t.PullRequest); ok {
		withDiff := make(map[string]any, len(saved)+1)
		for k, v := range saved {
			withDiff[k] = v
		}
		withDiff["diff"] = diff
		data, err := json.Marshal(withDiff)
		return string(data), err
	}

	reviewComments, err := client.ListReviewComments(ctx, t.Owner, t.Repo, t.PullRequest)
	if err != nil {
		return "", err
	}
	issueComments, err := client.ListIssueComments(ctx, t.Owner, t.Repo, t.PullRequest)
	if err != nil {
		return "", err
	}
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.Name)
	}
	data, err := json.Marshal(map[string]any{
		"type":              prMemoryType,
		"url":               pr.HTMLURL,
		"number":            pr.Number,
		"state":             pr.State,
		"created_at":        pr.CreatedAt,
		"updated_at":        pr.UpdatedAt,
		"comments":          reviewComments,
		"nonReviewComments": issueComments,
		"labels":            labels,
		"body":              pr.Body,
		"diff":              diff,
	})
	return string(data), err
}

func isReaction(s string) bool {
	for _, r := range reactions {
		if r == s {
			return true
		}
	}
	return false
}

// CLOSE_PULL_REQUEST

var prTargetSchema = generate.ObjectSchema(prFields()...)

type ClosePRAction struct{ action }

func (*ClosePRAction) Name() string      { return "CLOSE_PULL_REQUEST" }
func (*ClosePRAction) Similes() []string { return []string{"CLOSE_PR"} }

func (*ClosePRAction) Description() string {
	return "Closes a pull request in the GitHub repository"
}

func (a *ClosePRAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c prTarget
	if _, err := a.extract(ctx, rt, req, state, closePRTemplate, prTargetSchema, &c); err != nil {
		return nil, err
	}

	pr, err := a.opts.client(rt).UpdatePullRequest(ctx, c.Owner, c.Repo, c.PullRequest, PullRequestUpdate{State: "closed"})
	if err != nil {
		return nil, fail(cb, fmt.Sprintf("Error closing pull request #%d. Please try again.", c.PullRequest), err)
	}
	return respond(cb, fmt.Sprintf("Closed pull request #%d successfully!", c.PullRequest), map[string]any{
		"url":   pr.HTMLURL,
		"state": pr.State,
	}), nil
}

// MERGE_PULL_REQUEST

type mergePRContent struct {
	prTarget
	MergeMethod string `json:"mergeMethod"`
}

var mergePRSchema = generate.ObjectSchema(prFields(
	generate.Field{Name: "mergeMethod", Schema: generate.Enum("merge method", "merge", "squash", "rebase"), Optional: true},
)...)

type MergePRAction struct{ action }

func (*MergePRAction) Name() string { return "MERGE_PULL_REQUEST" }

func (*MergePRAction) Similes() []string {
	return []string{"MERGE_PR", "SQUASH_PR", "SQUASH_PULL_REQUEST", "REBASE_PR", "REBASE_PULL_REQUEST"}
}

func (*MergePRAction) Description() string {
	return "Merges a pull request in the GitHub repository"
}

func (a *MergePRAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c mergePRContent
	if _, err := a.extract(ctx, rt, req, state, mergePRTemplate, mergePRSchema, &c); err != nil {
		return nil, err
	}
	if c.MergeMethod == "" {
		c.MergeMethod = "merge"
	}

	res, err := a.opts.client(rt).MergePullRequest(ctx, c.Owner, c.Repo, c.PullRequest, c.MergeMethod)
	if err != nil {
		return nil, fail(cb, fmt.Sprintf("Error merging pull request #%d. Please try again.", c.PullRequest), err)
	}
	return respond(cb, fmt.Sprintf("Merged pull request #%d successfully!", c.PullRequest), map[string]any{
		"sha":          res.SHA,
		"merged":       res.Merged,
		"merge_method": c.MergeMethod,
	}), nil
}

// REPLY_TO_PR_COMMENT

type generatedReply struct {
	Comment       string `json:"comment"`
	EmojiReaction string `json:"emojiReaction"`
}

var generatedReplySchema = generate.ObjectSchema(
	generate.Field{Name: "comment", Schema: generate.String("reply text, empty to skip")},
	generate.Field{Name: "emojiReaction", Schema: generate.String("optional reaction"), Optional: true},
)

type ReplyToPRCommentAction struct{ action }

func (*ReplyToPRCommentAction) Name() string { return "REPLY_TO_PR_COMMENT" }

func (*ReplyToPRCommentAction) Similes() []string {
	return []string{"REPLY_PR_COMMENT", "RESPOND_TO_PR_COMMENT", "ANSWER_PR_COMMENT"}
}

func (*ReplyToPRCommentAction) Description() string {
	return "Replies to a comment in a pull request in the GitHub repository"
}

// Handle answers every review and conversation comment on the pull request.
// A failing reply is reported and the remaining comments are still tried;
// the action fails only when no reply could be posted.
func (a *ReplyToPRCommentAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	var c prTarget
	state, err := a.extract(ctx, rt, req, state, replyToPRCommentTemplate, prTargetSchema, &c)
	if err != nil {
		return nil, err
	}

	client := a.opts.client(rt)
	errText := fmt.Sprintf("Error replying to comments in pull request #%d. Please try again.", c.PullRequest)

	pr, err := client.GetPullRequest(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}
	prJSON, err := json.Marshal(pr)
	if err != nil {
		return nil, fail(cb, errText, fmt.Errorf("encode pull request: %w", err))
	}
	state.Set("specificPullRequest", string(prJSON))

	reviewComments, err := client.ListReviewComments(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}
	issueComments, err := client.ListIssueComments(ctx, c.Owner, c.Repo, c.PullRequest)
	if err != nil {
		return nil, fail(cb, errText, err)
	}

	var (
		replied []string
		lastErr error
	)
	for _, comment := range append(reviewComments, issueComments...) {
		state.Set("commentAuthor", comment.User.Login)
		state.Set("commentBody", comment.Body)

		var reply generatedReply
		if err := generate.Object(ctx, rt.Provider(), rt.Model(), generate.Render(generateReplyTemplate, state), generatedReplySchema, &reply, nil); err != nil {
			logger.ErrorCF("github", "Invalid reply content", map[string]any{"error": err.Error()})
			return nil, err
		}
		if strings.TrimSpace(reply.Comment) == "" {
			logger.DebugCF("github", "No reply needed, skipping", map[string]any{"comment_id": comment.ID})
			continue
		}

		if err := a.reply(ctx, client, c, comment, reply); err != nil {
			lastErr = fail(cb, fmt.Sprintf("Error replying to comment #%d in pull request #%d. Please try again.", comment.ID, c.PullRequest), err)
			continue
		}
		text := fmt.Sprintf("Replied to comment #%d in pull request #%d successfully with emoji reaction: %s!", comment.ID, c.PullRequest, reply.EmojiReaction)
		respond(cb, text, nil)
		replied = append(replied, text)
	}

	if len(replied) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(replied) == 0 {
		return respond(nil, fmt.Sprintf("No comments needed a reply in pull request #%d.", c.PullRequest), nil), nil
	}
	return &actions.Result{
		Text: strings.Join(replied, "\n"),
		Data: map[string]any{"replies": len(replied)},
	}, nil
}

func (a *ReplyToPRCommentAction) reply(ctx context.Context, client *Client, t prTarget, comment Comment, reply generatedReply) error {
	target := ReactOnIssueComment
	if comment.Review {
		target = ReactOnReviewComment
		if _, err := client.ReplyToReviewComment(ctx, t.Owner, t.Repo, t.PullRequest, comment.ID, reply.Comment); err != nil {
			return err
		}
	} else {
		body := fmt.Sprintf("> %s\n\n%s", firstLine(comment.Body), reply.Comment)
		if _, err := client.CreateIssueComment(ctx, t.Owner, t.Repo, t.PullRequest, body); err != nil {
			return err
		}
	}
	if isReaction(reply.EmojiReaction) {
		if _, err := client.CreateReaction(ctx, t.Owner, t.Repo, target, comment.ID, reply.EmojiReaction); err != nil {
			logger.WarnCF("github", "Failed to react to comment", map[string]any{
				"comment_id": comment.ID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
