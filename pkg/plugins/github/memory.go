package github

import (
	"context"
	"fmt"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

const prMemoryType = "pull_request"

// savePullRequest records a created pull request in req's room so later
// review actions can find it without refetching.
func savePullRequest(ctx context.Context, rt actions.Runtime, req *memory.Memory, owner, repo string, pr *PullRequest, files []string) {
	m := &memory.Memory{
		UserID:  rt.AgentID(),
		AgentID: rt.AgentID(),
		RoomID:  req.RoomID,
		Content: memory.Content{
			Text:   fmt.Sprintf("Created pull request #%d %q in %s/%s: %s", pr.Number, pr.Title, owner, repo, pr.HTMLURL),
			Action: "CREATE_PULL_REQUEST",
			Source: "github",
			Metadata: map[string]any{
				"type":   prMemoryType,
				"owner":  owner,
				"repo":   repo,
				"number": pr.Number,
				"url":    pr.HTMLURL,
				"title":  pr.Title,
				"body":   pr.Body,
				"branch": pr.Head.Ref,
				"base":   pr.Base.Ref,
				"files":  files,
				"state":  pr.State,
			},
		},
	}
	if err := rt.Memory().CreateMemory(ctx, m); err != nil {
		logger.WarnCF("github", "Failed to save pull request to memory", map[string]any{
			"number": pr.Number,
			"error":  err.Error(),
		})
	}
}

// findPullRequest returns the metadata of a pull request saved in room.
func findPullRequest(ctx context.Context, rt actions.Runtime, room, owner, repo string, number int) (map[string]any, bool) {
	if room == "" || rt.Memory() == nil {
		return nil, false
	}
	mems, err := rt.Memory().GetMemories(ctx, room, 0)
	if err != nil {
		return nil, false
	}
	for i := len(mems) - 1; i >= 0; i-- {
		md := mems[i].Content.Metadata
		if md["type"] != prMemoryType || md["owner"] != owner || md["repo"] != repo {
			continue
		}
		if toInt(md["number"]) == number {
			return md, true
		}
	}
	return nil, false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return -1
}
