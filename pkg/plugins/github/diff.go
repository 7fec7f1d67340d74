package github

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

// diffLines maps each file in a unified diff to the new-side line numbers
// that appear in its hunks. Only those lines accept review comments.
// Deleted files have no new side and are left out.
func diffLines(diff string) (map[string]map[int]bool, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return nil, err
	}
	files := make(map[string]map[int]bool, len(parsed))
	for _, f := range parsed {
		if f.IsDelete || f.NewName == "" {
			continue
		}
		lines := make(map[int]bool)
		for _, frag := range f.TextFragments {
			n := int(frag.NewPosition)
			for _, l := range frag.Lines {
				if l.Op == gitdiff.OpDelete {
					continue
				}
				lines[n] = true
				n++
			}
		}
		if len(lines) > 0 {
			files[f.NewName] = lines
		}
	}
	return files, nil
}

// LineComment is a model-proposed comment on one line of a pull request.
type LineComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
}

// ReviewCommentsForDiff keeps the comments that land on a line present in
// diff and converts them to review comments on the new side.
func ReviewCommentsForDiff(diff string, comments []LineComment) []ReviewComment {
	if len(comments) == 0 {
		return nil
	}
	lines, err := diffLines(diff)
	if err != nil {
		logger.WarnCF("github", "Could not parse pull request diff", map[string]any{"error": err.Error()})
		return nil
	}
	out := make([]ReviewComment, 0, len(comments))
	for _, c := range comments {
		file, ok := lines[strings.TrimPrefix(c.Path, "/")]
		if !ok || !file[c.Line] || strings.TrimSpace(c.Body) == "" {
			logger.DebugCF("github", "Dropping line comment outside the diff", map[string]any{
				"path": c.Path,
				"line": c.Line,
			})
			continue
		}
		out = append(out, ReviewComment{Path: strings.TrimPrefix(c.Path, "/"), Line: c.Line, Side: "RIGHT", Body: c.Body})
	}
	return out
}
