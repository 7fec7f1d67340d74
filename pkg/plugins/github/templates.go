package github

const contextHeader = `Recent messages:
{{recentMessages}}

Current request:
{{message}}

`

const createIssueTemplate = contextHeader + `Extract the details of the GitHub issue to create from the current request:
- owner: repository owner
- repo: repository name
- title: issue title
- body: issue description in markdown
- labels: labels to apply, if any were asked for`

const createPullRequestTemplate = contextHeader + `Extract the details of the pull request to open from the current request:
- owner and repo of the repository
- branch: the new branch to push the changes to
- base: the branch to merge into, "main" when not stated
- title and description of the pull request
- files: every file to create or replace as {"path", "content"}`

const reactToPRTemplate = contextHeader + `Extract the pull request to react to and the reaction from the current request.
The reaction must be one of +1, -1, laugh, confused, heart, hooray, rocket, eyes.`

const addCommentToPRTemplate = contextHeader + `Extract the repository owner, repository name and pull request number the
current request wants reviewed or commented on. Set emojiReaction only when a
reaction was asked for.`

const generateCommentTemplate = `You are reviewing this pull request:
{{specificPullRequest}}

Request:
{{message}}

Write the review. "comment" is the overall review body. "lineLevelComments"
lists comments on specific lines of the diff, using the file path and the line
number on the new side of the diff. "approvalEvent" is APPROVE,
REQUEST_CHANGES or COMMENT, following what the request asks for; use COMMENT
when it does not say.`

const closePRTemplate = contextHeader + `Extract the repository owner, repository name and pull request number to close.`

const mergePRTemplate = contextHeader + `Extract the repository owner, repository name and pull request number to merge,
and the merge method (merge, squash or rebase; merge when not stated).`

const replyToPRCommentTemplate = contextHeader + `Extract the repository owner, repository name and pull request number whose
comments should be answered.`

const generateReplyTemplate = `Pull request:
{{specificPullRequest}}

Comment from {{commentAuthor}}:
{{commentBody}}

Write a short, helpful reply to this comment as {{agentName}}. Reply with an
empty "comment" when the comment needs no answer. Set emojiReaction to one of
+1, -1, laugh, confused, heart, hooray, rocket, eyes, or leave it empty.`
