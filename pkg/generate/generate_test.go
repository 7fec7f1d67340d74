package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/actions/actionstest"
)

type issueArgs struct {
	Owner  string   `json:"owner"`
	Repo   string   `json:"repo"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

func issueSchema() *jsonschema.Schema {
	return ObjectSchema(
		Field{Name: "owner", Schema: String("repository owner")},
		Field{Name: "repo", Schema: String("repository name")},
		Field{Name: "title", Schema: String("issue title")},
		Field{Name: "labels", Schema: Array(String(""), "labels"), Optional: true},
	)
}

func TestObject_DecodesValidReply(t *testing.T) {
	p := &actionstest.Provider{Replies: []string{"```json\n{\"owner\":\"o\",\"repo\":\"r\",\"title\":\"Bug\",\"labels\":[\"x\"]}\n```"}}

	var got issueArgs
	err := Object(context.Background(), p, "m", "create an issue", issueSchema(), &got, map[string]any{"max_tokens": 100})
	require.NoError(t, err)
	assert.Equal(t, issueArgs{Owner: "o", Repo: "r", Title: "Bug", Labels: []string{"x"}}, got)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], 2)
	assert.Equal(t, "system", reqs[0][0].Role)
	assert.Contains(t, reqs[0][0].Content, `"required":["owner","repo","title"]`)
	assert.Equal(t, "create an issue", reqs[0][1].Content)

	opts := p.Options()[0]
	assert.Equal(t, true, opts["json_mode"])
	assert.Equal(t, 100, opts["max_tokens"])
}

func TestObject_RejectsInvalidReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "I cannot help with that"},
		{"missing required", `{"owner":"o","repo":"r"}`},
		{"wrong type", `{"owner":"o","repo":"r","title":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &actionstest.Provider{Replies: []string{tt.reply}}
			var got issueArgs
			err := Object(context.Background(), p, "m", "x", issueSchema(), &got, nil)
			assert.ErrorIs(t, err, ErrInvalidContent)
		})
	}
}

func TestObject_EnumConstraint(t *testing.T) {
	schema := ObjectSchema(Field{Name: "reaction", Schema: Enum("reaction", "+1", "-1", "heart")})

	p := &actionstest.Provider{Replies: []string{`{"reaction":"rocket"}`}}
	assert.ErrorIs(t, Object(context.Background(), p, "m", "x", schema, nil, nil), ErrInvalidContent)

	p = &actionstest.Provider{Replies: []string{`{"reaction":"heart"}`}}
	assert.NoError(t, Object(context.Background(), p, "m", "x", schema, nil, nil))
}

func TestObject_ProviderError(t *testing.T) {
	boom := errors.New("upstream down")
	p := &actionstest.Provider{Err: boom}
	err := Object(context.Background(), p, "m", "x", issueSchema(), nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidContent)
}

func TestText(t *testing.T) {
	p := &actionstest.Provider{Replies: []string{"  hello \n"}}
	got, err := Text(context.Background(), p, "m", "say hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, ExtractJSON(`Sure! {"a":{"b":2}} hope that helps`))
	assert.Equal(t, `[1,2]`, ExtractJSON("```\n[1,2]\n```"))
	assert.Equal(t, "plain", ExtractJSON("plain"))
}

func TestRender(t *testing.T) {
	st := &actions.State{AgentName: "Spiral"}
	st.Set("recentMessages", "user: open an issue")

	out := Render("{{agentName}} sees:\n{{ recentMessages }}\n{{unknown}}!", st)
	assert.Equal(t, "Spiral sees:\nuser: open an issue\n!", out)
	assert.Equal(t, "no placeholders", Render("no placeholders", nil))
}
