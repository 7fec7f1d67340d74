package orchestrate

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/HarshModi2005/realityspiral/pkg/generate"
)

// Step is one planned action invocation. The JSON names are the ones the
// model is asked to produce.
type Step struct {
	ActionName string `json:"githubAction"`
	UserText   string `json:"user"`
}

// Plan is the ordered list of steps produced by one planning call. Order is
// execution order.
type Plan struct {
	Steps []Step `json:"githubActions"`
}

func (p Plan) ActionNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.ActionName
	}
	return names
}

// PlanSchema is the JSON schema plan output must satisfy.
func PlanSchema() *jsonschema.Schema {
	step := generate.ObjectSchema(
		generate.Field{Name: "githubAction", Schema: generate.String("name of the action to run")},
		generate.Field{Name: "user", Schema: generate.String("the request text passed to that action")},
	)
	return generate.ObjectSchema(
		generate.Field{Name: "githubActions", Schema: generate.Array(step, "actions in execution order")},
	)
}

// DefaultTemplate is rendered against the conversation state to build the
// planning prompt.
const DefaultTemplate = `You are {{agentName}}, an agent that fulfils complex requests by running a
sequence of GitHub actions one after another.

Available actions:
{{actions}}

Recent messages:
{{recentMessages}}

Request:
{{message}}

Break the request into the smallest ordered list of actions that fulfils it.
Use only the action names listed above. For every action write the "user"
text as a complete, self-contained instruction for that single action,
including the repository owner, repository name, and any issue or pull
request numbers it needs.

Respond with JSON of the form:
{"githubActions": [{"githubAction": "ACTION_NAME", "user": "instruction"}]}`
