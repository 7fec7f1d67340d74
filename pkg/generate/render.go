package generate

import (
	"regexp"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes {{key}} placeholders in tmpl with values from state.
// Unknown keys render as the empty string.
func Render(tmpl string, state *actions.State) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return state.Get(key)
	})
}
