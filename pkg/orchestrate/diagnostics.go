package orchestrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

const (
	contextFile = "orchestration-context.txt"
	detailsFile = "orchestration-details.json"
	resultFmt   = "orchestrate-result-%s.json"
)

// Diagnostics dumps the planning prompt, the plan and each step's raw result
// to a directory. Files are overwritten by the next run. An empty directory
// disables it. Write failures are logged and never fail a run.
type Diagnostics struct {
	dir string
}

func NewDiagnostics(dir string) *Diagnostics {
	return &Diagnostics{dir: dir}
}

func (d *Diagnostics) Dir() string { return d.dir }

func (d *Diagnostics) WriteContext(prompt string) {
	d.write(contextFile, []byte(prompt))
}

func (d *Diagnostics) WritePlan(p Plan) {
	d.writeJSON(detailsFile, p)
}

func (d *Diagnostics) WriteResult(action string, r *actions.Result) {
	d.writeJSON(ResultFileName(action), r)
}

// ResultFileName is the per-action result file name.
func ResultFileName(action string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, action)
	return fmt.Sprintf(resultFmt, safe)
}

func (d *Diagnostics) writeJSON(name string, v any) {
	if d == nil || d.dir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.WarnCF("orchestrate", "Failed to encode diagnostics", map[string]any{
			"file":  name,
			"error": err.Error(),
		})
		return
	}
	d.write(name, data)
}

func (d *Diagnostics) write(name string, data []byte) {
	if d == nil || d.dir == "" {
		return
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		logger.WarnCF("orchestrate", "Failed to create diagnostics directory", map[string]any{
			"dir":   d.dir,
			"error": err.Error(),
		})
		return
	}
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.WarnCF("orchestrate", "Failed to write diagnostics", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	}
}
