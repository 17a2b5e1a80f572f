package setup

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"agentrunner/internal/config"
	"agentrunner/internal/extensions"
	"agentrunner/internal/logging"
	"agentrunner/internal/store"
	"agentrunner/internal/types"
)

//go:embed prompts/*.tmpl
var promptFiles embed.FS

var prompts = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptFiles, "prompts/*.tmpl"),
)

// ContextNodeTypes are the memory node types shown to the reasoning step.
var ContextNodeTypes = []string{"cli", "model", "provider", "wrapper", "skill", "mcp", "preference"}

// SubgraphReader is the read side of the memory graph used for briefings.
type SubgraphReader interface {
	SubgraphForContext(nodeTypes []string) (*store.Snapshot, error)
}

// Briefing is the system state rendered into the first prompt of a session.
type Briefing struct {
	Detection  string
	Memory     string
	Extensions string

	AllowedCommands []string
	WriteRoots      []string
	AppDir          string

	// CLIName is set for single-tool sessions.
	CLIName string
}

// BuildBriefing serializes the detection report, the context subgraph and
// the discovered extensions. Memory read failures degrade to "{}".
func BuildBriefing(report *types.DetectionReport, graph SubgraphReader, exts []extensions.Extension, sandbox config.SandboxConfig) *Briefing {
	b := &Briefing{
		Detection:       prettyJSON(report),
		Memory:          "{}",
		Extensions:      "[]",
		AllowedCommands: sandbox.AllowedCommands,
		WriteRoots:      sandbox.AllowedWriteRoots,
		AppDir:          "~/.config/" + config.AppDirName,
	}

	if graph != nil {
		snap, err := graph.SubgraphForContext(ContextNodeTypes)
		if err != nil {
			logging.SetupWarn("Memory subgraph unavailable: %v", err)
		} else {
			b.Memory = prettyJSON(snap)
		}
	}
	if len(exts) > 0 {
		b.Extensions = prettyJSON(exts)
	}
	return b
}

// SystemPrompt renders the full-setup briefing.
func (b *Briefing) SystemPrompt() (string, error) {
	return b.render("system")
}

// CLIPrompt renders the briefing for a session scoped to one tool.
func (b *Briefing) CLIPrompt(name string) (string, error) {
	scoped := *b
	scoped.CLIName = name
	return scoped.render("cli")
}

func (b *Briefing) render(name string) (string, error) {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, b); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return sb.String(), nil
}

func prettyJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
