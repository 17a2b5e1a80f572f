package extensions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"

	"agentrunner/internal/types"
)

// Kind distinguishes skills from MCP servers.
type Kind string

const (
	KindSkill Kind = "skill"
	KindMCP   Kind = "mcp"
)

// Extension is one skill or MCP server and the tools that have it.
type Extension struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	SourceCLI   string   `json:"source_cli"`
	InstalledIn []string `json:"installed_in"`
}

// Discover lists the extensions of every installed tool, merged by kind and
// name. SourceCLI is the first tool (in report order) found to have it.
func (s *Syncer) Discover(tools []types.ToolInfo) []Extension {
	var out []Extension
	index := map[Kind]map[string]int{KindSkill: {}, KindMCP: {}}

	add := func(kind Kind, name, tool string) {
		if i, ok := index[kind][name]; ok {
			out[i].InstalledIn = append(out[i].InstalledIn, tool)
			return
		}
		index[kind][name] = len(out)
		out = append(out, Extension{Name: name, Kind: kind, SourceCLI: tool, InstalledIn: []string{tool}})
	}

	for _, t := range tools {
		if !t.Installed {
			continue
		}
		paths := ResolvePaths(s.home, t.Name)
		for _, name := range listSkills(paths.SkillsDir) {
			add(KindSkill, name, t.Name)
		}
		for _, name := range listMCPNames(paths.MCPConfig) {
			add(KindMCP, name, t.Name)
		}
	}
	return out
}

func listSkills(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// listMCPNames returns the sorted entry names of a tool's MCP config.
// Unreadable or malformed files yield nothing.
func listMCPNames(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var names []string
	switch filepath.Ext(path) {
	case ".json":
		var root struct {
			MCPServers map[string]json.RawMessage `json:"mcpServers"`
		}
		if err := json.Unmarshal(jsonc.ToJSON(data), &root); err != nil {
			return nil
		}
		for name := range root.MCPServers {
			names = append(names, name)
		}
	case ".toml":
		var root map[string]interface{}
		if err := toml.Unmarshal(data, &root); err != nil {
			return nil
		}
		table, _ := root["mcp"].(map[string]interface{})
		for name := range table {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
