// Package extensions moves skills and MCP server entries between CLI tools.
// Each tool keeps skills as directories under a well-known skills dir and
// MCP servers as named entries in a JSON or TOML config file.
package extensions

import "path/filepath"

// Paths are the well-known extension locations of one tool. Empty means the
// tool has no such location.
type Paths struct {
	SkillsDir string
	MCPConfig string
}

// ResolvePaths returns the extension locations of tool under home.
func ResolvePaths(home, tool string) Paths {
	switch tool {
	case "claude":
		return Paths{
			SkillsDir: filepath.Join(home, ".claude", "skills"),
			MCPConfig: filepath.Join(home, ".claude", ".claude.json"),
		}
	case "codex":
		return Paths{
			SkillsDir: filepath.Join(home, ".codex", "skills"),
			MCPConfig: filepath.Join(home, ".codex", "config.toml"),
		}
	case "opencode":
		return Paths{
			MCPConfig: filepath.Join(home, ".opencode", "config.json"),
		}
	default:
		return Paths{}
	}
}
