package extensions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"

	"agentrunner/internal/logging"
)

var (
	ErrNoSourceSkills = errors.New("source CLI has no skills directory")
	ErrNoTargetSkills = errors.New("target CLI has no skills directory")
)

// Syncer copies extensions between tools rooted at one home directory.
type Syncer struct {
	home string
}

// NewSyncer creates a syncer for tools installed under home.
func NewSyncer(home string) *Syncer {
	return &Syncer{home: home}
}

// Home returns the home directory the syncer resolves paths against.
func (s *Syncer) Home() string {
	return s.home
}

// CopySkill recursively copies skill from source's skills dir into target's,
// overwriting files that already exist.
func (s *Syncer) CopySkill(source, target, skill string) error {
	if skill == "" || skill != filepath.Base(skill) || skill == "." || skill == ".." {
		return fmt.Errorf("invalid skill name %q", skill)
	}

	srcDir := ResolvePaths(s.home, source).SkillsDir
	if srcDir == "" {
		return ErrNoSourceSkills
	}
	dstDir := ResolvePaths(s.home, target).SkillsDir
	if dstDir == "" {
		return ErrNoTargetSkills
	}

	src := filepath.Join(srcDir, skill)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("skill '%s' not found in %s", skill, source)
	}

	if err := copyDir(src, filepath.Join(dstDir, skill)); err != nil {
		return err
	}
	logging.Extensions("Skill %s copied from %s to %s", skill, source, target)
	return nil
}

func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(out, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", out, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logging.ExtensionsWarn("Skipping non-regular file %s", path)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", path, err)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, fi.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to copy %s: %w", path, err)
		}
		return nil
	})
}

// InstallMCP merges a named MCP server entry into target's config file. JSON
// files get mcpServers[name] set to the parsed config; TOML files get
// mcp.name set to the config text.
func (s *Syncer) InstallMCP(target, name, config string) error {
	path := ResolvePaths(s.home, target).MCPConfig
	if path == "" {
		return fmt.Errorf("no MCP config path for %s", target)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var err error
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case "json":
		err = installJSON(path, name, config)
	case "toml":
		err = installTOML(path, name, config)
	default:
		return fmt.Errorf("unknown config format: %s", ext)
	}
	if err != nil {
		return err
	}
	logging.Extensions("MCP %s installed in %s (%s)", name, target, path)
	return nil
}

func installJSON(path, name, config string) error {
	root := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(jsonc.ToJSON(data), &root); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config: %w", err)
	}

	var entry interface{}
	if err := json.Unmarshal([]byte(config), &entry); err != nil {
		return fmt.Errorf("failed to parse MCP config: %w", err)
	}

	servers, ok := root["mcpServers"].(map[string]interface{})
	if !ok {
		if _, present := root["mcpServers"]; present {
			return fmt.Errorf("mcpServers in %s is not an object", path)
		}
		servers = map[string]interface{}{}
	}
	servers[name] = entry
	root["mcpServers"] = servers

	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func installTOML(path, name, config string) error {
	root := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config: %w", err)
	}

	table, ok := root["mcp"].(map[string]interface{})
	if !ok {
		if _, present := root["mcp"]; present {
			return fmt.Errorf("mcp in %s is not a table", path)
		}
		table = map[string]interface{}{}
	}
	table[name] = config
	root["mcp"] = table

	out, err := toml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to serialize TOML: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
