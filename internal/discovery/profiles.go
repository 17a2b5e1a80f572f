package discovery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pelletier/go-toml/v2"

	"agentrunner/internal/types"
)

func (d *SystemDetector) profiles(ctx context.Context, name string) []types.Profile {
	var out []types.Profile
	switch name {
	case "claude":
		out = d.claudeProfiles(ctx)
	case "codex":
		out = d.codexProfiles(ctx)
	case "gemini":
		out = geminiProfiles(filepath.Join(d.opts.Home, ".gemini", "google_accounts.json"))
	case "opencode":
		out = opencodeProfiles(filepath.Join(d.opts.DataDir, "opencode", "auth.json"))
	}
	if out == nil {
		out = []types.Profile{}
	}
	return out
}

type claudeAuthStatus struct {
	LoggedIn         bool   `json:"loggedIn"`
	Email            string `json:"email"`
	AuthMethod       string `json:"authMethod"`
	SubscriptionType string `json:"subscriptionType"`
	APIProvider      string `json:"apiProvider"`
	OrgID            string `json:"orgId"`
	OrgName          string `json:"orgName"`
}

// claudeProfiles parses `claude auth status`, which prints JSON.
func (d *SystemDetector) claudeProfiles(ctx context.Context) []types.Profile {
	out, ok := d.probe(ctx, "claude", "auth", "status")
	if !ok {
		return nil
	}
	return parseClaudeAuthStatus(out)
}

func parseClaudeAuthStatus(out string) []types.Profile {
	var st claudeAuthStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil || !st.LoggedIn {
		return nil
	}

	details, _ := json.Marshal(map[string]string{
		"subscriptionType": st.SubscriptionType,
		"apiProvider":      st.APIProvider,
		"orgId":            st.OrgID,
		"orgName":          st.OrgName,
	})
	return []types.Profile{{
		ID:         orDefault(st.Email, "unknown"),
		AuthMethod: orDefault(st.AuthMethod, "unknown"),
		Active:     true,
		Details:    string(details),
	}}
}

// codexProfiles combines the active login from `codex login status` with the
// named profiles of ~/.codex/config.toml.
func (d *SystemDetector) codexProfiles(ctx context.Context) []types.Profile {
	var profiles []types.Profile

	if text, ok := d.probe(ctx, "codex", "login", "status"); ok && strings.Contains(strings.ToLower(text), "logged in") {
		id := codexEmail(filepath.Join(d.opts.Home, ".codex", "auth.json"))
		if id == "" {
			id = text
		}
		profiles = append(profiles, types.Profile{
			ID:         id,
			AuthMethod: codexAuthMethod(text),
			Active:     true,
		})
	}

	return append(profiles, codexConfigProfiles(filepath.Join(d.opts.Home, ".codex", "config.toml"))...)
}

func codexAuthMethod(status string) string {
	lower := strings.ToLower(status)
	switch {
	case strings.Contains(lower, "chatgpt"):
		return "chatgpt_oauth"
	case strings.Contains(lower, "api key"):
		return "api_key"
	default:
		return "unknown"
	}
}

// codexEmail reads the email claim of the stored id_token. The token is only
// inspected, never verified.
func codexEmail(authPath string) string {
	data, err := os.ReadFile(authPath)
	if err != nil {
		return ""
	}
	var auth struct {
		Tokens struct {
			IDToken string `json:"id_token"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(data, &auth); err != nil || auth.Tokens.IDToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(auth.Tokens.IDToken, claims); err != nil {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

// codexConfigProfiles lists [profiles.<name>] tables.
func codexConfigProfiles(configPath string) []types.Profile {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}
	var cfg struct {
		Profiles map[string]interface{} `toml:"profiles"`
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]types.Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, types.Profile{
			ID:         "profile:" + name,
			AuthMethod: "config_profile",
		})
	}
	return profiles
}

// geminiProfiles reads {"active": "<email>", "old": [...]}.
func geminiProfiles(path string) []types.Profile {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var accounts struct {
		Active string   `json:"active"`
		Old    []string `json:"old"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil
	}

	var profiles []types.Profile
	if accounts.Active != "" {
		profiles = append(profiles, types.Profile{ID: accounts.Active, AuthMethod: "google_oauth", Active: true})
	}
	for _, email := range accounts.Old {
		profiles = append(profiles, types.Profile{ID: email, AuthMethod: "google_oauth"})
	}
	return profiles
}

// opencodeProfiles lists providers stored in auth.json; every stored
// credential counts as active.
func opencodeProfiles(path string) []types.Profile {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var providers map[string]struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]types.Profile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, types.Profile{
			ID:         name,
			AuthMethod: orDefault(providers[name].Type, "unknown"),
			Active:     true,
		})
	}
	return profiles
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
