package types

// DetectionReport is a snapshot of the machine's CLI tool landscape.
type DetectionReport struct {
	Tools    []ToolInfo    `json:"tools"`
	OS       OSInfo        `json:"os"`
	Wrappers []WrapperInfo `json:"wrappers"`
}

// ToolInfo describes one known CLI tool.
type ToolInfo struct {
	Name          string    `json:"name"`
	Installed     bool      `json:"installed"`
	Path          string    `json:"path,omitempty"`
	Version       string    `json:"version,omitempty"`
	Authenticated bool      `json:"authenticated"`
	ConfigDir     string    `json:"config_dir,omitempty"`
	Profiles      []Profile `json:"profiles"`
	// VersionChanged is nil when no version was previously recorded.
	VersionChanged  *bool  `json:"version_changed,omitempty"`
	PreviousVersion string `json:"previous_version,omitempty"`
}

// Profile is one account or credential discovered for a tool.
type Profile struct {
	ID         string `json:"id"`
	AuthMethod string `json:"auth_method"`
	Active     bool   `json:"active"`
	// Details is free-form JSON (plan, org, ...).
	Details string `json:"details,omitempty"`
}

// OSInfo identifies the host platform.
type OSInfo struct {
	OSType string `json:"os_type"`
	Arch   string `json:"arch"`
}

// WrapperInfo is a script in the wrapper directory that invokes a tool.
type WrapperInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	TargetCLI string `json:"target_cli,omitempty"`
}

// ToolSummary is the per-tool line of a detection summary.
type ToolSummary struct {
	Name            string    `json:"name"`
	Installed       bool      `json:"installed"`
	Version         string    `json:"version,omitempty"`
	Authenticated   bool      `json:"authenticated"`
	WrapperCount    int       `json:"wrapper_count"`
	Profiles        []Profile `json:"profiles"`
	VersionChanged  *bool     `json:"version_changed,omitempty"`
	PreviousVersion string    `json:"previous_version,omitempty"`
}

// Tool returns the entry for name.
func (r *DetectionReport) Tool(name string) (ToolInfo, bool) {
	for _, t := range r.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolInfo{}, false
}

// Installed reports whether the named tool was found.
func (r *DetectionReport) Installed(name string) bool {
	t, ok := r.Tool(name)
	return ok && t.Installed
}

// InstalledNames lists installed tools in report order.
func (r *DetectionReport) InstalledNames() []string {
	var names []string
	for _, t := range r.Tools {
		if t.Installed {
			names = append(names, t.Name)
		}
	}
	return names
}

// Summarize condenses the report, counting wrappers per tool.
func (r *DetectionReport) Summarize() []ToolSummary {
	out := make([]ToolSummary, 0, len(r.Tools))
	for _, t := range r.Tools {
		wrappers := 0
		for _, w := range r.Wrappers {
			if w.TargetCLI == t.Name {
				wrappers++
			}
		}
		profiles := t.Profiles
		if profiles == nil {
			profiles = []Profile{}
		}
		out = append(out, ToolSummary{
			Name:            t.Name,
			Installed:       t.Installed,
			Version:         t.Version,
			Authenticated:   t.Authenticated,
			WrapperCount:    wrappers,
			Profiles:        profiles,
			VersionChanged:  t.VersionChanged,
			PreviousVersion: t.PreviousVersion,
		})
	}
	return out
}
