// Package discovery inspects the machine for known CLI tools: whether each is
// on PATH, its version, whether it holds credentials, which accounts it knows
// about, and which wrapper scripts point at it.
package discovery

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"agentrunner/internal/config"
	"agentrunner/internal/logging"
	"agentrunner/internal/store"
	"agentrunner/internal/tactile"
	"agentrunner/internal/types"
)

// VersionRecorder persists detected versions. *store.VersionTracker
// satisfies it.
type VersionRecorder interface {
	Record(cliName, version, path string) (*store.VersionRecord, error)
}

// Options configures a SystemDetector.
type Options struct {
	// Home is the user's home directory.
	Home string
	// DataDir is the XDG data directory (~/.local/share by default).
	DataDir string
	// KnownTools lists tools in report order.
	KnownTools []config.ToolConfig
	// WrapperDir is scanned for wrapper scripts.
	WrapperDir string
	// ProbeTimeout bounds each `<tool> --version` style probe.
	ProbeTimeout time.Duration
	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// OptionsFromConfig builds detector options from cfg for the given home.
func OptionsFromConfig(cfg *config.Config, home string) Options {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share")
	}
	return Options{
		Home:         home,
		DataDir:      dataDir,
		KnownTools:   cfg.Discovery.KnownTools,
		WrapperDir:   config.ExpandHome(cfg.Discovery.WrapperDir, home),
		ProbeTimeout: cfg.GetVersionTimeout(),
	}
}

// SystemDetector is the default types.Detector.
type SystemDetector struct {
	opts     Options
	exec     tactile.Executor
	lookPath func(string) (string, error)
	versions VersionRecorder
}

// NewSystemDetector creates a detector that runs probes through exec.
func NewSystemDetector(opts Options, exec tactile.Executor) *SystemDetector {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	return &SystemDetector{opts: opts, exec: exec, lookPath: lookPath}
}

// WithVersionTracker makes every detection record the observed versions and
// fill VersionChanged/PreviousVersion.
func (d *SystemDetector) WithVersionTracker(v VersionRecorder) *SystemDetector {
	d.versions = v
	return d
}

var _ types.Detector = (*SystemDetector)(nil)

// DetectAll inspects every known tool concurrently. The report keeps the
// configured tool order.
func (d *SystemDetector) DetectAll(ctx context.Context) *types.DetectionReport {
	timer := logging.StartTimer(logging.CategoryDiscovery, "detect all")
	defer timer.Stop()

	tools := make([]types.ToolInfo, len(d.opts.KnownTools))
	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range d.opts.KnownTools {
		i, tc := i, tc
		g.Go(func() error {
			tools[i] = d.detectTool(gctx, tc.Name, tc.ConfigDir)
			return nil
		})
	}
	_ = g.Wait()

	report := &types.DetectionReport{
		Tools:    tools,
		OS:       DetectOS(),
		Wrappers: d.scanWrappers(),
	}
	logging.Discovery("Detected %d/%d tools installed, %d wrappers",
		len(report.InstalledNames()), len(tools), len(report.Wrappers))
	return report
}

// DetectOne inspects a single tool. Unknown names are probed with no config
// dir. Wrappers are not scanned.
func (d *SystemDetector) DetectOne(ctx context.Context, name string) *types.DetectionReport {
	configDir := ""
	for _, tc := range d.opts.KnownTools {
		if tc.Name == name {
			configDir = tc.ConfigDir
			break
		}
	}
	return &types.DetectionReport{
		Tools:    []types.ToolInfo{d.detectTool(ctx, name, configDir)},
		OS:       DetectOS(),
		Wrappers: []types.WrapperInfo{},
	}
}

// DetectOS reports the host platform.
func DetectOS() types.OSInfo {
	return types.OSInfo{OSType: runtime.GOOS, Arch: runtime.GOARCH}
}

func (d *SystemDetector) detectTool(ctx context.Context, name, configDir string) types.ToolInfo {
	info := types.ToolInfo{Name: name, Profiles: []types.Profile{}}

	if configDir != "" {
		dir := config.ExpandHome(configDir, d.opts.Home)
		if _, err := os.Stat(dir); err == nil {
			info.ConfigDir = dir
		}
	}

	path, err := d.lookPath(name)
	if err != nil {
		logging.DiscoveryDebug("%s not found on PATH", name)
		return info
	}
	info.Installed = true
	info.Path = path
	info.Version = d.version(ctx, name)
	info.Authenticated = d.checkAuth(name)
	info.Profiles = d.profiles(ctx, name)

	if d.versions != nil && info.Version != "" {
		prev, err := d.versions.Record(name, info.Version, info.Path)
		if err != nil {
			logging.Get(logging.CategoryDiscovery).Warn("version tracking for %s failed: %v", name, err)
		} else {
			changed := prev != nil && prev.Version != info.Version
			info.VersionChanged = &changed
			if prev != nil {
				info.PreviousVersion = prev.Version
			}
		}
	}
	return info
}

// probe runs name with args and returns trimmed stdout on exit 0.
func (d *SystemDetector) probe(ctx context.Context, name string, args ...string) (string, bool) {
	res, err := d.exec.Execute(ctx, tactile.Command{
		Binary:    name,
		Arguments: args,
		Timeout:   d.opts.ProbeTimeout,
	})
	if err != nil || !res.Succeeded() {
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

func (d *SystemDetector) version(ctx context.Context, name string) string {
	out, ok := d.probe(ctx, name, "--version")
	if !ok {
		return ""
	}
	return out
}

func (d *SystemDetector) checkAuth(name string) bool {
	home := d.opts.Home
	switch name {
	case "claude":
		return exists(filepath.Join(home, ".claude", ".credentials.json")) ||
			exists(filepath.Join(home, ".claude", "credentials.json"))
	case "codex":
		return d.opts.Getenv("OPENAI_API_KEY") != "" ||
			exists(filepath.Join(home, ".codex", "auth.json"))
	case "gemini":
		return exists(filepath.Join(home, ".gemini", "oauth_creds.json"))
	case "opencode":
		return exists(filepath.Join(d.opts.DataDir, "opencode", "auth.json"))
	default:
		return false
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func lookPath(name string) (string, error) {
	return exec.LookPath(name)
}
