package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"agentrunner/internal/types"
)

// maxWrapperSize skips binaries and other large files in the wrapper dir.
const maxWrapperSize = 64 * 1024

// scanWrappers lists regular files in the wrapper dir whose text mentions a
// known tool. The first known tool (in configured order) that matches wins.
func (d *SystemDetector) scanWrappers() []types.WrapperInfo {
	wrappers := []types.WrapperInfo{}
	if d.opts.WrapperDir == "" {
		return wrappers
	}

	entries, err := os.ReadDir(d.opts.WrapperDir)
	if err != nil {
		return wrappers
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() > maxWrapperSize {
			continue
		}
		path := filepath.Join(d.opts.WrapperDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if target := d.identifyWrapper(string(data)); target != "" {
			wrappers = append(wrappers, types.WrapperInfo{
				Name:      e.Name(),
				Path:      path,
				TargetCLI: target,
			})
		}
	}
	return wrappers
}

func (d *SystemDetector) identifyWrapper(content string) string {
	lower := strings.ToLower(content)
	for _, tc := range d.opts.KnownTools {
		if strings.Contains(lower, tc.Name) {
			return tc.Name
		}
	}
	return ""
}
