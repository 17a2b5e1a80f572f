package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"agentrunner/internal/discovery"
	"agentrunner/internal/types"
)

var (
	detectJSON  bool
	detectWatch bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show which CLIs are installed and authenticated",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := homeDir()
		if err != nil {
			return err
		}
		graph, err := openGraph()
		if err != nil {
			return err
		}
		defer graph.Close()

		detector := newDetector(home, graph)
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		if err := printReport(out, detector.DetectAll(ctx)); err != nil {
			return err
		}
		if !detectWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := discovery.NewWatcher(discovery.OptionsFromConfig(cfg, home), detector, func(r *types.DetectionReport) {
			if err := printReport(out, r); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", strings.Join(w.Watched(), ", "))
		<-ctx.Done()
		return nil
	},
}

func init() {
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Print the raw detection report")
	detectCmd.Flags().BoolVar(&detectWatch, "watch", false, "Re-detect when tool config directories change")
}

func printReport(out io.Writer, r *types.DetectionReport) error {
	if detectJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	s := newStyles()
	fmt.Fprintf(out, "%s %s\n", s.Title.Render(r.OS.OSType+"/"+r.OS.Arch), s.Muted.Render(fmt.Sprintf("%d wrapper(s)", len(r.Wrappers))))
	_, err := fmt.Fprintln(out, renderToolTable(s, r.Summarize()))
	return err
}

// renderToolTable lays out one row per tool.
func renderToolTable(s styles, tools []types.ToolSummary) string {
	cell := lipgloss.NewStyle().PaddingRight(2)
	header := []string{"CLI", "INSTALLED", "VERSION", "AUTH", "PROFILES", "WRAPPERS"}
	rows := [][]string{header}
	for _, t := range tools {
		version := t.Version
		if t.VersionChanged != nil && *t.VersionChanged {
			version = fmt.Sprintf("%s (was %s)", t.Version, t.PreviousVersion)
		}
		profiles := make([]string, 0, len(t.Profiles))
		for _, p := range t.Profiles {
			profiles = append(profiles, p.ID)
		}
		rows = append(rows, []string{
			t.Name,
			yesNo(t.Installed),
			orString(version, "-"),
			yesNo(t.Authenticated),
			orString(strings.Join(profiles, ","), "-"),
			fmt.Sprintf("%d", t.WrapperCount),
		})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, c := range row {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cols := make([]string, len(row))
		for i, c := range row {
			st := cell.Width(widths[i] + 2)
			switch {
			case r == 0:
				st = st.Inherit(s.Label)
			case i == 1 && c == "yes":
				st = st.Inherit(s.Success)
			case i == 1:
				st = st.Inherit(s.Muted)
			}
			cols[i] = st.Render(c)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
