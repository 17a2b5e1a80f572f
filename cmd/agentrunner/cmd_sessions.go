package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"agentrunner/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent setup sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := openGraph()
		if err != nil {
			return err
		}
		defer graph.Close()

		sessions, err := graph.ListSessions(sessionsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		s := newStyles()
		if len(sessions) == 0 {
			fmt.Fprintln(out, s.Muted.Render("No setup sessions recorded."))
			return nil
		}
		for _, sess := range sessions {
			outcome := sess.Outcome
			if outcome == "" {
				outcome = "running"
			}
			fmt.Fprintf(out, "%s  %s  %-8s %-20s %d turn(s)\n",
				s.Label.Render(sess.ID),
				sess.StartedAt.Local().Format(time.DateTime),
				sess.Scope,
				outcomeStyle(s, outcome).Render(outcome),
				sess.TurnCount)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session and its turns as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := openGraph()
		if err != nil {
			return err
		}
		defer graph.Close()

		sess, err := graph.GetSession(args[0])
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session not found: %s", args[0])
		}
		turns, err := graph.GetTurns(sess.ID)
		if err != nil {
			return err
		}
		if turns == nil {
			turns = []store.Turn{}
		}
		return printJSON(cmd, struct {
			*store.Session
			Turns []store.Turn `json:"turns"`
		}{sess, turns})
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to list")
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func outcomeStyle(s styles, outcome string) lipgloss.Style {
	switch outcome {
	case "success", "done":
		return s.Success
	case "running":
		return s.Status
	case "cancelled":
		return s.Warning
	default:
		return s.Error
	}
}
