package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"agentrunner/internal/discovery"
	"agentrunner/internal/logging"
	"agentrunner/internal/setup"
	"agentrunner/internal/store"
	"agentrunner/internal/tactile"
	"agentrunner/internal/types"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the full setup agent",
	Long: `Detects every known CLI, then lets the setup agent install, authenticate
and configure them. Prompts are answered on stdin; type 'cancel' to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd.Context(), func(ctx context.Context, m *setup.Manager) (string, <-chan types.Event, error) {
			return m.StartFull(ctx)
		})
	},
}

var setupCLICmd = &cobra.Command{
	Use:   "setup-cli <name>",
	Short: "Run the setup agent for one CLI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		return runSetup(cmd.Context(), func(ctx context.Context, m *setup.Manager) (string, <-chan types.Event, error) {
			return m.StartTool(ctx, name)
		})
	},
}

// newDetector builds the system detector. When graph is non-nil detected
// versions are recorded in it.
func newDetector(home string, graph *store.MemoryGraph) *discovery.SystemDetector {
	exec := tactile.NewDirectExecutorWithConfig(tactile.ExecutorConfig{
		DefaultTimeout: cfg.GetVersionTimeout(),
	})
	d := discovery.NewSystemDetector(discovery.OptionsFromConfig(cfg, home), exec)
	if graph != nil {
		d.WithVersionTracker(graph.Versions())
	}
	return d
}

func openGraph() (*store.MemoryGraph, error) {
	return store.Open(cfg.ResolvedDatabasePath(), cfg.Memory.Driver)
}

func runSetup(ctx context.Context, start func(context.Context, *setup.Manager) (string, <-chan types.Event, error)) error {
	home, err := homeDir()
	if err != nil {
		return err
	}

	graph, err := openGraph()
	if err != nil {
		return err
	}
	defer graph.Close()

	m := setup.NewManager(setup.ManagerConfig{
		Config:   cfg,
		Home:     home,
		Detector: newDetector(home, graph),
	})

	id, events, err := start(ctx, m)
	if err != nil {
		return err
	}
	logging.Setup("Started setup session %s", id)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-sigCh:
			_ = m.Cancel(id)
		case <-stop:
		}
	}()

	term := newTerminal(os.Stdin, os.Stdout)
	for e := range events {
		e.Accept(term)
		if need, ok := e.(types.NeedInputEvent); ok {
			if err := m.Respond(id, term.ask(need.Action)); err != nil {
				logging.SetupWarn("Response for %s dropped: %v", id, err)
			}
		}
	}

	outcome, err := m.Wait(ctx, id)
	if err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return fmt.Errorf("setup ended: %s", outcome)
	}
	return nil
}
