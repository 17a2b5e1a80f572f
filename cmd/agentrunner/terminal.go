package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"agentrunner/internal/types"
)

// terminal renders session events and answers input requests on a pair of
// streams. It implements types.EventHandler.
type terminal struct {
	out    io.Writer
	in     *bufio.Reader
	styles styles
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{out: out, in: bufio.NewReader(in), styles: newStyles()}
}

var _ types.EventHandler = (*terminal)(nil)

func (t *terminal) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) OnStatus(e types.StatusEvent) {
	t.printf("%s %s\n", t.styles.Status.Render("•"), e.Message)
}

func (t *terminal) OnProgress(e types.ProgressEvent) {
	if e.Percent != nil {
		t.printf("%s %s\n", t.styles.Muted.Render(fmt.Sprintf("[%3.0f%%]", *e.Percent)), e.Message)
	} else {
		t.printf("%s\n", t.styles.Muted.Render(e.Message))
	}
	if e.Detail != "" {
		t.printf("  %s\n", t.styles.Muted.Render(e.Detail))
	}
}

func (t *terminal) OnNeedInput(e types.NeedInputEvent) {
	req := e.Action
	var b strings.Builder
	switch req.Kind {
	case types.InputOAuthFlow:
		fmt.Fprintf(&b, "%s\n\n%s", t.styles.Label.Render("Sign in to "+req.Provider), req.Instructions)
		if req.LoginCommand != "" {
			fmt.Fprintf(&b, "\n\nLogin command: %s", req.LoginCommand)
		}
	case types.InputAPIKeyEntry:
		fmt.Fprintf(&b, "%s", t.styles.Label.Render("API key for "+req.Provider))
		if req.HelpURL != "" {
			fmt.Fprintf(&b, "\nGet one at %s", req.HelpURL)
		}
	case types.InputConfirm:
		fmt.Fprintf(&b, "%s", req.Message)
	case types.InputCLISelection:
		fmt.Fprintf(&b, "%s", t.styles.Label.Render(orString(req.Message, "Select CLIs")))
		for _, opt := range req.Available {
			mark := " "
			if opt.Installed {
				mark = "✓"
			}
			fmt.Fprintf(&b, "\n %s %s  %s", mark, opt.Name, t.styles.Muted.Render(opt.Description))
		}
	case types.InputForm, types.InputWizard:
		title := req.Title
		if req.Kind == types.InputWizard && req.CurrentStep < len(req.Steps) {
			step := req.Steps[req.CurrentStep]
			title = fmt.Sprintf("%s (step %d/%d: %s)", req.Title, req.CurrentStep+1, len(req.Steps), step.Label)
		}
		fmt.Fprintf(&b, "%s", t.styles.Label.Render(orString(title, "Input needed")))
		if req.Description != "" {
			fmt.Fprintf(&b, "\n%s", req.Description)
		}
	}
	t.printf("%s\n", t.styles.Box.Render(b.String()))
	t.printf("%s\n", t.styles.Muted.Render("(type 'cancel' to stop setup)"))
}

func (t *terminal) OnShowResult(e types.ShowResultEvent) {
	switch c := e.Content.(type) {
	case types.CommandOutput:
		t.printf("%s %s %s\n", t.styles.Label.Render("$"), c.Command, t.styles.Muted.Render(fmt.Sprintf("(exit %d)", c.ExitCode)))
		if out := strings.TrimSpace(c.Stdout); out != "" {
			t.printf("%s\n", indent(out))
		}
		if errOut := strings.TrimSpace(c.Stderr); errOut != "" {
			t.printf("%s\n", t.styles.Warning.Render(indent(errOut)))
		}
	case types.DetectionSummary:
		t.printf("%s\n", renderToolTable(t.styles, c.Tools))
	case types.ConfigWritten:
		t.printf("%s wrote %s %s\n", t.styles.Success.Render("✓"), c.Path, t.styles.Muted.Render(c.Description))
	case types.TestResult:
		if c.Success {
			t.printf("%s %s passed\n", t.styles.Success.Render("✓"), c.Model)
		} else {
			t.printf("%s %s failed\n%s\n", t.styles.Error.Render("✗"), c.Model, indent(strings.TrimSpace(c.Output)))
		}
	}
}

func (t *terminal) OnComplete(e types.CompleteEvent) {
	t.printf("\n%s %s\n", t.styles.Success.Render("✓"), t.styles.Title.Render(e.Summary))
	for _, item := range e.Items {
		t.printf("  - %s\n", item)
	}
}

func (t *terminal) OnError(e types.ErrorEvent) {
	if e.Recoverable {
		t.printf("%s %s\n", t.styles.Warning.Render("!"), e.Message)
		return
	}
	t.printf("%s %s\n", t.styles.Error.Render("✗"), e.Message)
}

// readLine reads one trimmed line. It reports false on EOF or "cancel".
func (t *terminal) readLine(prompt string) (string, bool) {
	t.printf("%s ", t.styles.Prompt.Render(prompt))
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "cancel") {
		return "", false
	}
	return line, true
}

// ask collects the answer to req from the input stream.
func (t *terminal) ask(req types.InputRequest) types.UserResponse {
	switch req.Kind {
	case types.InputConfirm:
		label := fmt.Sprintf("%s/%s [y/N]:", orString(req.ConfirmLabel, "yes"), orString(req.CancelLabel, "no"))
		line, ok := t.readLine(label)
		if !ok {
			return types.Cancel{}
		}
		answer := strings.ToLower(line)
		return types.ConfirmResponse{ConfirmID: req.ConfirmID, Confirmed: answer == "y" || answer == "yes"}

	case types.InputOAuthFlow:
		line, ok := t.readLine("Press Enter once logged in (or 'skip'):")
		if !ok {
			return types.Cancel{}
		}
		if strings.EqualFold(line, "skip") {
			return types.Skip{Reason: "user skipped login"}
		}
		return types.OAuthComplete{Provider: req.Provider, Success: true}

	case types.InputAPIKeyEntry:
		line, ok := t.readLine(orString(req.EnvVar, "API key") + ":")
		if !ok {
			return types.Cancel{}
		}
		if line == "" {
			return types.Skip{Reason: "no key entered"}
		}
		return types.APIKeyResponse{Provider: req.Provider, Key: line}

	case types.InputCLISelection:
		line, ok := t.readLine("Comma-separated names:")
		if !ok {
			return types.Cancel{}
		}
		selected := []string{}
		for _, name := range strings.Split(line, ",") {
			if name = strings.TrimSpace(name); name != "" {
				selected = append(selected, name)
			}
		}
		return types.CLISelectionResponse{Selected: selected}

	case types.InputWizard:
		if req.CurrentStep >= len(req.Steps) {
			return types.Skip{Reason: "wizard has no current step"}
		}
		values, ok := t.fillForm(req.Steps[req.CurrentStep].Form)
		if !ok {
			return types.Cancel{}
		}
		return types.WizardStepSubmit{WizardID: req.WizardID, Step: req.CurrentStep, Values: values}

	default:
		values, ok := t.fillForm(req.FormSpec)
		if !ok {
			return types.Cancel{}
		}
		return types.FormSubmit{FormID: req.FormID, Values: values}
	}
}

func (t *terminal) fillForm(form types.FormSpec) (map[string]string, bool) {
	values := make(map[string]string, len(form.Fields))
	for _, f := range form.Fields {
		label := orString(f.Label, f.Name)
		if len(f.Options) > 0 {
			opts := make([]string, len(f.Options))
			for i, o := range f.Options {
				opts[i] = o.Value
			}
			label += " (" + strings.Join(opts, "|") + ")"
		}
		if f.DefaultValue != "" {
			label += " [" + f.DefaultValue + "]"
		}
		line, ok := t.readLine(label + ":")
		if !ok {
			return nil, false
		}
		if line == "" {
			line = f.DefaultValue
		}
		values[f.Name] = line
	}
	return values, true
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
