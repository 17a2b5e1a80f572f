package types

import (
	"encoding/json"
)

// EventKind tags an outward event.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventProgress   EventKind = "progress"
	EventNeedInput  EventKind = "need_input"
	EventShowResult EventKind = "show_result"
	EventComplete   EventKind = "complete"
	EventError      EventKind = "error"
)

// Event is a push-only notification from a setup session. The set of
// implementations is closed; consumers implement EventHandler.
type Event interface {
	Kind() EventKind
	Accept(h EventHandler)
}

// EventHandler has one method per Event variant.
type EventHandler interface {
	OnStatus(StatusEvent)
	OnProgress(ProgressEvent)
	OnNeedInput(NeedInputEvent)
	OnShowResult(ShowResultEvent)
	OnComplete(CompleteEvent)
	OnError(ErrorEvent)
}

// StatusEvent is a one-line status message.
type StatusEvent struct {
	Message string `json:"message"`
}

// ProgressEvent reports turn progress.
type ProgressEvent struct {
	Message string   `json:"message"`
	Percent *float64 `json:"percent,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

// NeedInputEvent suspends the session until a UserResponse arrives.
type NeedInputEvent struct {
	Action InputRequest `json:"action"`
}

// ShowResultEvent carries a structured result for display.
type ShowResultEvent struct {
	Content ResultContent `json:"content"`
}

// CompleteEvent is the terminal success notification.
type CompleteEvent struct {
	Summary string   `json:"summary"`
	Items   []string `json:"items"`
}

// ErrorEvent reports a failure. Non-recoverable errors end the session.
type ErrorEvent struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (StatusEvent) Kind() EventKind     { return EventStatus }
func (ProgressEvent) Kind() EventKind   { return EventProgress }
func (NeedInputEvent) Kind() EventKind  { return EventNeedInput }
func (ShowResultEvent) Kind() EventKind { return EventShowResult }
func (CompleteEvent) Kind() EventKind   { return EventComplete }
func (ErrorEvent) Kind() EventKind      { return EventError }

func (e StatusEvent) Accept(h EventHandler)     { h.OnStatus(e) }
func (e ProgressEvent) Accept(h EventHandler)   { h.OnProgress(e) }
func (e NeedInputEvent) Accept(h EventHandler)  { h.OnNeedInput(e) }
func (e ShowResultEvent) Accept(h EventHandler) { h.OnShowResult(e) }
func (e CompleteEvent) Accept(h EventHandler)   { h.OnComplete(e) }
func (e ErrorEvent) Accept(h EventHandler)      { h.OnError(e) }

// MarshalEvent encodes e as {"event": kind, "data": {...}}.
func MarshalEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Event EventKind       `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{e.Kind(), data})
}

// =============================================================================
// SHOW_RESULT PAYLOADS
// =============================================================================

// ResultType tags a ResultContent variant.
type ResultType string

const (
	ResultCommandOutput    ResultType = "command_output"
	ResultDetectionSummary ResultType = "detection_summary"
	ResultConfigWritten    ResultType = "config_written"
	ResultTestResult       ResultType = "test_result"
)

// ResultContent is the payload of a show_result event.
type ResultContent interface {
	ResultType() ResultType
}

// CommandOutput is the captured result of a sandboxed command.
type CommandOutput struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// DetectionSummary condenses a detection report.
type DetectionSummary struct {
	Tools []ToolSummary `json:"tools"`
}

// ConfigWritten reports a sandboxed config write.
type ConfigWritten struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// TestResult reports a test_integration run.
type TestResult struct {
	Model   string `json:"model"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

func (CommandOutput) ResultType() ResultType    { return ResultCommandOutput }
func (DetectionSummary) ResultType() ResultType { return ResultDetectionSummary }
func (ConfigWritten) ResultType() ResultType    { return ResultConfigWritten }
func (TestResult) ResultType() ResultType       { return ResultTestResult }

func (c CommandOutput) MarshalJSON() ([]byte, error) {
	type alias CommandOutput
	return marshalTagged("type", string(ResultCommandOutput), alias(c))
}

func (c DetectionSummary) MarshalJSON() ([]byte, error) {
	type alias DetectionSummary
	return marshalTagged("type", string(ResultDetectionSummary), alias(c))
}

func (c ConfigWritten) MarshalJSON() ([]byte, error) {
	type alias ConfigWritten
	return marshalTagged("type", string(ResultConfigWritten), alias(c))
}

func (c TestResult) MarshalJSON() ([]byte, error) {
	type alias TestResult
	return marshalTagged("type", string(ResultTestResult), alias(c))
}
