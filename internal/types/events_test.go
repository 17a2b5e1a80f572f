package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEventEnvelope(t *testing.T) {
	pct := 40.0
	cases := []struct {
		name  string
		event Event
		want  string
	}{
		{"status", StatusEvent{Message: "Thinking..."}, `{"event":"status","data":{"message":"Thinking..."}}`},
		{"progress", ProgressEvent{Message: "Agent turn 10/25...", Percent: &pct},
			`{"event":"progress","data":{"message":"Agent turn 10/25...","percent":40}}`},
		{"complete", CompleteEvent{Summary: "s", Items: []string{"a"}},
			`{"event":"complete","data":{"summary":"s","items":["a"]}}`},
		{"error", ErrorEvent{Message: "boom", Recoverable: true},
			`{"event":"error","data":{"message":"boom","recoverable":true}}`},
		{"show_result", ShowResultEvent{Content: TestResult{Model: "m", Success: true, Output: "ok"}},
			`{"event":"show_result","data":{"content":{"model":"m","output":"ok","success":true,"type":"test_result"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalEvent(tc.event)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestNeedInputCarriesRequestUnchanged(t *testing.T) {
	req := InputRequest{Kind: InputOAuthFlow, Provider: "claude", LoginCommand: "claude login", Instructions: "do it"}
	got, err := MarshalEvent(NeedInputEvent{Action: req})
	require.NoError(t, err)

	var env struct {
		Data struct {
			Action map[string]interface{} `json:"action"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(got, &env))
	assert.Equal(t, "oauth_flow", env.Data.Action["type"])
	assert.Equal(t, "claude login", env.Data.Action["login_command"])
	assert.NotContains(t, env.Data.Action, "fields")
}

type kindCollector struct{ kinds []EventKind }

func (k *kindCollector) OnStatus(e StatusEvent)         { k.kinds = append(k.kinds, e.Kind()) }
func (k *kindCollector) OnProgress(e ProgressEvent)     { k.kinds = append(k.kinds, e.Kind()) }
func (k *kindCollector) OnNeedInput(e NeedInputEvent)   { k.kinds = append(k.kinds, e.Kind()) }
func (k *kindCollector) OnShowResult(e ShowResultEvent) { k.kinds = append(k.kinds, e.Kind()) }
func (k *kindCollector) OnComplete(e CompleteEvent)     { k.kinds = append(k.kinds, e.Kind()) }
func (k *kindCollector) OnError(e ErrorEvent)           { k.kinds = append(k.kinds, e.Kind()) }

func TestEventAccept(t *testing.T) {
	c := &kindCollector{}
	for _, e := range []Event{StatusEvent{}, ErrorEvent{}, CompleteEvent{}} {
		e.Accept(c)
	}
	assert.Equal(t, []EventKind{EventStatus, EventError, EventComplete}, c.kinds)
}

func TestDetectionSummarize(t *testing.T) {
	r := &DetectionReport{
		Tools: []ToolInfo{
			{Name: "claude", Installed: true, Version: "1.0.0", Authenticated: true},
			{Name: "codex"},
		},
		Wrappers: []WrapperInfo{
			{Name: "cc", TargetCLI: "claude"},
			{Name: "cc2", TargetCLI: "claude"},
			{Name: "misc"},
		},
	}

	sum := r.Summarize()
	require.Len(t, sum, 2)
	assert.Equal(t, 2, sum[0].WrapperCount)
	assert.Equal(t, 0, sum[1].WrapperCount)
	assert.NotNil(t, sum[1].Profiles)

	assert.True(t, r.Installed("claude"))
	assert.False(t, r.Installed("codex"))
	assert.False(t, r.Installed("gemini"))
	assert.Equal(t, []string{"claude"}, r.InstalledNames())
}
