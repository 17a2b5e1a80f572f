package types

import "context"

// Detector produces a snapshot of installed CLI tools.
type Detector interface {
	// DetectAll inspects every known tool.
	DetectAll(ctx context.Context) *DetectionReport
	// DetectOne inspects a single named tool and skips wrapper discovery.
	DetectOne(ctx context.Context, name string) *DetectionReport
}

// EventSink receives outward events in emission order.
type EventSink interface {
	Emit(e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }
