// Package dispatch is the runtime embedded in every deployed fusion group.
// It routes an inbound invocation to the task handler named by the
// Task-Name header and short-circuits outbound calls that target a
// co-located task, so an inter-task call between fused tasks becomes a plain
// function call instead of a network round-trip.
package dispatch

import (
	"fmt"
	"net/http"
)

// Routing headers carried on every invocation.
const (
	HeaderTaskName      = "Task-Name"
	HeaderServerAddress = "Fusionizer-Server-Address"
)

// Event is one inbound invocation as seen by a task handler.
type Event struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// Handler is the entry point of a single task. The returned string is the
// invocation response body.
type Handler func(ctx *Context, event Event) (string, error)

// ConfigError reports a missing runtime precondition, surfaced before any
// task code runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "dispatch configuration error: " + e.Reason
}

// ProtocolError reports a malformed or unroutable invocation.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "dispatch protocol error: " + e.Reason
}

func missingHeader(name string) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf("no value for the %q field was provided in the header", name)}
}
