package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCommandStart  EventType = "command_start"
	EventCommandFinish EventType = "command_finish"
)

// CommandEvent describes one command dispatch.
type CommandEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	Type       EventType     `json:"type"`
	WorkflowID string        `json:"workflow_id,omitempty"`
	NodeID     string        `json:"node_id"`
	QueryType  QueryType     `json:"query_type"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// LifecycleHooks defines callbacks for dispatcher observability.
type LifecycleHooks struct {
	OnCommandStart  func(context.Context, *CommandEvent)
	OnCommandFinish func(context.Context, *CommandEvent)
}
