package goThrottle

import (
	"io"

	"github.com/MrEthical07/goThrottle/internal/audit"
)

// AuditEvent is one throttling decision or admin action.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events to a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
