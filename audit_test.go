package goThrottle

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func auditConfig(c *Config) {
	c.Audit.Enabled = true
	c.Audit.BufferSize = 64
	c.Audit.DropIfFull = false
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()

	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLockoutSequence(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, auditConfig, sink)

	failLogin(t, te, "user1@test.com", "10.0.0.2", 3)

	for i := 0; i < 3; i++ {
		ev := nextEvent(t, sink)
		if ev.Type != auditEventLoginFailure {
			t.Fatalf("event %d: expected %s, got %s", i, auditEventLoginFailure, ev.Type)
		}
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("event %d: expected invalid_credentials, got %q", i, ev.Error)
		}
	}

	ev := nextEvent(t, sink)
	if ev.Type != auditEventLoginLockout {
		t.Fatalf("expected %s, got %s", auditEventLoginLockout, ev.Type)
	}
	if ev.Subject != "user1@test.com" || ev.Client != "10.0.0.2" {
		t.Fatalf("unexpected target: %+v", ev)
	}
	if ev.Metadata["block"] != "10s" || ev.Metadata["failed_count"] != "3" {
		t.Fatalf("unexpected metadata: %v", ev.Metadata)
	}
	if ev.ID == "" || !ev.Timestamp.Equal(te.clock.Now()) {
		t.Fatalf("event not stamped: %+v", ev)
	}
}

func TestAuditRateLimitBlockAndUnlock(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, auditConfig, sink)
	ctx := context.Background()
	req := RateLimitRequest{LimiterKey: "verify", ClientIdentity: "1.1.1.1", Subject: "alice", MaxRequests: 1}

	for i := 0; i < 3; i++ {
		if _, err := te.CheckRateLimit(ctx, req); err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	ev := nextEvent(t, sink)
	if ev.Type != auditEventRateLimitBlocked || ev.Limiter != "verify" || ev.Metadata["max_requests"] != "1" {
		t.Fatalf("unexpected block event: %+v", ev)
	}

	if _, err := te.UnlockRateLimitsForSubject(ctx, "alice"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	ev = nextEvent(t, sink)
	if ev.Type != auditEventSubjectRateUnlocked || ev.Metadata["deleted_keys"] != "2" {
		t.Fatalf("unexpected unlock event: %+v", ev)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditJSONWriterSinkThroughEngine(t *testing.T) {
	var out syncBuffer
	te := newTestEngine(t, auditConfig, NewJSONWriterSink(&out))

	if err := te.ResetLogin(context.Background(), "user2@test.com", "10.0.0.4"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	te.Close()

	line := strings.TrimSpace(out.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	if decoded["type"] != auditEventLoginReset || decoded["subject"] != "user2@test.com" {
		t.Fatalf("unexpected event: %v", decoded)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(4)
	te := newTestEngine(t, nil, sink)

	failLogin(t, te, "s", "c", 3)

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
