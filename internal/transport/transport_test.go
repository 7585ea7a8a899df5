package transport

import "testing"

func TestIsFatalReason(t *testing.T) {
	t.Parallel()

	fatal := []string{
		"Protocol error (Runtime.callFunctionOn): Session closed.",
		"Target closed",
		"connection closed unexpectedly",
		"session closed before reply",
	}
	for _, reason := range fatal {
		if !IsFatalReason(reason) {
			t.Fatalf("%q should be fatal", reason)
		}
	}

	transient := []string{
		"",
		"timeout waiting for pong",
		"stream reset by peer",
		"network unreachable",
	}
	for _, reason := range transient {
		if IsFatalReason(reason) {
			t.Fatalf("%q should not be fatal", reason)
		}
	}
}

func TestTranslateMessageEvent(t *testing.T) {
	t.Parallel()

	ev, ok := translate(wireEvent{
		Event: "message",
		Message: &wireMessage{
			ID:        "m1",
			ChatID:    "chat-1",
			Text:      "hello",
			Timestamp: 1700000000,
		},
	})
	if !ok || ev.Type != EventMessage || ev.Message == nil {
		t.Fatalf("message frame not translated: %+v", ev)
	}
	if ev.Message.Timestamp.Unix() != 1700000000 {
		t.Fatalf("timestamp not converted: %v", ev.Message.Timestamp)
	}

	if _, ok := translate(wireEvent{Event: "message"}); ok {
		t.Fatal("message frame without payload must be rejected")
	}
	if _, ok := translate(wireEvent{Event: "unknown-event"}); ok {
		t.Fatal("unknown frames must be rejected")
	}
}
