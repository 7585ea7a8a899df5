package domain

import "testing"

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from Status
		ev   EventKind
		want Status
		ok   bool
	}{
		{"pairing code starts pairing", StatusInitializing, EventPairingCode, StatusWaitingForPairing, true},
		{"regenerated pairing code", StatusWaitingForPairing, EventPairingCode, StatusWaitingForPairing, true},
		{"pairing accepted", StatusWaitingForPairing, EventAuthenticated, StatusAuthenticated, true},
		{"handshake completes", StatusAuthenticated, EventReady, StatusReady, true},
		{"restore skips pairing", StatusInitializing, EventReady, StatusReady, true},
		{"transport loss", StatusReady, EventDisconnected, StatusDisconnected, true},
		{"scheduler fires", StatusDisconnected, EventReconnect, StatusReconnecting, true},
		{"scheduler fires from error", StatusError, EventReconnect, StatusReconnecting, true},
		{"new client attached", StatusReconnecting, EventClientAttached, StatusInitializing, true},
		{"preventive reconnect", StatusReady, EventReconnect, StatusReconnecting, true},

		{"stop is always legal", StatusReady, EventStop, StatusStopped, true},
		{"stop from reconnecting", StatusReconnecting, EventStop, StatusStopped, true},
		{"shutdown is always legal", StatusWaitingForPairing, EventShutdown, StatusShutdown, true},

		{"auth rejection", StatusWaitingForPairing, EventAuthFailed, StatusAuthFailed, true},
		{"auth rejection from ready", StatusReady, EventAuthFailed, StatusAuthFailed, true},
		{"auth rejection blocked when stopped", StatusStopped, EventAuthFailed, StatusStopped, false},
		{"fatal error", StatusReady, EventFatalError, StatusError, true},
		{"fatal error blocked when stopped", StatusStopped, EventFatalError, StatusStopped, false},

		{"operator restart from stopped", StatusStopped, EventClientAttached, StatusInitializing, true},
		{"operator fresh pairing from auth_failed", StatusAuthFailed, EventClientAttached, StatusInitializing, true},
		{"no reconnect from stopped", StatusStopped, EventReconnect, StatusStopped, false},
		{"no ready from disconnected", StatusDisconnected, EventReady, StatusDisconnected, false},
		{"no pairing code when ready", StatusReady, EventPairingCode, StatusReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Transition(tt.from, tt.ev)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Transition(%s, %s) = (%s, %v), want (%s, %v)",
					tt.from, tt.ev, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	terminal := []Status{StatusAuthFailed, StatusStopped, StatusShutdown}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	live := []Status{StatusInitializing, StatusWaitingForPairing, StatusAuthenticated,
		StatusReady, StatusDisconnected, StatusReconnecting, StatusError}
	for _, s := range live {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
