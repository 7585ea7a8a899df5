package domain

// EventKind is a lifecycle event applied to a session's status.
type EventKind string

const (
	EventPairingCode    EventKind = "pairing_code"
	EventAuthenticated  EventKind = "authenticated"
	EventReady          EventKind = "ready"
	EventDisconnected   EventKind = "disconnected"
	EventAuthFailed     EventKind = "auth_failed"
	EventFatalError     EventKind = "fatal_error"
	EventReconnect      EventKind = "reconnect"
	EventClientAttached EventKind = "client_attached"
	EventStop           EventKind = "stop"
	EventShutdown       EventKind = "shutdown"
)

// Transition computes the next status for a session given a lifecycle
// event. It is a pure function; callers mutate the session only when the
// returned ok is true. Terminal states only leave via EventClientAttached
// (operator-forced fresh pairing) or the stop/shutdown events themselves.
func Transition(s Status, ev EventKind) (Status, bool) {
	switch ev {
	case EventStop:
		return StatusStopped, true
	case EventShutdown:
		return StatusShutdown, true
	case EventAuthFailed:
		if s.Terminal() {
			return s, false
		}
		return StatusAuthFailed, true
	case EventFatalError:
		if s.Terminal() {
			return s, false
		}
		return StatusError, true
	}

	switch s {
	case StatusInitializing:
		switch ev {
		case EventPairingCode:
			return StatusWaitingForPairing, true
		case EventAuthenticated:
			return StatusAuthenticated, true
		case EventReady:
			// Already-authenticated restore skips pairing entirely.
			return StatusReady, true
		case EventDisconnected:
			return StatusDisconnected, true
		case EventReconnect:
			return StatusReconnecting, true
		}
	case StatusWaitingForPairing:
		switch ev {
		case EventPairingCode:
			// Regenerated code while still unpaired.
			return StatusWaitingForPairing, true
		case EventAuthenticated:
			return StatusAuthenticated, true
		case EventDisconnected:
			return StatusDisconnected, true
		case EventReconnect:
			return StatusReconnecting, true
		}
	case StatusAuthenticated:
		switch ev {
		case EventReady:
			return StatusReady, true
		case EventDisconnected:
			return StatusDisconnected, true
		case EventReconnect:
			return StatusReconnecting, true
		}
	case StatusReady:
		switch ev {
		case EventDisconnected:
			return StatusDisconnected, true
		case EventReconnect:
			// Preventive reconnect from the keep-alive prober.
			return StatusReconnecting, true
		}
	case StatusDisconnected, StatusError:
		switch ev {
		case EventReconnect:
			return StatusReconnecting, true
		}
	case StatusReconnecting:
		switch ev {
		case EventClientAttached:
			return StatusInitializing, true
		case EventDisconnected:
			return StatusDisconnected, true
		case EventReconnect:
			return StatusReconnecting, true
		}
	case StatusAuthFailed, StatusStopped:
		switch ev {
		case EventClientAttached:
			// Operator-forced fresh pairing or restart.
			return StatusInitializing, true
		}
	}
	return s, false
}
