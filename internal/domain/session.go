// Package domain contains core domain types for the bot session supervisor.
package domain

import (
	"time"
)

// Status is the lifecycle state of a bot session.
type Status string

const (
	StatusInitializing      Status = "initializing"
	StatusWaitingForPairing Status = "waiting_for_pairing"
	StatusAuthenticated     Status = "authenticated"
	StatusReady             Status = "ready"
	StatusDisconnected      Status = "disconnected"
	StatusReconnecting      Status = "reconnecting"
	StatusAuthFailed        Status = "auth_failed"
	StatusError             Status = "error"
	StatusStopped           Status = "stopped"
	StatusShutdown          Status = "shutdown"
)

// Terminal reports whether the status is an end state that the supervisor
// will not leave without an explicit operator action.
func (s Status) Terminal() bool {
	switch s {
	case StatusAuthFailed, StatusStopped, StatusShutdown:
		return true
	}
	return false
}

// SessionRecord is the persisted shape of a session, used for restart
// recovery. In-memory runtime state (caches, timers, counters that are
// cheap to rebuild) is intentionally not part of it.
type SessionRecord struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	AssistantLabel string     `json:"assistant_label"`
	OwnerID        string     `json:"owner_id"`
	Status         Status     `json:"status"`
	PhoneIdentity  string     `json:"phone_identity,omitempty"`
	IsActive       bool       `json:"is_active"`
	MessageCount   int64      `json:"message_count"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasPairedBefore reports whether the record carries a messaging identity
// from a previous successful pairing.
func (r *SessionRecord) HasPairedBefore() bool {
	return r.PhoneIdentity != ""
}

// SessionView is the public projection of a session published to
// subscribers and returned by the admin surface.
type SessionView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	PhoneIdentity  string     `json:"phone_identity,omitempty"`
	IsActive       bool       `json:"is_active"`
	MessageCount   int64      `json:"message_count"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PairingCode    string     `json:"pairing_code,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}
