package ws

import (
	"go.uber.org/atomic"
)

// Status is the relay connection state machine. Disconnected is transient
// and retried; Terminated is final.
type Status int32

const (
	// StatusInitialized: created, never asked to connect.
	StatusInitialized Status = iota
	// StatusPending: connection requested, not yet attempted.
	StatusPending
	// StatusConnecting: dial and handshake in progress.
	StatusConnecting
	// StatusConnected: socket up, reader and writer running.
	StatusConnected
	// StatusDisconnected: socket lost, a retry is scheduled.
	StatusDisconnected
	// StatusTerminated: closed for good, no retries.
	StatusTerminated
)

// String renders the status for logs and notifications.
func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusPending:
		return "pending"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusTerminated:
		return "terminated"
	}
	return "unknown"
}

// atomicStatus is a shared status cell.
type atomicStatus struct {
	v atomic.Int32
}

func (a *atomicStatus) Load() Status   { return Status(a.v.Load()) }
func (a *atomicStatus) Store(s Status) { a.v.Store(int32(s)) }

// compareAndSwap transitions only from an expected state.
func (a *atomicStatus) compareAndSwap(from, to Status) bool {
	return a.v.CompareAndSwap(int32(from), int32(to))
}
