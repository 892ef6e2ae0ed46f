package ws

import (
	"net/http"
	"time"
)

// ConnectionMode selects how the socket reaches the relay.
type ConnectionMode int

const (
	// ConnectionDirect dials the relay address directly.
	ConnectionDirect ConnectionMode = iota
	// ConnectionProxy dials through a SOCKS5 proxy.
	ConnectionProxy
)

// FilteringMode selects how the per-relay id filter set is interpreted.
type FilteringMode int

const (
	// FilterBlacklist drops events whose id is in the set.
	FilterBlacklist FilteringMode = iota
	// FilterWhitelist drops events whose id is not in the set.
	FilterWhitelist
)

// Limits bounds inbound message and event sizes.
type Limits struct {
	MaxMessageSize          int
	MaxEventSize            int
	MaxContactListEventSize int
}

// DefaultLimits returns the protocol default sizes.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize:          MaxMessageSize,
		MaxEventSize:            MaxEventSize,
		MaxContactListEventSize: MaxContactListEventSize,
	}
}

// Options configures one relay connection.
type Options struct {
	// ConnectionMode selects direct or proxied dialing.
	ConnectionMode ConnectionMode
	// ProxyAddr is the SOCKS5 address for ConnectionProxy.
	ProxyAddr string
	// Flags are the initial service flags.
	Flags ServiceFlags
	// PowMinDifficulty drops inbound events below this NIP-13 difficulty.
	PowMinDifficulty uint8
	// Reconnect enables automatic reconnection after a drop.
	Reconnect bool
	// RetrySec is the reconnect interval in seconds; values below
	// MinRetrySec are replaced by DefaultRetrySec.
	RetrySec uint64
	// AdjustRetrySec widens RetrySec exponentially up to MaxAdjRetrySec
	// after consecutive failures and shrinks it again on success.
	AdjustRetrySec bool
	// Limits bounds inbound sizes.
	Limits Limits
	// MaxAvgLatency terminates relays whose ping average exceeds it; zero
	// disables the check.
	MaxAvgLatency time.Duration
	// FilteringMode interprets the id filter set.
	FilteringMode FilteringMode
	// RequestHeader is added to the websocket handshake.
	RequestHeader http.Header
	// AssumeValid skips signature verification of inbound events.
	AssumeValid bool
}

// DefaultOptions returns the standard relay configuration: read and write
// flagged, reconnecting, protocol default limits.
func DefaultOptions() *Options {
	return &Options{
		Flags:     FlagRead | FlagWrite | FlagPing,
		Reconnect: true,
		RetrySec:  DefaultRetrySec,
		Limits:    DefaultLimits(),
	}
}

// normalize clamps out-of-range settings.
func (o *Options) normalize() {
	if o.RetrySec < MinRetrySec {
		o.RetrySec = DefaultRetrySec
	}
	if o.Limits.MaxMessageSize == 0 {
		o.Limits.MaxMessageSize = MaxMessageSize
	}
	if o.Limits.MaxEventSize == 0 {
		o.Limits.MaxEventSize = MaxEventSize
	}
	if o.Limits.MaxContactListEventSize == 0 {
		o.Limits.MaxContactListEventSize = MaxContactListEventSize
	}
}

// AutoCloseMode selects when an auto-closing subscription ends.
type AutoCloseMode int

const (
	// ExitOnEOSE closes when the relay signals end of stored events.
	ExitOnEOSE AutoCloseMode = iota
	// WaitForEvents closes after N events have been received.
	WaitForEvents
	// WaitDuration closes after a fixed time.
	WaitDuration
)

// AutoClose describes an auto-closing subscription.
type AutoClose struct {
	Mode AutoCloseMode
	// N is the event count for WaitForEvents.
	N int
	// After is the duration for WaitDuration.
	After time.Duration
	// Timeout bounds the whole subscription regardless of mode; zero
	// means no bound.
	Timeout time.Duration
}

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	// AutoClose, when set, unsubscribes automatically per its mode.
	AutoClose *AutoClose
	// Label is prefixed to generated subscription ids.
	Label string
}

// SyncDirection selects which way events flow after reconciliation.
type SyncDirection int

const (
	// SyncDown fetches events missing locally.
	SyncDown SyncDirection = iota
	// SyncUp sends events missing remotely.
	SyncUp
	// SyncBoth does both.
	SyncBoth
)

// SyncOptions configures a reconciliation run.
type SyncOptions struct {
	// InitialTimeout bounds the wait for the first NEG-MSG reply.
	InitialTimeout time.Duration
	// Direction selects the transfer direction. Default SyncDown.
	Direction SyncDirection
	// DryRun reconciles without transferring events.
	DryRun bool
	// Progress, when set, receives a ProgressUpdate per round.
	Progress chan ProgressUpdate
}

// ProgressUpdate is one round's sync progress.
type ProgressUpdate struct {
	URL           string
	LocalMissing  int
	RemoteMissing int
}

// DefaultSyncOptions returns the standard sync configuration.
func DefaultSyncOptions() *SyncOptions {
	return &SyncOptions{
		InitialTimeout: 10 * time.Second,
		Direction:      SyncDown,
	}
}
