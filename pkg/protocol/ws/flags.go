package ws

import (
	"strings"

	"go.uber.org/atomic"
)

// ServiceFlags is the bitmap of roles a relay plays in a pool. Operations
// consult the flags to decide whether a relay participates.
type ServiceFlags uint32

const (
	// FlagRead marks a relay subscriptions and fetches go to.
	FlagRead ServiceFlags = 1 << iota
	// FlagWrite marks a relay events are published to.
	FlagWrite
	// FlagPing marks a relay kept warm with heartbeats.
	FlagPing
	// FlagDiscovery marks a relay used to find relay lists.
	FlagDiscovery
	// FlagInbox marks a NIP-17 inbox relay.
	FlagInbox
	// FlagOutbox marks a NIP-65 outbox relay.
	FlagOutbox
)

// Has reports whether all the given bits are set.
func (f ServiceFlags) Has(bits ServiceFlags) bool { return f&bits == bits }

// Add returns the flags with bits set.
func (f ServiceFlags) Add(bits ServiceFlags) ServiceFlags { return f | bits }

// Remove returns the flags with bits cleared.
func (f ServiceFlags) Remove(bits ServiceFlags) ServiceFlags {
	return f &^ bits
}

// String renders the flags for logs.
func (f ServiceFlags) String() string {
	var parts []string
	for _, fl := range []struct {
		bit  ServiceFlags
		name string
	}{
		{FlagRead, "read"}, {FlagWrite, "write"}, {FlagPing, "ping"},
		{FlagDiscovery, "discovery"}, {FlagInbox, "inbox"},
		{FlagOutbox, "outbox"},
	} {
		if f.Has(fl.bit) {
			parts = append(parts, fl.name)
		}
	}
	return strings.Join(parts, "|")
}

// AtomicFlags is a shared mutable flag cell.
type AtomicFlags struct {
	v atomic.Uint32
}

// Load returns the current flags.
func (a *AtomicFlags) Load() ServiceFlags {
	return ServiceFlags(a.v.Load())
}

// Store replaces the flags.
func (a *AtomicFlags) Store(f ServiceFlags) { a.v.Store(uint32(f)) }

// Set ors bits into the flags.
func (a *AtomicFlags) Set(bits ServiceFlags) {
	for {
		old := a.v.Load()
		if a.v.CompareAndSwap(old, old|uint32(bits)) {
			return
		}
	}
}

// Clear removes bits from the flags.
func (a *AtomicFlags) Clear(bits ServiceFlags) {
	for {
		old := a.v.Load()
		if a.v.CompareAndSwap(old, old&^uint32(bits)) {
			return
		}
	}
}
