// Package store is the capability interface of the event store. It is
// composed from small single-method interfaces so backends can be partially
// implemented; optional capabilities return ErrNotSupported.
package store

import (
	"errors"
	"io"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/utils/context"
)

// ErrNotSupported is returned by backends that do not implement an optional
// capability, such as seen-on-relay tracking.
var ErrNotSupported = errors.New("store: operation not supported")

// SaveStatus is the outcome class of a SaveEvent call.
type SaveStatus int

const (
	// Stored means the event was written.
	Stored SaveStatus = iota
	// Duplicate means the event was already present; the store is unchanged.
	Duplicate
	// Rejected means policy refused the event; Reason explains why.
	Rejected
)

// Rejection reasons.
const (
	ReasonEphemeral       = "ephemeral"
	ReasonDeleted         = "deleted"
	ReasonReplaced        = "replaced"
	ReasonInvalidDeletion = "invalid deletion"
)

// SaveResult reports what SaveEvent did.
type SaveResult struct {
	Status SaveStatus
	Reason string
}

// Item is an (id, created_at) pair, the unit of negentropy reconciliation.
type Item struct {
	ID        []byte
	CreatedAt int64
}

// Coordinate is the natural key of a replaceable event.
type Coordinate struct {
	Kind       uint16
	Pubkey     []byte
	Identifier []byte
}

// I is the full event store interface consumed by the relay pool and the
// daemon.
type I interface {
	io.Closer
	Pather
	Saver
	Querent
	Counter
	Haser
	Tombstoner
	NegentropyItemer
	Deleter
	Wiper
	Syncer
	SeenTracker
}

type Pather interface {
	// Path returns the directory of the database, empty for memory backends.
	Path() (s string)
}

type Saver interface {
	// SaveEvent applies the full persistence policy: ephemeral rejection,
	// duplicate detection, tombstone checks, replaceable supersession and
	// deletion-event processing, all within one write transaction.
	SaveEvent(c context.T, ev *event.E) (res SaveResult, err error)
}

type Querent interface {
	// QueryEvents returns events matching any of the filters, newest first,
	// deduplicated, each filter's limit honored.
	QueryEvents(c context.T, ff *filters.T) (evs event.S, err error)
}

type Counter interface {
	// CountEvents is QueryEvents without materializing event bodies.
	CountEvents(c context.T, ff *filters.T) (count int, err error)
}

type Haser interface {
	// HasEvent probes the primary index for an id.
	HasEvent(c context.T, id []byte) (has bool, err error)
}

type Tombstoner interface {
	// IsDeleted reports whether the id carries a deletion tombstone.
	IsDeleted(c context.T, id []byte) (deleted bool, err error)
	// WhenCoordinateDeleted returns the tombstone timestamp for a
	// coordinate, nil if none exists.
	WhenCoordinateDeleted(c context.T, coord *Coordinate) (
		ts *timestamp.T, err error,
	)
}

type NegentropyItemer interface {
	// NegentropyItems returns the (id, created_at) pairs selected by the
	// filter, ordered ascending by (created_at, id), for reconciliation.
	NegentropyItems(c context.T, f *filter.F) (items []Item, err error)
}

type Deleter interface {
	// DeleteEvents removes matching events outright. No tombstones are
	// written; this is local pruning, not NIP-09 deletion.
	DeleteEvents(c context.T, f *filter.F) (n int, err error)
}

type Wiper interface {
	// Wipe drops every index in one transaction.
	Wipe() (err error)
}

type Syncer interface {
	// Sync flushes buffers to stable storage.
	Sync() (err error)
}

type SeenTracker interface {
	// EventSeen records that an event was observed on a relay. Optional;
	// backends may return ErrNotSupported.
	EventSeen(c context.T, id []byte, relayURL string) (err error)
	// SeenOn returns the relay URLs an event has been observed on.
	SeenOn(c context.T, id []byte) (urls []string, err error)
}
