package ws

import (
	"time"

	"parley.dev/pkg/utils/units"
)

// Protocol timing and sizing constants.
const (
	// WebsocketTxTimeout bounds one outbound send.
	WebsocketTxTimeout = 10 * time.Second

	// PingInterval is the application-level heartbeat period while
	// connected.
	PingInterval = 50 * time.Second

	// ConnectTimeout bounds the websocket dial and handshake.
	ConnectTimeout = 15 * time.Second

	// DefaultRetrySec is the reconnect interval when none is configured.
	DefaultRetrySec = 10

	// MinRetrySec is the smallest accepted reconnect interval; smaller
	// settings fall back to DefaultRetrySec.
	MinRetrySec = 5

	// MaxAdjRetrySec caps the widened reconnect interval when
	// AdjustRetrySec is enabled.
	MaxAdjRetrySec = 120

	// BatchEventIterationTimeout bounds the wait for an OK after
	// submitting an event.
	BatchEventIterationTimeout = 15 * time.Second

	// MaxMessageSize is the largest inbound frame accepted.
	MaxMessageSize = 5 * units.MiB

	// MaxEventSize is the largest serialized event accepted.
	MaxEventSize = 70 * units.KiB

	// MaxContactListEventSize is the relaxed ceiling for kind 3 follow
	// lists, which legitimately grow huge.
	MaxContactListEventSize = 840 * units.KiB

	// NegentropyHighWaterUp pauses queueing uploads during sync when this
	// many are in flight.
	NegentropyHighWaterUp = 100

	// NegentropyLowWaterUp resumes queueing uploads below this.
	NegentropyLowWaterUp = 50

	// NegentropyBatchSizeDown is how many missing events are requested per
	// REQ during sync.
	NegentropyBatchSizeDown = 50

	// DefaultNotificationChannelSize is the pool notification buffer.
	DefaultNotificationChannelSize = 4096
)
