package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"parley.dev/pkg/encoders/envelopes/closeenvelope"
	"parley.dev/pkg/encoders/envelopes/reqenvelope"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/utils/context"
)

// Subscription is one REQ running on one relay. Events stream on Events;
// EndOfStoredEvents fires once when the relay signals EOSE; ClosedReason
// delivers a relay-side CLOSED.
type Subscription struct {
	id *subscription.Id

	Client  *Client
	Filters *filters.T

	// Events carries everything the subscription matches; closed when the
	// subscription ends.
	Events event.C
	mu     sync.Mutex

	// EndOfStoredEvents signals the end of historical replay.
	EndOfStoredEvents chan struct{}

	// ClosedReason delivers the reason of a relay-side CLOSED.
	ClosedReason chan string

	// Context is done when the subscription ends.
	Context context.T

	match  func(*event.E) bool
	live   atomic.Bool
	eosed  atomic.Bool
	cancel context.C

	autoClose  *AutoClose
	eventCount atomic.Int64

	// storedwg tracks pre-EOSE events still being dispatched so EOSE is
	// not signaled ahead of them.
	storedwg sync.WaitGroup
}

// GetID returns the subscription id.
func (sub *Subscription) GetID() string { return sub.id.String() }

// start watches for the end of the subscription's context and tears down.
func (sub *Subscription) start() {
	if sub.autoClose != nil && sub.autoClose.Timeout > 0 {
		t := time.AfterFunc(sub.autoClose.Timeout, func() {
			sub.unsub(errors.New("auto-close timeout"))
		})
		defer t.Stop()
	}
	if sub.autoClose != nil && sub.autoClose.Mode == WaitDuration &&
		sub.autoClose.After > 0 {
		t := time.AfterFunc(sub.autoClose.After, func() {
			sub.unsub(errors.New("auto-close duration elapsed"))
		})
		defer t.Stop()
	}
	<-sub.Context.Done()
	sub.unsub(errors.New("context done"))
	sub.mu.Lock()
	close(sub.Events)
	sub.mu.Unlock()
}

// dispatchEvent hands one event to the consumer.
func (sub *Subscription) dispatchEvent(evt *event.E) {
	added := false
	if !sub.eosed.Load() {
		sub.storedwg.Add(1)
		added = true
	}
	go func() {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.live.Load() {
			select {
			case sub.Events <- evt:
			case <-sub.Context.Done():
			}
		}
		if added {
			sub.storedwg.Done()
		}
		if ac := sub.autoClose; ac != nil && ac.Mode == WaitForEvents {
			if sub.eventCount.Add(1) >= int64(ac.N) {
				go sub.unsub(errors.New("auto-close event count reached"))
			}
		}
	}()
}

// dispatchEose marks the end of stored events, once. Live events after
// EOSE are matched without the filters' timestamp constraints.
func (sub *Subscription) dispatchEose() {
	if sub.eosed.CompareAndSwap(false, true) {
		sub.match = sub.Filters.MatchIgnoringTimestampConstraints
		go func() {
			sub.storedwg.Wait()
			sub.EndOfStoredEvents <- struct{}{}
			if ac := sub.autoClose; ac != nil && ac.Mode == ExitOnEOSE {
				sub.unsub(errors.New("auto-close on EOSE"))
			}
		}()
	}
}

// handleClosed delivers a relay-side CLOSED and ends the subscription.
func (sub *Subscription) handleClosed(reason string) {
	go func() {
		sub.ClosedReason <- reason
		sub.live.Store(false) // no CLOSE needed, the relay already closed
		sub.unsub(fmt.Errorf("CLOSED received: %s", reason))
	}()
}

// Unsub ends the subscription, sending CLOSE to the relay.
func (sub *Subscription) Unsub() {
	sub.unsub(errors.New("Unsub() called"))
}

// unsub is idempotent: it cancels the context, sends CLOSE once if the
// subscription was live, and removes it from the registry.
func (sub *Subscription) unsub(err error) {
	sub.cancel(err)
	if sub.live.CompareAndSwap(true, false) {
		sub.Close()
	}
	sub.Client.Subscriptions.Delete(sub.id.String())
}

// Close sends the CLOSE message without any state bookkeeping. Most
// callers want Unsub.
func (sub *Subscription) Close() {
	if sub.Client.IsConnected() {
		closeb := closeenvelope.NewFrom(sub.id).Marshal(nil)
		<-sub.Client.Write(closeb)
	}
}

// Fire sends the REQ.
func (sub *Subscription) Fire() (err error) {
	reqb := reqenvelope.NewFrom(sub.id, sub.Filters).Marshal(nil)
	sub.live.Store(true)
	if err = <-sub.Client.Write(reqb); err != nil {
		err = fmt.Errorf("failed to write: %w", err)
		sub.cancel(err)
		return
	}
	return
}
