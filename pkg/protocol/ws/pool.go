package ws

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/errorf"
	"parley.dev/pkg/utils/log"
	"parley.dev/pkg/utils/normalize"
)

// PoolOptions configures a relay pool.
type PoolOptions struct {
	// MaxRelays caps the relay map; zero means unlimited.
	MaxRelays uint32
	// NotificationChannelSize is each notification subscriber's buffer.
	NotificationChannelSize int
	// FilteringMode is applied to relays created by this pool.
	FilteringMode FilteringMode
	// RelayOptions template is cloned for relays created by this pool.
	RelayOptions *Options
	// AuthHandler supplies the signer used to answer NIP-42 challenges.
	AuthHandler func() signer.I
}

// Pool multiplexes operations across many relay connections sharing one
// event store and one notification stream.
type Pool struct {
	Relays  *xsync.MapOf[string, *Client]
	Context context.T

	cancel context.C
	opts   *PoolOptions
	store  store.I

	notifications *broadcaster

	// poolSubs are pool-level subscriptions inherited by relays that gain
	// the READ flag after the subscription was made.
	poolSubsMx sync.Mutex
	poolSubs   map[string]poolSub
}

type poolSub struct {
	filters *filters.T
	opts    *SubscribeOptions
}

// NewPool creates a pool over a store. The context governs the pool's
// life; canceling it closes every relay.
func NewPool(c context.T, sto store.I, opts *PoolOptions) (p *Pool) {
	if opts == nil {
		opts = &PoolOptions{}
	}
	ctx, cancel := context.Cause(c)
	p = &Pool{
		Relays:        xsync.NewMapOf[string, *Client](),
		Context:       ctx,
		cancel:        cancel,
		opts:          opts,
		store:         sto,
		notifications: newBroadcaster(opts.NotificationChannelSize),
		poolSubs:      make(map[string]poolSub),
	}
	return
}

// Store returns the pool's event store.
func (p *Pool) Store() store.I { return p.store }

// Notifications registers a new notification consumer. Slow consumers
// lose their oldest notifications.
func (p *Pool) Notifications() chan Notification {
	return p.notifications.subscribe()
}

// CloseNotifications removes a consumer channel.
func (p *Pool) CloseNotifications(ch chan Notification) {
	p.notifications.unsubscribe(ch)
}

// relayOptions clones the template for one new relay.
func (p *Pool) relayOptions(flags ServiceFlags) (o *Options) {
	if p.opts.RelayOptions != nil {
		c := *p.opts.RelayOptions
		o = &c
	} else {
		o = DefaultOptions()
	}
	o.Flags = flags
	o.FilteringMode = p.opts.FilteringMode
	return
}

// AddRelay adds a relay with the given flags, connecting in the
// background. It returns false when the relay already existed, in which
// case the flags are added in place.
func (p *Pool) AddRelay(url string, flags ServiceFlags) (
	added bool, err error,
) {
	nm := string(normalize.URL(url))
	if nm == "" {
		err = errorf.E("invalid relay URL '%s'", url)
		return
	}
	if existing, ok := p.Relays.Load(nm); ok {
		existing.Flags.Set(flags)
		return false, nil
	}
	if p.opts.MaxRelays > 0 &&
		uint32(p.Relays.Size()) >= p.opts.MaxRelays {
		err = errorf.E(
			"relay pool is full (%d relays)", p.opts.MaxRelays,
		)
		return
	}
	relay := NewRelay(p.Context, nm, p.relayOptions(flags))
	relay.notify = p.notifications.publish
	p.Relays.Store(nm, relay)
	go func() {
		if err := relay.Connect(p.Context); chk.D(err) {
			return
		}
		// newly added READ relays inherit the pool-level subscriptions
		if relay.Flags.Load().Has(FlagRead) {
			p.poolSubsMx.Lock()
			defer p.poolSubsMx.Unlock()
			for id, ps := range p.poolSubs {
				if _, err := relay.SubscribeWithID(
					p.Context, subscription.NewId(id), ps.filters, ps.opts,
				); chk.D(err) {
					continue
				}
			}
		}
	}()
	return true, nil
}

// AddReadRelay adds or augments a relay with the READ flag.
func (p *Pool) AddReadRelay(url string) (added bool, err error) {
	return p.AddRelay(url, FlagRead|FlagPing)
}

// AddWriteRelay adds or augments a relay with the WRITE flag.
func (p *Pool) AddWriteRelay(url string) (added bool, err error) {
	return p.AddRelay(url, FlagWrite|FlagPing)
}

// AddDiscoveryRelay adds or augments a relay with the DISCOVERY flag.
func (p *Pool) AddDiscoveryRelay(url string) (added bool, err error) {
	return p.AddRelay(url, FlagDiscovery|FlagPing)
}

// Relay returns the client for a url, nil when absent.
func (p *Pool) Relay(url string) *Client {
	r, _ := p.Relays.Load(string(normalize.URL(url)))
	return r
}

// RelayURLs lists the pool's relay addresses.
func (p *Pool) RelayURLs() (urls []string) {
	for url := range p.Relays.Range {
		urls = append(urls, url)
	}
	return
}

// relaysWithFlag snapshots the clients carrying all the given flags.
func (p *Pool) relaysWithFlag(flags ServiceFlags) (rr []*Client) {
	for _, r := range p.Relays.Range {
		if r.Flags.Load().Has(flags) {
			rr = append(rr, r)
		}
	}
	return
}

// RemoveRelay disconnects and drops a relay, unless INBOX or OUTBOX
// services still reference it, in which case only the READ, WRITE and
// DISCOVERY flags are stripped.
func (p *Pool) RemoveRelay(url string) (removed bool, err error) {
	nm := string(normalize.URL(url))
	relay, ok := p.Relays.Load(nm)
	if !ok {
		return false, nil
	}
	if relay.Flags.Load().Has(FlagInbox) ||
		relay.Flags.Load().Has(FlagOutbox) {
		relay.Flags.Clear(FlagRead | FlagWrite | FlagDiscovery)
		return false, nil
	}
	p.Relays.Delete(nm)
	_ = relay.Terminate()
	return true, nil
}

// ForceRemoveRelay unconditionally disconnects and drops a relay.
func (p *Pool) ForceRemoveRelay(url string) (removed bool) {
	nm := string(normalize.URL(url))
	relay, ok := p.Relays.LoadAndDelete(nm)
	if !ok {
		return false
	}
	_ = relay.Terminate()
	return true
}

// SendOutput aggregates a fan-out publish.
type SendOutput struct {
	// ID is the event id that was sent.
	ID []byte
	// Success lists the relay URLs that acknowledged the event.
	Success []string
	// Failed maps relay URL to the refusal or transport error.
	Failed map[string]string
}

// SendEvent saves the event locally and publishes it to every WRITE
// flagged relay concurrently. Relay failures land in the output, never in
// err.
func (p *Pool) SendEvent(c context.T, ev *event.E) (
	out *SendOutput, err error,
) {
	if p.store != nil {
		if _, serr := p.store.SaveEvent(c, ev); chk.D(serr) {
			// local rejection does not stop the broadcast
		}
	}
	return p.sendToRelays(c, p.relaysWithFlag(FlagWrite), ev)
}

// SendEventTo publishes to the named relays, which must already be in the
// pool.
func (p *Pool) SendEventTo(c context.T, urls []string, ev *event.E) (
	out *SendOutput, err error,
) {
	var rr []*Client
	for _, url := range urls {
		nm := string(normalize.URL(url))
		r, ok := p.Relays.Load(nm)
		if !ok {
			return nil, errorf.E("relay %s not in pool", nm)
		}
		rr = append(rr, r)
	}
	return p.sendToRelays(c, rr, ev)
}

func (p *Pool) sendToRelays(
	c context.T, rr []*Client, ev *event.E,
) (out *SendOutput, err error) {
	out = &SendOutput{ID: ev.ID, Failed: make(map[string]string)}
	if len(rr) == 0 {
		return
	}
	var mx sync.Mutex
	var wg sync.WaitGroup
	for _, r := range rr {
		wg.Add(1)
		go func(r *Client) {
			defer wg.Done()
			perr := r.Publish(c, ev)
			if perr != nil && p.opts.AuthHandler != nil &&
				isAuthRequired(perr) {
				if aerr := r.Auth(
					c, p.opts.AuthHandler(),
				); aerr == nil {
					perr = r.Publish(c, ev)
				}
			}
			mx.Lock()
			defer mx.Unlock()
			if perr != nil {
				out.Failed[r.URL] = perr.Error()
			} else {
				out.Success = append(out.Success, r.URL)
			}
		}(r)
	}
	wg.Wait()
	return
}

func isAuthRequired(err error) bool {
	return err != nil && strings.Contains(err.Error(), "auth-required")
}

// Subscribe opens the same subscription id on every READ flagged relay and
// records it at pool level so later-added READ relays inherit it. Events
// arrive through the notification stream.
func (p *Pool) Subscribe(
	c context.T, ff *filters.T, opts *SubscribeOptions,
) (id string, err error) {
	sid := subscription.NewRandom()
	id = sid.String()
	p.poolSubsMx.Lock()
	p.poolSubs[id] = poolSub{filters: ff, opts: opts}
	p.poolSubsMx.Unlock()
	rr := p.relaysWithFlag(FlagRead)
	if len(rr) == 0 {
		err = errorf.D("no READ relays in pool")
		return
	}
	for _, r := range rr {
		if _, serr := r.SubscribeWithID(
			c, subscription.NewId(id), ff, opts,
		); chk.D(serr) {
			continue
		}
	}
	return
}

// Unsubscribe closes a pool-level subscription everywhere, idempotently.
func (p *Pool) Unsubscribe(id string) {
	p.poolSubsMx.Lock()
	delete(p.poolSubs, id)
	p.poolSubsMx.Unlock()
	for _, r := range p.Relays.Range {
		r.Unsubscribe(subscription.NewId(id))
	}
}

// FetchEvents subscribes on every READ relay with exit-on-EOSE, merges the
// streams deduplicated by id, newest first, and returns when every relay
// has finished or the timeout elapses.
func (p *Pool) FetchEvents(
	c context.T, ff *filters.T, timeout time.Duration,
) (evs event.S, err error) {
	rr := p.relaysWithFlag(FlagRead)
	if len(rr) == 0 {
		err = errorf.D("no READ relays in pool")
		return
	}
	if timeout == 0 {
		timeout = BatchEventIterationTimeout
	}
	ctx, cancel := context.TimeoutCause(
		c, timeout, errors.New("pool fetch timed out"),
	)
	defer cancel()
	var mx sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for _, r := range rr {
		wg.Add(1)
		go func(r *Client) {
			defer wg.Done()
			fetched, ferr := r.FetchEvents(ctx, ff.Clone(), timeout)
			if ferr != nil {
				log.D.F("{%s} fetch failed: %v", r.URL, ferr)
				return
			}
			mx.Lock()
			defer mx.Unlock()
			for _, ev := range fetched {
				if _, ok := seen[string(ev.ID)]; ok {
					continue
				}
				seen[string(ev.ID)] = struct{}{}
				evs = append(evs, ev)
			}
		}(r)
	}
	wg.Wait()
	sortEvents(evs)
	return
}

// CountEvents returns the highest count reported by any READ relay, a
// conservative merge in the absence of cross-relay cardinality data.
func (p *Pool) CountEvents(
	c context.T, f *filter.F, timeout time.Duration,
) (count uint64, err error) {
	rr := p.relaysWithFlag(FlagRead)
	if len(rr) == 0 {
		err = errorf.D("no READ relays in pool")
		return
	}
	var mx sync.Mutex
	var wg sync.WaitGroup
	for _, r := range rr {
		wg.Add(1)
		go func(r *Client) {
			defer wg.Done()
			n, cerr := r.CountEvents(c, f, timeout)
			if cerr != nil {
				return
			}
			mx.Lock()
			if n > count {
				count = n
			}
			mx.Unlock()
		}(r)
	}
	wg.Wait()
	return
}

// Sync reconciles the filter against every relay selected by the sync
// direction concurrently and folds the outcomes: WRITE relays participate
// in uploads, READ relays in downloads.
func (p *Pool) Sync(
	c context.T, f *filter.F, opts *SyncOptions,
) (rec *Reconciliation, err error) {
	if opts == nil {
		opts = DefaultSyncOptions()
	}
	var flags ServiceFlags
	switch opts.Direction {
	case SyncUp:
		flags = FlagWrite
	case SyncDown:
		flags = FlagRead
	case SyncBoth:
		// either role participates
	}
	var rr []*Client
	if flags == 0 {
		for _, r := range p.Relays.Range {
			fl := r.Flags.Load()
			if fl.Has(FlagRead) || fl.Has(FlagWrite) {
				rr = append(rr, r)
			}
		}
	} else {
		rr = p.relaysWithFlag(flags)
	}
	if len(rr) == 0 {
		return nil, errorf.D("no relays eligible for sync")
	}
	rec = newReconciliation()
	var mx sync.Mutex
	g, ctx := errgroup.WithContext(c)
	for _, r := range rr {
		r := r
		g.Go(func() error {
			o := *opts
			part, serr := r.Sync(ctx, f.Clone(), &o, p.store)
			if serr != nil {
				mx.Lock()
				rec.SendFailures[r.URL] = append(
					rec.SendFailures[r.URL], serr.Error(),
				)
				mx.Unlock()
				// one relay failing must not cancel the others
				return nil
			}
			mx.Lock()
			rec.merge(part)
			mx.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	return
}

// Shutdown closes every relay, flushes the store and ends the
// notification stream.
func (p *Pool) Shutdown() {
	for url, r := range p.Relays.Range {
		_ = r.Terminate()
		p.Relays.Delete(url)
	}
	if p.store != nil {
		if err := p.store.Sync(); chk.D(err) {
			log.D.Ln("store flush on shutdown failed")
		}
	}
	p.notifications.close()
	p.cancel(fmt.Errorf("pool shut down"))
}
