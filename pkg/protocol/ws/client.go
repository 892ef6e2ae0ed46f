package ws

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"lukechampine.com/frand"

	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/envelopes/authenvelope"
	"parley.dev/pkg/encoders/envelopes/closedenvelope"
	"parley.dev/pkg/encoders/envelopes/countenvelope"
	"parley.dev/pkg/encoders/envelopes/eoseenvelope"
	"parley.dev/pkg/encoders/envelopes/eventenvelope"
	"parley.dev/pkg/encoders/envelopes/negentropyenvelope"
	"parley.dev/pkg/encoders/envelopes/noticeenvelope"
	"parley.dev/pkg/encoders/envelopes/okenvelope"
	"parley.dev/pkg/encoders/envelopes/pingenvelope"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/encoders/tags"
	"parley.dev/pkg/encoders/timestamp"
	"parley.dev/pkg/interfaces/codec"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/errorf"
	"parley.dev/pkg/utils/log"
	"parley.dev/pkg/utils/normalize"
)

var subscriptionIDCounter atomic.Int64

// Client is one relay connection: a websocket, an outbound write queue, a
// demuxing reader, the subscription registry and the connection state
// machine with retry.
type Client struct {
	closeMutex sync.Mutex

	URL  string
	opts *Options

	Flags  AtomicFlags
	Stats  *Stats
	status atomicStatus

	Connection    *Connection
	Subscriptions *xsync.MapOf[string, *Subscription]

	ConnectionError         error
	connectionContext       context.T // canceled when the socket drops
	connectionContextCancel context.C

	runContext context.T // canceled only on Terminate
	runCancel  context.C

	challenge     atomicBytes
	notices       chan []byte
	customHandler func(string)
	okCallbacks   *xsync.MapOf[string, func(bool, string)]
	countResults  *xsync.MapOf[string, chan uint64]
	negSessions   *xsync.MapOf[string, chan []byte]
	negErrors     *xsync.MapOf[string, chan string]
	pingSent      *xsync.MapOf[uint64, time.Time]
	filterIds     *xsync.MapOf[string, struct{}]
	powMin        atomic.Uint32

	writeQueue chan writeRequest

	// notify is installed by the pool to receive connection events.
	notify func(n Notification)

	tlsConf *tls.Config

	consecutiveFailures atomic.Uint64
}

type writeRequest struct {
	msg    []byte
	answer chan error
}

// atomicBytes is a tiny swap cell for the NIP-42 challenge.
type atomicBytes struct {
	mx sync.Mutex
	b  []byte
}

func (a *atomicBytes) Store(b []byte) {
	a.mx.Lock()
	a.b = b
	a.mx.Unlock()
}

func (a *atomicBytes) Load() (b []byte) {
	a.mx.Lock()
	b = a.b
	a.mx.Unlock()
	return
}

// NewRelay creates a relay client. The context governs the whole life of
// the client; canceling it terminates the connection permanently.
func NewRelay(c context.T, url string, opts *Options) (r *Client) {
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.normalize()
	runCtx, runCancel := context.Cause(c)
	r = &Client{
		URL:           string(normalize.URL(url)),
		opts:          opts,
		Stats:         NewStats(),
		Subscriptions: xsync.NewMapOf[string, *Subscription](),
		okCallbacks:   xsync.NewMapOf[string, func(bool, string)](),
		countResults:  xsync.NewMapOf[string, chan uint64](),
		negSessions:   xsync.NewMapOf[string, chan []byte](),
		negErrors:     xsync.NewMapOf[string, chan string](),
		pingSent:      xsync.NewMapOf[uint64, time.Time](),
		filterIds:     xsync.NewMapOf[string, struct{}](),
		writeQueue:    make(chan writeRequest, 64),
		runContext:    runCtx,
		runCancel:     runCancel,
	}
	r.Flags.Store(opts.Flags)
	r.powMin.Store(uint32(opts.PowMinDifficulty))
	return
}

// String returns the relay URL.
func (r *Client) String() string { return r.URL }

// Status returns the connection state.
func (r *Client) Status() Status { return r.status.Load() }

// IsConnected reports whether the socket is currently up.
func (r *Client) IsConnected() bool {
	return r.status.Load() == StatusConnected
}

// Context returns the context tied to the current connection; it is done
// when the socket drops.
func (r *Client) Context() context.T { return r.connectionContext }

// UpdateMinPowDifficulty changes the inbound POW gate.
func (r *Client) UpdateMinPowDifficulty(d uint8) {
	r.powMin.Store(uint32(d))
}

// AddFilterId adds an id to the black/whitelist set.
func (r *Client) AddFilterId(id string) {
	r.filterIds.Store(id, struct{}{})
}

// RemoveFilterId removes an id from the black/whitelist set.
func (r *Client) RemoveFilterId(id string) { r.filterIds.Delete(id) }

func (r *Client) setStatus(s Status) {
	old := r.status.Load()
	if old == StatusTerminated || old == s {
		return
	}
	r.status.Store(s)
	if r.notify != nil {
		r.notify(RelayStatusNotification{URL: r.URL, Status: s})
	}
}

// Connect establishes the websocket. The given context bounds only the
// connection phase. With Reconnect enabled a supervisor keeps re-dialing
// after drops, with the configured retry schedule, until Terminate.
func (r *Client) Connect(c context.T) (err error) {
	r.setStatus(StatusPending)
	if err = r.connect(c); err != nil {
		if !r.opts.Reconnect {
			r.setStatus(StatusTerminated)
			return
		}
		r.setStatus(StatusDisconnected)
	}
	go r.supervise()
	return
}

// ConnectWithTLS is Connect with a custom TLS configuration.
func (r *Client) ConnectWithTLS(
	c context.T, tlsConfig *tls.Config,
) (err error) {
	r.tlsConf = tlsConfig
	return r.Connect(c)
}

// connect performs one dial attempt and starts the IO loops.
func (r *Client) connect(c context.T) (err error) {
	if r.URL == "" {
		return errorf.E("invalid relay URL '%s'", r.URL)
	}
	r.setStatus(StatusConnecting)
	r.Stats.NewAttempt()
	if _, ok := c.Deadline(); !ok {
		var cancel context.F
		c, cancel = context.TimeoutCause(
			c, ConnectTimeout, errors.New("connection took too long"),
		)
		defer cancel()
	}
	var conn *Connection
	if conn, err = NewConnection(
		c, r.URL, r.opts, r.tlsConf,
	); err != nil {
		r.consecutiveFailures.Add(1)
		return fmt.Errorf(
			"error opening websocket to '%s': %w", r.URL, err,
		)
	}
	r.consecutiveFailures.Store(0)
	r.Stats.NewSuccess()
	ctx, cancel := context.Cause(r.runContext)
	r.closeMutex.Lock()
	r.Connection = conn
	r.connectionContext = ctx
	r.connectionContextCancel = cancel
	r.closeMutex.Unlock()
	r.setStatus(StatusConnected)
	go r.writeLoop(ctx, conn)
	go r.readLoop(ctx, conn)
	// re-fire the registry onto the fresh socket
	for _, sub := range r.Subscriptions.Range {
		if err := sub.Fire(); chk.D(err) {
			continue
		}
	}
	return
}

// supervise re-dials after drops per the retry configuration.
func (r *Client) supervise() {
	for {
		select {
		case <-r.runContext.Done():
			r.setStatus(StatusTerminated)
			return
		default:
		}
		if r.status.Load() == StatusConnected {
			select {
			case <-r.connectionContext.Done():
				r.setStatus(StatusDisconnected)
			case <-r.runContext.Done():
				continue
			}
		}
		if !r.opts.Reconnect {
			r.setStatus(StatusTerminated)
			return
		}
		retry := time.Duration(r.retrySeconds()) * time.Second
		select {
		case <-time.After(retry):
		case <-r.runContext.Done():
			continue
		}
		if err := r.connect(r.runContext); chk.D(err) {
			continue
		}
	}
}

// retrySeconds applies the adjusted schedule: exponential widening up to
// MaxAdjRetrySec while failures accumulate.
func (r *Client) retrySeconds() (sec uint64) {
	sec = r.opts.RetrySec
	if sec < MinRetrySec {
		sec = MinRetrySec
	}
	if !r.opts.AdjustRetrySec {
		return
	}
	fails := r.consecutiveFailures.Load()
	for i := uint64(0); i < fails && sec < MaxAdjRetrySec; i++ {
		sec *= 2
	}
	if sec > MaxAdjRetrySec {
		sec = MaxAdjRetrySec
	}
	return
}

// writeLoop owns the socket's send side: the queue, the TX timeout and the
// heartbeat.
func (r *Client) writeLoop(ctx context.T, conn *Connection) {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if r.Flags.Load().Has(FlagPing) {
		ticker = time.NewTicker(PingInterval)
		tick = ticker.C
		defer ticker.Stop()
	}
	for {
		select {
		case <-ctx.Done():
			for _, sub := range r.Subscriptions.Range {
				sub.unsub(fmt.Errorf(
					"relay connection closed: %w",
					context.GetCause(ctx),
				))
			}
			return
		case <-tick:
			nonce := frand.Uint64n(1 << 62)
			r.pingSent.Store(nonce, time.Now())
			msg := pingenvelope.NewFrom(nonce).Marshal(nil)
			wctx, cancel := context.Timeout(ctx, WebsocketTxTimeout)
			err := conn.WriteMessage(wctx, msg)
			cancel()
			if err != nil {
				log.D.F("{%s} ping write failed: %v", r.URL, err)
				r.disconnect(err)
				return
			}
		case wr := <-r.writeQueue:
			log.T.F("{%s} sending %s", r.URL, wr.msg)
			wctx, cancel := context.Timeout(ctx, WebsocketTxTimeout)
			err := conn.WriteMessage(wctx, wr.msg)
			cancel()
			if err != nil {
				wr.answer <- err
				close(wr.answer)
				r.disconnect(err)
				return
			}
			r.Stats.BytesUp.Add(uint64(len(wr.msg)))
			close(wr.answer)
		}
	}
}

// readLoop owns the socket's receive side and demuxes envelopes.
func (r *Client) readLoop(ctx context.T, conn *Connection) {
	buf := new(bytes.Buffer)
	for {
		buf.Reset()
		if err := conn.ReadMessage(
			ctx, buf, r.opts.Limits.MaxMessageSize,
		); err != nil {
			r.ConnectionError = err
			r.disconnect(err)
			return
		}
		message := buf.Bytes()
		r.Stats.BytesDown.Add(uint64(len(message)))
		log.T.F("{%s} received %s", r.URL, message)
		if r.notify != nil {
			r.notify(MessageNotification{
				URL: r.URL, Message: append([]byte{}, message...),
			})
		}
		r.dispatchMessage(message)
	}
}

// dispatchMessage routes one inbound frame.
func (r *Client) dispatchMessage(message []byte) {
	label, rem, err := envelopes.Identify(message)
	if chk.D(err) {
		if r.customHandler != nil {
			r.customHandler(string(message))
		}
		return
	}
	switch label {
	case noticeenvelope.L:
		env, _, err := noticeenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		if r.notices != nil {
			r.notices <- env.Message
		} else {
			log.I.F("NOTICE from %s: '%s'", r.URL, env.Message)
		}
	case authenvelope.L:
		env, _, err := authenvelope.ParseChallenge(rem)
		if chk.D(err) || len(env.Challenge) == 0 {
			return
		}
		r.challenge.Store(env.Challenge)
	case eventenvelope.L:
		env, _, err := eventenvelope.ParseResult(rem)
		if chk.D(err) || env.Subscription == nil ||
			len(env.Subscription.T) == 0 {
			return
		}
		r.dispatchEvent(env)
	case eoseenvelope.L:
		env, _, err := eoseenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		if sub, ok := r.Subscriptions.Load(
			env.Subscription.String(),
		); ok {
			sub.dispatchEose()
		}
	case closedenvelope.L:
		env, _, err := closedenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		if sub, ok := r.Subscriptions.Load(
			env.Subscription.String(),
		); ok {
			sub.handleClosed(env.ReasonString())
		}
	case okenvelope.L:
		env, _, err := okenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		if cb, ok := r.okCallbacks.Load(env.EventID.String()); ok {
			cb(env.OK, env.ReasonString())
		} else {
			log.D.F(
				"{%s} unexpected OK for event %s", r.URL, env.EventID,
			)
		}
	case countenvelope.L:
		env, _, err := countenvelope.ParseResponse(rem)
		if chk.D(err) {
			return
		}
		if ch, ok := r.countResults.Load(
			env.Subscription.String(),
		); ok {
			select {
			case ch <- env.Count:
			default:
			}
		}
	case pingenvelope.L:
		env, _, err := pingenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		if sent, ok := r.pingSent.LoadAndDelete(env.Nonce); ok {
			r.Stats.AddLatency(time.Since(sent))
			r.checkLatency()
		}
	case negentropyenvelope.MsgLabel:
		env, _, err := negentropyenvelope.ParseMsg(rem)
		if chk.D(err) {
			return
		}
		if ch, ok := r.negSessions.Load(
			env.Subscription.String(),
		); ok {
			select {
			case ch <- env.Message:
			default:
			}
		}
	case negentropyenvelope.ErrLabel:
		env, _, err := negentropyenvelope.ParseErr(rem)
		if chk.D(err) {
			return
		}
		if ch, ok := r.negErrors.Load(env.Subscription.String()); ok {
			select {
			case ch <- env.ReasonString():
			default:
			}
		}
	default:
		if r.customHandler != nil {
			r.customHandler(string(message))
		}
	}
}

// dispatchEvent applies the inbound gates before handing the event to its
// subscription: size, filtering set, POW, filter match, signature.
func (r *Client) dispatchEvent(env *eventenvelope.Result) {
	ev := env.Event
	sub, ok := r.Subscriptions.Load(env.Subscription.String())
	if !ok {
		log.D.F(
			"{%s} no subscription with id '%s'", r.URL, env.Subscription,
		)
		return
	}
	maxSize := r.opts.Limits.MaxEventSize
	if ev.Kind != nil && ev.Kind.Equal(kind.FollowList) {
		maxSize = r.opts.Limits.MaxContactListEventSize
	}
	if len(ev.Serialize()) > maxSize {
		log.D.F("{%s} dropping oversize event %s", r.URL, ev.IDString())
		return
	}
	_, inSet := r.filterIds.Load(ev.IDString())
	switch r.opts.FilteringMode {
	case FilterBlacklist:
		if inSet {
			return
		}
	case FilterWhitelist:
		if r.filterIds.Size() > 0 && !inSet {
			return
		}
	}
	if min := r.powMin.Load(); min > 0 && uint32(ev.Pow()) < min {
		log.D.F(
			"{%s} dropping event %s below pow %d", r.URL, ev.IDString(),
			min,
		)
		return
	}
	if !sub.match(ev) {
		log.T.F("{%s} filter does not match event %s", r.URL, ev.IDString())
		return
	}
	if !r.opts.AssumeValid {
		if ok, err := ev.Verify(); !ok || err != nil {
			log.D.F("{%s} bad signature on %s", r.URL, ev.IDString())
			return
		}
	}
	if r.notify != nil {
		r.notify(EventNotification{
			URL: r.URL, SubID: sub.GetID(), Event: ev,
		})
	}
	sub.dispatchEvent(ev)
}

// checkLatency terminates a relay whose ping average has drifted past the
// configured ceiling.
func (r *Client) checkLatency() {
	if r.opts.MaxAvgLatency == 0 {
		return
	}
	if avg := r.Stats.AverageLatency(); avg > r.opts.MaxAvgLatency {
		log.I.F(
			"{%s} average latency %s exceeds %s, terminating", r.URL, avg,
			r.opts.MaxAvgLatency,
		)
		_ = r.Terminate()
	}
}

// Write queues a message for sending and returns a channel resolving to
// the send error, nil on success.
func (r *Client) Write(msg []byte) <-chan error {
	ch := make(chan error, 1)
	ctx := r.connectionContext
	if ctx == nil || r.status.Load() != StatusConnected {
		ch <- errorf.D("{%s} not connected", r.URL)
		close(ch)
		return ch
	}
	select {
	case r.writeQueue <- writeRequest{msg: msg, answer: ch}:
	case <-ctx.Done():
		ch <- errorf.D("{%s} connection closed", r.URL)
		close(ch)
	}
	return ch
}

// SendMsg queues an arbitrary pre-built envelope.
func (r *Client) SendMsg(env codec.Envelope) (err error) {
	return <-r.Write(env.Marshal(nil))
}

// BatchMsg queues several envelopes in order.
func (r *Client) BatchMsg(envs ...codec.Envelope) (err error) {
	for _, env := range envs {
		if err = <-r.Write(env.Marshal(nil)); err != nil {
			return
		}
	}
	return
}

// Publish submits an event and waits for the matching OK.
func (r *Client) Publish(c context.T, ev *event.E) error {
	return r.publish(c, ev.IDString(), eventenvelope.NewSubmissionWith(ev))
}

// BatchEvent submits several events, waiting for each OK in turn.
func (r *Client) BatchEvent(c context.T, evs ...*event.E) (err error) {
	for _, ev := range evs {
		if err = r.Publish(c, ev); err != nil {
			return
		}
	}
	return
}

// Auth builds, signs and submits the NIP-42 response for the last
// challenge received from this relay.
func (r *Client) Auth(c context.T, sign signer.I) (err error) {
	authEvent := &event.E{
		CreatedAt: timestamp.Now(),
		Kind:      kind.ClientAuthentication,
		Tags: tags.New(
			tag.New("relay", r.URL),
			tag.New("challenge", string(r.challenge.Load())),
		),
	}
	if err = authEvent.Sign(sign); chk.E(err) {
		return fmt.Errorf("error signing auth event: %w", err)
	}
	return r.publish(
		c, authEvent.IDString(), authenvelope.NewResponseWith(authEvent),
	)
}

// publish registers an OK waiter keyed by event id, sends the envelope and
// blocks until the OK arrives or the wait times out.
func (r *Client) publish(
	c context.T, id string, env codec.Envelope,
) (err error) {
	connCtx := r.connectionContext
	if connCtx == nil || r.status.Load() != StatusConnected {
		return errorf.D("{%s} not connected", r.URL)
	}
	var cancel context.F
	if _, ok := c.Deadline(); !ok {
		c, cancel = context.TimeoutCause(
			c, BatchEventIterationTimeout,
			errors.New("given up waiting for an OK"),
		)
		defer cancel()
	} else {
		c, cancel = context.Cancel(c)
		defer cancel()
	}
	gotOk := false
	r.okCallbacks.Store(id, func(ok bool, reason string) {
		gotOk = true
		if !ok {
			err = fmt.Errorf("msg: %s", reason)
		}
		cancel()
	})
	defer r.okCallbacks.Delete(id)
	if writeErr := <-r.Write(env.Marshal(nil)); writeErr != nil {
		return writeErr
	}
	for {
		select {
		case <-c.Done():
			if gotOk {
				return err
			}
			return c.Err()
		case <-connCtx.Done():
			return errorf.D("{%s} connection closed", r.URL)
		}
	}
}

// Subscribe sends a REQ with a generated id.
func (r *Client) Subscribe(
	c context.T, ff *filters.T, opts *SubscribeOptions,
) (sub *Subscription, err error) {
	current := subscriptionIDCounter.Add(1)
	label := ""
	if opts != nil {
		label = opts.Label
	}
	id := subscription.NewId(fmt.Sprintf("%d:%s", current, label))
	return r.SubscribeWithID(c, id, ff, opts)
}

// SubscribeWithID sends a REQ with a caller-chosen id. Ids are scoped to
// this relay connection.
func (r *Client) SubscribeWithID(
	c context.T, id *subscription.Id, ff *filters.T,
	opts *SubscribeOptions,
) (sub *Subscription, err error) {
	sub = r.PrepareSubscription(c, id, ff, opts)
	if r.status.Load() != StatusConnected {
		return nil, errorf.D("not connected to %s", r.URL)
	}
	if err = sub.Fire(); err != nil {
		return nil, fmt.Errorf(
			"couldn't subscribe to %v at %s: %w", ff, r.URL, err,
		)
	}
	return
}

// PrepareSubscription registers a subscription without firing it.
func (r *Client) PrepareSubscription(
	c context.T, id *subscription.Id, ff *filters.T,
	opts *SubscribeOptions,
) (sub *Subscription) {
	ctx, cancel := context.Cause(c)
	sub = &Subscription{
		Client:            r,
		Context:           ctx,
		cancel:            cancel,
		id:                id,
		Events:            make(event.C),
		EndOfStoredEvents: make(chan struct{}, 1),
		ClosedReason:      make(chan string, 1),
		Filters:           ff,
		match:             ff.Match,
	}
	if opts != nil && opts.AutoClose != nil {
		ac := *opts.AutoClose
		sub.autoClose = &ac
	}
	r.Subscriptions.Store(id.String(), sub)
	go sub.start()
	return
}

// Unsubscribe closes the subscription with the given id, idempotently.
func (r *Client) Unsubscribe(id *subscription.Id) {
	if sub, ok := r.Subscriptions.Load(id.String()); ok {
		sub.Unsub()
	}
}

// UnsubscribeAll closes every subscription on this relay.
func (r *Client) UnsubscribeAll() {
	for _, sub := range r.Subscriptions.Range {
		sub.Unsub()
	}
}

// FetchEvents subscribes, collects until EOSE, a relay CLOSED or the
// timeout, then unsubscribes and returns the events sorted newest first,
// deduplicated. It always auto-closes on EOSE; the WaitForEvents and
// WaitDuration modes are not available here.
func (r *Client) FetchEvents(
	c context.T, ff *filters.T, timeout time.Duration,
) (evs event.S, err error) {
	if timeout == 0 {
		timeout = BatchEventIterationTimeout
	}
	ctx, cancel := context.TimeoutCause(
		c, timeout, errors.New("fetch timed out"),
	)
	defer cancel()
	var sub *Subscription
	if sub, err = r.Subscribe(
		ctx, ff, &SubscribeOptions{
			AutoClose: &AutoClose{Mode: ExitOnEOSE, Timeout: timeout},
		},
	); err != nil {
		return
	}
	defer sub.Unsub()
	seen := make(map[string]struct{})
	for {
		select {
		case ev, more := <-sub.Events:
			if !more {
				sortEvents(evs)
				return
			}
			if _, ok := seen[string(ev.ID)]; ok {
				continue
			}
			seen[string(ev.ID)] = struct{}{}
			evs = append(evs, ev)
		case <-sub.EndOfStoredEvents:
			sortEvents(evs)
			return
		case reason := <-sub.ClosedReason:
			err = errorf.D("{%s} subscription closed: %s", r.URL, reason)
			sortEvents(evs)
			return
		case <-ctx.Done():
			sortEvents(evs)
			return
		}
	}
}

// CountEvents issues a NIP-45 COUNT and waits for the response.
func (r *Client) CountEvents(
	c context.T, f *filter.F, timeout time.Duration,
) (count uint64, err error) {
	if timeout == 0 {
		timeout = BatchEventIterationTimeout
	}
	ctx, cancel := context.Timeout(c, timeout)
	defer cancel()
	id := subscription.NewRandom()
	ch := make(chan uint64, 1)
	r.countResults.Store(id.String(), ch)
	defer r.countResults.Delete(id.String())
	env := countenvelope.NewRequestFrom(id, filters.New(f))
	if err = <-r.Write(env.Marshal(nil)); err != nil {
		return
	}
	select {
	case count = <-ch:
		return
	case <-ctx.Done():
		err = errorf.D("{%s} COUNT timed out", r.URL)
		return
	}
}

// disconnect tears down the current socket; the supervisor decides whether
// to retry.
func (r *Client) disconnect(reason error) {
	r.closeMutex.Lock()
	defer r.closeMutex.Unlock()
	if r.connectionContextCancel != nil {
		r.connectionContextCancel(reason)
		r.connectionContextCancel = nil
	}
	if r.Connection != nil {
		_ = r.Connection.Close()
		r.Connection = nil
	}
	if r.status.Load() == StatusConnected {
		r.setStatus(StatusDisconnected)
	}
}

// Close drains and closes the connection, allowing reconnection later via
// Connect. Most callers want Terminate.
func (r *Client) Close() (err error) {
	r.disconnect(errors.New("Close() called"))
	return
}

// Terminate shuts the relay down permanently: no further retries.
func (r *Client) Terminate() (err error) {
	r.runCancel(errors.New("Terminate() called"))
	r.disconnect(errors.New("Terminate() called"))
	r.setStatus(StatusTerminated)
	return
}

func sortEvents(evs event.S) { sort.Sort(evs) }
