// Package testrelay is an in-process nostr relay backed by a store.I, used
// by the pool and sync tests as the remote end of real websocket
// connections. It speaks enough of the protocol for the client: EVENT, REQ
// with EOSE, CLOSE, COUNT, PING echo, and the NEG-* reconciliation frames.
package testrelay

import (
	"net"
	"net/http"
	"sync"

	"github.com/fasthttp/websocket"

	"parley.dev/pkg/encoders/envelopes"
	"parley.dev/pkg/encoders/envelopes/closeenvelope"
	"parley.dev/pkg/encoders/envelopes/countenvelope"
	"parley.dev/pkg/encoders/envelopes/eoseenvelope"
	"parley.dev/pkg/encoders/envelopes/eventenvelope"
	"parley.dev/pkg/encoders/envelopes/negentropyenvelope"
	"parley.dev/pkg/encoders/envelopes/okenvelope"
	"parley.dev/pkg/encoders/envelopes/reqenvelope"
	"parley.dev/pkg/encoders/event"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/protocol/negentropy"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// T is one test relay instance.
type T struct {
	Store store.I

	ctx      context.T
	cancel   context.F
	listener net.Listener
	server   *http.Server

	mx   sync.Mutex
	subs map[*conn]map[string]*filters.T
}

type conn struct {
	ws *websocket.Conn
	mx sync.Mutex
}

func (cn *conn) write(b []byte) (err error) {
	cn.mx.Lock()
	defer cn.mx.Unlock()
	return cn.ws.WriteMessage(websocket.TextMessage, b)
}

// New creates a test relay over a store.
func New(c context.T, sto store.I) (t *T) {
	ctx, cancel := context.Cancel(c)
	return &T{
		Store:  sto,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[*conn]map[string]*filters.T),
	}
}

// Start listens on an ephemeral localhost port and returns the ws:// URL.
func (t *T) Start() (url string, err error) {
	if t.listener, err = net.Listen("tcp", "127.0.0.1:0"); chk.E(err) {
		return
	}
	t.server = &http.Server{Handler: t}
	go func() {
		if serr := t.server.Serve(t.listener); serr != nil &&
			serr != http.ErrServerClosed {
			log.D.F("testrelay: server stopped: %v", serr)
		}
	}()
	url = "ws://" + t.listener.Addr().String()
	return
}

// Stop shuts the relay down.
func (t *T) Stop() {
	t.cancel()
	if t.server != nil {
		_ = t.server.Close()
	}
}

// ServeHTTP upgrades and runs one client connection.
func (t *T) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if chk.D(err) {
		return
	}
	cn := &conn{ws: ws}
	t.mx.Lock()
	t.subs[cn] = make(map[string]*filters.T)
	t.mx.Unlock()
	defer func() {
		t.mx.Lock()
		delete(t.subs, cn)
		t.mx.Unlock()
		_ = ws.Close()
	}()
	negSessions := make(map[string]*negentropy.Negentropy)
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		t.handleMessage(cn, msg, negSessions)
	}
}

func (t *T) handleMessage(
	cn *conn, msg []byte, negSessions map[string]*negentropy.Negentropy,
) {
	label, rem, err := envelopes.Identify(msg)
	if chk.D(err) {
		return
	}
	switch label {
	case eventenvelope.L:
		env, _, err := eventenvelope.ParseSubmission(rem)
		if chk.D(err) {
			return
		}
		res, serr := t.Store.SaveEvent(t.ctx, env.Event)
		ok := serr == nil && res.Status != store.Rejected
		reason := res.Reason
		if res.Status == store.Duplicate {
			ok = true
			reason = "duplicate: already have this event"
		}
		_ = cn.write(okenvelope.NewFrom(
			env.Event.ID, ok, []byte(reason),
		).Marshal(nil))
		if ok && res.Status == store.Stored {
			t.broadcast(env.Event)
		}
	case reqenvelope.L:
		env, _, err := reqenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		evs, qerr := t.Store.QueryEvents(t.ctx, env.Filters)
		if !chk.D(qerr) {
			for _, ev := range evs {
				res := eventenvelope.NewResultWith(env.Subscription, ev)
				_ = cn.write(res.Marshal(nil))
			}
		}
		_ = cn.write(eoseenvelope.NewFrom(env.Subscription).Marshal(nil))
		t.mx.Lock()
		t.subs[cn][env.Subscription.String()] = env.Filters
		t.mx.Unlock()
	case closeenvelope.L:
		env, _, err := closeenvelope.Parse(rem)
		if chk.D(err) {
			return
		}
		t.mx.Lock()
		delete(t.subs[cn], env.Subscription.String())
		t.mx.Unlock()
	case countenvelope.L:
		env := countenvelope.NewRequest()
		if _, err := env.Unmarshal(rem); chk.D(err) {
			return
		}
		n, cerr := t.Store.CountEvents(t.ctx, env.Filters)
		if chk.D(cerr) {
			return
		}
		_ = cn.write(countenvelope.NewResponseFrom(
			env.Subscription, uint64(n),
		).Marshal(nil))
	case negentropyenvelope.OpenLabel:
		env, _, err := negentropyenvelope.ParseOpen(rem)
		if chk.D(err) {
			return
		}
		items, ierr := t.Store.NegentropyItems(t.ctx, env.Filter)
		if chk.D(ierr) {
			return
		}
		vec := negentropy.NewVector()
		for _, it := range items {
			_ = vec.Insert(uint64(it.CreatedAt), it.ID)
		}
		if err := vec.Seal(); chk.D(err) {
			return
		}
		neg := negentropy.New(vec, negentropy.DefaultFrameSizeLimit)
		negSessions[env.Subscription.String()] = neg
		out, _, _, rerr := neg.Reconcile(env.Message)
		if rerr != nil {
			_ = cn.write(negentropyenvelope.NewErrFrom(
				env.Subscription, []byte(rerr.Error()),
			).Marshal(nil))
			return
		}
		_ = cn.write(negentropyenvelope.NewMsgFrom(
			env.Subscription, out,
		).Marshal(nil))
	case negentropyenvelope.MsgLabel:
		env, _, err := negentropyenvelope.ParseMsg(rem)
		if chk.D(err) {
			return
		}
		neg, ok := negSessions[env.Subscription.String()]
		if !ok {
			_ = cn.write(negentropyenvelope.NewErrFrom(
				env.Subscription, []byte("closed: no such session"),
			).Marshal(nil))
			return
		}
		out, _, _, rerr := neg.Reconcile(env.Message)
		if rerr != nil {
			_ = cn.write(negentropyenvelope.NewErrFrom(
				env.Subscription, []byte(rerr.Error()),
			).Marshal(nil))
			return
		}
		_ = cn.write(negentropyenvelope.NewMsgFrom(
			env.Subscription, out,
		).Marshal(nil))
	case negentropyenvelope.CloseLabel:
		env := negentropyenvelope.NewClose()
		if _, err := env.Unmarshal(rem); chk.D(err) {
			return
		}
		delete(negSessions, env.Subscription.String())
	case "PING":
		// echo so the client can measure round trips
		_ = cn.write(msg)
	}
}

// broadcast delivers a stored event to every live subscription it
// matches.
func (t *T) broadcast(ev *event.E) {
	t.mx.Lock()
	defer t.mx.Unlock()
	for cn, subs := range t.subs {
		for id, ff := range subs {
			if !ff.Match(ev) {
				continue
			}
			res := eventenvelope.NewResultWith(subscription.NewId(id), ev)
			_ = cn.write(res.Marshal(nil))
		}
	}
}
