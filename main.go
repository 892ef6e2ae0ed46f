// parley mirrors selected nostr events between a local embedded store and
// a set of relays, using negentropy set reconciliation to move only what
// is missing on either side.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"parley.dev/app/config"
	"parley.dev/pkg/crypto/p256k"
	"parley.dev/pkg/database"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/hex"
	"parley.dev/pkg/encoders/kind"
	"parley.dev/pkg/interfaces/signer"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/protocol/ws"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/log"
)

type runCmd struct{}

type syncCmd struct {
	Direction string `arg:"-d,--direction" help:"up, down or both (overrides config)"`
	DryRun    bool   `arg:"--dry-run" help:"reconcile without transferring events"`
}

type wipeCmd struct{}

type args struct {
	Run  *runCmd  `arg:"subcommand:run" help:"mirror continuously"`
	Sync *syncCmd `arg:"subcommand:sync" help:"reconcile once and exit"`
	Wipe *wipeCmd `arg:"subcommand:wipe" help:"drop the local event store"`
}

func (args) Description() string {
	return "parley - a nostr event store and relay pool with negentropy sync"
}

func main() {
	a := &args{}
	p := arg.MustParse(a)
	cfg, err := config.New()
	if chk.E(err) {
		os.Exit(1)
	}
	ctx, cancel := context.Cancel(context.Bg())
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupts
		log.I.Ln("interrupt received, shutting down")
		cancel()
	}()
	db, err := database.New(ctx, cancel, cfg.DataDir, cfg.DbLogLevel)
	if chk.E(err) {
		os.Exit(1)
	}
	defer db.Close()
	switch {
	case a.Wipe != nil:
		if err = db.Wipe(); chk.E(err) {
			os.Exit(1)
		}
		log.I.F("wiped event store at %s", db.Path())
		return
	case a.Sync != nil:
		pool := newPool(ctx, cfg, db)
		defer pool.Shutdown()
		opts := syncOptions(cfg)
		if a.Sync.Direction != "" {
			opts.Direction = parseDirection(a.Sync.Direction)
		}
		opts.DryRun = a.Sync.DryRun
		waitForConnections(pool)
		rec, err := pool.Sync(ctx, mirrorFilter(cfg), opts)
		if chk.E(err) {
			os.Exit(1)
		}
		log.I.F(
			"sync complete: %d fetched, %d pushed, %d relays with failures",
			len(rec.LocalMissing), len(rec.RemoteMissing),
			len(rec.SendFailures),
		)
		return
	case a.Run != nil:
		pool := newPool(ctx, cfg, db)
		defer pool.Shutdown()
		run(ctx, cfg, pool)
		return
	default:
		p.WriteUsage(os.Stderr)
		os.Exit(2)
	}
}

// newPool builds the relay pool from the configured relay lists.
func newPool(c context.T, cfg *config.C, db store.I) (pool *ws.Pool) {
	popts := &ws.PoolOptions{
		MaxRelays:               cfg.MaxRelays,
		NotificationChannelSize: cfg.NotifyBuffer,
	}
	if cfg.SecretKey != "" {
		sign, err := p256k.NewSecFromHex(cfg.SecretKey)
		if !chk.E(err) {
			popts.AuthHandler = func() signer.I { return sign }
		}
	}
	pool = ws.NewPool(c, db, popts)
	for _, url := range cfg.Relays {
		if _, err := pool.AddRelay(
			url, ws.FlagRead|ws.FlagWrite|ws.FlagPing,
		); chk.D(err) {
			continue
		}
	}
	for _, url := range cfg.ReadRelays {
		if _, err := pool.AddReadRelay(url); chk.D(err) {
			continue
		}
	}
	for _, url := range cfg.WriteRelays {
		if _, err := pool.AddWriteRelay(url); chk.D(err) {
			continue
		}
	}
	for _, url := range cfg.Discovery {
		if _, err := pool.AddDiscoveryRelay(url); chk.D(err) {
			continue
		}
	}
	return
}

// mirrorFilter derives the reconciliation filter from the configured
// authors and kinds.
func mirrorFilter(cfg *config.C) (f *filter.F) {
	f = filter.New()
	for _, a := range cfg.Authors {
		pk, err := hex.Dec(a)
		if chk.E(err) || len(pk) != 32 {
			log.W.F("skipping invalid author key %s", a)
			continue
		}
		f.Authors.F = append(f.Authors.F, pk)
	}
	for _, k := range cfg.Kinds {
		f.Kinds.Append(kind.New(k))
	}
	return
}

func syncOptions(cfg *config.C) (opts *ws.SyncOptions) {
	opts = ws.DefaultSyncOptions()
	opts.Direction = parseDirection(cfg.SyncDirection)
	return
}

func parseDirection(s string) ws.SyncDirection {
	switch s {
	case "up":
		return ws.SyncUp
	case "both":
		return ws.SyncBoth
	}
	return ws.SyncDown
}

// waitForConnections gives the pool a moment to bring relays up before a
// one-shot operation.
func waitForConnections(pool *ws.Pool) {
	deadline := time.Now().Add(ws.ConnectTimeout)
	for time.Now().Before(deadline) {
		connected := 0
		for _, url := range pool.RelayURLs() {
			if r := pool.Relay(url); r != nil && r.IsConnected() {
				connected++
			}
		}
		if connected > 0 && connected == len(pool.RelayURLs()) {
			return
		}
		time.Sleep(time.Second / 4)
	}
}

// run is the mirror daemon: a live subscription keeps the store current
// while a periodic negentropy pass heals anything the stream missed.
func run(c context.T, cfg *config.C, pool *ws.Pool) {
	f := mirrorFilter(cfg)
	notifications := pool.Notifications()
	defer pool.CloseNotifications(notifications)
	waitForConnections(pool)
	subID, err := pool.Subscribe(
		c, filters.New(f), &ws.SubscribeOptions{Label: "mirror"},
	)
	if chk.E(err) {
		return
	}
	defer pool.Unsubscribe(subID)
	ticker := time.NewTicker(cfg.SyncFrequency)
	defer ticker.Stop()
	for {
		select {
		case n, more := <-notifications:
			if !more {
				return
			}
			switch note := n.(type) {
			case ws.EventNotification:
				res, serr := pool.Store().SaveEvent(c, note.Event)
				if chk.D(serr) {
					continue
				}
				if res.Status == store.Stored {
					log.D.F(
						"stored %s from %s", note.Event.IDString(),
						note.URL,
					)
					serr = pool.Store().EventSeen(
						c, note.Event.ID, note.URL,
					)
					if serr != nil && serr != store.ErrNotSupported {
						log.D.F("seen-on record failed: %v", serr)
					}
				}
			case ws.RelayStatusNotification:
				log.D.F("relay %s is now %s", note.URL, note.Status)
			case ws.ShutdownNotification:
				return
			}
		case <-ticker.C:
			rec, serr := pool.Sync(c, f.Clone(), syncOptions(cfg))
			if chk.D(serr) {
				continue
			}
			log.I.F(
				"periodic sync: %d fetched, %d pushed",
				len(rec.LocalMissing), len(rec.RemoteMissing),
			)
		case <-c.Done():
			return
		}
	}
}
