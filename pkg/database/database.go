// Package database is the badger-backed event store. One environment per
// path; keyspaces are distinguished by three byte prefixes (see indexes).
// Writes are serialized through badger's single-writer transactions; reads
// run on snapshots, so a SaveEvent that has returned is visible to every
// subsequent query.
package database

import (
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/lol"
	"parley.dev/pkg/utils/units"
)

// expirationSweepInterval is how often the NIP-40 expiration index is
// swept.
const expirationSweepInterval = time.Minute * 10

// D is the badger event store.
type D struct {
	ctx     context.T
	cancel  context.F
	dataDir string
	Logger  *logger
	*badger.DB
}

var _ store.I = (*D)(nil)

// New opens (creating if necessary) the event store at dataDir. The store
// shuts down and closes when ctx is canceled.
func New(ctx context.T, cancel context.F, dataDir, logLevel string) (
	d *D, err error,
) {
	d = &D{
		ctx:     ctx,
		cancel:  cancel,
		dataDir: dataDir,
		Logger:  newLogger(lol.GetLogLevel(logLevel)),
	}
	if err = os.MkdirAll(dataDir, 0755); chk.E(err) {
		return
	}
	opts := badger.DefaultOptions(d.dataDir)
	opts.BlockCacheSize = int64(256 * units.Mb)
	opts.CompactL0OnClose = true
	opts.Logger = d.Logger
	if d.DB, err = badger.Open(opts); chk.E(err) {
		return
	}
	go func() {
		ticker := time.NewTicker(expirationSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := d.DeleteExpired(); chk.E(err) {
					continue
				}
			case <-d.ctx.Done():
				d.cancel()
				if err := d.DB.Close(); chk.E(err) {
					return
				}
				return
			}
		}
	}()
	return
}

// Path returns the directory the database files are stored in.
func (d *D) Path() string { return d.dataDir }

// SetLogLevel adjusts the badger logger's verbosity.
func (d *D) SetLogLevel(level string) {
	d.Logger.SetLevel(lol.GetLogLevel(level))
}

// Wipe drops every keyspace in one operation.
func (d *D) Wipe() (err error) {
	if err = d.DB.DropAll(); chk.E(err) {
		return
	}
	return
}

// Sync flushes the value log and runs a GC pass.
func (d *D) Sync() (err error) {
	_ = d.DB.RunValueLogGC(0.5)
	return d.DB.Sync()
}

// Close releases resources and closes the database.
func (d *D) Close() (err error) {
	if d.DB != nil {
		if err = d.DB.Close(); chk.E(err) {
			return
		}
	}
	return
}
