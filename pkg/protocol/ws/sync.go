package ws

import (
	"time"

	"parley.dev/pkg/encoders/envelopes/negentropyenvelope"
	"parley.dev/pkg/encoders/filter"
	"parley.dev/pkg/encoders/filters"
	"parley.dev/pkg/encoders/subscription"
	"parley.dev/pkg/encoders/tag"
	"parley.dev/pkg/interfaces/store"
	"parley.dev/pkg/protocol/negentropy"
	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/errorf"
	"parley.dev/pkg/utils/log"
)

// Reconciliation is the outcome of a sync: the ids each side was missing
// and any per-relay transfer failures.
type Reconciliation struct {
	// LocalMissing are ids the remote has and the local store lacks.
	LocalMissing [][]byte
	// RemoteMissing are ids the local store has and the remote lacks.
	RemoteMissing [][]byte
	// SendFailures maps relay URL to the reasons uploads were refused.
	SendFailures map[string][]string
}

func newReconciliation() *Reconciliation {
	return &Reconciliation{SendFailures: make(map[string][]string)}
}

// merge folds another relay's outcome into the aggregate, deduplicating
// ids.
func (rec *Reconciliation) merge(other *Reconciliation) {
	seenL := make(map[string]struct{}, len(rec.LocalMissing))
	for _, id := range rec.LocalMissing {
		seenL[string(id)] = struct{}{}
	}
	for _, id := range other.LocalMissing {
		if _, ok := seenL[string(id)]; !ok {
			rec.LocalMissing = append(rec.LocalMissing, id)
		}
	}
	seenR := make(map[string]struct{}, len(rec.RemoteMissing))
	for _, id := range rec.RemoteMissing {
		seenR[string(id)] = struct{}{}
	}
	for _, id := range other.RemoteMissing {
		if _, ok := seenR[string(id)]; !ok {
			rec.RemoteMissing = append(rec.RemoteMissing, id)
		}
	}
	for url, reasons := range other.SendFailures {
		rec.SendFailures[url] = append(rec.SendFailures[url], reasons...)
	}
}

// Sync reconciles the events selected by the filter between the local
// store and this relay, then transfers the differences per the configured
// direction.
func (r *Client) Sync(
	c context.T, f *filter.F, opts *SyncOptions, sto store.I,
) (rec *Reconciliation, err error) {
	if opts == nil {
		opts = DefaultSyncOptions()
	}
	rec = newReconciliation()
	var items []store.Item
	if items, err = sto.NegentropyItems(c, f); chk.E(err) {
		return
	}
	vec := negentropy.NewVector()
	for _, it := range items {
		if err = vec.Insert(uint64(it.CreatedAt), it.ID); chk.E(err) {
			return
		}
	}
	if err = vec.Seal(); chk.E(err) {
		return
	}
	neg := negentropy.New(vec, negentropy.DefaultFrameSizeLimit)
	var msg []byte
	if msg, err = neg.Initiate(); chk.E(err) {
		return
	}
	id := subscription.NewRandom()
	replies := make(chan []byte, 1)
	errCh := make(chan string, 1)
	r.negSessions.Store(id.String(), replies)
	r.negErrors.Store(id.String(), errCh)
	defer func() {
		r.negSessions.Delete(id.String())
		r.negErrors.Delete(id.String())
		closeb := negentropyenvelope.NewCloseFrom(id).Marshal(nil)
		<-r.Write(closeb)
	}()
	open := negentropyenvelope.NewOpenFrom(id, f, msg)
	if err = <-r.Write(open.Marshal(nil)); err != nil {
		return
	}
	timeout := opts.InitialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	for {
		var reply []byte
		select {
		case reply = <-replies:
		case reason := <-errCh:
			err = errorf.D("{%s} NEG-ERR: %s", r.URL, reason)
			return
		case <-time.After(timeout):
			err = errorf.D("{%s} negentropy reply timed out", r.URL)
			return
		case <-c.Done():
			err = c.Err()
			return
		}
		// subsequent rounds use the standard wait
		timeout = BatchEventIterationTimeout
		var out []byte
		var haveIds, needIds [][]byte
		if out, haveIds, needIds, err = neg.Reconcile(reply); chk.D(err) {
			return
		}
		rec.RemoteMissing = append(rec.RemoteMissing, haveIds...)
		rec.LocalMissing = append(rec.LocalMissing, needIds...)
		if opts.Progress != nil {
			select {
			case opts.Progress <- ProgressUpdate{
				URL:           r.URL,
				LocalMissing:  len(rec.LocalMissing),
				RemoteMissing: len(rec.RemoteMissing),
			}:
			default:
			}
		}
		if out == nil {
			break
		}
		next := negentropyenvelope.NewMsgFrom(id, out)
		if err = <-r.Write(next.Marshal(nil)); err != nil {
			return
		}
	}
	if opts.DryRun {
		return
	}
	if opts.Direction == SyncDown || opts.Direction == SyncBoth {
		if err = r.syncDown(c, rec.LocalMissing, sto); chk.D(err) {
			return
		}
	}
	if opts.Direction == SyncUp || opts.Direction == SyncBoth {
		r.syncUp(c, rec.RemoteMissing, sto, rec)
	}
	return
}

// syncDown fetches the locally missing events in batches and saves them.
func (r *Client) syncDown(
	c context.T, ids [][]byte, sto store.I,
) (err error) {
	for start := 0; start < len(ids); start += NegentropyBatchSizeDown {
		end := start + NegentropyBatchSizeDown
		if end > len(ids) {
			end = len(ids)
		}
		f := filter.New()
		f.IDs = tag.FromBytesSlice(ids[start:end]...)
		fetched, ferr := r.FetchEvents(
			c, filters.New(f), BatchEventIterationTimeout,
		)
		if ferr != nil {
			return ferr
		}
		for _, ev := range fetched {
			if _, serr := sto.SaveEvent(c, ev); chk.D(serr) {
				continue
			}
			if serr := sto.EventSeen(
				c, ev.ID, r.URL,
			); serr != nil && serr != store.ErrNotSupported {
				log.D.F("{%s} seen-on record failed: %v", r.URL, serr)
			}
		}
	}
	return
}

// syncUp publishes the remotely missing events, observing the high and low
// water marks so the relay's buffers are not overrun.
func (r *Client) syncUp(
	c context.T, ids [][]byte, sto store.I, rec *Reconciliation,
) {
	inFlight := 0
	results := make(chan error, NegentropyHighWaterUp)
	drain := func(min int) {
		for inFlight > min {
			if err := <-results; err != nil {
				rec.SendFailures[r.URL] = append(
					rec.SendFailures[r.URL], err.Error(),
				)
			}
			inFlight--
		}
	}
	for _, id := range ids {
		evs, err := sto.QueryEvents(c, filters.New(idFilter(id)))
		if chk.D(err) || len(evs) == 0 {
			continue
		}
		ev := evs[0]
		if inFlight >= NegentropyHighWaterUp {
			drain(NegentropyLowWaterUp)
		}
		inFlight++
		go func() {
			results <- r.Publish(c, ev)
		}()
	}
	drain(0)
}

func idFilter(id []byte) (f *filter.F) {
	f = filter.New()
	f.IDs = tag.FromBytesSlice(id)
	return
}
