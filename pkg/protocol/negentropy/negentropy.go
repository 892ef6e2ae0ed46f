package negentropy

import (
	"bytes"

	"parley.dev/pkg/encoders/varint"
	"parley.dev/pkg/utils/errorf"
)

// Negentropy is the reconciliation state machine for one session. One side
// initiates; both sides feed inbound frames to Reconcile and forward the
// returned frame until it comes back empty.
type Negentropy struct {
	storage          *Vector
	frameSizeLimit   int
	isInitiator      bool
	lastTimestampIn  uint64
	lastTimestampOut uint64
}

// New creates a session over sealed storage. A frameSizeLimit of zero
// applies DefaultFrameSizeLimit.
func New(storage *Vector, frameSizeLimit int) *Negentropy {
	if frameSizeLimit == 0 {
		frameSizeLimit = DefaultFrameSizeLimit
	}
	return &Negentropy{storage: storage, frameSizeLimit: frameSizeLimit}
}

// Initiate produces the opening frame: fingerprints over roughly equal
// splits of the whole range.
func (n *Negentropy) Initiate() (output []byte, err error) {
	if n.isInitiator {
		return nil, errorf.E("negentropy: already initiated")
	}
	n.isInitiator = true
	n.lastTimestampOut = 0
	output = []byte{ProtocolVersion}
	output = n.splitRange(0, n.storage.Size(), infinityBound(), output)
	return
}

// Reconcile consumes an inbound frame and produces the next outbound frame
// plus the differences discovered this round: haveIds are present locally
// and missing remotely, needIds the reverse. For the initiator a nil
// output means the session is complete.
func (n *Negentropy) Reconcile(query []byte) (
	output []byte, haveIds, needIds [][]byte, err error,
) {
	n.lastTimestampIn, n.lastTimestampOut = 0, 0
	r := &reader{b: query}
	var version byte
	if version, err = r.readByte(); err != nil {
		return
	}
	if version != ProtocolVersion {
		err = ErrInvalidVersion
		return
	}
	fullOutput := []byte{ProtocolVersion}
	prevBound := Bound{}
	prevIndex := 0
	skip := false
	for r.len() > 0 {
		var o []byte
		doSkip := func() {
			if skip {
				skip = false
				o = n.writeBound(o, prevBound)
				o = append(o, byte(ModeSkip))
			}
		}
		var currBound Bound
		if currBound, err = n.readBound(r); err != nil {
			return
		}
		var mode uint64
		if mode, err = r.readVarint(); err != nil {
			return
		}
		lower := prevIndex
		upper := n.storage.LowerBound(prevIndex, n.storage.Size(), currBound)
		switch mode {
		case ModeSkip:
			skip = true
		case ModeFingerprint:
			var theirFp []byte
			if theirFp, err = r.readBytes(FingerprintSize); err != nil {
				return
			}
			ourFp := n.storage.Fingerprint(lower, upper)
			if bytes.Equal(theirFp, ourFp[:]) {
				skip = true
			} else {
				doSkip()
				o = n.splitRange(lower, upper, currBound, o)
			}
		case ModeIdList:
			var numIds uint64
			if numIds, err = r.readVarint(); err != nil {
				return
			}
			theirOrder := make([][]byte, 0, numIds)
			theirElems := make(map[string]struct{}, numIds)
			for range numIds {
				var id []byte
				if id, err = r.readBytes(IdSize); err != nil {
					return
				}
				theirOrder = append(theirOrder, id)
				theirElems[string(id)] = struct{}{}
			}
			if n.isInitiator {
				skip = true
				for i := lower; i < upper; i++ {
					id := n.storage.GetItem(i).ID
					if _, ok := theirElems[string(id)]; ok {
						delete(theirElems, string(id))
					} else {
						haveIds = append(haveIds, id)
					}
				}
				for _, id := range theirOrder {
					if _, ok := theirElems[string(id)]; ok {
						needIds = append(needIds, id)
					}
				}
			} else {
				doSkip()
				responseIds := make([]byte, 0, (upper-lower)*IdSize)
				numResponseIds := 0
				endBound := currBound
				truncated := false
				for i := lower; i < upper; i++ {
					if n.frameSizeLimit > 0 &&
						len(fullOutput)+len(o)+len(responseIds) >
							n.frameSizeLimit-200 {
						endBound = Bound{n.storage.GetItem(i)}
						upper = i
						truncated = true
						break
					}
					responseIds = append(
						responseIds, n.storage.GetItem(i).ID...,
					)
					numResponseIds++
				}
				o = n.writeBound(o, endBound)
				o = append(o, byte(ModeIdList))
				o = varint.Append(o, uint64(numResponseIds))
				o = append(o, responseIds...)
				if truncated {
					// the rest of the set goes under one fingerprint so
					// the peer revisits it next round
					fullOutput = append(fullOutput, o...)
					remainingFp := n.storage.Fingerprint(
						upper, n.storage.Size(),
					)
					fullOutput = n.writeBound(fullOutput, infinityBound())
					fullOutput = append(fullOutput, byte(ModeFingerprint))
					fullOutput = append(fullOutput, remainingFp[:]...)
					output = fullOutput
					return
				}
			}
		default:
			err = errorf.D("negentropy: unexpected mode %d", mode)
			return
		}
		if n.frameSizeLimit > 0 &&
			len(fullOutput)+len(o) > n.frameSizeLimit-200 {
			// frame full: this bound's output is dropped, so the deferred
			// fingerprint covers from its lower edge to the end of the set
			remainingFp := n.storage.Fingerprint(lower, n.storage.Size())
			fullOutput = n.writeBound(fullOutput, infinityBound())
			fullOutput = append(fullOutput, byte(ModeFingerprint))
			fullOutput = append(fullOutput, remainingFp[:]...)
			break
		}
		fullOutput = append(fullOutput, o...)
		prevIndex = upper
		prevBound = currBound
	}
	if len(fullOutput) == 1 && n.isInitiator {
		// nothing left to ask: the session is complete
		return
	}
	output = fullOutput
	return
}

// splitRange emits the bounds covering [lower, upper): an id list when the
// range is small, otherwise fingerprints over Buckets splits.
func (n *Negentropy) splitRange(
	lower, upper int, upperBound Bound, o []byte,
) []byte {
	numElems := upper - lower
	if numElems <= IdListThreshold {
		o = n.writeBound(o, upperBound)
		o = append(o, byte(ModeIdList))
		o = varint.Append(o, uint64(numElems))
		for i := lower; i < upper; i++ {
			o = append(o, n.storage.GetItem(i).ID...)
		}
		return o
	}
	itemsPerBucket := numElems / Buckets
	bucketsWithExtra := numElems % Buckets
	curr := lower
	for i := 0; i < Buckets; i++ {
		bucketSize := itemsPerBucket
		if i < bucketsWithExtra {
			bucketSize++
		}
		ourFp := n.storage.Fingerprint(curr, curr+bucketSize)
		curr += bucketSize
		var nextBound Bound
		if curr == upper {
			nextBound = upperBound
		} else {
			nextBound = getMinimalBound(
				n.storage.GetItem(curr-1), n.storage.GetItem(curr),
			)
		}
		o = n.writeBound(o, nextBound)
		o = append(o, byte(ModeFingerprint))
		o = append(o, ourFp[:]...)
	}
	return o
}
