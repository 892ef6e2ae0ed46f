package negentropy

import (
	"parley.dev/pkg/encoders/varint"
	"parley.dev/pkg/utils/errorf"
)

// reader consumes one inbound frame.
type reader struct {
	b []byte
}

func (r *reader) len() int { return len(r.b) }

func (r *reader) readByte() (b byte, err error) {
	if len(r.b) == 0 {
		err = errorf.D("negentropy: truncated frame")
		return
	}
	b = r.b[0]
	r.b = r.b[1:]
	return
}

func (r *reader) readVarint() (v uint64, err error) {
	v, r.b, err = varint.Extract(r.b)
	return
}

func (r *reader) readBytes(n int) (b []byte, err error) {
	if len(r.b) < n {
		err = errorf.D("negentropy: truncated frame")
		return
	}
	b = r.b[:n]
	r.b = r.b[n:]
	return
}

// Timestamps are delta coded across each message in the order bounds are
// written; zero is the open bound, otherwise the value is delta plus one.

func (n *Negentropy) readTimestamp(r *reader) (t uint64, err error) {
	var v uint64
	if v, err = r.readVarint(); err != nil {
		return
	}
	if v == 0 {
		t = maxTimestamp
		return
	}
	t = v - 1 + n.lastTimestampIn
	n.lastTimestampIn = t
	return
}

func (n *Negentropy) writeTimestamp(dst []byte, t uint64) []byte {
	if t == maxTimestamp {
		n.lastTimestampOut = t
		return varint.Append(dst, 0)
	}
	delta := t - n.lastTimestampOut
	n.lastTimestampOut = t
	return varint.Append(dst, delta+1)
}

func (n *Negentropy) readBound(r *reader) (b Bound, err error) {
	if b.Timestamp, err = n.readTimestamp(r); err != nil {
		return
	}
	var l uint64
	if l, err = r.readVarint(); err != nil {
		return
	}
	if l > IdSize {
		err = errorf.D("negentropy: bound id prefix too long: %d", l)
		return
	}
	if b.ID, err = r.readBytes(int(l)); err != nil {
		return
	}
	return
}

func (n *Negentropy) writeBound(dst []byte, b Bound) []byte {
	dst = n.writeTimestamp(dst, b.Timestamp)
	dst = varint.Append(dst, uint64(len(b.ID)))
	dst = append(dst, b.ID...)
	return dst
}

// getMinimalBound computes the shortest bound that separates prev from
// curr: a bare timestamp when they differ, otherwise the shared id prefix
// extended by one byte.
func getMinimalBound(prev, curr Item) Bound {
	if curr.Timestamp != prev.Timestamp {
		return Bound{Item{Timestamp: curr.Timestamp}}
	}
	shared := 0
	for shared < IdSize && prev.ID[shared] == curr.ID[shared] {
		shared++
	}
	return Bound{Item{
		Timestamp: curr.Timestamp,
		ID:        curr.ID[:shared+1],
	}}
}
