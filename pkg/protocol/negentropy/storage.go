package negentropy

import (
	"sort"

	"github.com/minio/sha256-simd"

	"parley.dev/pkg/encoders/varint"
	"parley.dev/pkg/utils/errorf"
)

// Vector is the sorted item storage the reconciler ranges over. Items are
// inserted unsorted and sealed once before use.
type Vector struct {
	items  []Item
	sealed bool
}

// NewVector creates an empty Vector.
func NewVector() *Vector { return &Vector{} }

// Insert adds an item; ids must be IdSize bytes.
func (v *Vector) Insert(timestamp uint64, id []byte) (err error) {
	if len(id) != IdSize {
		return errorf.E(
			"negentropy: id must be %d bytes, got %d", IdSize, len(id),
		)
	}
	v.items = append(v.items, Item{Timestamp: timestamp, ID: id})
	return
}

// Seal sorts the items and rejects duplicates; it must be called once
// before the Vector is used.
func (v *Vector) Seal() (err error) {
	if v.sealed {
		return errorf.E("negentropy: already sealed")
	}
	v.sealed = true
	sort.Slice(v.items, func(i, j int) bool {
		return v.items[i].Cmp(v.items[j]) < 0
	})
	for i := 1; i < len(v.items); i++ {
		if v.items[i-1].Cmp(v.items[i]) == 0 {
			return errorf.E("negentropy: duplicate item")
		}
	}
	return
}

// Size returns the number of items.
func (v *Vector) Size() int { return len(v.items) }

// GetItem returns item i.
func (v *Vector) GetItem(i int) Item { return v.items[i] }

// LowerBound returns the index of the first item in [begin, end) not less
// than bound.
func (v *Vector) LowerBound(begin, end int, bound Bound) int {
	return begin + sort.Search(end-begin, func(i int) bool {
		return v.items[begin+i].Cmp(bound.Item) >= 0
	})
}

// Fingerprint digests the range [begin, end): the ids are summed as
// little-endian 256 bit integers mod 2^256, the count is appended as a
// varint, and the sha256 of that is truncated to FingerprintSize.
func (v *Vector) Fingerprint(begin, end int) (fp [FingerprintSize]byte) {
	var acc accumulator
	for i := begin; i < end; i++ {
		acc.add(v.items[i].ID)
	}
	return acc.fingerprint(end - begin)
}

// accumulator is a 256 bit little-endian additive checksum.
type accumulator struct {
	buf [IdSize]byte
}

func (a *accumulator) add(id []byte) {
	var carry uint64
	for i := 0; i < IdSize; i++ {
		sum := uint64(a.buf[i]) + uint64(id[i]) + carry
		a.buf[i] = byte(sum)
		carry = sum >> 8
	}
}

func (a *accumulator) fingerprint(n int) (fp [FingerprintSize]byte) {
	input := make([]byte, 0, IdSize+5)
	input = append(input, a.buf[:]...)
	input = varint.Append(input, uint64(n))
	h := sha256.Sum256(input)
	copy(fp[:], h[:FingerprintSize])
	return
}
