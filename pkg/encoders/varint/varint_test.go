package varint

import (
	"bytes"
	"math"
	"testing"

	"lukechampine.com/frand"

	"parley.dev/pkg/encoders/codecbuf"
)

func TestEncodeDecode(t *testing.T) {
	for range 100000 {
		v := uint64(frand.Intn(math.MaxInt64))
		buf := codecbuf.Get()
		Encode(buf, v)
		u, err := Decode(bytes.NewBuffer(buf.Bytes()))
		if err != nil {
			t.Fatal(err)
		}
		if u != v {
			t.Fatalf("expected %d got %d", v, u)
		}
		codecbuf.Put(buf)
	}
}

func TestAppendExtract(t *testing.T) {
	for range 100000 {
		v := uint64(frand.Intn(math.MaxInt64))
		b := Append(nil, v)
		u, rem, err := Extract(append(b, 0xde, 0xad))
		if err != nil {
			t.Fatal(err)
		}
		if u != v {
			t.Fatalf("expected %d got %d", v, u)
		}
		if len(rem) != 2 {
			t.Fatalf("expected 2 remainder bytes, got %d", len(rem))
		}
	}
}

func TestZero(t *testing.T) {
	b := Append(nil, 0)
	if len(b) != 1 || b[0] != 0 {
		t.Fatalf("zero should encode as one zero byte, got %v", b)
	}
	v, rem, err := Extract(b)
	if err != nil || v != 0 || len(rem) != 0 {
		t.Fatalf("zero round trip failed: %d %v %v", v, rem, err)
	}
}
