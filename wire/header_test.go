package wire

import "testing"

func byteSliceEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

func TestDataHeaderRoundTrip(t *testing.T) {
	h := DataHeader{Flags: 0x01, Reserved: 0, RTMetric: 300}

	b := h.Encode()

	if !byteSliceEqual(b, []byte{0x01, 0x00, 0x2c, 0x01}) {
		t.Fatalf("unexpected wire bytes: %v", b)
	}

	got, err := DecodeDataHeader(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeDataHeaderShort(t *testing.T) {
	if _, err := DecodeDataHeader([]byte{0x01, 0x02}); err == nil {
		t.Fatalf("expected error decoding short buffer")
	}
}

func TestAckMessageRoundTrip(t *testing.T) {
	a := AckMessage{Flags: AckCongested | AckDropped, RTMetric: 511}

	b := a.Encode()

	got, err := DecodeAckMessage(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got != a {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, a)
	}

	if !got.Flags.Has(AckCongested) || !got.Flags.Has(AckDropped) {
		t.Fatalf("expected both flags set, got %#x", got.Flags)
	}

	if got.Flags.Has(AckLifetimeExceeded) {
		t.Fatalf("did not expect AckLifetimeExceeded set")
	}
}

func TestBeaconRoundTrip(t *testing.T) {
	beacon := Beacon{RTMetric: 42, Seqno: 7}

	b := beacon.Encode()

	if len(b) != BeaconSize {
		t.Fatalf("expected %d bytes, got %d", BeaconSize, len(b))
	}

	got, err := DecodeBeacon(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got != beacon {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, beacon)
	}
}

func TestAddressEquality(t *testing.T) {
	a := NewAddress(2, 0)
	b := NewAddress(2, 0)
	c := NewAddress(3, 0)

	if !a.Equal(b) {
		t.Fatalf("expected %v == %v", a, b)
	}

	if a.Equal(c) {
		t.Fatalf("did not expect %v == %v", a, c)
	}

	if !NullAddress.IsNull() {
		t.Fatalf("expected NullAddress.IsNull() true")
	}

	if a.IsNull() {
		t.Fatalf("did not expect %v to be null", a)
	}
}
