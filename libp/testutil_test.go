package libp

import (
	"errors"

	"github.com/lngqakaza/libp/radio"
	"github.com/lngqakaza/libp/wire"
)

type sentUnicast struct {
	addr    wire.Address
	attrs   radio.Attrs
	payload []byte
}

// fakeMAC is a hand-rolled radio.MAC test double: it records every frame
// handed to it and lets the test drive inbound traffic by calling the
// registered Callbacks directly.
type fakeMAC struct {
	cb         radio.Callbacks
	sent       []sentUnicast
	broadcasts [][]byte
	sendErr    error
	closed     bool
}

func (m *fakeMAC) Open(unicastChannel, broadcastChannel int, cb radio.Callbacks) error {
	m.cb = cb
	return nil
}

func (m *fakeMAC) Close() { m.closed = true }

func (m *fakeMAC) SendUnicast(addr wire.Address, attrs radio.Attrs, payload []byte) error {
	cp := append([]byte(nil), payload...)
	m.sent = append(m.sent, sentUnicast{addr, attrs, cp})
	return m.sendErr
}

func (m *fakeMAC) SendBroadcast(payload []byte) error {
	m.broadcasts = append(m.broadcasts, append([]byte(nil), payload...))
	return nil
}

func (m *fakeMAC) last() sentUnicast {
	return m.sent[len(m.sent)-1]
}

// unicastAttrs builds the attrs an inbound DATA frame would carry.
func unicastAttrs(originator wire.Address, epacketID, packetID, ttl, hops, maxRexmit uint8) radio.Attrs {
	return radio.Attrs{
		ExtendedSender: originator,
		EPacketID:      epacketID,
		PacketID:       packetID,
		TTL:            ttl,
		Hops:           hops,
		MaxRexmit:      maxRexmit,
		Type:           wire.PacketData,
	}
}

// withType returns a copy of a with its Type field replaced, used to turn a
// recorded outbound DATA send's attrs into the attrs its reply ACK would
// carry (same PacketID, different Type).
func withType(a radio.Attrs, t wire.PacketType) radio.Attrs {
	a.Type = t
	return a
}

// fakeAnnouncer is a hand-rolled radio.Announcer test double.
type fakeAnnouncer struct {
	value  uint16
	bumps  int
	recv   chan radio.Announcement
	closed bool
}

func newFakeAnnouncer() *fakeAnnouncer {
	return &fakeAnnouncer{recv: make(chan radio.Announcement, 8)}
}

func (a *fakeAnnouncer) Open(channel int, initial uint16) error { a.value = initial; return nil }
func (a *fakeAnnouncer) Close()                                 { a.closed = true }
func (a *fakeAnnouncer) Set(value uint16)                       { a.value = value }
func (a *fakeAnnouncer) Bump()                                  { a.bumps++ }
func (a *fakeAnnouncer) Received() <-chan radio.Announcement    { return a.recv }

// recordingCallbacks captures every delivery to the application.
type recordingCallbacks struct {
	recv []recvCall
}

type recvCall struct {
	originator wire.Address
	eseqno     uint16
	hops       uint8
}

func (r *recordingCallbacks) Recv(originator wire.Address, eseqno uint16, hops uint8) {
	r.recv = append(r.recv, recvCall{originator, eseqno, hops})
}

var errSendFailed = errors.New("fake send failure")
