package records

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/mkobetic/stls/primitives"
)

// Authenticator owns the per-direction record sequence number and the
// pseudo-header bound to every record: for AEAD suites the pseudo-header
// is the additional authenticated data, for MAC suites it is the prefix
// the record digest is computed over.
type Authenticator interface {
	// SequenceNumber returns the current 8-byte sequence number without
	// advancing it.
	SequenceNumber() []byte
	// AcquireAuthenticationBytes returns the pseudo-header for the next
	// record and advances the sequence number. It must be called exactly
	// once per record.
	AcquireAuthenticationBytes(t ContentType, length int) []byte
	// MACLen is the size of the record MAC, 0 for AEAD suites.
	MACLen() int
	// SeqNumOverflow reports that the sequence number space is exhausted
	// and the connection must be abandoned.
	SeqNumOverflow() bool
}

// pseudo-header layout:
//
//	SSLv3/TLS MAC: seq(8) type(1) [version(2)] length(2)
//	TLS1.2 AEAD:   seq(8) type(1) version(2) length(2)
//
// SSLv3 omits the protocol version.
type authenticator struct {
	block    []byte
	overflow bool
}

func newAuthenticator(v ProtocolVersion) *authenticator {
	if v == SSL30 {
		return &authenticator{block: make([]byte, 8+1+2)}
	}
	block := make([]byte, 8+1+2+2)
	block[9] = byte(v >> 8)
	block[10] = byte(v & 0xFF)
	return &authenticator{block: block}
}

// NewAuthenticator creates the sequence-number authenticator used by AEAD
// suites (which carry no separate record MAC).
func NewAuthenticator(v ProtocolVersion) Authenticator {
	return newAuthenticator(v)
}

func (a *authenticator) SequenceNumber() []byte {
	seq := make([]byte, 8)
	copy(seq, a.block[:8])
	return seq
}

func (a *authenticator) AcquireAuthenticationBytes(t ContentType, length int) []byte {
	block := make([]byte, len(a.block))
	copy(block, a.block)
	block[8] = byte(t)
	binary.BigEndian.PutUint16(block[len(block)-2:], uint16(length))

	// increment the big-endian sequence number
	for i := 7; i >= 0; i-- {
		a.block[i]++
		if a.block[i] != 0 {
			return block
		}
	}
	a.overflow = true
	return block
}

func (a *authenticator) MACLen() int { return 0 }

func (a *authenticator) SeqNumOverflow() bool { return a.overflow }

// MAC is an Authenticator that additionally computes the record digest of
// MAC cipher suites: HMAC for TLS, the pad1/pad2 construction for SSLv3.
type MAC struct {
	*authenticator
	mac primitives.Hash
}

// NewMAC creates the record MAC for the suite. A nil hash spec yields a
// MAC-less authenticator (MACLen 0).
func NewMAC(spec primitives.HashSpec, key []byte, v ProtocolVersion) *MAC {
	m := &MAC{authenticator: newAuthenticator(v)}
	if spec == nil {
		return m
	}
	if v == SSL30 {
		m.mac = NewSSL30MAC(spec, key)
	} else {
		m.mac = primitives.HMAC.New(spec, key)
	}
	return m
}

func (m *MAC) MACLen() int {
	if m.mac == nil {
		return 0
	}
	return m.mac.Size()
}

// compute returns the record MAC over the pseudo-header and the fragment.
// It advances the sequence number.
func (m *MAC) compute(t ContentType, fragment []byte) []byte {
	header := m.AcquireAuthenticationBytes(t, len(fragment))
	if m.mac == nil {
		return nil
	}
	m.mac.Write(header)
	m.mac.Write(fragment)
	digest := m.mac.Digest()
	m.mac.Reset()
	return digest
}

// verify checks the received digest against the fragment in constant time.
// It advances the sequence number.
func (m *MAC) verify(t ContentType, fragment, digest []byte) error {
	computed := m.compute(t, fragment)
	if subtle.ConstantTimeCompare(computed, digest) != 1 {
		return ErrBadRecordMAC
	}
	return nil
}

// Close releases the underlying hash state.
func (m *MAC) Close() {
	if m.mac != nil {
		m.mac.Close()
		m.mac = nil
	}
}
