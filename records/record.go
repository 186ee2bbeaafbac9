// Package records implements the SSL/TLS record-layer cipher machinery:
// bulk cipher descriptors, the CipherBox enciphering engine, record MACs,
// and record framing Reader/Writer types.
package records

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type ProtocolVersion uint16

const (
	TLSXX ProtocolVersion = 0x0000 // unspecified protocol version
	SSL30 ProtocolVersion = 0x0300
	TLS10 ProtocolVersion = 0x0301
	TLS11 ProtocolVersion = 0x0302
	TLS12 ProtocolVersion = 0x0303
)

func (v ProtocolVersion) String() string {
	switch v {
	case SSL30:
		return "SSLv3.0"
	case TLS10:
		return "TLSv1.0"
	case TLS11:
		return "TLSv1.1"
	case TLS12:
		return "TLSv1.2"
	}
	return fmt.Sprintf("0x%04x", uint16(v))
}

type ContentType uint8

const (
	ChangeCipherSpec ContentType = 20
	Alert            ContentType = 21
	Handshake        ContentType = 22
	ApplicationData  ContentType = 23
)

const (
	HeaderSize          = 5
	MaxPlaintextLength  = 1 << 14
	MaxCompressedLength = MaxPlaintextLength + 1024
	MaxCiphertextLength = MaxCompressedLength + 1024

	// Maximum explicit nonce prefix any suite needs (CBC explicit IV block).
	MaxExplicitNonceSize = 16
	// Minimum space required at the end of the record buffer to accommodate
	// the largest MAC or AEAD tag plus padding for the largest block cipher.
	MinBufferTrailerSize = 48 + 16
	// MaxBufferSize fits the largest legal record.
	MaxBufferSize = HeaderSize + MaxExplicitNonceSize + MaxCiphertextLength
)

var (
	// ErrBadRecordMAC is the only error a failed record decryption
	// produces. MAC mismatch, padding mismatch, AEAD tag mismatch and
	// length sanity violations all collapse into it so that the failure
	// cause is not observable to the peer.
	ErrBadRecordMAC = errors.New("bad record MAC")

	ErrUnsupportedCipher            = errors.New("unsupported cipher")
	ErrCipherInit                   = errors.New("cipher initialization failed")
	ErrRecordSequenceNumberOverflow = errors.New("maximum record sequence number reached")
	ErrUnexpectedRecordContentType  = errors.New("received a record with unexpected content type")
	ErrWrongRecordVersion           = errors.New("received a record with wrong protocol version")
	ErrRecordTooLarge               = errors.New("incoming record reports length exceeding maximum allowed record size")
)

// Helpers

func _assert(v bool, msg string, params ...interface{}) {
	if !v {
		panic(fmt.Sprintf(msg, params...))
	}
}
