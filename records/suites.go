package records

import (
	"github.com/mkobetic/stls/primitives"
)

type CipherType int

const (
	stream CipherType = iota
	block
	aead
)

// BulkCipher describes the record-layer bulk cipher of a suite: the
// primitive it is built from and its key/IV/tag geometry.
type BulkCipher struct {
	Name    string
	Kind    CipherType
	Cipher  primitives.CipherSpec // stream and block suites
	AEAD    primitives.AEADSpec   // aead suites
	KeySize int
	// IVSize is the record IV size on the wire. For AEAD suites it covers
	// the full nonce; FixedIVSize of it is implicit (derived from the
	// session keys) and the rest travels with each record.
	IVSize      int
	FixedIVSize int
	TagSize     int
	Allowed     bool
}

// BlockSize of the underlying cipher; 0 for stream and aead suites.
func (b *BulkCipher) BlockSize() int {
	if b.Kind == block {
		return b.Cipher.BlockSize()
	}
	return 0
}

// RecordIVSize is the size of the explicit nonce sent with each record.
func (b *BulkCipher) RecordIVSize() int {
	return b.IVSize - b.FixedIVSize
}

func (b *BulkCipher) String() string { return b.Name }

var (
	B_NULL         = &BulkCipher{Name: "NULL", Kind: stream, Allowed: true}
	B_RC4_128      = &BulkCipher{Name: "RC4_128", Kind: stream, Cipher: primitives.RC4, KeySize: 16, Allowed: true}
	B_DES_CBC      = &BulkCipher{Name: "DES_CBC", Kind: block, Cipher: primitives.DES_CBC, KeySize: 8, IVSize: 8, Allowed: false}
	B_3DES_EDE_CBC = &BulkCipher{Name: "3DES_EDE_CBC", Kind: block, Cipher: primitives.DES3_CBC, KeySize: 24, IVSize: 8, Allowed: true}
	B_AES_128_CBC  = &BulkCipher{Name: "AES_128_CBC", Kind: block, Cipher: primitives.AES_CBC, KeySize: 16, IVSize: 16, Allowed: true}
	B_AES_256_CBC  = &BulkCipher{Name: "AES_256_CBC", Kind: block, Cipher: primitives.AES_CBC, KeySize: 32, IVSize: 16, Allowed: true}
	B_AES_128_GCM  = &BulkCipher{Name: "AES_128_GCM", Kind: aead, AEAD: primitives.AES_GCM, KeySize: 16, IVSize: 12, FixedIVSize: 4, TagSize: 16, Allowed: true}
	B_AES_256_GCM  = &BulkCipher{Name: "AES_256_GCM", Kind: aead, AEAD: primitives.AES_256_GCM, KeySize: 32, IVSize: 12, FixedIVSize: 4, TagSize: 16, Allowed: true}
	// RFC 7905: the whole 12-byte nonce is implicit, XORed with the
	// sequence number; nothing travels on the wire.
	B_CHACHA20_POLY1305 = &BulkCipher{Name: "CHACHA20_POLY1305", Kind: aead, AEAD: primitives.CHACHA20_POLY1305, KeySize: 32, IVSize: 12, FixedIVSize: 12, TagSize: 16, Allowed: true}
)

// CipherSpec pairs a bulk cipher with the record MAC of the suite.
type CipherSpec struct {
	Bulk       *BulkCipher
	MAC        primitives.HashSpec
	MACKeySize int
}

var (
	NULL_NULL                = CipherSpec{B_NULL, nil, 0}
	NULL_MD5                 = CipherSpec{B_NULL, primitives.MD5, 16}
	NULL_SHA                 = CipherSpec{B_NULL, primitives.SHA1, 20}
	NULL_SHA256              = CipherSpec{B_NULL, primitives.SHA256, 32}
	RC4_128_MD5              = CipherSpec{B_RC4_128, primitives.MD5, 16}
	RC4_128_SHA              = CipherSpec{B_RC4_128, primitives.SHA1, 20}
	DES_EDE_CBC_SHA          = CipherSpec{B_3DES_EDE_CBC, primitives.SHA1, 20}
	AES_128_CBC_SHA          = CipherSpec{B_AES_128_CBC, primitives.SHA1, 20}
	AES_128_CBC_SHA256       = CipherSpec{B_AES_128_CBC, primitives.SHA256, 32}
	AES_256_CBC_SHA          = CipherSpec{B_AES_256_CBC, primitives.SHA1, 20}
	AES_256_CBC_SHA256       = CipherSpec{B_AES_256_CBC, primitives.SHA256, 32}
	AES_128_GCM_SHA256       = CipherSpec{B_AES_128_GCM, nil, 0}
	AES_256_GCM_SHA384       = CipherSpec{B_AES_256_GCM, nil, 0}
	CHACHA20_POLY1305_SHA256 = CipherSpec{B_CHACHA20_POLY1305, nil, 0}
)
