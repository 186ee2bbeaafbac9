package records

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mkobetic/stls/primitives"
	"github.com/rs/zerolog/log"
)

// CipherBox handles bulk enciphering/deciphering of record fragments for
// one direction of a connection. Stream ciphers don't need padding, block
// ciphers do, AEAD suites carry their tag instead of a MAC.
//
// For CBC suites up to TLS1.0 the IV of the first record comes from the
// key block and the IV of every following record is the last ciphertext
// block of the previous one. From TLS1.1 the implicit IV is replaced with
// an explicit per-record IV to protect against CBC attacks.
//
// A CipherBox is not safe for concurrent use; the record layer serializes
// records per direction.
type CipherBox struct {
	version   ProtocolVersion
	kind      CipherType
	encrypt   bool
	blockSize int
	random    primitives.Random

	// stream and block suites: the primitive, initialized once; chaining
	// state carries across records.
	cipher primitives.Cipher

	// AEAD suites: the primitive is bound to a fresh nonce for every
	// record, so the construction parameters are retained instead.
	aead         primitives.AEAD
	key          []byte
	fixedIV      []byte
	tagSize      int
	recordIVSize int

	// nonce and additional data prepared for the next record by
	// CreateExplicitNonce/ApplyExplicitNonce.
	pendingNonce []byte
	pendingAAD   []byte
}

// nullBox implements the identity operation, used by the NULL suite.
var nullBox = &CipherBox{version: TLSXX, kind: stream}

// Fixed masks of various block sizes, the initial decryption IVs for
// TLS 1.1 or later CBC suites. The initial IV is discarded by the TLS
// decryption process, so a fixed all-zero mask does not weaken anything
// and avoids the cost of per-connection randomness. Populated lazily,
// monotonically; all writers store equal values.
var fixedMasks sync.Map // block size -> []byte

func getFixedMask(size int) []byte {
	if iv, ok := fixedMasks.Load(size); ok {
		return iv.([]byte)
	}
	iv := make([]byte, size)
	fixedMasks.Store(size, iv)
	return iv
}

// NewCipherBox creates the bulk cipher for one direction.
//
// For CBC decryption at TLS1.1 or later a nil iv is substituted with the
// fixed zero mask. For AEAD suites iv is the implicit part of the nonce
// and must be exactly FixedIVSize bytes.
func NewCipherBox(version ProtocolVersion, bulk *BulkCipher, key, iv []byte, random primitives.Random, encrypt bool) (*CipherBox, error) {
	if !bulk.Allowed {
		return nil, errors.Wrapf(ErrUnsupportedCipher, "%s", bulk)
	}
	if bulk == B_NULL {
		return nullBox, nil
	}
	if random == nil {
		random = primitives.SecureRandom()
	}
	box := &CipherBox{
		version: version,
		kind:    bulk.Kind,
		encrypt: encrypt,
		random:  random,
	}

	// The initial IV of a TLS1.1+ CBC suite is inert: every record ships
	// its own explicit IV. Decryption uses the fixed zero mask, encryption
	// draws a throwaway random IV.
	if iv == nil && bulk.IVSize != 0 && bulk.Kind == block && version >= TLS11 {
		if encrypt {
			iv = make([]byte, bulk.IVSize)
			if _, err := random.Read(iv); err != nil {
				return nil, errors.Wrapf(ErrCipherInit, "could not create cipher %s: %v", bulk, err)
			}
		} else {
			iv = getFixedMask(bulk.IVSize)
		}
	}

	switch bulk.Kind {
	case aead:
		if len(iv) != bulk.FixedIVSize {
			return nil, errors.Wrapf(ErrCipherInit, "improper fixed IV for %s", bulk)
		}
		box.tagSize = bulk.TagSize
		box.recordIVSize = bulk.RecordIVSize()
		box.key = append([]byte(nil), key...)
		box.fixedIV = append([]byte(nil), iv...)
		a, err := bulk.AEAD.New(box.key)
		if err != nil {
			return nil, errors.Wrapf(ErrCipherInit, "could not create cipher %s: %v", bulk, err)
		}
		box.aead = a
	default:
		c, err := bulk.Cipher.New(key, iv, encrypt)
		if err != nil {
			return nil, errors.Wrapf(ErrCipherInit, "could not create cipher %s: %v", bulk, err)
		}
		box.cipher = c
		box.blockSize = bulk.BlockSize()
	}
	return box, nil
}

// Encrypt enciphers fragment in place and returns the resulting
// ciphertext, which grows by the padding for block suites and by the tag
// for AEAD suites. For block suites at TLS1.1 or later the caller must
// have prepended the explicit IV produced by CreateExplicitNonce; for
// AEAD suites CreateExplicitNonce must have been called for this record
// and the explicit nonce travels outside the fragment.
func (b *CipherBox) Encrypt(fragment []byte) ([]byte, error) {
	switch b.kind {
	case stream:
		if b.cipher == nil {
			return fragment, nil
		}
		b.cipher.Update(fragment, fragment)
		return fragment, nil
	case block:
		fragment = addPadding(fragment, b.blockSize)
		if e := log.Trace(); e.Enabled() {
			e.Int("len", len(fragment)).Hex("fragment", fragment).
				Msg("padded plaintext before encryption")
		}
		b.cipher.Update(fragment, fragment)
		return fragment, nil
	case aead:
		_assert(b.pendingNonce != nil, "AEAD encrypt without explicit nonce")
		nonce, aad := b.pendingNonce, b.pendingAAD
		b.pendingNonce, b.pendingAAD = nil, nil
		return b.aead.Seal(fragment[:0], nonce, fragment, aad), nil
	}
	return fragment, nil
}

// Decrypt deciphers fragment in place and returns the resulting
// plaintext. tagLen is the record MAC size (0 for AEAD suites). For block
// suites the returned slice still carries the explicit IV prefix at
// TLS1.1 or later; for AEAD suites it still carries the explicit nonce.
// The caller strips ExplicitNonceSize bytes.
//
// Every decryption failure is ErrBadRecordMAC: distinguishing the causes
// would permit padding-oracle attacks against CBC suites.
func (b *CipherBox) Decrypt(fragment []byte, tagLen int) ([]byte, error) {
	switch b.kind {
	case stream:
		if b.cipher == nil {
			return fragment, nil
		}
		b.cipher.Update(fragment, fragment)
		return fragment, nil
	case block:
		if !b.sanityCheck(tagLen, len(fragment)) {
			return nil, ErrBadRecordMAC
		}
		b.cipher.Update(fragment, fragment)
		if e := log.Trace(); e.Enabled() {
			e.Int("len", len(fragment)).Hex("fragment", fragment).
				Msg("padded plaintext after decryption")
		}
		newLen, err := removePadding(fragment, tagLen, b.blockSize, b.version)
		if err != nil {
			return nil, err
		}
		if b.version >= TLS11 && newLen < b.blockSize {
			// too short to contain the explicit IV block
			return nil, ErrBadRecordMAC
		}
		return fragment[:newLen], nil
	case aead:
		_assert(b.pendingNonce != nil, "AEAD decrypt without explicit nonce")
		nonce, aad := b.pendingNonce, b.pendingAAD
		b.pendingNonce, b.pendingAAD = nil, nil
		body := fragment[b.recordIVSize:]
		plain, err := b.aead.Open(body[:0], nonce, body, aad)
		if err != nil {
			return nil, ErrBadRecordMAC
		}
		return fragment[:b.recordIVSize+len(plain)], nil
	}
	return fragment, nil
}

// ExplicitNonceSize is the size of the per-record IV/nonce sent on the
// wire: the cipher block size for CBC suites at TLS1.1 or later, the
// record IV size for AEAD suites, 0 otherwise.
func (b *CipherBox) ExplicitNonceSize() int {
	switch b.kind {
	case block:
		if b.version >= TLS11 {
			return b.blockSize
		}
	case aead:
		return b.recordIVSize
	}
	return 0
}

// CreateExplicitNonce produces the explicit per-record IV/nonce for an
// outgoing record and, for AEAD suites, binds the primitive to the record
// nonce and additional data. fragmentLen is the plaintext fragment
// length. Must be called exactly once before the matching Encrypt.
func (b *CipherBox) CreateExplicitNonce(auth Authenticator, t ContentType, fragmentLen int) []byte {
	var nonce []byte
	switch b.kind {
	case block:
		if b.version >= TLS11 {
			// random per-record IV, RFC 4346 6.2.3.2 (2)(b)
			nonce = make([]byte, b.blockSize)
			_, err := b.random.Read(nonce)
			_assert(err == nil, "explicit IV generation: %v", err)
		}
	case aead:
		// The sequence number is unique and overflow-aware, which makes
		// it the explicit nonce of choice.
		seq := auth.SequenceNumber()
		b.pendingNonce = b.recordNonce(seq)
		b.pendingAAD = auth.AcquireAuthenticationBytes(t, fragmentLen)
		if b.recordIVSize > 0 {
			nonce = seq[8-b.recordIVSize:]
		}
	}
	return nonce
}

// ApplyExplicitNonce consumes the explicit per-record IV/nonce of an
// incoming record and prepares the primitive for the matching Decrypt.
// The explicit bytes are left in place; Decrypt accounts for them. The
// returned size is what the caller strips from the decrypted result.
func (b *CipherBox) ApplyExplicitNonce(auth Authenticator, t ContentType, fragment []byte) (int, error) {
	switch b.kind {
	case block:
		if tagLen := auth.MACLen(); tagLen != 0 {
			if !b.sanityCheck(tagLen, len(fragment)) {
				return 0, ErrBadRecordMAC
			}
		}
		if b.version >= TLS11 {
			return b.blockSize, nil
		}
	case aead:
		if len(fragment) < b.recordIVSize+b.tagSize {
			return 0, ErrBadRecordMAC
		}
		var seq []byte
		if b.recordIVSize > 0 {
			seq = fragment[:b.recordIVSize]
		} else {
			seq = auth.SequenceNumber()
		}
		b.pendingNonce = b.recordNonce(seq)
		b.pendingAAD = auth.AcquireAuthenticationBytes(
			t, len(fragment)-b.recordIVSize-b.tagSize)
		return b.recordIVSize, nil
	}
	return 0, nil
}

// recordNonce composes the full AEAD nonce from the implicit part and the
// 8-byte sequence/explicit value: concatenation when the suite ships an
// explicit nonce (RFC 5288 GCM), XOR into the trailing bytes when the
// whole nonce is implicit (RFC 7905 ChaCha20-Poly1305).
func (b *CipherBox) recordNonce(seq []byte) []byte {
	if b.recordIVSize > 0 {
		nonce := make([]byte, 0, len(b.fixedIV)+b.recordIVSize)
		nonce = append(nonce, b.fixedIV...)
		return append(nonce, seq[len(seq)-b.recordIVSize:]...)
	}
	nonce := make([]byte, len(b.fixedIV))
	copy(nonce, b.fixedIV)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-8+i] ^= seq[i]
	}
	return nonce
}

// sanityCheck validates a fragment length before decryption. In CBC mode
// the fragment must be a positive multiple of the block size and large
// enough for the MAC tag, the smallest padding, and the explicit IV at
// TLS1.1 or later. In non-CBC modes it must fit the tag.
func (b *CipherBox) sanityCheck(tagLen, fragmentLen int) bool {
	if b.kind != block {
		return fragmentLen >= tagLen
	}
	if fragmentLen <= 0 || fragmentLen%b.blockSize != 0 {
		return false
	}
	minimal := tagLen + 1
	if minimal < b.blockSize {
		minimal = b.blockSize
	}
	if b.version >= TLS11 {
		minimal += b.blockSize // plus the size of the explicit IV
	}
	return fragmentLen >= minimal
}

// IsCBCMode reports whether the suite runs a block cipher in CBC mode.
func (b *CipherBox) IsCBCMode() bool { return b.kind == block }

// IsAEADMode reports whether the suite is an AEAD suite.
func (b *CipherBox) IsAEADMode() bool { return b.kind == aead }

// IsNullCipher reports whether the box performs the identity operation.
func (b *CipherBox) IsNullCipher() bool { return b.cipher == nil && b.aead == nil }

// Close releases the primitive and wipes retained key material.
func (b *CipherBox) Close() {
	if b == nullBox {
		return
	}
	if b.cipher != nil {
		b.cipher.Close()
		b.cipher = nil
	}
	if b.aead != nil {
		b.aead.Close()
		b.aead = nil
	}
	primitives.Zero(b.key)
	primitives.Zero(b.fixedIV)
	primitives.Zero(b.pendingNonce)
	b.key, b.fixedIV = nil, nil
	b.pendingNonce, b.pendingAAD = nil, nil
}
