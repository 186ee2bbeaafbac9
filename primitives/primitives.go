// Package primitives provides the cryptographic primitives consumed by the
// record layer: block/stream ciphers, AEADs, hashes and MACs. Specs are
// typed values with concrete constructors; the record layer never names
// algorithms by string.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKeySize = errors.New("primitives: invalid key size")
	ErrInvalidIVSize  = errors.New("primitives: invalid IV size")
	// ErrAuthentication is the single error returned for any AEAD open
	// failure. Callers must not be able to tell tag mismatches apart from
	// other open failures.
	ErrAuthentication = errors.New("primitives: message authentication failed")
)

// Random is a source of cryptographically strong random bytes.
type Random interface {
	Read(b []byte) (int, error)
}

// SecureRandom returns the default Random backed by the platform CSPRNG.
func SecureRandom() Random {
	return reader{}
}

type reader struct{}

func (reader) Read(b []byte) (int, error) { return rand.Read(b) }

// Cipher encrypts or decrypts in place through successive Update calls.
// A Cipher is created for one direction and carries its chaining state
// between records.
type Cipher interface {
	// Update transforms in into out (which may alias in) and returns the
	// number of bytes written. For block ciphers len(in) must be a multiple
	// of BlockSize.
	Update(in, out []byte) int
	BlockSize() int
	// Close releases the cipher state.
	Close()
}

// CipherSpec constructs Ciphers for one algorithm.
type CipherSpec interface {
	// New creates a cipher keyed with key. For block ciphers iv must be
	// BlockSize bytes; stream ciphers ignore it.
	New(key, iv []byte, encrypt bool) (Cipher, error)
	BlockSize() int
}

// AEAD seals and opens messages bound to a nonce and additional data.
// The tag is appended to the ciphertext. Open performs constant-time tag
// verification and fails with ErrAuthentication only.
type AEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
	Close()
}

// AEADSpec constructs AEADs for one algorithm.
type AEADSpec interface {
	New(key []byte) (AEAD, error)
	KeySize() int
	NonceSize() int
	Overhead() int
}

// Hash computes a running digest. Digest does not consume the state;
// Reset starts over.
type Hash interface {
	Write(b []byte) (int, error)
	Digest() []byte
	Reset()
	Size() int
	BlockSize() int
	Close()
}

// HashSpec constructs Hashes for one algorithm.
type HashSpec interface {
	New() Hash
	Size() int
}

var (
	RC4      CipherSpec = streamSpec{}
	DES_CBC  CipherSpec = blockSpec{blockSize: des.BlockSize, newBlock: des.NewCipher}
	DES3_CBC CipherSpec = blockSpec{blockSize: des.BlockSize, newBlock: des.NewTripleDESCipher}
	AES_CBC  CipherSpec = blockSpec{blockSize: aes.BlockSize, newBlock: aes.NewCipher}

	AES_GCM           AEADSpec = gcmSpec{keySize: 16}
	AES_256_GCM       AEADSpec = gcmSpec{keySize: 32}
	CHACHA20_POLY1305 AEADSpec = chachaSpec{}

	MD5    HashSpec = hashSpec{size: md5.Size, new: md5.New}
	SHA1   HashSpec = hashSpec{size: sha1.Size, new: sha1.New}
	SHA256 HashSpec = hashSpec{size: sha256.Size, new: sha256.New}
	SHA384 HashSpec = hashSpec{size: sha512.Size384, new: sha512.New384}
)

// HMAC builds keyed MACs from a HashSpec.
var HMAC = hmacFactory{}

type hmacFactory struct{}

func (hmacFactory) New(spec HashSpec, key []byte) Hash {
	hs := spec.(hashSpec)
	return &hashAdapter{hash: hmac.New(hs.new, key)}
}

// stream (RC4)

type streamSpec struct{}

func (streamSpec) BlockSize() int { return 1 }

func (streamSpec) New(key, iv []byte, encrypt bool) (Cipher, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, errors.WithSecondaryError(ErrInvalidKeySize, err)
	}
	return &streamCipher{cipher: c}, nil
}

type streamCipher struct {
	cipher *rc4.Cipher
}

func (c *streamCipher) Update(in, out []byte) int {
	c.cipher.XORKeyStream(out[:len(in)], in)
	return len(in)
}

func (c *streamCipher) BlockSize() int { return 1 }

func (c *streamCipher) Close() { c.cipher = nil }

// block (CBC)

type blockSpec struct {
	blockSize int
	newBlock  func(key []byte) (cipher.Block, error)
}

func (s blockSpec) BlockSize() int { return s.blockSize }

func (s blockSpec) New(key, iv []byte, encrypt bool) (Cipher, error) {
	b, err := s.newBlock(key)
	if err != nil {
		return nil, errors.WithSecondaryError(ErrInvalidKeySize, err)
	}
	if len(iv) != b.BlockSize() {
		return nil, ErrInvalidIVSize
	}
	var mode cipher.BlockMode
	if encrypt {
		mode = cipher.NewCBCEncrypter(b, iv)
	} else {
		mode = cipher.NewCBCDecrypter(b, iv)
	}
	return &blockCipher{mode: mode}, nil
}

type blockCipher struct {
	mode cipher.BlockMode
}

func (c *blockCipher) Update(in, out []byte) int {
	c.mode.CryptBlocks(out[:len(in)], in)
	return len(in)
}

func (c *blockCipher) BlockSize() int { return c.mode.BlockSize() }

func (c *blockCipher) Close() { c.mode = nil }

// AEAD (GCM, ChaCha20-Poly1305)

type gcmSpec struct {
	keySize int
}

func (s gcmSpec) KeySize() int   { return s.keySize }
func (s gcmSpec) NonceSize() int { return 12 }
func (s gcmSpec) Overhead() int  { return 16 }

func (s gcmSpec) New(key []byte) (AEAD, error) {
	if len(key) != s.keySize {
		return nil, ErrInvalidKeySize
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WithSecondaryError(ErrInvalidKeySize, err)
	}
	g, err := cipher.NewGCM(b)
	if err != nil {
		return nil, errors.Wrap(err, "primitives: GCM construction")
	}
	return &aead{aead: g}, nil
}

type chachaSpec struct{}

func (chachaSpec) KeySize() int   { return chacha20poly1305.KeySize }
func (chachaSpec) NonceSize() int { return chacha20poly1305.NonceSize }
func (chachaSpec) Overhead() int  { return chacha20poly1305.Overhead }

func (chachaSpec) New(key []byte) (AEAD, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.WithSecondaryError(ErrInvalidKeySize, err)
	}
	return &aead{aead: a}, nil
}

type aead struct {
	aead cipher.AEAD
}

func (a *aead) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	return a.aead.Seal(dst, nonce, plaintext, additionalData)
}

func (a *aead) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	out, err := a.aead.Open(dst, nonce, ciphertext, additionalData)
	if err != nil {
		// Collapse every open failure into the uniform error.
		return nil, ErrAuthentication
	}
	return out, nil
}

func (a *aead) NonceSize() int { return a.aead.NonceSize() }
func (a *aead) Overhead() int  { return a.aead.Overhead() }
func (a *aead) Close()         { a.aead = nil }

// hashes

type hashSpec struct {
	size int
	new  func() hash.Hash
}

func (s hashSpec) Size() int { return s.size }

func (s hashSpec) New() Hash {
	return &hashAdapter{hash: s.new()}
}

type hashAdapter struct {
	hash hash.Hash
}

func (h *hashAdapter) Write(b []byte) (int, error) { return h.hash.Write(b) }

func (h *hashAdapter) Digest() []byte { return h.hash.Sum(nil) }

func (h *hashAdapter) Reset() { h.hash.Reset() }

func (h *hashAdapter) Size() int { return h.hash.Size() }

func (h *hashAdapter) BlockSize() int { return h.hash.BlockSize() }

func (h *hashAdapter) Close() { h.hash = nil }

// Zero overwrites b. Key material is wiped through this on every dispose
// path so it does not linger after the owning object is released.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
