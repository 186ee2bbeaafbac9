package primitives

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCipher_CBCRoundTrip(t *testing.T) {
	for _, c := range []struct {
		spec    CipherSpec
		keySize int
	}{
		{AES_CBC, 16},
		{AES_CBC, 32},
		{DES3_CBC, 24},
	} {
		spec := c.spec
		key := bytes.Repeat([]byte{42}, c.keySize)
		iv := bytes.Repeat([]byte{7}, spec.BlockSize())
		enc, err := spec.New(key, iv, true)
		assert.Nil(t, err)
		dec, err := spec.New(key, iv, false)
		assert.Nil(t, err)

		plain := bytes.Repeat([]byte{0xAB}, 4*spec.BlockSize())
		buf := append([]byte(nil), plain...)
		n := enc.Update(buf, buf)
		assert.Equal(t, len(plain), n)
		assert.False(t, bytes.Equal(plain, buf))
		n = dec.Update(buf, buf)
		assert.Equal(t, len(plain), n)
		assert.Equal(t, plain, buf)
		enc.Close()
		dec.Close()
	}
}

// CBC chaining state carries across Update calls: encrypting in two
// pieces equals encrypting in one.
func TestCipher_CBCChaining(t *testing.T) {
	key := bytes.Repeat([]byte{42}, 16)
	iv := bytes.Repeat([]byte{7}, 16)
	plain := bytes.Repeat([]byte{0xAB}, 64)

	one, err := AES_CBC.New(key, iv, true)
	assert.Nil(t, err)
	defer one.Close()
	whole := append([]byte(nil), plain...)
	one.Update(whole, whole)

	two, err := AES_CBC.New(key, iv, true)
	assert.Nil(t, err)
	defer two.Close()
	pieces := append([]byte(nil), plain...)
	two.Update(pieces[:32], pieces[:32])
	two.Update(pieces[32:], pieces[32:])

	assert.Equal(t, whole, pieces)
}

func TestCipher_CBCBadKeyOrIV(t *testing.T) {
	_, err := AES_CBC.New(make([]byte, 7), make([]byte, 16), true)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = AES_CBC.New(make([]byte, 16), make([]byte, 7), true)
	assert.ErrorIs(t, err, ErrInvalidIVSize)
}

func TestCipher_RC4(t *testing.T) {
	key := bytes.Repeat([]byte{42}, 16)
	enc, err := RC4.New(key, nil, true)
	assert.Nil(t, err)
	defer enc.Close()
	dec, err := RC4.New(key, nil, false)
	assert.Nil(t, err)
	defer dec.Close()

	plain := []byte("stream ciphers need no padding")
	buf := append([]byte(nil), plain...)
	enc.Update(buf, buf)
	assert.False(t, bytes.Equal(plain, buf))
	dec.Update(buf, buf)
	assert.Equal(t, plain, buf)
}

func TestAEAD_RoundTrip(t *testing.T) {
	for _, spec := range []AEADSpec{AES_GCM, AES_256_GCM, CHACHA20_POLY1305} {
		key := bytes.Repeat([]byte{42}, spec.KeySize())
		a, err := spec.New(key)
		assert.Nil(t, err)
		nonce := bytes.Repeat([]byte{7}, a.NonceSize())
		aad := []byte("header")
		sealed := a.Seal(nil, nonce, []byte("hello"), aad)
		assert.Equal(t, 5+a.Overhead(), len(sealed))
		plain, err := a.Open(nil, nonce, sealed, aad)
		assert.Nil(t, err)
		assert.Equal(t, []byte("hello"), plain)
		a.Close()
	}
}

// Every open failure is the single uniform error, regardless of whether
// the tag, the ciphertext, the nonce or the additional data changed.
func TestAEAD_UniformOpenError(t *testing.T) {
	key := make([]byte, 16)
	a, err := AES_GCM.New(key)
	assert.Nil(t, err)
	defer a.Close()
	nonce := make([]byte, 12)
	sealed := a.Seal(nil, nonce, []byte("hello"), []byte("aad"))

	corrupted := append([]byte(nil), sealed...)
	corrupted[len(corrupted)-1] ^= 1
	_, err = a.Open(nil, nonce, corrupted, []byte("aad"))
	assert.ErrorIs(t, err, ErrAuthentication)

	corrupted = append([]byte(nil), sealed...)
	corrupted[0] ^= 1
	_, err = a.Open(nil, nonce, corrupted, []byte("aad"))
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = a.Open(nil, nonce, sealed, []byte("axd"))
	assert.ErrorIs(t, err, ErrAuthentication)

	wrongNonce := append([]byte(nil), nonce...)
	wrongNonce[3] ^= 1
	_, err = a.Open(nil, wrongNonce, sealed, []byte("aad"))
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestAEAD_BadKeySize(t *testing.T) {
	_, err := AES_GCM.New(make([]byte, 24))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
	_, err = CHACHA20_POLY1305.New(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestHash_DigestReset(t *testing.T) {
	h := SHA256.New()
	defer h.Close()
	h.Write([]byte("hello"))
	one := h.Digest()
	// Digest does not consume the state
	two := h.Digest()
	assert.Equal(t, one, two)
	assert.Equal(t, sha256.Size, h.Size())
	h.Reset()
	h.Write([]byte("hello"))
	assert.Equal(t, one, h.Digest())
}

func TestHMAC(t *testing.T) {
	key := []byte("mac secret")
	m := HMAC.New(SHA256, key)
	defer m.Close()
	m.Write([]byte("hello"))
	expected := hmac.New(sha256.New, key)
	expected.Write([]byte("hello"))
	assert.Equal(t, expected.Sum(nil), m.Digest())
}

func TestSecureRandom(t *testing.T) {
	r := SecureRandom()
	one := make([]byte, 16)
	two := make([]byte, 16)
	_, err := r.Read(one)
	assert.Nil(t, err)
	_, err = r.Read(two)
	assert.Nil(t, err)
	assert.NotEqual(t, one, two)
}

func TestZero(t *testing.T) {
	b := bytes.Repeat([]byte{42}, 16)
	Zero(b)
	assert.Equal(t, make([]byte, 16), b)
}
