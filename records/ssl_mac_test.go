package records

import (
	"testing"

	"github.com/mkobetic/stls/primitives"
)

func Test_SSL30MAC_MD5(t *testing.T) {
	key := []byte("mac secret")
	payload := []byte("hello")
	mac := NewSSL30MAC(primitives.MD5, key)
	defer mac.Close()
	mac.Write(payload)
	digest := mac.Digest()

	md5 := primitives.MD5.New()
	defer md5.Close()
	md5.Write(key)
	for i := 0; i < 6; i++ {
		md5.Write(ssl30MACPad1)
	}
	md5.Write(payload)
	inner := md5.Digest()
	md5.Reset()
	md5.Write(key)
	for i := 0; i < 6; i++ {
		md5.Write(ssl30MACPad2)
	}
	md5.Write(inner)
	expected := md5.Digest()
	assertEqualBytes(t, expected, digest)
}

func Test_SSL30MAC_SHA(t *testing.T) {
	key := []byte("mac secret")
	payload := []byte("hello")
	mac := NewSSL30MAC(primitives.SHA1, key)
	defer mac.Close()
	mac.Write(payload)
	digest := mac.Digest()

	sha := primitives.SHA1.New()
	defer sha.Close()
	sha.Write(key)
	for i := 0; i < 5; i++ {
		sha.Write(ssl30MACPad1)
	}
	sha.Write(payload)
	inner := sha.Digest()
	sha.Reset()
	sha.Write(key)
	for i := 0; i < 5; i++ {
		sha.Write(ssl30MACPad2)
	}
	sha.Write(inner)
	expected := sha.Digest()
	assertEqualBytes(t, expected, digest)
}

func Test_SSL30MAC_Reset(t *testing.T) {
	key := []byte("mac secret")
	mac := NewSSL30MAC(primitives.SHA1, key)
	defer mac.Close()
	mac.Write([]byte("hello"))
	first := append([]byte(nil), mac.Digest()...)
	mac.Reset()
	mac.Write([]byte("hello"))
	assertEqualBytes(t, first, mac.Digest())
}
