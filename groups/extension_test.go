package groups

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func h2b(h string) []byte {
	b, _ := hex.DecodeString(h)
	return b
}

func TestExtension_Marshal(t *testing.T) {
	e := &SupportedGroupsExtension{IDs: []uint16{23, 24, 25}}
	assert.Equal(t, h2b("000a00080006001700180019"), e.Marshal())
	assert.Equal(t, h2b("0006001700180019"), e.MarshalData())
	assert.Equal(t, 12, e.Length())
}

func TestExtension_RoundTrip(t *testing.T) {
	for _, ids := range [][]uint16{
		{},
		{23},
		{23, 24, 25},
		{0xFFFF, 23, 0xff01, 0xff02},
	} {
		e := &SupportedGroupsExtension{IDs: ids}
		parsed, err := ParseExtension(e.MarshalData())
		assert.Nil(t, err)
		assert.Equal(t, len(ids), len(parsed.IDs))
		for i, id := range ids {
			assert.Equal(t, id, parsed.IDs[i])
		}
	}
}

func TestExtension_ParseInvalid(t *testing.T) {
	// truncated list length
	_, err := ParseExtension(h2b("00"))
	assert.ErrorIs(t, err, ErrDecodeExtension)
	// odd list length
	_, err = ParseExtension(h2b("000300170018"))
	assert.ErrorIs(t, err, ErrDecodeExtension)
	// list length does not fill the extension data
	_, err = ParseExtension(h2b("000200170018"))
	assert.ErrorIs(t, err, ErrDecodeExtension)
	_, err = ParseExtension(h2b("00060017"))
	assert.ErrorIs(t, err, ErrDecodeExtension)
}

// Unknown ids survive parsing but are ignored during selection.
func TestExtension_UnknownIDs(t *testing.T) {
	r, err := NewRegistry(Config{})
	assert.Nil(t, err)
	parsed, err := ParseExtension(h2b("0006FFFF00170019"))
	assert.Nil(t, err)
	assert.True(t, parsed.Contains(0xFFFF))
	g, ok := parsed.PreferredCurve(r, PermitAll)
	assert.True(t, ok)
	assert.Equal(t, uint16(23), g.ID)
}

func TestNewExtension(t *testing.T) {
	r, err := NewRegistry(Config{})
	assert.Nil(t, err)
	e := NewExtension(r, PermitAll)
	assert.Equal(t, []uint16{23, 24, 25, 22}, e.IDs)
	e = NewExtension(r, FIPSOnly)
	assert.Equal(t, []uint16{23, 24, 25}, e.IDs)
}
