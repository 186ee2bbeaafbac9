package groups

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/cryptobyte"
)

// ExtensionType is the IANA number of the supported_groups extension
// (named elliptic_curves before TLS 1.3).
const ExtensionType uint16 = 10

var ErrDecodeExtension = errors.New("groups: invalid supported_groups extension")

// SupportedGroupsExtension carries the group ids a peer offers, most
// preferred first. Unknown ids are preserved; selection ignores them.
type SupportedGroupsExtension struct {
	IDs []uint16
}

// NewExtension builds the extension from the registry's supported list,
// filtered through constraints.
func NewExtension(r *Registry, constraints Constraints) *SupportedGroupsExtension {
	var ids []uint16
	for _, id := range r.supported {
		if constraints.Permits(KeyAgreement, r.byID[id]) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &SupportedGroupsExtension{IDs: ids}
}

// ParseExtension decodes extension_data: a 2-byte list length followed by
// the 2-byte ids. The list length must be even and fill the data exactly.
func ParseExtension(data []byte) (*SupportedGroupsExtension, error) {
	s := cryptobyte.String(data)
	var listLen uint16
	if !s.ReadUint16(&listLen) {
		return nil, ErrDecodeExtension
	}
	if listLen%2 != 0 || int(listLen)+2 != len(data) {
		return nil, ErrDecodeExtension
	}
	ids := make([]uint16, 0, listLen/2)
	for !s.Empty() {
		var id uint16
		if !s.ReadUint16(&id) {
			return nil, ErrDecodeExtension
		}
		ids = append(ids, id)
	}
	return &SupportedGroupsExtension{IDs: ids}, nil
}

// Marshal emits the full extension: type, total length, list length, ids.
func (e *SupportedGroupsExtension) Marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint16(ExtensionType)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, id := range e.IDs {
				b.AddUint16(id)
			}
		})
	})
	return b.BytesOrPanic()
}

// MarshalData emits only extension_data (list length and ids), the form
// ParseExtension consumes.
func (e *SupportedGroupsExtension) MarshalData() []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, id := range e.IDs {
			b.AddUint16(id)
		}
	})
	return b.BytesOrPanic()
}

// Length is the full extension size on the wire.
func (e *SupportedGroupsExtension) Length() int {
	return 6 + 2*len(e.IDs)
}

// Contains reports whether id is offered by the extension.
func (e *SupportedGroupsExtension) Contains(id uint16) bool {
	for _, offered := range e.IDs {
		if offered == id {
			return true
		}
	}
	return false
}

// PreferredCurve selects from the ids this extension offers.
func (e *SupportedGroupsExtension) PreferredCurve(r *Registry, constraints Constraints) (NamedGroup, bool) {
	return r.PreferredCurve(e.IDs, constraints)
}
