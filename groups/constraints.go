package groups

// Primitive identifies the cryptographic operation a constraints check
// applies to.
type Primitive int

const (
	KeyAgreement Primitive = iota
	Signature
)

// Constraints decides whether an algorithm may be used for a primitive.
// The handshake layer supplies these; the registry only consults them.
type Constraints interface {
	Permits(primitive Primitive, group NamedGroup) bool
}

// PermitAll places no restrictions.
var PermitAll Constraints = permitAll{}

type permitAll struct{}

func (permitAll) Permits(Primitive, NamedGroup) bool { return true }

// FIPSOnly permits only FIPS-approved groups.
var FIPSOnly Constraints = fipsOnly{}

type fipsOnly struct{}

func (fipsOnly) Permits(_ Primitive, g NamedGroup) bool { return g.FIPS }
