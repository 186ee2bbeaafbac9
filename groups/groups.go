// Package groups implements the TLS supported-groups machinery: the named
// curve registry, preference configuration, and the supported_groups
// (elliptic_curves) hello extension.
package groups

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrDuplicateGroup = errors.New("groups: duplicate named group definition")
	// ErrNoSupportedGroups means the configured preference list contains
	// no curve the providers can construct. Fatal at startup.
	ErrNoSupportedGroups = errors.New("groups: preference list contains no supported groups")
)

// NamedGroup describes one entry of the IANA supported-groups registry.
type NamedGroup struct {
	ID   uint16
	Name string
	OID  string
	FIPS bool // NIST approved
}

// The named elliptic curves of RFC 4492. Ids follow the IANA assignments,
// OIDs follow SEC 2.
var namedCurves = []NamedGroup{
	{1, "sect163k1", "1.3.132.0.1", true}, // NIST K-163
	{2, "sect163r1", "1.3.132.0.2", false},
	{3, "sect163r2", "1.3.132.0.15", true}, // NIST B-163
	{4, "sect193r1", "1.3.132.0.24", false},
	{5, "sect193r2", "1.3.132.0.25", false},
	{6, "sect233k1", "1.3.132.0.26", true}, // NIST K-233
	{7, "sect233r1", "1.3.132.0.27", true}, // NIST B-233
	{8, "sect239k1", "1.3.132.0.3", false},
	{9, "sect283k1", "1.3.132.0.16", true},  // NIST K-283
	{10, "sect283r1", "1.3.132.0.17", true}, // NIST B-283
	{11, "sect409k1", "1.3.132.0.36", true}, // NIST K-409
	{12, "sect409r1", "1.3.132.0.37", true}, // NIST B-409
	{13, "sect571k1", "1.3.132.0.38", true}, // NIST K-571
	{14, "sect571r1", "1.3.132.0.39", true}, // NIST B-571

	{15, "secp160k1", "1.3.132.0.9", false},
	{16, "secp160r1", "1.3.132.0.8", false},
	{17, "secp160r2", "1.3.132.0.30", false},
	{18, "secp192k1", "1.3.132.0.31", false},
	{19, "secp192r1", "1.2.840.10045.3.1.1", true}, // NIST P-192
	{20, "secp224k1", "1.3.132.0.32", false},
	{21, "secp224r1", "1.3.132.0.33", true}, // NIST P-224
	{22, "secp256k1", "1.3.132.0.10", false},
	{23, "secp256r1", "1.2.840.10045.3.1.7", true}, // NIST P-256
	{24, "secp384r1", "1.3.132.0.34", true},        // NIST P-384
	{25, "secp521r1", "1.3.132.0.35", true},        // NIST P-521
}

// Ids with the arbitrary-curve meaning from RFC 4492. They never appear in
// the registry but may show up in a peer's extension.
const (
	arbitraryPrime uint16 = 0xff01
	arbitraryChar2 uint16 = 0xff02
)

// Default preference order: NIST curves first, non-NIST second.
// FIPS mode drops the non-NIST tail.
var defaultIDs = []uint16{23, 24, 25, 9, 10, 11, 12, 13, 14, 22}
var defaultFIPSIDs = []uint16{23, 24, 25, 9, 10, 11, 12, 13, 14}

// Config carries the process-wide supported-groups settings.
type Config struct {
	// PreferredGroups is an ordered comma-separated list of curve names,
	// optionally surrounded with double quotes. Empty means defaults.
	PreferredGroups string
	// FIPSMode restricts the registry to FIPS-approved groups.
	FIPSMode bool
}

// ConfigFromEnv reads the settings from the environment
// (STLS_PREFERRED_GROUPS, STLS_FIPS_MODE).
func ConfigFromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("stls")
	v.AutomaticEnv()
	return Config{
		PreferredGroups: v.GetString("preferred_groups"),
		FIPSMode:        v.GetBool("fips_mode"),
	}
}

// Registry holds the locally supported groups in preference order.
// Registries are immutable after construction.
type Registry struct {
	byID      map[uint16]NamedGroup
	byOID     map[string]uint16
	byName    map[string]uint16
	supported []uint16 // locally supported ids, most preferred first
	fips      bool
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry built from the environment
// configuration. An invalid configuration panics: it is fatal at startup.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(ConfigFromEnv())
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry builds a registry from cfg. Curves whose parameters the
// providers cannot construct are dropped. A customized preference list
// that drops every curve is a configuration error.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{
		byID:   make(map[uint16]NamedGroup),
		byOID:  make(map[string]uint16),
		byName: make(map[string]uint16),
		fips:   cfg.FIPSMode,
	}
	for _, g := range namedCurves {
		if _, dup := r.byID[g.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateGroup, "id %d", g.ID)
		}
		if _, dup := r.byOID[g.OID]; dup {
			return nil, errors.Wrapf(ErrDuplicateGroup, "oid %s", g.OID)
		}
		if _, dup := r.byName[g.Name]; dup {
			return nil, errors.Wrapf(ErrDuplicateGroup, "name %s", g.Name)
		}
		r.byID[g.ID] = g
		r.byOID[g.OID] = g.ID
		r.byName[g.Name] = g.ID
	}

	property := strings.TrimSpace(cfg.PreferredGroups)
	if len(property) > 1 && property[0] == '"' && property[len(property)-1] == '"' {
		property = property[1 : len(property)-1]
	}

	if property != "" {
		for _, name := range strings.Split(property, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			id, ok := r.byName[name]
			if !ok {
				// Unknown curve names are ignored.
				continue
			}
			g := r.byID[id]
			if cfg.FIPSMode && !g.FIPS {
				continue
			}
			if availableCurve(id) {
				r.supported = append(r.supported, id)
			}
		}
		if len(r.supported) == 0 {
			return nil, errors.Wrapf(ErrNoSupportedGroups, "preferred_groups=%q", property)
		}
	} else {
		ids := defaultIDs
		if cfg.FIPSMode {
			ids = defaultFIPSIDs
		}
		for _, id := range ids {
			if availableCurve(id) {
				r.supported = append(r.supported, id)
			}
		}
	}

	if len(r.supported) == 0 {
		log.Warn().Msg("groups: registry initialized with no available curves")
	}
	return r, nil
}

// availableCurve reports whether the underlying providers can construct
// parameters for the curve.
func availableCurve(id uint16) bool {
	switch id {
	case 21:
		return elliptic.P224() != nil
	case 22:
		return secp256k1.S256() != nil
	case 23, 24, 25:
		_, ok := nistCurves[id]
		return ok
	}
	return false
}

var nistCurves = map[uint16]ecdh.Curve{
	23: ecdh.P256(),
	24: ecdh.P384(),
	25: ecdh.P521(),
}

// ECDHCurve returns the key-agreement parameters for a NIST prime curve id.
func ECDHCurve(id uint16) (ecdh.Curve, bool) {
	c, ok := nistCurves[id]
	return c, ok
}

// Supported returns the locally supported ids, most preferred first.
func (r *Registry) Supported() []uint16 {
	ids := make([]uint16, len(r.supported))
	copy(ids, r.supported)
	return ids
}

// IsSupported reports whether id is locally supported.
func (r *Registry) IsSupported(id uint16) bool {
	for _, s := range r.supported {
		if s == id {
			return true
		}
	}
	return false
}

// Lookup returns the registry entry for id.
func (r *Registry) Lookup(id uint16) (NamedGroup, bool) {
	g, ok := r.byID[id]
	return g, ok
}

// OIDToID maps a curve OID back to its id.
func (r *Registry) OIDToID(oid string) (uint16, bool) {
	id, ok := r.byOID[oid]
	return id, ok
}

// PreferredCurve walks the locally supported groups in local preference
// order and returns the first one that the peer offers and the constraints
// permit for key agreement. The second result is false when no usable
// intersection exists.
func (r *Registry) PreferredCurve(peerIDs []uint16, constraints Constraints) (NamedGroup, bool) {
	for _, id := range r.supported {
		offered := false
		for _, peer := range peerIDs {
			if peer == id {
				offered = true
				break
			}
		}
		if !offered {
			continue
		}
		g := r.byID[id]
		if constraints.Permits(KeyAgreement, g) {
			return g, true
		}
	}
	return NamedGroup{}, false
}

// ActiveCurve returns the most preferred locally supported group the
// constraints permit, ignoring any peer offer.
func (r *Registry) ActiveCurve(constraints Constraints) (NamedGroup, bool) {
	return r.PreferredCurve(r.supported, constraints)
}
