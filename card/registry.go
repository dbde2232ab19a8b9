package card

// descriptorKind is the tagged-variant replacement for the source driver's
// function-pointer dispatch (see spec Design Note on the DO registry): the
// blob tree switches on kind instead of invoking an indirect fetch/store
// function pointer.
type descriptorKind int

const (
	kindStandard descriptorKind = iota // primitive or constructed-on-the-wire DO, fetched by GET DATA
	kindPublicKey                      // fetched via GENERATE ASYMMETRIC KEY PAIR "read" (INS 0x47, P1 0x81)
	kindPublicKeyPEM                   // virtual tag, synthesized from a kindPublicKey DO's 7F49 template
)

// descriptor is a static registry entry: DO tag, constructed flag, and how to
// fetch it. Store is never implemented (writing DOs is a non-goal).
type descriptor struct {
	tag         uint16
	constructed bool
	kind        descriptorKind
	pemSource   uint16 // for kindPublicKeyPEM: the real key DO this tag is a view of
}

// registry enumerates every root-level DO in registry order; this order is
// the sibling order of the MF's eagerly created children (spec invariant:
// "Sibling order follows discovery order").
var registry = []descriptor{
	// Simple DOs
	{tag: 0x004F, kind: kindStandard},
	{tag: 0x005E, kind: kindStandard},
	{tag: 0x00C4, kind: kindStandard},
	{tag: 0x0101, kind: kindStandard},
	{tag: 0x0102, kind: kindStandard},
	{tag: 0x5F50, kind: kindStandard},
	{tag: 0x5F52, kind: kindStandard},

	// Constructed DOs (primitive on the wire, TLV-parsed recursively)
	{tag: 0x0065, constructed: true, kind: kindStandard},
	{tag: 0x006E, constructed: true, kind: kindStandard},
	{tag: 0x007A, constructed: true, kind: kindStandard},
	{tag: 0x7F21, constructed: true, kind: kindStandard},

	// Key DOs
	{tag: 0xB600, kind: kindPublicKey},
	{tag: 0xB800, kind: kindPublicKey},
	{tag: 0xA400, kind: kindPublicKey},

	// Key DOs, PEM view
	{tag: 0xB601, kind: kindPublicKeyPEM, pemSource: 0xB600},
	{tag: 0xB801, kind: kindPublicKeyPEM, pemSource: 0xB800},
	{tag: 0xA401, kind: kindPublicKeyPEM, pemSource: 0xA400},
}

func lookupDescriptor(tag uint16) (descriptor, bool) {
	for _, d := range registry {
		if d.tag == tag {
			return d, true
		}
	}
	return descriptor{}, false
}

// Tag constants for the DOs referenced directly by the security and PEM
// synthesis logic.
const (
	tagPublicKeyTemplate uint16 = 0x7F49
	tagModulus           uint16 = 0x0081
	tagExponent          uint16 = 0x0082

	tagSigKey  uint16 = 0xB600
	tagDecKey  uint16 = 0xB800
	tagAuthKey uint16 = 0xA400

	tagMF uint16 = 0x3F00
)
